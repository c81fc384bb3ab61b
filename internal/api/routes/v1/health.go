package v1

import (
	"github.com/gofiber/fiber/v2"
)

func registerHealth(r fiber.Router, svc Services) {
	r.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "ok",
			"sessions": svc.Sessions.Len(),
		})
	})
}
