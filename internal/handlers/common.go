package handlers

import (
	"errors"
	"log"

	"canvas-studio-backend/internal/faults"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

func userID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Get(UserHeader))
	if err != nil {
		return uuid.Nil, errors.New("missing or invalid " + UserHeader + " header")
	}
	return id, nil
}

func unauthorized(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

// statusFor maps an error onto the HTTP status the UI expects for its kind
func statusFor(err error) int {
	switch faults.Classify(err) {
	case faults.KindValidation:
		return fiber.StatusBadRequest
	case faults.KindNotFound:
		return fiber.StatusNotFound
	case faults.KindAuth:
		return fiber.StatusUnauthorized
	case faults.KindConnectivity:
		return fiber.StatusServiceUnavailable
	case faults.KindTimeout:
		return fiber.StatusGatewayTimeout
	case faults.KindProvider:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// failure logs err and answers with msg, adding the error text for client errors
func failure(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	log.Println(err, msg)
	body := fiber.Map{"error": msg}
	if status != fiber.StatusInternalServerError {
		body["detail"] = err.Error()
	}
	return c.Status(status).JSON(body)
}
