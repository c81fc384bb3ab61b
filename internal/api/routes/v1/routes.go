package v1

import (
	"canvas-studio-backend/internal/canvas/session"
	"canvas-studio-backend/internal/handlers"
	"canvas-studio-backend/internal/libraries"

	"github.com/gofiber/fiber/v2"
)

// Services are the long lived components shared by every route
type Services struct {
	Sessions *session.Manager
	Hub      *libraries.Hub
	// Assets is nil when no bucket is configured
	Assets handlers.Uploader
}

func RegisterRoutes(r fiber.Router, svc Services) {
	registerHealth(r, svc)
	registerProjects(r, svc)
	registerShapes(r, svc)
	registerGeneration(r, svc)
	registerNotice(r, svc)
	registerWebSocket(r, svc)
}
