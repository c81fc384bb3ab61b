package v1

import (
	"canvas-studio-backend/internal/handlers"

	"github.com/gofiber/fiber/v2"
)

func registerShapes(r fiber.Router, svc Services) {
	shapeHandler := handlers.NewShapeHandler(svc.Sessions)

	shapes := r.Group("/projects/:projectId/shapes")
	shapes.Get("/", shapeHandler.GetShapes)
	shapes.Post("/", shapeHandler.AddShape)
	shapes.Patch("/", shapeHandler.UpdateShapes)
	shapes.Post("/duplicate", shapeHandler.DuplicateShapes)
	shapes.Get("/:shapeId", shapeHandler.GetShape)
	shapes.Patch("/:shapeId", shapeHandler.UpdateShape)
	shapes.Delete("/:shapeId", shapeHandler.DeleteShape)
	shapes.Post("/:shapeId/move", shapeHandler.MoveShape)

	groups := r.Group("/projects/:projectId/groups")
	groups.Post("/", shapeHandler.CreateGroup)
	groups.Post("/remove", shapeHandler.RemoveFromGroup)
	groups.Delete("/:groupId", shapeHandler.Ungroup)
	groups.Post("/:groupId/members", shapeHandler.AddToGroup)
}
