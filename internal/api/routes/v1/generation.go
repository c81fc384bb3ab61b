package v1

import (
	"canvas-studio-backend/internal/handlers"

	"github.com/gofiber/fiber/v2"
)

func registerGeneration(r fiber.Router, svc Services) {
	generationHandler := handlers.NewGenerationHandler(svc.Sessions)

	r.Post("/projects/:projectId/generate", generationHandler.Generate)
	r.Post("/projects/:projectId/shapes/:shapeId/derive", generationHandler.Derive)
	r.Get("/projects/:projectId/jobs", generationHandler.GetJobs)
	r.Get("/projects/:projectId/jobs/:shapeId", generationHandler.GetJob)
	r.Delete("/projects/:projectId/jobs/:shapeId", generationHandler.CancelJob)
}

func registerNotice(r fiber.Router, svc Services) {
	noticeHandler := handlers.NewNoticeHandler(svc.Sessions.Slot())

	r.Get("/notice", noticeHandler.GetNotice)
	r.Delete("/notice", noticeHandler.ClearNotice)
}
