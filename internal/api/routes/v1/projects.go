package v1

import (
	"canvas-studio-backend/internal/config"
	"canvas-studio-backend/internal/handlers"
	"canvas-studio-backend/internal/repo"

	"github.com/gofiber/fiber/v2"
)

func registerProjects(r fiber.Router, svc Services) {
	// Initialize handlers
	projectRepo := repo.NewProjectRepository(config.DB)
	projectHandler := handlers.NewProjectHandler(projectRepo, svc.Sessions, svc.Assets)
	sessionHandler := handlers.NewSessionHandler(svc.Sessions)

	// Register routes
	r.Get("/projects", projectHandler.GetAllProjects)
	r.Post("/projects", projectHandler.CreateProject)
	r.Get("/projects/:projectId", projectHandler.GetProjectByID)
	r.Patch("/projects/:projectId", projectHandler.RenameProject)
	r.Delete("/projects/:projectId", projectHandler.DeleteProject)
	r.Post("/projects/:projectId/thumbnail", projectHandler.UploadThumbnail)

	r.Post("/projects/:projectId/session", sessionHandler.OpenSession)
	r.Get("/projects/:projectId/session", sessionHandler.GetSession)
	r.Post("/projects/:projectId/session/reactivate", sessionHandler.ReactivateSession)
	r.Post("/projects/:projectId/session/flush", sessionHandler.FlushSession)
	r.Delete("/projects/:projectId/session", sessionHandler.CloseSession)
}
