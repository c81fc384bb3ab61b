package handlers

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"canvas-studio-backend/internal/canvas/session"
	"canvas-studio-backend/internal/models"
	"canvas-studio-backend/internal/repo"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Uploader stores an asset and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
}

// for simple crud operations service layer is not required
type ProjectHandler struct {
	repo     repo.ProjectRepoInterface
	sessions *session.Manager
	assets   Uploader
}

func NewProjectHandler(projectRepo repo.ProjectRepoInterface, sessions *session.Manager, assets Uploader) *ProjectHandler {
	return &ProjectHandler{
		repo:     projectRepo,
		sessions: sessions,
		assets:   assets,
	}
}

func projectID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("projectId"))
}

// function to create a project
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	var dto struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		name = "Untitled"
	}

	id, err := h.repo.CreateProject(c.UserContext(), &models.Project{
		Name:   name,
		UserID: user,
	})
	if err != nil {
		return failure(c, err, "Failed to create project")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"uuid":    id.String(),
		"message": "Project created successfully",
	})
}

// function to get all projects of the caller
func (h *ProjectHandler) GetAllProjects(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	projects, err := h.repo.GetAllProjects(c.UserContext(), user)
	if err != nil {
		return failure(c, err, "Failed to get projects")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"projects": projects,
	})
}

// function to get project by ID
func (h *ProjectHandler) GetProjectByID(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	id, err := projectID(c)
	if err != nil {
		return badRequest(c, "Invalid project ID")
	}

	project, err := h.repo.GetProject(c.UserContext(), user, id)
	if err != nil {
		return failure(c, err, "Failed to get project")
	}
	shapes, err := project.DecodeShapes()
	if err != nil {
		return failure(c, err, "Stored shapes are unreadable")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project": project,
		"shapes":  shapes,
	})
}

func (h *ProjectHandler) RenameProject(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	id, err := projectID(c)
	if err != nil {
		return badRequest(c, "Invalid project ID")
	}
	var dto struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&dto); err != nil || strings.TrimSpace(dto.Name) == "" {
		return badRequest(c, "A project name is required")
	}

	if err := h.repo.RenameProject(c.UserContext(), user, id, strings.TrimSpace(dto.Name)); err != nil {
		return failure(c, err, "Failed to rename project")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Project renamed successfully",
	})
}

// function to delete a project, dropping its open session without saving
func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	id, err := projectID(c)
	if err != nil {
		return badRequest(c, "Invalid project ID")
	}

	if err := h.repo.DeleteProject(c.UserContext(), user, id); err != nil {
		return failure(c, err, "Failed to delete project")
	}
	h.sessions.Discard(id.String())

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Project deleted successfully",
	})
}

// function to upload the rendered thumbnail of a project
func (h *ProjectHandler) UploadThumbnail(c *fiber.Ctx) error {
	user, err := userID(c)
	if err != nil {
		return unauthorized(c, err)
	}
	id, err := projectID(c)
	if err != nil {
		return badRequest(c, "Invalid project ID")
	}
	if h.assets == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Asset storage is not configured",
		})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "No image provided")
	}
	f, err := file.Open()
	if err != nil {
		return failure(c, err, "Failed to read image")
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".png"
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	url, err := h.assets.Upload(c.UserContext(), fmt.Sprintf("thumbnails/%s%s", id, ext), contentType, f)
	if err != nil {
		return failure(c, err, "Failed to upload thumbnail")
	}
	if err := h.repo.UpdateThumbnail(c.UserContext(), user, id, url); err != nil {
		return failure(c, err, "Failed to save thumbnail")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"thumbnail": url,
		"message":   "Thumbnail saved successfully",
	})
}
