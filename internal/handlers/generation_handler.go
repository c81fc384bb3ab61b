package handlers

import (
	"canvas-studio-backend/internal/canvas/generation"
	"canvas-studio-backend/internal/canvas/session"
	"canvas-studio-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type GenerationHandler struct {
	sessions *session.Manager
}

func NewGenerationHandler(sessions *session.Manager) *GenerationHandler {
	return &GenerationHandler{sessions: sessions}
}

// function to start a full generation from the canvas state
func (h *GenerationHandler) Generate(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var req generation.GenerateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid generation request")
		}
	}

	job, err := s.Jobs.Generate(c.UserContext(), req)
	if err != nil {
		return failure(c, err, "Failed to start generation")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job":     job,
		"version": s.Store.Version(),
	})
}

// function to derive a depth, edge or pose map from an image shape
func (h *GenerationHandler) Derive(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto struct {
		Kind models.JobKind `json:"kind"`
	}
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}

	job, err := s.Jobs.Derive(c.UserContext(), c.Params("shapeId"), dto.Kind)
	if err != nil {
		return failure(c, err, "Failed to start derivation")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job":     job,
		"version": s.Store.Version(),
	})
}

func (h *GenerationHandler) GetJobs(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"jobs": s.Jobs.InFlight(),
	})
}

func (h *GenerationHandler) GetJob(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	job, ok := s.Jobs.JobForShape(c.Params("shapeId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No job in flight for this shape",
		})
	}
	return c.Status(fiber.StatusOK).JSON(job)
}

// function to stop tracking the job of a shape
func (h *GenerationHandler) CancelJob(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	if !s.Jobs.Cancel(c.Params("shapeId")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No job in flight for this shape",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Job cancelled successfully",
	})
}
