package handlers

import (
	"errors"

	"canvas-studio-backend/internal/canvas/session"
	"canvas-studio-backend/internal/canvas/store"
	"canvas-studio-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ShapeHandler edits the shapes of an open project. Every mutation answers
// with the store version it produced.
type ShapeHandler struct {
	sessions *session.Manager
}

func NewShapeHandler(sessions *session.Manager) *ShapeHandler {
	return &ShapeHandler{sessions: sessions}
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func committed(c *fiber.Ctx, s *session.Session, extra fiber.Map) error {
	body := fiber.Map{"version": s.Store.Version()}
	for k, v := range extra {
		body[k] = v
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

func (h *ShapeHandler) GetShapes(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	snap := s.Store.Snapshot()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"version": snap.Version,
		"shapes":  snap.Shapes,
	})
}

func (h *ShapeHandler) GetShape(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	shape, ok := s.Store.Get(c.Params("shapeId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Shape not found",
		})
	}
	return c.Status(fiber.StatusOK).JSON(shape)
}

// function to add a shape on top of the stacking order
func (h *ShapeHandler) AddShape(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var shape models.Shape
	if err := c.BodyParser(&shape); err != nil {
		return badRequest(c, "Invalid shape")
	}
	if shape.ID == "" {
		shape.ID = s.Store.NewID()
	}

	if err := s.Store.AddShape(shape); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A shape with this id already exists",
			})
		}
		return failure(c, err, "Failed to add shape")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      shape.ID,
		"version": s.Store.Version(),
	})
}

// function to merge a partial update into one shape
func (h *ShapeHandler) UpdateShape(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var patch models.ShapePatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid shape update")
	}
	id := c.Params("shapeId")
	if !s.Store.Has(id) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Shape not found",
		})
	}
	s.Store.UpdateShape(id, patch)
	return committed(c, s, nil)
}

// function to apply several shape updates as one version
func (h *ShapeHandler) UpdateShapes(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto struct {
		Updates []store.Update `json:"updates"`
	}
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid shape updates")
	}
	s.Store.UpdateShapes(dto.Updates)
	return committed(c, s, nil)
}

func (h *ShapeHandler) DeleteShape(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	s.Store.DeleteShape(c.Params("shapeId"))
	return committed(c, s, nil)
}

// function to reorder a shape: forward, backward, front or back
func (h *ShapeHandler) MoveShape(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto struct {
		Movement string `json:"movement"`
	}
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}
	m, err := store.ParseMovement(dto.Movement)
	if err != nil {
		return badRequest(c, err.Error())
	}
	s.Store.Move(c.Params("shapeId"), m)
	return committed(c, s, nil)
}

// function to clone shapes, returning the clone ids
func (h *ShapeHandler) DuplicateShapes(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto idsRequest
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ids := s.Store.Duplicate(dto.IDs)
	if ids == nil {
		ids = []string{}
	}
	return committed(c, s, fiber.Map{"ids": ids})
}

// function to group shapes. Fewer than two eligible shapes is not an error,
// the answer just reports grouped as false.
func (h *ShapeHandler) CreateGroup(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto idsRequest
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}
	groupID, ok := s.Store.CreateGroup(dto.IDs)
	return committed(c, s, fiber.Map{
		"grouped":  ok,
		"group_id": groupID,
	})
}

func (h *ShapeHandler) Ungroup(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	s.Store.Ungroup(c.Params("groupId"))
	return committed(c, s, nil)
}

func (h *ShapeHandler) AddToGroup(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto idsRequest
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}
	s.Store.AddToGroup(dto.IDs, c.Params("groupId"))
	return committed(c, s, nil)
}

func (h *ShapeHandler) RemoveFromGroup(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	var dto idsRequest
	if err := c.BodyParser(&dto); err != nil {
		return badRequest(c, "Invalid request body")
	}
	s.Store.RemoveFromGroup(dto.IDs)
	return committed(c, s, nil)
}
