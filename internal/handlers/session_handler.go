package handlers

import (
	"canvas-studio-backend/internal/canvas/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionHandler opens and closes the editing session of a project
type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// caller resolves the user and project named by the request. Its errors
// are *fiber.Error values rendered by the app error handler.
func caller(c *fiber.Ctx) (uuid.UUID, string, error) {
	user, err := userID(c)
	if err != nil {
		return uuid.Nil, "", fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	id, err := projectID(c)
	if err != nil {
		return uuid.Nil, "", fiber.NewError(fiber.StatusBadRequest, "Invalid project ID")
	}
	return user, id.String(), nil
}

// openSession looks up the caller's open session
func openSession(c *fiber.Ctx, sessions *session.Manager) (*session.Session, error) {
	user, id, err := caller(c)
	if err != nil {
		return nil, err
	}
	s, err := sessions.Get(user, id)
	if err != nil {
		return nil, fiber.NewError(statusFor(err), err.Error())
	}
	return s, nil
}

func sessionBody(s *session.Session) fiber.Map {
	snap := s.Store.Snapshot()
	return fiber.Map{
		"project_id": s.ProjectID,
		"version":    snap.Version,
		"shapes":     snap.Shapes,
		"save":       s.Sync.Status(),
		"jobs":       s.Jobs.InFlight(),
	}
}

// function to open a project for editing
func (h *SessionHandler) OpenSession(c *fiber.Ctx) error {
	user, id, err := caller(c)
	if err != nil {
		return err
	}
	s, err := h.sessions.Open(c.UserContext(), user, id)
	if err != nil {
		return failure(c, err, "Failed to open project")
	}
	return c.Status(fiber.StatusOK).JSON(sessionBody(s))
}

// function to reload the project after the editor became visible again
func (h *SessionHandler) ReactivateSession(c *fiber.Ctx) error {
	user, id, err := caller(c)
	if err != nil {
		return err
	}
	s, err := h.sessions.Reactivate(c.UserContext(), user, id)
	if err != nil {
		return failure(c, err, "Failed to reload project")
	}
	return c.Status(fiber.StatusOK).JSON(sessionBody(s))
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(sessionBody(s))
}

// function to save pending edits right away
func (h *SessionHandler) FlushSession(c *fiber.Ctx) error {
	s, err := openSession(c, h.sessions)
	if err != nil {
		return err
	}
	if err := s.Sync.Flush(c.UserContext()); err != nil {
		return failure(c, err, "Failed to save project")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"save": s.Sync.Status(),
	})
}

// function to close a project, saving pending edits
func (h *SessionHandler) CloseSession(c *fiber.Ctx) error {
	user, id, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Close(c.UserContext(), user, id); err != nil {
		return failure(c, err, "Failed to close project")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Project closed successfully",
	})
}
