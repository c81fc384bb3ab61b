package handlers

import (
	"canvas-studio-backend/internal/canvas/notice"

	"github.com/gofiber/fiber/v2"
)

// NoticeHandler exposes the error slot shown by the UI
type NoticeHandler struct {
	slot *notice.Slot
}

func NewNoticeHandler(slot *notice.Slot) *NoticeHandler {
	return &NoticeHandler{slot: slot}
}

func (h *NoticeHandler) GetNotice(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notice": h.slot.Current(),
	})
}

// function to dismiss the current notice
func (h *NoticeHandler) ClearNotice(c *fiber.Ctx) error {
	h.slot.Clear()
	return c.SendStatus(fiber.StatusNoContent)
}
