package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerRendersFiberErrors(t *testing.T) {
	app := NewServer()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "no open session")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "no open session", body["error"])
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	app := NewServer()
	app.Get("/api/v1/ws", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
