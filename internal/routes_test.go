package internal_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "pagesense/api/v1"
	"pagesense/internal"
)

// The handlers are never invoked, so bare structs are enough to mount the
// full middleware stack.
func mountedApp() *fiber.App {
	app := fiber.New()
	internal.MountRoutes(app, &internal.Application{}, &v1.Handler{})
	return app
}

func TestPreflightEchoesRequestOrigin(t *testing.T) {
	app := mountedApp()

	req := httptest.NewRequest(fiber.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://example.com",
		resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSimpleRequestEchoesRequestOrigin(t *testing.T) {
	app := mountedApp()
	app.Get("/probe", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(fiber.MethodGet, "/probe", nil)
	req.Header.Set("Origin", "https://blog.example.com")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://blog.example.com",
		resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOptionsWithoutOrigin(t *testing.T) {
	app := mountedApp()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodOptions, "/api/v1/events", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
