package main

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

func TestMetricsEndpoint(t *testing.T) {
	app := fiber.New()
	prometheus := fiberprometheus.New("lifetracker")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Drive one request through the middleware so a counter exists
	if _, err := app.Test(httptest.NewRequest("GET", "/health", nil)); err != nil {
		t.Fatalf("app.Test /health: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test /metrics: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "http_requests_total") {
		t.Errorf("metrics exposition missing request counter:\n%.300s", body)
	}
}
