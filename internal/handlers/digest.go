package handlers

import (
	"github.com/gofiber/fiber/v2"

	"lifetracker/internal/services"
)

// DigestHandler triggers digest generation on demand
type DigestHandler struct {
	digests *services.DigestService
}

// NewDigestHandler creates a new digest handler
func NewDigestHandler(digests *services.DigestService) *DigestHandler {
	return &DigestHandler{digests: digests}
}

// Generate runs the digest pipeline for the calling user. The daily cap
// applies the same way it does for the scheduled run.
// POST /api/digest
func (h *DigestHandler) Generate(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	result := h.digests.GenerateAndSend(c.Context(), user.ID)
	return c.JSON(result)
}
