// Package handlers exposes the HTTP surface. Every /api route runs
// behind the identity middleware, which resolves the calling user.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"lifetracker/internal/middleware"
	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

// currentUser returns the user resolved by the identity middleware
func currentUser(c *fiber.Ctx) (*models.User, error) {
	user := middleware.UserFromContext(c)
	if user == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "no user identity on request")
	}
	return user, nil
}

// UserHandler handles account-level requests
type UserHandler struct {
	store *store.Store
}

// NewUserHandler creates a new user handler
func NewUserHandler(st *store.Store) *UserHandler {
	return &UserHandler{store: st}
}

// Me returns (creating if needed) the calling user
// GET /api/me
func (h *UserHandler) Me(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Purge deletes the calling user and every owned record in one
// transaction. Used when the user withdraws consent.
// DELETE /api/me
func (h *UserHandler) Purge(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.store.PurgeUser(c.Context(), user.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to purge user data",
		})
	}
	return c.JSON(fiber.Map{"message": "All data deleted"})
}
