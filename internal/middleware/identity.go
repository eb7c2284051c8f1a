// Package middleware holds the fiber middleware for the API surface.
package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"lifetracker/internal/models"
	"lifetracker/internal/store"
)

const userLocalKey = "currentUser"

// UserIdentity resolves the calling user from the X-User-Email /
// X-User-Name identity headers, creating the row on first contact, and
// stores the user in the request locals. Authentication proper is an
// external collaborator in front of this server.
func UserIdentity(st *store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Get("X-User-Email")
		if email == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "X-User-Email header is required",
			})
		}

		user, err := st.GetOrCreateUserByEmail(c.Context(), email, c.Get("X-User-Name"))
		if err != nil {
			log.Printf("❌ [IDENTITY] Failed to resolve user %s: %v", email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve user",
			})
		}

		c.Locals(userLocalKey, user)
		return c.Next()
	}
}

// UserFromContext returns the user resolved by UserIdentity, or nil when
// the middleware did not run.
func UserFromContext(c *fiber.Ctx) *models.User {
	if user, ok := c.Locals(userLocalKey).(*models.User); ok {
		return user
	}
	return nil
}
