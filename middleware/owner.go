// middleware/owner.go
package middleware

import (
	"log"

	"colour-arcade-backend/models"

	"github.com/gofiber/fiber/v2"
)

// OwnerOnlyMiddleware gates the operator surface: finalize, cleanup, pool
// and reserve movements, expired-reward sweeps. Requires the "admin" role
// from the gateway user context.
func OwnerOnlyMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == "admin" {
				return c.Next()
			}
		}

		log.Printf("🚫 [OWNER] Non-owner %v attempted %s", c.Locals("user_id"), c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": models.ErrOnlyOwner.Error(),
		})
	}
}
