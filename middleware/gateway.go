package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuthMiddleware guards the admin routes (backfill trigger, milestone
// invalidation): callers must present the shared service token, either as
// X-Service-Token or as a Bearer Authorization header.
func ServiceAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("GAME_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ GAME_SERVICE_TOKEN is not set — admin routes cannot be secured")
	}

	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			// Fall back to "Bearer <token>" for callers routed via the Gateway.
			token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		}

		if token == "" {
			log.Printf("🚫 [SERVICE_AUTH] Missing service token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "service token missing",
			})
		}
		if token != expectedToken {
			log.Printf("❌ [SERVICE_AUTH] Invalid service token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service token",
			})
		}
		return c.Next()
	}
}
