package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/skilllink/skilllink-api/internal/utils"
)

func RequireRoles(allowed ...string) fiber.Handler {
	allowedSet := map[string]bool{}
	for _, r := range allowed {
		allowedSet[strings.ToLower(r)] = true
	}

	return func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		if !allowedSet[string(p.Role)] {
			return utils.Forbidden("Access denied: " + strings.Join(allowed, "/") + " only")
		}
		return c.Next()
	}
}
