package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/utils"
)

// AttachJWTLocals copies the token claims into Locals: userId, role and principal.
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Locals("user")
		if raw == nil {
			return fiber.ErrUnauthorized
		}

		token, ok := raw.(*jwt.Token)
		if !ok || token == nil {
			return fiber.ErrUnauthorized
		}

		claims, ok := token.Claims.(*utils.Claims)
		if !ok {
			return fiber.ErrUnauthorized
		}

		uid, err := uuid.Parse(strings.TrimSpace(claims.UserID))
		if err != nil {
			return utils.Unauthorized("Not authorized, token failed")
		}
		role := models.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
		if !role.Valid() {
			return utils.Unauthorized("Not authorized, token failed")
		}

		c.Locals("userId", uid.String())
		c.Locals("role", string(role))
		c.Locals("principal", models.Principal{Role: role, ID: uid})

		return c.Next()
	}
}

// CurrentPrincipal returns the principal set by AttachJWTLocals.
func CurrentPrincipal(c *fiber.Ctx) (models.Principal, bool) {
	p, ok := c.Locals("principal").(models.Principal)
	return p, ok
}
