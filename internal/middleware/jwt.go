package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/skilllink/skilllink-api/internal/utils"
)

// TokenCookie carries the JWT for browser clients that do not send a bearer header.
const TokenCookie = "sl_token"

// JWTAuth accepts "Authorization: Bearer <token>" and falls back to the cookie.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenStr == "" {
			tokenStr = c.Cookies(TokenCookie)
		}
		if tokenStr == "" {
			return utils.Unauthorized("Not authorized, no token")
		}

		token, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return utils.Unauthorized("Not authorized, token failed")
		}

		c.Locals("user", token)
		return c.Next()
	}
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
