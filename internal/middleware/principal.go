package middleware

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/utils"
)

// EnsurePrincipal rejects tokens whose account no longer exists.
func EnsurePrincipal(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		var model any = &models.User{}
		if p.IsWorker() {
			model = &models.Worker{}
		}
		var n int64
		if err := db.WithContext(c.UserContext()).Model(model).Where("id = ?", p.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return utils.Unauthorized("Account not found. Please login again.")
		}
		return c.Next()
	}
}
