package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
)

type CategoryHandler struct {
	DB *gorm.DB
}

func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{DB: db}
}

func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories := []models.Category{}
	if err := h.DB.WithContext(c.UserContext()).Order("name ASC").Find(&categories).Error; err != nil {
		return err
	}
	return ok(c, "", categories)
}
