package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
)

type MapHandler struct {
	DB *gorm.DB
}

func NewMapHandler(db *gorm.DB) *MapHandler {
	return &MapHandler{DB: db}
}

func (h *MapHandler) Routes(r fiber.Router) {
	r.Get("/map/worker-locations", h.WorkerLocations)
}

type WorkerLocation struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	City         string    `json:"city"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Rating       float64   `json:"rating"`
	ReviewsCount int       `json:"reviewsCount"`
	Phone        string    `json:"phone"`
}

// WorkerLocations: GET /api/map/worker-locations?city&skillCategory. Only
// available workers that have shared a location are returned.
func (h *MapHandler) WorkerLocations(c *fiber.Ctx) error {
	q := h.DB.WithContext(c.UserContext()).
		Preload("SkillCategory").
		Where("availability_status = ?", models.AvailabilityAvailable).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL")

	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}
	if ref := strings.TrimSpace(c.Query("skillCategory")); ref != "" {
		if id, err := uuid.Parse(ref); err == nil {
			q = q.Where("skill_category_id = ?", id)
		} else {
			q = q.Where("skill_category_id IN (?)",
				h.DB.Model(&models.Category{}).Select("id").Where("LOWER(name) = LOWER(?)", ref))
		}
	}

	var workers []models.Worker
	if err := q.Find(&workers).Error; err != nil {
		return err
	}

	out := make([]WorkerLocation, 0, len(workers))
	for _, w := range workers {
		out = append(out, WorkerLocation{
			ID:           w.ID,
			Name:         w.Name,
			Category:     w.CategoryName(),
			City:         w.City,
			Latitude:     *w.Latitude,
			Longitude:    *w.Longitude,
			Rating:       w.RatingAverage,
			ReviewsCount: w.ReviewsCount,
			Phone:        w.Phone,
		})
	}
	return ok(c, "Worker locations retrieved successfully", out)
}
