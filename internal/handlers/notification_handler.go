package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const notificationPage = 50

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

func (h *NotificationHandler) Routes(r fiber.Router, g Guards) {
	n := r.Group("/notifications")
	n.Get("/", With(g.Any, h.List)...)
	n.Put("/read-all", With(g.Any, h.MarkAllRead)...)
	n.Put("/:id/read", With(g.Any, h.MarkRead)...)
}

// mine scopes a query to the caller's notifications.
func mine(db *gorm.DB, p models.Principal) *gorm.DB {
	if p.IsWorker() {
		return db.Where("worker_id = ?", p.ID)
	}
	return db.Where("user_id = ?", p.ID)
}

// List: GET /api/notifications, newest 50.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	out := []models.Notification{}
	if err := mine(h.DB.WithContext(c.UserContext()), p).
		Order("created_at DESC").
		Limit(notificationPage).
		Find(&out).Error; err != nil {
		return err
	}
	return ok(c, "Notifications retrieved successfully", out)
}

// MarkRead: PUT /api/notifications/:id/read. Another principal's
// notification reads as not found.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "notification")
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	res := mine(db.Model(&models.Notification{}).Where("id = ?", id), p).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	var n models.Notification
	if err := mine(db.Where("id = ?", id), p).First(&n).Error; err != nil {
		return utils.NotFound("Notification not found")
	}
	return ok(c, "Notification marked as read", n)
}

// MarkAllRead: PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	res := mine(h.DB.WithContext(c.UserContext()).Model(&models.Notification{}), p).
		Where("is_read = ?", false).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	return ok(c, "All notifications marked as read", fiber.Map{"modifiedCount": res.RowsAffected})
}
