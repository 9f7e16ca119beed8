package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/repository"
)

type DashboardHandler struct {
	DB       *gorm.DB
	Messages repository.MessageRepository
	Log      *zap.Logger
}

func NewDashboardHandler(db *gorm.DB, msgs repository.MessageRepository, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{DB: db, Messages: msgs, Log: log}
}

func (h *DashboardHandler) Routes(r fiber.Router, g Guards) {
	r.Get("/dashboard/stats", With(g.Any, h.Stats)...)
}

type DashboardStats struct {
	Pending             int64    `json:"pending"`
	InProgress          int64    `json:"in_progress"`
	Completed           int64    `json:"completed"`
	Cancelled           int64    `json:"cancelled"`
	Rejected            int64    `json:"rejected"`
	Total               int64    `json:"total"`
	UnreadMessages      int64    `json:"unread_messages"`
	UnreadNotifications int64    `json:"unread_notifications"`
	RatingAverage       *float64 `json:"rating_average,omitempty"`
	ReviewsCount        *int     `json:"reviews_count,omitempty"`
}

// Stats: GET /api/dashboard/stats. Counts are for the caller's side of their
// service requests.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	col := "user_id"
	if p.IsWorker() {
		col = "worker_id"
	}
	var rows []struct {
		Status models.RequestStatus
		N      int64
	}
	if err := db.Model(&models.ServiceRequest{}).
		Select("status, COUNT(*) AS n").
		Where(col+" = ?", p.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	var st DashboardStats
	for _, r := range rows {
		st.Total += r.N
		switch r.Status {
		case models.RequestPending:
			st.Pending += r.N
		case models.RequestInProgress, models.RequestAccepted:
			st.InProgress += r.N
		case models.RequestCompleted:
			st.Completed += r.N
		case models.RequestCancelled:
			st.Cancelled += r.N
		case models.RequestRejected:
			st.Rejected += r.N
		}
	}

	n, err := h.Messages.CountUnread(c.UserContext(), "", models.PartyOf(p))
	if err != nil {
		// the chat store is optional for the dashboard
		h.Log.Warn("dashboard unread messages", zap.String("principal", p.ID.String()), zap.Error(err))
	}
	st.UnreadMessages = n

	notes := db.Model(&models.Notification{}).Where("is_read = ?", false)
	if p.IsWorker() {
		notes = notes.Where("worker_id = ?", p.ID)
	} else {
		notes = notes.Where("user_id = ?", p.ID)
	}
	if err := notes.Count(&st.UnreadNotifications).Error; err != nil {
		return err
	}

	if p.IsWorker() {
		var w models.Worker
		if err := db.Select("rating_average", "reviews_count").First(&w, "id = ?", p.ID).Error; err != nil {
			return err
		}
		st.RatingAverage = &w.RatingAverage
		st.ReviewsCount = &w.ReviewsCount
	}

	return ok(c, "", st)
}
