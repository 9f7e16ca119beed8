package rating

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/services/events"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const maxCommentLen = 500

type RatingService struct {
	DB     *gorm.DB
	Notify *notify.NotifyService
	Events events.Publisher
	Log    *zap.Logger
}

func NewRatingService(db *gorm.DB, n *notify.NotifyService, ev events.Publisher, log *zap.Logger) *RatingService {
	if ev == nil {
		ev = events.Nop{}
	}
	return &RatingService{DB: db, Notify: n, Events: ev, Log: log}
}

type AddInput struct {
	WorkerID         uuid.UUID
	ServiceRequestID *uuid.UUID
	Rating           int
	Comment          string
}

// Add stores a review and folds it into the worker's aggregate in the same
// transaction.
func (s *RatingService) Add(ctx context.Context, userID uuid.UUID, in AddInput) (*models.Review, error) {
	if in.WorkerID == uuid.Nil {
		return nil, utils.BadRequest("workerId is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, utils.BadRequest("Rating must be between 1 and 5")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if len([]rune(in.Comment)) > maxCommentLen {
		return nil, utils.BadRequest("Comment must be at most 500 characters")
	}

	review := models.Review{
		UserID:           userID,
		WorkerID:         in.WorkerID,
		ServiceRequestID: in.ServiceRequestID,
		Rating:           in.Rating,
		Comment:          in.Comment,
	}

	var note *models.Notification
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Apply(tx, in.WorkerID, in.Rating); err != nil {
			return err
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		n, err := s.Notify.Create(tx, models.Principal{Role: models.RoleWorker, ID: in.WorkerID},
			fmt.Sprintf("You received a new %d-star review", in.Rating), models.NotifyNewReview, &review.ID)
		note = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Push(note)
	if err := s.Events.Publish(ctx, in.WorkerID.String(), events.Event{
		Type:     events.ReviewAdded,
		UserID:   userID.String(),
		WorkerID: in.WorkerID.String(),
		Rating:   in.Rating,
	}); err != nil {
		s.Log.Warn("event publish failed", zap.String("type", events.ReviewAdded), zap.Error(err))
	}
	return &review, nil
}

// Apply adds one rating to the worker's running sum and count and refreshes
// the rounded average. Must be called within a DB transaction.
func (s *RatingService) Apply(tx *gorm.DB, workerID uuid.UUID, rating int) error {
	result := tx.Model(&models.Worker{}).
		Where("id = ?", workerID).
		Updates(map[string]any{
			"rating_sum":    gorm.Expr("rating_sum + ?", rating),
			"reviews_count": gorm.Expr("reviews_count + ?", 1),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("Worker not found")
	}

	var w models.Worker
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "rating_sum", "reviews_count").
		First(&w, "id = ?", workerID).Error; err != nil {
		return err
	}
	avg := models.RoundRating(float64(w.RatingSum) / float64(w.ReviewsCount))
	return tx.Model(&models.Worker{}).Where("id = ?", workerID).Update("rating_average", avg).Error
}

// Recompute rebuilds a worker's aggregate from their reviews.
func (s *RatingService) Recompute(ctx context.Context, workerID uuid.UUID) error {
	var agg struct {
		Total int
		N     int
	}
	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.Review{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS n").
		Where("worker_id = ?", workerID).
		Scan(&agg).Error; err != nil {
		return err
	}
	avg := 0.0
	if agg.N > 0 {
		avg = models.RoundRating(float64(agg.Total) / float64(agg.N))
	}
	res := db.Model(&models.Worker{}).Where("id = ?", workerID).Updates(map[string]any{
		"rating_sum":     agg.Total,
		"reviews_count":  agg.N,
		"rating_average": avg,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NotFound("Worker not found")
	}
	return nil
}

// ListForWorker returns a worker's reviews newest first with the reviewer.
func (s *RatingService) ListForWorker(ctx context.Context, workerID uuid.UUID) ([]models.Review, error) {
	var out []models.Review
	err := s.DB.WithContext(ctx).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "city") }).
		Where("worker_id = ?", workerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
