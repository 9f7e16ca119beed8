package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/services/events"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/utils"
)

// RequestService owns every status change of a ServiceRequest. Each change is
// one conditional UPDATE on the current status, so two racing callers cannot
// both win.
type RequestService struct {
	DB     *gorm.DB
	Hub    realtime.Emitter
	Notify *notify.NotifyService
	Events events.Publisher
	Log    *zap.Logger
}

func NewRequestService(db *gorm.DB, hub realtime.Emitter, n *notify.NotifyService, ev events.Publisher, log *zap.Logger) *RequestService {
	if ev == nil {
		ev = events.Nop{}
	}
	return &RequestService{DB: db, Hub: hub, Notify: n, Events: ev, Log: log}
}

type CreateInput struct {
	WorkerID      uuid.UUID
	ServiceID     *uuid.UUID
	Title         string
	Description   string
	Category      string
	Location      string
	Budget        *float64
	Urgency       models.Urgency
	ScheduledDate *time.Time
}

type dashboardUpdate struct {
	Type      string    `json:"type"`
	RequestID uuid.UUID `json:"requestId"`
}

func (s *RequestService) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.ServiceRequest, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	if in.WorkerID == uuid.Nil || in.Title == "" || in.Description == "" || in.Category == "" || in.Location == "" {
		return nil, utils.BadRequest("workerId, title, description, category and location are required")
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	if !in.Urgency.Valid() {
		return nil, utils.BadRequest("urgency must be one of low, medium, high, urgent")
	}
	if in.Budget != nil && *in.Budget < 0 {
		return nil, utils.BadRequest("budget must not be negative")
	}

	db := s.DB.WithContext(ctx)
	var worker models.Worker
	if err := db.First(&worker, "id = ?", in.WorkerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Worker not found")
		}
		return nil, err
	}

	req := models.ServiceRequest{
		UserID:        userID,
		WorkerID:      in.WorkerID,
		ServiceID:     in.ServiceID,
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		Location:      in.Location,
		Budget:        in.Budget,
		Urgency:       in.Urgency,
		Status:        models.RequestPending,
		ScheduledDate: in.ScheduledDate,
	}

	var note *models.Notification
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		n, err := s.Notify.Create(tx, models.Principal{Role: models.RoleWorker, ID: worker.ID},
			"You have a new service request: "+req.Title, models.NotifyNewJob, &req.ID)
		note = n
		return err
	})
	if err != nil {
		return nil, err
	}

	out, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	room := realtime.WorkerRoom(out.WorkerID)
	s.Hub.Emit(room, realtime.EventNewServiceRequest, out)
	s.Hub.Emit(room, realtime.EventDashboardUpdate, dashboardUpdate{Type: "new_request", RequestID: out.ID})
	s.Notify.Push(note)
	s.publish(ctx, events.RequestCreated, out)
	return out, nil
}

func (s *RequestService) Accept(ctx context.Context, workerID, id uuid.UUID, notes string) (*models.ServiceRequest, error) {
	worker := models.Principal{Role: models.RoleWorker, ID: workerID}
	out, err := s.transition(ctx, worker, id, models.RequestInProgress, func(r *models.ServiceRequest) error {
		if r.Status != models.RequestPending {
			return utils.Conflict("Request already processed")
		}
		return nil
	}, notesUpdate(notes))
	if err != nil {
		return nil, err
	}

	s.Hub.Emit(realtime.UserRoom(out.UserID), realtime.EventRequestAccepted, out)
	s.dashboard(out, "request_accepted")
	s.notifyUser(ctx, out, "Your request \""+out.Title+"\" was accepted", models.NotifyJobAccepted)
	s.publish(ctx, events.RequestAccepted, out)
	return out, nil
}

func (s *RequestService) Reject(ctx context.Context, workerID, id uuid.UUID, notes string) (*models.ServiceRequest, error) {
	worker := models.Principal{Role: models.RoleWorker, ID: workerID}
	out, err := s.transition(ctx, worker, id, models.RequestRejected, func(r *models.ServiceRequest) error {
		if r.Status != models.RequestPending {
			return utils.Conflict("Request already processed")
		}
		return nil
	}, notesUpdate(notes))
	if err != nil {
		return nil, err
	}

	s.Hub.Emit(realtime.UserRoom(out.UserID), realtime.EventRequestRejected, out)
	s.dashboard(out, "request_rejected")
	s.notifyUser(ctx, out, "Your request \""+out.Title+"\" was declined", models.NotifyRequestRejected)
	s.publish(ctx, events.RequestRejected, out)
	return out, nil
}

func (s *RequestService) Complete(ctx context.Context, workerID, id uuid.UUID) (*models.ServiceRequest, error) {
	worker := models.Principal{Role: models.RoleWorker, ID: workerID}
	now := time.Now()
	out, err := s.transition(ctx, worker, id, models.RequestCompleted, func(r *models.ServiceRequest) error {
		if r.Status != models.RequestInProgress {
			return utils.Conflict("Request must be in progress to complete")
		}
		return nil
	}, map[string]any{"completed_date": now})
	if err != nil {
		return nil, err
	}

	s.Hub.Emit(realtime.UserRoom(out.UserID), realtime.EventRequestCompleted, out)
	s.dashboard(out, "request_completed")
	s.notifyUser(ctx, out, "Your request \""+out.Title+"\" was marked completed", models.NotifyJobCompleted)
	s.publish(ctx, events.RequestCompleted, out)
	return out, nil
}

func (s *RequestService) Cancel(ctx context.Context, userID, id uuid.UUID) (*models.ServiceRequest, error) {
	user := models.Principal{Role: models.RoleUser, ID: userID}
	out, err := s.transition(ctx, user, id, models.RequestCancelled, func(r *models.ServiceRequest) error {
		if r.Status == models.RequestCompleted {
			return utils.Conflict("Cannot cancel completed request")
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	s.Hub.Emit(realtime.WorkerRoom(out.WorkerID), realtime.EventRequestCancelled, out)
	s.dashboard(out, "request_cancelled")
	if _, err := s.Notify.Send(ctx, models.Principal{Role: models.RoleWorker, ID: out.WorkerID},
		"Request \""+out.Title+"\" was cancelled by the customer", models.NotifyRequestCancelled, &out.ID); err != nil {
		s.Log.Warn("cancel notification failed", zap.String("request", out.ID.String()), zap.Error(err))
	}
	s.publish(ctx, events.RequestCancelled, out)
	return out, nil
}

// UpdateStatus moves a request to status through the same guarded operation
// that owns that status.
func (s *RequestService) UpdateStatus(ctx context.Context, p models.Principal, id uuid.UUID, status models.RequestStatus, notes string) (*models.ServiceRequest, error) {
	switch status {
	case models.RequestInProgress, models.RequestAccepted, models.RequestRejected, models.RequestCompleted:
		if !p.IsWorker() {
			return nil, utils.Forbidden("Only the assigned worker can set this status")
		}
	case models.RequestCancelled:
		if !p.IsUser() {
			return nil, utils.Forbidden("Only the customer can cancel a request")
		}
	default:
		return nil, utils.BadRequest("Invalid status")
	}

	switch status {
	case models.RequestRejected:
		return s.Reject(ctx, p.ID, id, notes)
	case models.RequestCompleted:
		return s.Complete(ctx, p.ID, id)
	case models.RequestCancelled:
		return s.Cancel(ctx, p.ID, id)
	default:
		return s.Accept(ctx, p.ID, id, notes)
	}
}

// Get returns a request visible to p.
func (s *RequestService) Get(ctx context.Context, p models.Principal, id uuid.UUID) (*models.ServiceRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(p) {
		return nil, utils.Forbidden("Access denied")
	}
	return req, nil
}

// List returns p's requests newest first, optionally filtered by status.
func (s *RequestService) List(ctx context.Context, p models.Principal, status string) ([]models.ServiceRequest, error) {
	q := s.DB.WithContext(ctx).Model(&models.ServiceRequest{})
	if p.IsWorker() {
		q = q.Where("worker_id = ?", p.ID).Preload("User")
	} else {
		q = q.Where("user_id = ?", p.ID).Preload("Worker").Preload("Worker.SkillCategory")
	}
	if status != "" {
		if !models.RequestStatus(status).Valid() {
			return nil, utils.BadRequest("Invalid status filter")
		}
		q = q.Where("status = ?", status)
	}

	var out []models.ServiceRequest
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RequestService) transition(
	ctx context.Context,
	actor models.Principal,
	id uuid.UUID,
	to models.RequestStatus,
	guard func(*models.ServiceRequest) error,
	extra map[string]any,
) (*models.ServiceRequest, error) {
	db := s.DB.WithContext(ctx)

	var req models.ServiceRequest
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Request not found")
		}
		return nil, err
	}
	if !req.IsParty(actor) {
		return nil, utils.Forbidden("Access denied")
	}
	if err := guard(&req); err != nil {
		return nil, err
	}
	if !models.CanTransition(req.Status, to) {
		return nil, utils.Conflict("Invalid status transition")
	}

	updates := map[string]any{"status": to, "updated_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", id, req.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// someone else moved it first
		return nil, utils.Conflict("Request already processed")
	}
	return s.load(ctx, id)
}

func (s *RequestService) load(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := s.DB.WithContext(ctx).
		Preload("User").
		Preload("Worker").
		Preload("Worker.SkillCategory").
		First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Request not found")
		}
		return nil, err
	}
	return &req, nil
}

func (s *RequestService) dashboard(r *models.ServiceRequest, typ string) {
	d := dashboardUpdate{Type: typ, RequestID: r.ID}
	s.Hub.Emit(realtime.UserRoom(r.UserID), realtime.EventDashboardUpdate, d)
	s.Hub.Emit(realtime.WorkerRoom(r.WorkerID), realtime.EventDashboardUpdate, d)
}

func (s *RequestService) notifyUser(ctx context.Context, r *models.ServiceRequest, msg string, typ models.NotificationType) {
	if _, err := s.Notify.Send(ctx, models.Principal{Role: models.RoleUser, ID: r.UserID}, msg, typ, &r.ID); err != nil {
		s.Log.Warn("request notification failed", zap.String("request", r.ID.String()), zap.Error(err))
	}
}

func (s *RequestService) publish(ctx context.Context, typ string, r *models.ServiceRequest) {
	err := s.Events.Publish(ctx, r.ID.String(), events.Event{
		Type:      typ,
		RequestID: r.ID.String(),
		UserID:    r.UserID.String(),
		WorkerID:  r.WorkerID.String(),
		Status:    string(r.Status),
	})
	if err != nil {
		s.Log.Warn("event publish failed", zap.String("type", typ), zap.Error(err))
	}
}

func notesUpdate(notes string) map[string]any {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return map[string]any{"worker_notes": notes}
}
