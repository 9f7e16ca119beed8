package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/services/events"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/utils"
)

// ServiceHandler serves job postings: open requests a user posts for any
// matching worker to pick up.
type ServiceHandler struct {
	DB     *gorm.DB
	Notify *notify.NotifyService
	Events events.Publisher
	Log    *zap.Logger
}

func NewServiceHandler(db *gorm.DB, n *notify.NotifyService, ev events.Publisher, log *zap.Logger) *ServiceHandler {
	if ev == nil {
		ev = events.Nop{}
	}
	return &ServiceHandler{DB: db, Notify: n, Events: ev, Log: log}
}

func (h *ServiceHandler) Routes(r fiber.Router, g Guards) {
	s := r.Group("/services")
	s.Post("/", With(g.User, h.Post)...)
	s.Get("/my-requests", With(g.User, h.MyRequests)...)
	s.Get("/available", With(g.Worker, h.Available)...)
	s.Get("/my-jobs", With(g.Worker, h.MyJobs)...)
	s.Get("/", h.List)
	s.Get("/:id", h.Get)
	s.Put("/:id/accept", With(g.Worker, h.Accept)...)
	s.Put("/:id/complete", With(g.Any, h.Complete)...)
	s.Put("/:id/cancel", With(g.User, h.Cancel)...)
}

type postServiceReq struct {
	Title       string  `json:"title"`
	Skill       string  `json:"skill"`
	City        string  `json:"city"`
	Description string  `json:"description"`
	BudgetMin   float64 `json:"budgetMin"`
	BudgetMax   float64 `json:"budgetMax"`
	Address     string  `json:"address"`
	WorkerID    string  `json:"workerId"`
}

// Post: POST /api/services. With workerId the job is offered to that worker
// only.
func (h *ServiceHandler) Post(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req postServiceReq
	if err := parseBody(c, &req); err != nil {
		return err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Skill = strings.TrimSpace(req.Skill)
	req.City = strings.TrimSpace(req.City)
	req.Description = strings.TrimSpace(req.Description)
	errs := FieldErrors{}
	if req.Title == "" {
		errs.Add("title", "Title is required")
	}
	if req.Skill == "" {
		errs.Add("skill", "Skill is required")
	}
	if req.City == "" {
		errs.Add("city", "City is required")
	}
	if req.Description == "" {
		errs.Add("description", "Description is required")
	}
	if req.BudgetMin < 0 || req.BudgetMax < 0 || (req.BudgetMax > 0 && req.BudgetMax < req.BudgetMin) {
		errs.Add("budgetMax", "Invalid budget range")
	}
	workerID, err := optionalUUID(req.WorkerID)
	if err != nil {
		errs.Add("workerId", "Invalid worker id")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	db := h.DB.WithContext(c.UserContext())
	if workerID != nil {
		var n int64
		if err := db.Model(&models.Worker{}).Where("id = ?", *workerID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return utils.NotFound("Worker not found")
		}
	}

	svc := models.Service{
		UserID:      p.ID,
		WorkerID:    workerID,
		Title:       req.Title,
		Skill:       req.Skill,
		City:        req.City,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		Address:     strings.TrimSpace(req.Address),
		Status:      models.ServicePending,
	}
	var cat models.Category
	if err := db.Where("LOWER(name) = LOWER(?)", req.Skill).First(&cat).Error; err == nil {
		svc.CategoryID = &cat.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var note *models.Notification
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&svc).Error; err != nil {
			return err
		}
		if workerID == nil {
			return nil
		}
		n, err := h.Notify.Create(tx, models.Principal{Role: models.RoleWorker, ID: *workerID},
			"New service request: "+svc.Title, models.NotifyServiceRequest, &svc.ID)
		note = n
		return err
	})
	if err != nil {
		return err
	}
	if note != nil {
		h.Notify.Push(note)
	}
	h.publish(c.UserContext(), events.JobPosted, &svc)

	out, err := h.load(c, svc.ID)
	if err != nil {
		return err
	}
	msg := "Job request posted successfully"
	if workerID != nil {
		msg = "Service request sent to worker"
	}
	return created(c, msg, out)
}

// MyRequests: GET /api/services/my-requests
func (h *ServiceHandler) MyRequests(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	out := []models.Service{}
	if err := h.DB.WithContext(c.UserContext()).
		Preload("Worker").
		Where("user_id = ?", p.ID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return err
	}
	return ok(c, "", out)
}

// Available: GET /api/services/available. Pending jobs in the worker's city
// whose skill mentions the worker's category, excluding jobs offered to
// someone else.
func (h *ServiceHandler) Available(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	var w models.Worker
	if err := db.Preload("SkillCategory").First(&w, "id = ?", p.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("Worker not found")
		}
		return err
	}

	out := []models.Service{}
	if w.SkillCategory == nil {
		return ok(c, "", out)
	}
	if err := db.Preload("User").
		Where("status = ?", models.ServicePending).
		Where("LOWER(city) = LOWER(?)", w.City).
		Where("LOWER(skill) LIKE ?", "%"+strings.ToLower(w.SkillCategory.Name)+"%").
		Where("worker_id IS NULL OR worker_id = ?", w.ID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return err
	}
	return ok(c, "", out)
}

// MyJobs: GET /api/services/my-jobs
func (h *ServiceHandler) MyJobs(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	out := []models.Service{}
	if err := h.DB.WithContext(c.UserContext()).
		Preload("User").
		Where("worker_id = ?", p.ID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return err
	}
	return ok(c, "", out)
}

// List: GET /api/services?status&city&categoryId
func (h *ServiceHandler) List(c *fiber.Ctx) error {
	q := h.DB.WithContext(c.UserContext()).Model(&models.Service{})
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		q = q.Where("status = ?", st)
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}
	if cat := strings.TrimSpace(c.Query("categoryId")); cat != "" {
		id, err := uuid.Parse(cat)
		if err != nil {
			return utils.BadRequest("Invalid category id")
		}
		q = q.Where("category_id = ?", id)
	}

	out := []models.Service{}
	if err := q.Preload("User").Preload("Worker").Preload("Category").
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return err
	}
	return ok(c, "Services retrieved successfully", out)
}

// Get: GET /api/services/:id
func (h *ServiceHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id", "service")
	if err != nil {
		return err
	}
	svc, err := h.load(c, id)
	if err != nil {
		return err
	}
	return ok(c, "Service retrieved successfully", svc)
}

// Accept: PUT /api/services/:id/accept
func (h *ServiceHandler) Accept(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "service")
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	svc, err := h.find(db, id)
	if err != nil {
		return err
	}
	if svc.Status != models.ServicePending {
		return utils.Conflict("Service is not available")
	}
	if svc.WorkerID != nil && *svc.WorkerID != p.ID {
		return utils.Forbidden("This job was offered to another worker")
	}

	res := db.Model(&models.Service{}).
		Where("id = ? AND status = ?", id, models.ServicePending).
		Updates(map[string]any{"worker_id": p.ID, "status": models.ServiceAccepted})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.Conflict("Service is not available")
	}

	var w models.Worker
	if err := db.Select("id", "name").First(&w, "id = ?", p.ID).Error; err != nil {
		return err
	}
	h.notify(c.UserContext(), models.Principal{Role: models.RoleUser, ID: svc.UserID},
		"Your service request has been accepted by "+w.Name, models.NotifyJobAccepted, id)
	svc.WorkerID = &p.ID
	svc.Status = models.ServiceAccepted
	h.publish(c.UserContext(), events.JobAccepted, svc)

	out, err := h.load(c, id)
	if err != nil {
		return err
	}
	return ok(c, "Service accepted successfully", out)
}

// Complete: PUT /api/services/:id/complete. Either the owner or the assigned
// worker may complete an accepted or in-progress job.
func (h *ServiceHandler) Complete(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "service")
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	svc, err := h.find(db, id)
	if err != nil {
		return err
	}
	owner := p.IsUser() && svc.UserID == p.ID
	assigned := p.IsWorker() && svc.WorkerID != nil && *svc.WorkerID == p.ID
	if !owner && !assigned {
		return utils.Forbidden("Access denied")
	}
	if svc.Status != models.ServiceAccepted && svc.Status != models.ServiceInProgress {
		return utils.Conflict("Only accepted or in-progress jobs can be completed")
	}

	now := time.Now()
	res := db.Model(&models.Service{}).
		Where("id = ? AND status = ?", id, svc.Status).
		Updates(map[string]any{"status": models.ServiceCompleted, "completed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.Conflict("Service already processed")
	}

	if assigned {
		h.notify(c.UserContext(), models.Principal{Role: models.RoleUser, ID: svc.UserID},
			"Your service has been marked as completed", models.NotifyJobCompleted, id)
	} else if svc.WorkerID != nil {
		h.notify(c.UserContext(), models.Principal{Role: models.RoleWorker, ID: *svc.WorkerID},
			"Job \""+svc.Title+"\" was marked as completed by the customer", models.NotifyJobCompleted, id)
	}
	svc.Status = models.ServiceCompleted
	h.publish(c.UserContext(), events.JobCompleted, svc)

	out, err := h.load(c, id)
	if err != nil {
		return err
	}
	return ok(c, "Service marked as completed", out)
}

// Cancel: PUT /api/services/:id/cancel. Another user's job reads as not found.
func (h *ServiceHandler) Cancel(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "service")
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())

	svc, err := h.find(db, id)
	if err != nil {
		return err
	}
	if svc.UserID != p.ID {
		return utils.NotFound("Service not found")
	}
	if svc.Status == models.ServiceCompleted {
		return utils.Conflict("Cannot cancel a completed job")
	}
	if svc.Status == models.ServiceCancelled {
		return utils.Conflict("Job already cancelled")
	}

	res := db.Model(&models.Service{}).
		Where("id = ? AND status = ?", id, svc.Status).
		Updates(map[string]any{"status": models.ServiceCancelled, "cancelled_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.Conflict("Service already processed")
	}

	if svc.WorkerID != nil {
		h.notify(c.UserContext(), models.Principal{Role: models.RoleWorker, ID: *svc.WorkerID},
			"Job \""+svc.Title+"\" was cancelled by the customer", models.NotifyRequestCancelled, id)
	}
	svc.Status = models.ServiceCancelled
	h.publish(c.UserContext(), events.JobCancelled, svc)

	out, err := h.load(c, id)
	if err != nil {
		return err
	}
	return ok(c, "Job cancelled successfully", out)
}

func (h *ServiceHandler) find(db *gorm.DB, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	if err := db.First(&svc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Service not found")
		}
		return nil, err
	}
	return &svc, nil
}

func (h *ServiceHandler) load(c *fiber.Ctx, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	err := h.DB.WithContext(c.UserContext()).
		Preload("User").
		Preload("Worker").
		Preload("Category").
		First(&svc, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Service not found")
		}
		return nil, err
	}
	return &svc, nil
}

func (h *ServiceHandler) notify(ctx context.Context, to models.Principal, msg string, typ models.NotificationType, related uuid.UUID) {
	if _, err := h.Notify.Send(ctx, to, msg, typ, &related); err != nil {
		h.Log.Warn("job notification failed", zap.String("service", related.String()), zap.Error(err))
	}
}

func (h *ServiceHandler) publish(ctx context.Context, typ string, s *models.Service) {
	ev := events.Event{
		Type:      typ,
		ServiceID: s.ID.String(),
		UserID:    s.UserID.String(),
		Status:    string(s.Status),
	}
	if s.WorkerID != nil {
		ev.WorkerID = s.WorkerID.String()
	}
	if err := h.Events.Publish(ctx, s.ID.String(), ev); err != nil {
		h.Log.Warn("event publish failed", zap.String("type", typ), zap.Error(err))
	}
}
