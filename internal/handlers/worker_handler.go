package handlers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/services/storage"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const (
	maxPhotoBytes = 2 * 1024 * 1024
	photoWidth    = 512
)

type WorkerHandler struct {
	DB    *gorm.DB
	Store storage.Store
	Log   *zap.Logger
}

func NewWorkerHandler(db *gorm.DB, store storage.Store, log *zap.Logger) *WorkerHandler {
	return &WorkerHandler{DB: db, Store: store, Log: log}
}

func (h *WorkerHandler) Routes(r fiber.Router, g Guards) {
	w := r.Group("/workers")
	w.Get("/me", With(g.Worker, h.Me)...)
	w.Post("/me/services", With(g.Worker, h.AddService)...)
	w.Get("/me/services", With(g.Worker, h.MyServices)...)
	w.Post("/me/photo", With(g.Worker, h.UploadPhoto)...)
	w.Put("/update-profile", With(g.Worker, h.UpdateProfile)...)
	w.Post("/skills", With(g.Worker, h.AddSkill)...)
	w.Delete("/skills/:skillId", With(g.Worker, h.RemoveSkill)...)

	w.Get("/", h.List)
	w.Get("/list", h.List)
	w.Get("/by-category", h.ByCategory)
	w.Get("/:id/services", h.PublicServices)
	w.Get("/:id", h.Get)
}

// List: GET /api/workers?city&skillCategory&availabilityStatus
func (h *WorkerHandler) List(c *fiber.Ctx) error {
	q := h.DB.WithContext(c.UserContext()).Model(&models.Worker{})

	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}
	if name := strings.TrimSpace(c.Query("skillCategory")); name != "" {
		catID, err := h.categoryID(c, name)
		if err != nil {
			return err
		}
		if catID == nil {
			return ok(c, "Workers retrieved successfully", []models.Worker{})
		}
		q = q.Where("skill_category_id = ?", *catID)
	}
	if st := strings.TrimSpace(c.Query("availabilityStatus")); st != "" {
		if !models.AvailabilityStatus(st).Valid() {
			return utils.BadRequest("Invalid availabilityStatus")
		}
		q = q.Where("availability_status = ?", st)
	}

	workers := []models.Worker{}
	if err := q.Preload("SkillCategory").Order("rating_average DESC").Find(&workers).Error; err != nil {
		return err
	}
	return ok(c, "Workers retrieved successfully", workers)
}

// categoryID resolves a category by id or case-insensitive name. A nil id
// means no such category.
func (h *WorkerHandler) categoryID(c *fiber.Ctx, ref string) (*uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return &id, nil
	}
	var cat models.Category
	err := h.DB.WithContext(c.UserContext()).Where("LOWER(name) = LOWER(?)", ref).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat.ID, nil
}

// ByCategory: GET /api/workers/by-category?categoryId
func (h *WorkerHandler) ByCategory(c *fiber.Ctx) error {
	ref := strings.TrimSpace(c.Query("categoryId"))
	if ref == "" {
		return utils.BadRequest("Category ID is required")
	}
	catID, err := h.categoryID(c, ref)
	if err != nil {
		return err
	}
	workers := []models.Worker{}
	if catID != nil {
		if err := h.DB.WithContext(c.UserContext()).
			Preload("SkillCategory").
			Where("skill_category_id = ?", *catID).
			Order("rating_average DESC").
			Find(&workers).Error; err != nil {
			return err
		}
	}
	return ok(c, "Workers retrieved successfully", workers)
}

// Get: GET /api/workers/:id
func (h *WorkerHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id", "worker")
	if err != nil {
		return err
	}
	w, err := h.load(c, id)
	if err != nil {
		return err
	}
	return ok(c, "Worker retrieved successfully", w)
}

func (h *WorkerHandler) load(c *fiber.Ctx, id uuid.UUID) (*models.Worker, error) {
	var w models.Worker
	if err := h.DB.WithContext(c.UserContext()).Preload("SkillCategory").First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Worker not found")
		}
		return nil, err
	}
	return &w, nil
}

func (h *WorkerHandler) Me(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	w, err := h.load(c, p.ID)
	if err != nil {
		return err
	}
	return ok(c, "", w)
}

type updateWorkerReq struct {
	Bio                *string      `json:"bio"`
	AvailabilityStatus *string      `json:"availabilityStatus"`
	Phone              *string      `json:"phone"`
	City               *string      `json:"city"`
	Location           *LocationReq `json:"location"`
}

// UpdateProfile: PUT /api/workers/update-profile
func (h *WorkerHandler) UpdateProfile(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req updateWorkerReq
	if err := parseBody(c, &req); err != nil {
		return err
	}

	errs := FieldErrors{}
	updates := map[string]any{}
	setTrimmed(updates, "bio", req.Bio)
	setTrimmed(updates, "phone", req.Phone)
	setTrimmed(updates, "city", req.City)
	if v, ok := updates["phone"]; ok && v == "" {
		errs.Add("phone", "Phone cannot be empty")
	}
	if v, ok := updates["city"]; ok && v == "" {
		errs.Add("city", "City cannot be empty")
	}
	if req.AvailabilityStatus != nil {
		st := models.AvailabilityStatus(strings.TrimSpace(*req.AvailabilityStatus))
		if !st.Valid() {
			errs.Add("availabilityStatus", "Must be one of available, busy, offline")
		}
		updates["availability_status"] = st
	}
	if req.Location != nil {
		req.Location.validate(errs)
		if req.Location.Latitude != nil {
			updates["latitude"] = *req.Location.Latitude
		}
		if req.Location.Longitude != nil {
			updates["longitude"] = *req.Location.Longitude
		}
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	if len(updates) > 0 {
		if err := h.DB.WithContext(c.UserContext()).Model(&models.Worker{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return err
		}
	}
	w, err := h.load(c, p.ID)
	if err != nil {
		return err
	}
	return ok(c, "Profile updated successfully", w)
}

type skillReq struct {
	SkillName         string `json:"skillName"`
	YearsOfExperience int    `json:"yearsOfExperience"`
	Description       string `json:"description"`
}

// AddSkill: POST /api/workers/skills. A skill with the same name, ignoring
// case, is updated in place.
func (h *WorkerHandler) AddSkill(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req skillReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.SkillName = strings.TrimSpace(req.SkillName)
	if req.SkillName == "" {
		return utils.BadRequest("Skill name is required")
	}
	if req.YearsOfExperience < 0 {
		return utils.BadRequest("Years of experience must not be negative")
	}

	msg := "Skill added successfully"
	w, err := h.mutate(c, p.ID, func(w *models.Worker) error {
		for i := range w.Skills {
			if strings.EqualFold(w.Skills[i].SkillName, req.SkillName) {
				w.Skills[i].YearsOfExperience = req.YearsOfExperience
				w.Skills[i].Description = strings.TrimSpace(req.Description)
				msg = "Skill updated successfully"
				return nil
			}
		}
		w.Skills = append(w.Skills, models.WorkerSkill{
			ID:                uuid.NewString(),
			SkillName:         req.SkillName,
			YearsOfExperience: req.YearsOfExperience,
			Description:       strings.TrimSpace(req.Description),
			AddedAt:           time.Now(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	return ok(c, msg, w)
}

// RemoveSkill: DELETE /api/workers/skills/:skillId
func (h *WorkerHandler) RemoveSkill(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	skillID := c.Params("skillId")
	w, err := h.mutate(c, p.ID, func(w *models.Worker) error {
		kept := w.Skills[:0]
		for _, s := range w.Skills {
			if s.ID != skillID {
				kept = append(kept, s)
			}
		}
		w.Skills = kept
		return nil
	})
	if err != nil {
		return err
	}
	return ok(c, "Skill removed successfully", w)
}

type serviceOfferReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Skill       string  `json:"skill"`
	City        string  `json:"city"`
	BudgetMin   float64 `json:"budgetMin"`
	BudgetMax   float64 `json:"budgetMax"`
}

// AddService: POST /api/workers/me/services
func (h *WorkerHandler) AddService(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req serviceOfferReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return utils.BadRequest("Title is required")
	}
	if req.BudgetMin < 0 || req.BudgetMax < 0 || (req.BudgetMax > 0 && req.BudgetMax < req.BudgetMin) {
		return utils.BadRequest("Invalid budget range")
	}

	svc := models.WorkerService{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Skill:       strings.TrimSpace(req.Skill),
		City:        strings.TrimSpace(req.City),
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		CreatedAt:   time.Now(),
	}
	if _, err := h.mutate(c, p.ID, func(w *models.Worker) error {
		w.Services = append(w.Services, svc)
		return nil
	}); err != nil {
		return err
	}
	return created(c, "Service added successfully", svc)
}

// MyServices: GET /api/workers/me/services
func (h *WorkerHandler) MyServices(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	return h.services(c, p.ID)
}

// PublicServices: GET /api/workers/:id/services
func (h *WorkerHandler) PublicServices(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id", "worker")
	if err != nil {
		return err
	}
	return h.services(c, id)
}

func (h *WorkerHandler) services(c *fiber.Ctx, id uuid.UUID) error {
	w, err := h.load(c, id)
	if err != nil {
		return err
	}
	out := []models.WorkerService(w.Services)
	if out == nil {
		out = []models.WorkerService{}
	}
	return ok(c, "", out)
}

// UploadPhoto: POST /api/workers/me/photo (multipart field: photo)
func (h *WorkerHandler) UploadPhoto(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return utils.BadRequest("photo is required (multipart field: photo)")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return utils.BadRequest("photo must be jpg/jpeg/png")
	}
	if file.Size > maxPhotoBytes {
		return utils.BadRequest("photo max size is 2MB")
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	img, err := storage.ProfileImage(raw, photoWidth)
	if err != nil {
		return utils.BadRequest("photo could not be decoded")
	}
	key := fmt.Sprintf("workers/%s/%s.jpg", p.ID, uuid.NewString())
	url, err := h.Store.Put(c.UserContext(), key, "image/jpeg", img)
	if err != nil {
		h.Log.Error("store profile photo", zap.String("worker", p.ID.String()), zap.Error(err))
		return err
	}

	if err := h.DB.WithContext(c.UserContext()).Model(&models.Worker{}).
		Where("id = ?", p.ID).
		Update("profile_image", url).Error; err != nil {
		return err
	}
	w, err := h.load(c, p.ID)
	if err != nil {
		return err
	}
	return ok(c, "photo uploaded", w)
}

// mutate loads the worker in a transaction, applies fn and saves the skill
// and service lists back.
func (h *WorkerHandler) mutate(c *fiber.Ctx, id uuid.UUID, fn func(*models.Worker) error) (*models.Worker, error) {
	err := h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var w models.Worker
		if err := tx.First(&w, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFound("Worker not found")
			}
			return err
		}
		if err := fn(&w); err != nil {
			return err
		}
		return tx.Model(&w).Select("skills", "services").Updates(&w).Error
	})
	if err != nil {
		return nil, err
	}
	return h.load(c, id)
}
