package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/middleware"
	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
	Log       *zap.Logger
}

type SignupReq struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	SkillCategory string `json:"skillCategory"` // workers only
	Bio           string `json:"bio"`           // workers only

	Location *LocationReq `json:"location"` // workers only
}

type LocationReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (l *LocationReq) validate(errs FieldErrors) {
	if l == nil {
		return
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		errs.Add("location.latitude", "Latitude must be between -90 and 90")
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		errs.Add("location.longitude", "Longitude must be between -180 and 180")
	}
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignupReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Password = strings.TrimSpace(r.Password)
	r.Phone = strings.TrimSpace(r.Phone)
	r.City = strings.TrimSpace(r.City)
	r.SkillCategory = strings.TrimSpace(r.SkillCategory)
	r.Bio = strings.TrimSpace(r.Bio)
}

func (r *SignupReq) validate(worker bool) FieldErrors {
	errs := FieldErrors{}
	if r.Name == "" {
		errs.Add("name", "Name is required")
	}
	if r.Email == "" {
		errs.Add("email", "Email is required")
	} else if !strings.Contains(r.Email, "@") {
		errs.Add("email", "Email is invalid")
	}
	if r.Password == "" {
		errs.Add("password", "Password is required")
	} else if len(r.Password) < 6 {
		errs.Add("password", "Password must be at least 6 characters")
	}
	if r.Phone == "" {
		errs.Add("phone", "Phone is required")
	}
	if r.City == "" {
		errs.Add("city", "City is required")
	}
	if worker {
		if r.SkillCategory == "" {
			errs.Add("skillCategory", "Skill category is required")
		}
		r.Location.validate(errs)
	}
	return errs
}

func (h *AuthHandler) issue(c *fiber.Ctx, id uuid.UUID, role models.Role) (string, error) {
	token, err := utils.SignJWT(h.JWTSecret, id.String(), string(role), h.Expires)
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	return token, nil
}

// SignupUser: POST /api/auth/user/signup
func (h *AuthHandler) SignupUser(c *fiber.Ctx) error {
	var req SignupReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.normalize()
	if errs := req.validate(false); len(errs) > 0 {
		return validationFail(c, errs)
	}

	var n int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return utils.BadRequest("User already exists")
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}
	u := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: pw,
		Phone:    req.Phone,
		City:     req.City,
	}
	if err := h.DB.Create(&u).Error; err != nil {
		return err
	}

	token, err := h.issue(c, u.ID, models.RoleUser)
	if err != nil {
		return err
	}
	return created(c, "Signup successful", fiber.Map{"token": token, "user": u})
}

// LoginUser: POST /api/auth/user/login
func (h *AuthHandler) LoginUser(c *fiber.Ctx) error {
	req, err := h.loginReq(c)
	if err != nil {
		return err
	}

	var u models.User
	if err := h.DB.Where("email = ?", req.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Unauthorized("Invalid email or password")
		}
		return err
	}
	if !utils.CheckPassword(u.Password, req.Password) {
		return utils.Unauthorized("Invalid email or password")
	}

	token, err := h.issue(c, u.ID, models.RoleUser)
	if err != nil {
		return err
	}
	return ok(c, "Login successful", fiber.Map{"token": token, "user": u})
}

// SignupWorker: POST /api/auth/worker/signup
func (h *AuthHandler) SignupWorker(c *fiber.Ctx) error {
	var req SignupReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.normalize()
	if errs := req.validate(true); len(errs) > 0 {
		return validationFail(c, errs)
	}

	var n int64
	if err := h.DB.Model(&models.Worker{}).Where("email = ?", req.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return utils.BadRequest("Worker already exists")
	}

	var cat models.Category
	if err := h.DB.Where("LOWER(name) = LOWER(?)", req.SkillCategory).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.BadRequest("Invalid skill category")
		}
		return err
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}
	w := models.Worker{
		Name:            req.Name,
		Email:           req.Email,
		Password:        pw,
		Phone:           req.Phone,
		City:            req.City,
		Bio:             req.Bio,
		SkillCategoryID: &cat.ID,
		Latitude:        latOf(req.Location),
		Longitude:       lngOf(req.Location),
		Skills: []models.WorkerSkill{{
			ID:          uuid.NewString(),
			SkillName:   cat.Name,
			Description: cat.Description,
			AddedAt:     time.Now(),
		}},
	}
	if err := h.DB.Create(&w).Error; err != nil {
		return err
	}
	w.SkillCategory = &cat

	token, err := h.issue(c, w.ID, models.RoleWorker)
	if err != nil {
		return err
	}
	return created(c, "Signup successful", fiber.Map{"token": token, "worker": w})
}

// LoginWorker: POST /api/auth/worker/login
func (h *AuthHandler) LoginWorker(c *fiber.Ctx) error {
	req, err := h.loginReq(c)
	if err != nil {
		return err
	}

	var w models.Worker
	if err := h.DB.Preload("SkillCategory").Where("email = ?", req.Email).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Unauthorized("Invalid email or password")
		}
		return err
	}
	if !utils.CheckPassword(w.Password, req.Password) {
		return utils.Unauthorized("Invalid email or password")
	}

	token, err := h.issue(c, w.ID, models.RoleWorker)
	if err != nil {
		return err
	}
	return ok(c, "Login successful", fiber.Map{"token": token, "worker": w})
}

func (h *AuthHandler) loginReq(c *fiber.Ctx) (LoginReq, error) {
	var req LoginReq
	if err := parseBody(c, &req); err != nil {
		return req, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		return req, utils.BadRequest("Email and password are required")
	}
	return req, nil
}

// Me: GET /api/auth/user/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var u models.User
	if err := h.DB.First(&u, "id = ?", p.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("User not found")
		}
		return err
	}
	return ok(c, "", u)
}

type updateUserReq struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	City         *string `json:"city"`
	ProfileImage *string `json:"profileImage"`
}

// UpdateUserProfile: PUT /api/auth/user/update-profile
func (h *AuthHandler) UpdateUserProfile(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]any{}
	setTrimmed(updates, "name", req.Name)
	setTrimmed(updates, "phone", req.Phone)
	setTrimmed(updates, "city", req.City)
	setTrimmed(updates, "profile_image", req.ProfileImage)
	if v, ok := updates["name"]; ok && v == "" {
		return utils.BadRequest("Name cannot be empty")
	}

	if len(updates) > 0 {
		if err := h.DB.Model(&models.User{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return err
		}
	}
	var u models.User
	if err := h.DB.First(&u, "id = ?", p.ID).Error; err != nil {
		return err
	}
	return ok(c, "Profile updated", u)
}

// Logout clears the auth cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return ok(c, "Logged out", nil)
}

func setTrimmed(m map[string]any, col string, v *string) {
	if v != nil {
		m[col] = strings.TrimSpace(*v)
	}
}

func latOf(l *LocationReq) *float64 {
	if l == nil {
		return nil
	}
	return l.Latitude
}

func lngOf(l *LocationReq) *float64 {
	if l == nil {
		return nil
	}
	return l.Longitude
}
