package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBusy      AvailabilityStatus = "busy"
	AvailabilityOffline   AvailabilityStatus = "offline"
)

func (s AvailabilityStatus) Valid() bool {
	switch s {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// WorkerSkill is owned by its worker and stored inline.
type WorkerSkill struct {
	ID                string    `json:"id"`
	SkillName         string    `json:"skill_name"`
	YearsOfExperience int       `json:"years_of_experience"`
	Description       string    `json:"description"`
	AddedAt           time.Time `json:"added_at"`
}

// WorkerService is a service a worker advertises on their profile.
type WorkerService struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Skill       string    `json:"skill"`
	City        string    `json:"city"`
	BudgetMin   float64   `json:"budget_min"`
	BudgetMax   float64   `json:"budget_max"`
	CreatedAt   time.Time `json:"created_at"`
}

type Worker struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"not null" json:"name"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Phone    string    `gorm:"type:varchar(30);not null" json:"phone"`
	City     string    `gorm:"index;not null" json:"city"`

	SkillCategoryID *uuid.UUID `gorm:"type:uuid;index" json:"skill_category_id,omitempty"`
	SkillCategory   *Category  `gorm:"foreignKey:SkillCategoryID" json:"skill_category,omitempty"`

	Skills   datatypes.JSONSlice[WorkerSkill]   `json:"skills"`
	Services datatypes.JSONSlice[WorkerService] `json:"services"`

	Bio                string             `gorm:"type:text" json:"bio"`
	ProfileImage       string             `json:"profile_image"`
	AvailabilityStatus AvailabilityStatus `gorm:"type:varchar(20);default:available;index" json:"availability_status"`
	Latitude           *float64           `json:"latitude,omitempty"`
	Longitude          *float64           `json:"longitude,omitempty"`

	RatingAverage float64 `gorm:"default:0" json:"rating_average"`
	ReviewsCount  int     `gorm:"default:0" json:"reviews_count"`
	RatingSum     int     `gorm:"default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Worker) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.AvailabilityStatus == "" {
		w.AvailabilityStatus = AvailabilityAvailable
	}
	if w.Skills == nil {
		w.Skills = datatypes.JSONSlice[WorkerSkill]{}
	}
	if w.Services == nil {
		w.Services = datatypes.JSONSlice[WorkerService]{}
	}
	return
}

// HasSkill reports whether the worker lists a skill with the given name,
// ignoring case.
func (w *Worker) HasSkill(name string) bool {
	for _, s := range w.Skills {
		if strings.EqualFold(s.SkillName, name) {
			return true
		}
	}
	return false
}

// CategoryName is empty when the category was not preloaded.
func (w *Worker) CategoryName() string {
	if w.SkillCategory == nil {
		return ""
	}
	return w.SkillCategory.Name
}

// RoundRating rounds a mean to one decimal place.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

type WorkerMini struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	City          string    `json:"city,omitempty"`
	Category      string    `json:"category,omitempty"`
	RatingAverage float64   `json:"rating_average"`
}

func (w *Worker) Mini() *WorkerMini {
	if w == nil {
		return nil
	}
	return &WorkerMini{
		ID:            w.ID,
		Name:          w.Name,
		Email:         w.Email,
		Phone:         w.Phone,
		City:          w.City,
		Category:      w.CategoryName(),
		RatingAverage: w.RatingAverage,
	}
}
