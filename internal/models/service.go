package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServiceStatus string

const (
	ServicePending    ServiceStatus = "pending"
	ServiceAccepted   ServiceStatus = "accepted"
	ServiceInProgress ServiceStatus = "in-progress"
	ServiceCompleted  ServiceStatus = "completed"
	ServiceCancelled  ServiceStatus = "cancelled"
)

// Service is a job posted by a user that any matching worker may pick up.
type Service struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	WorkerID   *uuid.UUID `gorm:"type:uuid;index" json:"worker_id,omitempty"`
	CategoryID *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`

	Title       string  `gorm:"not null" json:"title"`
	Skill       string  `gorm:"index;not null" json:"skill"`
	City        string  `gorm:"index;not null" json:"city"`
	Description string  `gorm:"type:text;not null" json:"description"`
	BudgetMin   float64 `json:"budget_min"`
	BudgetMax   float64 `json:"budget_max"`
	Address     string  `json:"address"`

	Status      ServiceStatus `gorm:"type:varchar(20);default:pending;index" json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Worker   *Worker   `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = ServicePending
	}
	return
}
