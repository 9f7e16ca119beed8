package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAccepted   RequestStatus = "accepted" // legacy rows only; accept moves straight to in-progress
	RequestRejected   RequestStatus = "rejected"
	RequestInProgress RequestStatus = "in-progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected, RequestInProgress, RequestCompleted, RequestCancelled:
		return true
	}
	return false
}

// requestTransitions lists the statuses reachable from each status.
// Nothing ever returns to pending.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:    {RequestInProgress, RequestRejected, RequestCancelled},
	RequestAccepted:   {RequestInProgress, RequestCancelled},
	RequestInProgress: {RequestCompleted, RequestCancelled},
	RequestRejected:   {RequestCancelled},
	RequestCancelled:  {RequestCancelled},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to RequestStatus) bool {
	for _, s := range requestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Chattable reports whether messages may be exchanged on a request in this status.
func (s RequestStatus) Chattable() bool {
	switch s {
	case RequestPending, RequestRejected, RequestCancelled:
		return false
	}
	return true
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// ServiceRequest is a direct booking of one worker by one user.
type ServiceRequest struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	WorkerID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"worker_id"`
	ServiceID *uuid.UUID `gorm:"type:uuid;index" json:"service_id,omitempty"`

	Title         string        `gorm:"not null" json:"title"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	Category      string        `gorm:"not null" json:"category"`
	Location      string        `gorm:"not null" json:"location"`
	Budget        *float64      `json:"budget,omitempty"`
	Urgency       Urgency       `gorm:"type:varchar(10);default:medium" json:"urgency"`
	Status        RequestStatus `gorm:"type:varchar(20);default:pending;index" json:"status"`
	ScheduledDate *time.Time    `json:"scheduled_date,omitempty"`
	CompletedDate *time.Time    `json:"completed_date,omitempty"`
	WorkerNotes   string        `gorm:"type:text" json:"worker_notes"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Worker *Worker `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
}

func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RequestPending
	}
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
	return
}

// IsParty reports whether the principal is the request's user or worker.
func (r *ServiceRequest) IsParty(p Principal) bool {
	switch p.Role {
	case RoleUser:
		return r.UserID == p.ID
	case RoleWorker:
		return r.WorkerID == p.ID
	}
	return false
}

// Counterpart returns the other party of the request.
func (r *ServiceRequest) Counterpart(p Principal) Principal {
	if p.Role == RoleUser {
		return Principal{Role: RoleWorker, ID: r.WorkerID}
	}
	return Principal{Role: RoleUser, ID: r.UserID}
}
