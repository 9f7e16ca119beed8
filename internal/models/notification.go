package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotifyJobAccepted      NotificationType = "job_accepted"
	NotifyJobCompleted     NotificationType = "job_completed"
	NotifyNewReview        NotificationType = "new_review"
	NotifyNewJob           NotificationType = "new_job"
	NotifyMessage          NotificationType = "message"
	NotifyServiceRequest   NotificationType = "service_request"
	NotifyRequestRejected  NotificationType = "request_rejected"
	NotifyRequestCancelled NotificationType = "request_cancelled"
)

// Notification is addressed to exactly one of a user or a worker.
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID       `gorm:"type:uuid;index" json:"user_id,omitempty"`
	WorkerID  *uuid.UUID       `gorm:"type:uuid;index" json:"worker_id,omitempty"`
	Message   string           `gorm:"not null" json:"message"`
	Type      NotificationType `gorm:"type:varchar(30);index" json:"type"`
	IsRead    bool             `gorm:"default:false" json:"is_read"`
	RelatedID *uuid.UUID       `gorm:"type:uuid" json:"related_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}

// NotificationFor builds a notification addressed to the principal.
func NotificationFor(to Principal, msg string, typ NotificationType, related *uuid.UUID) *Notification {
	n := &Notification{Message: msg, Type: typ, RelatedID: related}
	id := to.ID
	if to.Role == RoleWorker {
		n.WorkerID = &id
	} else {
		n.UserID = &id
	}
	return n
}

// Recipient returns the principal the notification is addressed to.
func (n *Notification) Recipient() Principal {
	if n.WorkerID != nil {
		return Principal{Role: RoleWorker, ID: *n.WorkerID}
	}
	if n.UserID != nil {
		return Principal{Role: RoleUser, ID: *n.UserID}
	}
	return Principal{}
}

// All returns every model managed by the relational store, in migration order.
func All() []any {
	return []any{
		&Category{},
		&User{},
		&Worker{},
		&Service{},
		&ServiceRequest{},
		&Review{},
		&Notification{},
	}
}
