package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies which account table a principal lives in.
type Role string

const (
	RoleUser   Role = "user"
	RoleWorker Role = "worker"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleWorker
}

// Principal is an authenticated actor: either a User or a Worker.
type Principal struct {
	Role Role
	ID   uuid.UUID
}

func (p Principal) IsUser() bool   { return p.Role == RoleUser }
func (p Principal) IsWorker() bool { return p.Role == RoleWorker }

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"not null" json:"-"`
	Phone        string    `gorm:"type:varchar(30)" json:"phone"`
	City         string    `gorm:"index" json:"city"`
	ProfileImage string    `json:"profile_image"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// UserMini is the public projection embedded in other responses.
type UserMini struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
	City  string    `json:"city,omitempty"`
}

func (u *User) Mini() *UserMini {
	if u == nil {
		return nil
	}
	return &UserMini{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, City: u.City}
}
