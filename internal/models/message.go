package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText       MessageType = "text"
	MessageAttachment MessageType = "attachment"
	MessageSystem     MessageType = "system"
)

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Party is a message endpoint: a user or a worker, by id.
type Party struct {
	Role Role   `bson:"role" json:"role"`
	ID   string `bson:"id" json:"id"`
}

func PartyOf(p Principal) Party {
	return Party{Role: p.Role, ID: p.ID.String()}
}

func (p Party) Principal() (Principal, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Role: p.Role, ID: id}, nil
}

// Message is stored in the messages collection of the document store.
type Message struct {
	ID               string        `bson:"_id" json:"id"`
	ServiceRequestID string        `bson:"service_request_id" json:"service_request_id"`
	Sender           Party         `bson:"sender" json:"sender"`
	Receiver         Party         `bson:"receiver" json:"receiver"`
	Content          string        `bson:"content" json:"content"`
	MessageType      MessageType   `bson:"message_type" json:"message_type"`
	AttachmentURL    string        `bson:"attachment_url,omitempty" json:"attachment_url,omitempty"`
	AttachmentName   string        `bson:"attachment_name,omitempty" json:"attachment_name,omitempty"`
	Status           MessageStatus `bson:"status" json:"status"`
	ReadAt           *time.Time    `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt        time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updated_at"`
}
