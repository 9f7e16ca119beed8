package repository

import (
	"context"
	"time"

	"github.com/skilllink/skilllink-api/internal/models"
)

// MessageRepository stores the chat log of service requests.
type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	// ListByRequest returns a request's messages oldest first.
	ListByRequest(ctx context.Context, requestID string) ([]models.Message, error)
	// Last returns the newest message of a request, or nil when there is none.
	Last(ctx context.Context, requestID string) (*models.Message, error)
	// MarkRead marks every unread message of the request addressed to
	// receiver as read and returns how many changed.
	MarkRead(ctx context.Context, requestID string, receiver models.Party, at time.Time) (int64, error)
	// CountUnread counts unread messages addressed to receiver, limited to one
	// request when requestID is not empty.
	CountUnread(ctx context.Context, requestID string, receiver models.Party) (int64, error)
}
