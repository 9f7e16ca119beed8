package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/models"
)

// memoryMessageRepo keeps messages in process. It backs the API when the
// document store is unreachable at boot, and backs tests.
type memoryMessageRepo struct {
	mu   sync.RWMutex
	msgs []models.Message
}

func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepo{}
}

func (r *memoryMessageRepo) Insert(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *memoryMessageRepo) ListByRequest(_ context.Context, requestID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Message{}
	for _, m := range r.msgs {
		if m.ServiceRequestID == requestID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryMessageRepo) Last(_ context.Context, requestID string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].ServiceRequestID == requestID {
			m := r.msgs[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (r *memoryMessageRepo) MarkRead(_ context.Context, requestID string, receiver models.Party, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.msgs {
		m := &r.msgs[i]
		if unread(m, requestID, receiver) {
			t := at.UTC()
			m.Status = models.MessageRead
			m.ReadAt = &t
			m.UpdatedAt = t
			n++
		}
	}
	return n, nil
}

func (r *memoryMessageRepo) CountUnread(_ context.Context, requestID string, receiver models.Party) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for i := range r.msgs {
		if unread(&r.msgs[i], requestID, receiver) {
			n++
		}
	}
	return n, nil
}

func unread(m *models.Message, requestID string, receiver models.Party) bool {
	if requestID != "" && m.ServiceRequestID != requestID {
		return false
	}
	return m.Receiver == receiver && m.Status != models.MessageRead
}
