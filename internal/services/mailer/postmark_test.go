package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/keighl/postmark"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	sent []postmark.Email
	err  error
}

func (f *fakeClient) SendEmail(e postmark.Email) (postmark.EmailResponse, error) {
	if f.err != nil {
		return postmark.EmailResponse{}, f.err
	}
	f.sent = append(f.sent, e)
	return postmark.EmailResponse{}, nil
}

func TestSend(t *testing.T) {
	fc := &fakeClient{}
	p := newPostmark(fc, "from@skilllink.app", zap.NewNop())

	require.NoError(t, p.Send(context.Background(), "w@example.com", "New request", "<p>hi</p>", "hi"))
	require.Len(t, fc.sent, 1)
	assert.Equal(t, "from@skilllink.app", fc.sent[0].From)
	assert.Equal(t, "w@example.com", fc.sent[0].To)
	assert.Equal(t, "hi", fc.sent[0].TextBody)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	fc := &fakeClient{err: errors.New("boom")}
	p := newPostmark(fc, "from@skilllink.app", zap.NewNop())

	for i := 0; i < 3; i++ {
		assert.Error(t, p.Send(context.Background(), "x@example.com", "s", "", "b"))
	}
	err := p.Send(context.Background(), "x@example.com", "s", "", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestNewWithoutTokenIsNop(t *testing.T) {
	assert.IsType(t, Nop{}, New("", "a@b.c", zap.NewNop()))
}
