package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/keighl/postmark"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

type emailClient interface {
	SendEmail(email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark sends transactional mail through Postmark behind a circuit breaker.
type Postmark struct {
	client emailClient
	from   string
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
}

// New returns a Postmark sender, or a no-op sender when token is empty.
func New(token, from string, log *zap.Logger) Sender {
	if token == "" {
		return Nop{}
	}
	return newPostmark(postmark.NewClient(token, ""), from, log)
}

func newPostmark(client emailClient, from string, log *zap.Logger) *Postmark {
	st := gobreaker.Settings{
		Name:        "postmark",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &Postmark{client: client, from: from, cb: gobreaker.NewCircuitBreaker(st), log: log}
}

func (p *Postmark) Send(ctx context.Context, to, subject, html, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.cb.Execute(func() (interface{}, error) {
		res, err := p.client.SendEmail(postmark.Email{
			From:     p.from,
			To:       to,
			Subject:  subject,
			HtmlBody: html,
			TextBody: text,
		})
		if err != nil {
			return nil, err
		}
		if res.ErrorCode != 0 {
			return nil, fmt.Errorf("postmark: %d %s", res.ErrorCode, res.Message)
		}
		return res, nil
	})
	return err
}

type Nop struct{}

func (Nop) Send(context.Context, string, string, string, string) error { return nil }
