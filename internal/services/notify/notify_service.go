package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/services/mailer"
)

// mailed lists the notification types that are also sent by email.
var mailed = map[models.NotificationType]string{
	models.NotifyNewJob:       "New service request on SkillLink",
	models.NotifyJobAccepted:  "Your request was accepted",
	models.NotifyJobCompleted: "Your request was completed",
	models.NotifyNewReview:    "You received a new review",
}

type NotifyService struct {
	DB     *gorm.DB
	Hub    realtime.Emitter
	Mailer mailer.Sender
	Log    *zap.Logger
}

func NewNotifyService(db *gorm.DB, hub realtime.Emitter, m mailer.Sender, log *zap.Logger) *NotifyService {
	if m == nil {
		m = mailer.Nop{}
	}
	return &NotifyService{DB: db, Hub: hub, Mailer: m, Log: log}
}

// Create persists a notification using tx, which may be a transaction.
func (s *NotifyService) Create(tx *gorm.DB, to models.Principal, msg string, typ models.NotificationType, related *uuid.UUID) (*models.Notification, error) {
	n := models.NotificationFor(to, msg, typ, related)
	if err := tx.Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// Push emits the notification to its recipient's room and mails it when the
// type is one that is mailed. Call it after the surrounding transaction commits.
func (s *NotifyService) Push(n *models.Notification) {
	to := n.Recipient()
	s.Hub.Emit(realtime.RoomOf(to), realtime.EventNotification, n)

	subject, ok := mailed[n.Type]
	if _, nop := s.Mailer.(mailer.Nop); !ok || nop {
		return
	}
	go s.mail(to, subject, n.Message)
}

// Send persists and pushes in one step.
func (s *NotifyService) Send(ctx context.Context, to models.Principal, msg string, typ models.NotificationType, related *uuid.UUID) (*models.Notification, error) {
	n, err := s.Create(s.DB.WithContext(ctx), to, msg, typ, related)
	if err != nil {
		return nil, err
	}
	s.Push(n)
	return n, nil
}

func (s *NotifyService) mail(to models.Principal, subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var email string
	var err error
	if to.IsWorker() {
		var w models.Worker
		if err = s.DB.WithContext(ctx).Select("email").First(&w, "id = ?", to.ID).Error; err == nil {
			email = w.Email
		}
	} else {
		var u models.User
		if err = s.DB.WithContext(ctx).Select("email").First(&u, "id = ?", to.ID).Error; err == nil {
			email = u.Email
		}
	}
	if err != nil || email == "" {
		s.Log.Warn("notification mail: recipient lookup failed", zap.String("recipient", to.ID.String()), zap.Error(err))
		return
	}

	htmlBody := fmt.Sprintf("<p>%s</p>", html.EscapeString(body))
	if err := s.Mailer.Send(ctx, email, subject, htmlBody, body); err != nil {
		s.Log.Warn("notification mail failed", zap.String("to", email), zap.Error(err))
	}
}
