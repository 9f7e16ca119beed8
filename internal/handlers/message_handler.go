package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/repository"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const maxMessageLen = 5000

// OnlineChecker reports whether a principal has an open socket.
type OnlineChecker interface {
	IsOnline(ctx context.Context, p models.Principal) (bool, error)
}

type MessageHandler struct {
	DB       *gorm.DB
	Messages repository.MessageRepository
	Hub      realtime.Emitter
	Online   OnlineChecker
	Notify   *notify.NotifyService
	Log      *zap.Logger
}

func NewMessageHandler(db *gorm.DB, msgs repository.MessageRepository, hub realtime.Emitter, online OnlineChecker, n *notify.NotifyService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{DB: db, Messages: msgs, Hub: hub, Online: online, Notify: n, Log: log}
}

func (h *MessageHandler) Routes(r fiber.Router, g Guards) {
	m := r.Group("/messages")
	m.Post("/", With(g.Any, h.Send)...)
	m.Get("/conversations", With(g.Any, h.Conversations)...)
	m.Get("/unread-count", With(g.Any, h.UnreadCount)...)
	m.Get("/request/:serviceRequestId", With(g.Any, h.List)...)
	m.Put("/request/:serviceRequestId/read", With(g.Any, h.MarkRead)...)
}

type sendMessageReq struct {
	ServiceRequestID string `json:"serviceRequestId"`
	Content          string `json:"content"`
	AttachmentURL    string `json:"attachmentUrl"`
	AttachmentName   string `json:"attachmentName"`
}

type newMessageEvent struct {
	Message          *models.Message `json:"message"`
	ServiceRequestID uuid.UUID       `json:"serviceRequestId"`
	SenderName       string          `json:"senderName"`
}

// Send: POST /api/messages
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req sendMessageReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	reqID, err := uuid.Parse(strings.TrimSpace(req.ServiceRequestID))
	if err != nil {
		return utils.BadRequest("Invalid service request id")
	}
	ctx := c.UserContext()

	sr, err := h.request(ctx, reqID)
	if err != nil {
		return err
	}
	if !sr.Status.Chattable() {
		return utils.Forbidden("Messaging is only available for in-progress or completed requests")
	}
	if !sr.IsParty(p) {
		return utils.Forbidden("Access denied")
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return utils.BadRequest("Message content is required")
	}
	if len([]rune(content)) > maxMessageLen {
		return utils.BadRequest("Message is too long")
	}

	to := sr.Counterpart(p)
	now := time.Now().UTC()
	msg := &models.Message{
		ServiceRequestID: reqID.String(),
		Sender:           models.PartyOf(p),
		Receiver:         models.PartyOf(to),
		Content:          content,
		MessageType:      models.MessageText,
		AttachmentURL:    strings.TrimSpace(req.AttachmentURL),
		AttachmentName:   strings.TrimSpace(req.AttachmentName),
		Status:           models.MessageSent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if msg.AttachmentURL != "" {
		msg.MessageType = models.MessageAttachment
	}
	if h.Online != nil {
		online, err := h.Online.IsOnline(ctx, to)
		if err != nil {
			h.Log.Warn("presence lookup failed", zap.String("receiver", to.ID.String()), zap.Error(err))
		}
		if online {
			msg.Status = models.MessageDelivered
		}
	}

	if err := h.Messages.Insert(ctx, msg); err != nil {
		return err
	}

	senderName := h.displayName(ctx, p)
	if _, err := h.Notify.Send(ctx, to, senderName+" sent you a message", models.NotifyMessage, &reqID); err != nil {
		h.Log.Warn("message notification failed", zap.String("request", reqID.String()), zap.Error(err))
	}

	ev := newMessageEvent{Message: msg, ServiceRequestID: reqID, SenderName: senderName}
	h.Hub.Emit(realtime.RoomOf(to), realtime.EventNewMessage, ev)
	h.Hub.Emit(realtime.RequestRoom(reqID), realtime.EventNewMessage, ev)

	return created(c, "Message sent", msg)
}

// List: GET /api/messages/request/:serviceRequestId
func (h *MessageHandler) List(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	sr, err := h.partyRequest(c, p)
	if err != nil {
		return err
	}
	msgs, err := h.Messages.ListByRequest(c.UserContext(), sr.ID.String())
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return ok(c, "", msgs)
}

type messagesReadEvent struct {
	ServiceRequestID uuid.UUID    `json:"serviceRequestId"`
	ReadBy           models.Party `json:"readBy"`
}

// MarkRead: PUT /api/messages/request/:serviceRequestId/read
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	sr, err := h.partyRequest(c, p)
	if err != nil {
		return err
	}

	n, err := h.Messages.MarkRead(c.UserContext(), sr.ID.String(), models.PartyOf(p), time.Now().UTC())
	if err != nil {
		return err
	}
	h.Hub.Emit(realtime.RoomOf(sr.Counterpart(p)), realtime.EventMessagesRead, messagesReadEvent{
		ServiceRequestID: sr.ID,
		ReadBy:           models.PartyOf(p),
	})
	return ok(c, "Messages marked as read", fiber.Map{"modifiedCount": n})
}

type Conversation struct {
	models.ServiceRequest
	LastMessage *models.Message `json:"last_message"`
	UnreadCount int64           `json:"unread_count"`
}

// Conversations: GET /api/messages/conversations. One entry per request the
// caller can chat on, most recently updated first.
func (h *MessageHandler) Conversations(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	q := h.DB.WithContext(ctx).
		Preload("User").
		Preload("Worker").
		Where("status IN ?", []models.RequestStatus{models.RequestAccepted, models.RequestInProgress, models.RequestCompleted})
	if p.IsWorker() {
		q = q.Where("worker_id = ?", p.ID)
	} else {
		q = q.Where("user_id = ?", p.ID)
	}
	var reqs []models.ServiceRequest
	if err := q.Order("updated_at DESC").Find(&reqs).Error; err != nil {
		return err
	}

	me := models.PartyOf(p)
	out := make([]Conversation, 0, len(reqs))
	for _, r := range reqs {
		last, err := h.Messages.Last(ctx, r.ID.String())
		if err != nil {
			return err
		}
		unread, err := h.Messages.CountUnread(ctx, r.ID.String(), me)
		if err != nil {
			return err
		}
		out = append(out, Conversation{ServiceRequest: r, LastMessage: last, UnreadCount: unread})
	}
	return ok(c, "", out)
}

// UnreadCount: GET /api/messages/unread-count
func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	n, err := h.Messages.CountUnread(c.UserContext(), "", models.PartyOf(p))
	if err != nil {
		return err
	}
	return ok(c, "", fiber.Map{"unreadCount": n})
}

func (h *MessageHandler) partyRequest(c *fiber.Ctx, p models.Principal) (*models.ServiceRequest, error) {
	id, err := paramUUID(c, "serviceRequestId", "service request")
	if err != nil {
		return nil, err
	}
	sr, err := h.request(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if !sr.IsParty(p) {
		return nil, utils.Forbidden("Access denied")
	}
	return sr, nil
}

func (h *MessageHandler) request(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	var sr models.ServiceRequest
	if err := h.DB.WithContext(ctx).First(&sr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Service request not found")
		}
		return nil, err
	}
	return &sr, nil
}

func (h *MessageHandler) displayName(ctx context.Context, p models.Principal) string {
	db := h.DB.WithContext(ctx)
	if p.IsWorker() {
		var w models.Worker
		if err := db.Select("name").First(&w, "id = ?", p.ID).Error; err == nil && w.Name != "" {
			return w.Name
		}
		return "A worker"
	}
	var u models.User
	if err := db.Select("name").First(&u, "id = ?", p.ID).Error; err == nil && u.Name != "" {
		return u.Name
	}
	return "A user"
}
