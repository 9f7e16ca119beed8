package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/middleware"
	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const (
	wsPongWait     = 60 * time.Second
	wsMaxFrameSize = 64 * 1024
)

type WSHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Presence  *realtime.Presence
	JWTSecret string
	Log       *zap.Logger
}

func NewWSHandler(db *gorm.DB, hub *realtime.Hub, presence *realtime.Presence, secret string, log *zap.Logger) *WSHandler {
	return &WSHandler{DB: db, Hub: hub, Presence: presence, JWTSecret: secret, Log: log}
}

// Upgrade authenticates the handshake from ?token= (or the usual header and
// cookie) before the connection is upgraded.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	tok := c.Query("token")
	if tok == "" {
		tok = strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
	}
	if tok == "" {
		tok = c.Cookies(middleware.TokenCookie)
	}
	if tok == "" {
		return utils.Unauthorized("Not authorized, no token")
	}
	p, err := h.principal(tok)
	if err != nil {
		return err
	}
	c.Locals("principal", p)
	return c.Next()
}

func (h *WSHandler) principal(tok string) (models.Principal, error) {
	token, err := utils.ParseJWT(h.JWTSecret, tok)
	if err != nil {
		return models.Principal{}, utils.Unauthorized("Not authorized, token failed")
	}
	claims, ok := token.Claims.(*utils.Claims)
	if !ok {
		return models.Principal{}, utils.Unauthorized("Not authorized, token failed")
	}
	return principalFromClaims(claims)
}

func principalFromClaims(claims *utils.Claims) (models.Principal, error) {
	id, err := uuid.Parse(claims.UserID)
	role := models.Role(strings.ToLower(claims.Role))
	if err != nil || !role.Valid() {
		return models.Principal{}, utils.Unauthorized("Not authorized, token failed")
	}
	return models.Principal{Role: role, ID: id}, nil
}

type identityFrame struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type requestFrame struct {
	RequestID string `json:"requestId"`
}

type typingFrame struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	IsTyping  bool   `json:"isTyping"`
}

type onlineEvent struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
	Online bool        `json:"online"`
}

type errorEvent struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Serve runs one websocket session. The principal's own room is joined on
// connect; everything else is driven by client frames.
func (h *WSHandler) Serve(conn *websocket.Conn) {
	p, ok := conn.Locals("principal").(models.Principal)
	if !ok {
		_ = conn.Close()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := realtime.NewClient(p)
	h.Hub.Register(client)
	h.Hub.Join(client, realtime.RoomOf(p))
	h.presence(ctx, "connect", p)
	go client.WritePump(conn)

	log := h.Log.With(zap.String("client", client.ID), zap.String("role", string(p.Role)), zap.String("principal", p.ID.String()))
	log.Debug("ws connected")

	defer func() {
		h.disconnect(ctx, client)
		// conn goes back to the upgrader's pool once Serve returns
		client.Stop()
		<-client.Done()
		log.Debug("ws disconnected")
	}()

	conn.SetReadLimit(wsMaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		h.presence(ctx, "touch", p)
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	s := &wsSession{h: h, ctx: ctx, client: client, p: p, joined: map[uuid.UUID]bool{}}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.fail("", "Malformed frame")
			continue
		}
		s.handle(env)
	}
}

// disconnect drops the client and announces the principal offline unless
// another socket of theirs is still open here or on another instance.
func (h *WSHandler) disconnect(ctx context.Context, client *realtime.Client) {
	p := client.Principal
	h.Hub.Unregister(client)
	h.presence(ctx, "disconnect", p)

	online, err := h.Hub.IsOnline(ctx, p)
	if err != nil {
		h.Log.Warn("presence lookup failed", zap.String("principal", p.ID.String()), zap.Error(err))
	}
	if !online {
		h.Hub.Broadcast(realtime.EventUserOnline, onlineEvent{UserID: p.ID.String(), Role: p.Role, Online: false})
	}
}

func (h *WSHandler) presence(ctx context.Context, op string, p models.Principal) {
	if h.Presence == nil {
		return
	}
	var err error
	switch op {
	case "connect":
		err = h.Presence.Connect(ctx, p)
	case "disconnect":
		err = h.Presence.Disconnect(ctx, p)
	default:
		err = h.Presence.Touch(ctx, p)
	}
	if err != nil {
		h.Log.Warn("presence update failed", zap.String("op", op), zap.Error(err))
	}
}

// wsSession is the per-connection state, owned by the read loop.
type wsSession struct {
	h      *WSHandler
	ctx    context.Context
	client *realtime.Client
	p      models.Principal
	joined map[uuid.UUID]bool
}

func (s *wsSession) handle(env realtime.Envelope) {
	switch env.Event {
	case realtime.ClientJoin:
		var f identityFrame
		if err := json.Unmarshal(env.Data, &f); err != nil || !s.self(f) {
			s.fail(env.Event, "Cannot join another account's room")
			return
		}
		s.h.Hub.Join(s.client, realtime.RoomOf(s.p))

	case realtime.ClientJoinRequest:
		id, ok := requestID(env.Data)
		if !ok {
			s.fail(env.Event, "Invalid request id")
			return
		}
		var sr models.ServiceRequest
		if err := s.h.DB.WithContext(s.ctx).Select("id", "user_id", "worker_id").First(&sr, "id = ?", id).Error; err != nil || !sr.IsParty(s.p) {
			s.fail(env.Event, "Access denied")
			return
		}
		s.joined[id] = true
		s.h.Hub.Join(s.client, realtime.RequestRoom(id))

	case realtime.ClientLeaveRequest:
		id, ok := requestID(env.Data)
		if !ok {
			s.fail(env.Event, "Invalid request id")
			return
		}
		delete(s.joined, id)
		s.h.Hub.Leave(s.client, realtime.RequestRoom(id))

	case realtime.ClientTyping:
		var f typingFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			s.fail(env.Event, "Malformed frame")
			return
		}
		id, err := uuid.Parse(f.RequestID)
		if err != nil || !s.joined[id] {
			s.fail(env.Event, "Join the request first")
			return
		}
		// identity comes from the token, not the frame
		f.UserID = s.p.ID.String()
		s.h.Hub.EmitExcept(realtime.RequestRoom(id), realtime.EventUserTyping, f, s.client)

	case realtime.ClientSetOnline:
		var f identityFrame
		if err := json.Unmarshal(env.Data, &f); err != nil || !s.self(f) {
			s.fail(env.Event, "Cannot set another account online")
			return
		}
		s.h.Hub.Broadcast(realtime.EventUserOnline, onlineEvent{UserID: s.p.ID.String(), Role: s.p.Role, Online: true})

	default:
		s.fail(env.Event, "Unknown event")
	}
}

// self reports whether an identity frame names the connected principal. An
// omitted role matches.
func (s *wsSession) self(f identityFrame) bool {
	if !strings.EqualFold(strings.TrimSpace(f.UserID), s.p.ID.String()) {
		return false
	}
	return f.Role == "" || models.Role(strings.ToLower(f.Role)) == s.p.Role
}

func (s *wsSession) fail(event, msg string) {
	s.h.Hub.Reply(s.client, realtime.EventError, errorEvent{Event: event, Message: msg})
}

// requestID accepts either a bare id string or {"requestId": id}.
func requestID(data json.RawMessage) (uuid.UUID, bool) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var f requestFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return uuid.Nil, false
		}
		raw = f.RequestID
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
