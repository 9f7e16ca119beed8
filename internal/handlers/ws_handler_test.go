package handlers

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/testutil"
	"github.com/skilllink/skilllink-api/internal/utils"
)

const wsSecret = "test-secret"

type wsFixture struct {
	db  *gorm.DB
	hub *realtime.Hub
	h   *WSHandler
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	hub := realtime.NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return &wsFixture{db: gdb, hub: hub, h: NewWSHandler(gdb, hub, nil, wsSecret, zap.NewNop())}
}

// connect sets up a socketless session for p the same way Serve does.
func (f *wsFixture) connect(p models.Principal) *wsSession {
	c := realtime.NewClient(p)
	f.hub.Register(c)
	f.hub.Join(c, realtime.RoomOf(p))
	return &wsSession{h: f.h, ctx: context.Background(), client: c, p: p, joined: map[uuid.UUID]bool{}}
}

func frame(t *testing.T, event string, data any) realtime.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return realtime.Envelope{Event: event, Data: raw}
}

func recvFrame(t *testing.T, c *realtime.Client) realtime.Envelope {
	t.Helper()
	select {
	case b := <-c.Send:
		var env realtime.Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.ID)
	}
	return realtime.Envelope{}
}

func recvError(t *testing.T, c *realtime.Client) errorEvent {
	t.Helper()
	env := recvFrame(t, c)
	require.Equal(t, realtime.EventError, env.Event)
	var e errorEvent
	require.NoError(t, json.Unmarshal(env.Data, &e))
	return e
}

// settle asserts nothing was queued for c ahead of a marker sent now. Hub
// deliveries are processed in order.
func (f *wsFixture) settle(t *testing.T, c *realtime.Client) {
	t.Helper()
	f.hub.Reply(c, "settled", nil)
	assert.Equal(t, "settled", recvFrame(t, c).Event)
}

func userP(u *models.User) models.Principal {
	return models.Principal{Role: models.RoleUser, ID: u.ID}
}

func workerP(w *models.Worker) models.Principal {
	return models.Principal{Role: models.RoleWorker, ID: w.ID}
}

func TestWSSessionJoinsOwnRoom(t *testing.T) {
	f := newWSFixture(t)
	p := models.Principal{Role: models.RoleWorker, ID: uuid.New()}
	s := f.connect(p)

	f.hub.Emit(realtime.WorkerRoom(p.ID), realtime.EventNewServiceRequest, map[string]string{"id": "r1"})
	assert.Equal(t, realtime.EventNewServiceRequest, recvFrame(t, s.client).Event)
}

func TestWSJoinIsOnlyForOwnRoom(t *testing.T) {
	f := newWSFixture(t)
	a := f.connect(models.Principal{Role: models.RoleUser, ID: uuid.New()})
	b := f.connect(models.Principal{Role: models.RoleUser, ID: uuid.New()})

	a.handle(frame(t, realtime.ClientJoin, identityFrame{UserID: b.p.ID.String(), Role: "user"}))
	assert.Equal(t, realtime.ClientJoin, recvError(t, a.client).Event)

	f.hub.Emit(realtime.RoomOf(b.p), realtime.EventNotification, map[string]string{"message": "hi"})
	assert.Equal(t, realtime.EventNotification, recvFrame(t, b.client).Event)
	f.settle(t, a.client)

	a.handle(frame(t, realtime.ClientJoin, identityFrame{UserID: a.p.ID.String(), Role: "user"}))
	f.settle(t, a.client)
}

func TestWSJoinRequestRequiresParty(t *testing.T) {
	f := newWSFixture(t)
	u := testutil.CreateUser(t, f.db, "asha", "Kochi")
	w := testutil.CreateWorker(t, f.db, "ravi", "Kochi", "Plumber")
	other := testutil.CreateUser(t, f.db, "bina", "Kochi")
	sr := testutil.CreateRequest(t, f.db, u, w, models.RequestInProgress)

	outsider := f.connect(userP(other))
	worker := f.connect(workerP(w))

	outsider.handle(frame(t, realtime.ClientJoinRequest, sr.ID.String()))
	assert.Equal(t, "Access denied", recvError(t, outsider.client).Message)

	outsider.handle(frame(t, realtime.ClientJoinRequest, "not-an-id"))
	assert.Equal(t, "Invalid request id", recvError(t, outsider.client).Message)

	worker.handle(frame(t, realtime.ClientJoinRequest, requestFrame{RequestID: sr.ID.String()}))
	f.settle(t, worker.client)

	f.hub.Emit(realtime.RequestRoom(sr.ID), realtime.EventNewMessage, map[string]string{"content": "hi"})
	assert.Equal(t, realtime.EventNewMessage, recvFrame(t, worker.client).Event)
	f.settle(t, outsider.client)
}

func TestWSTypingRelaysToOtherParty(t *testing.T) {
	f := newWSFixture(t)
	u := testutil.CreateUser(t, f.db, "asha", "Kochi")
	w := testutil.CreateWorker(t, f.db, "ravi", "Kochi", "Plumber")
	sr := testutil.CreateRequest(t, f.db, u, w, models.RequestInProgress)
	user := f.connect(userP(u))
	worker := f.connect(workerP(w))

	typing := typingFrame{RequestID: sr.ID.String(), UserID: uuid.NewString(), UserName: "Asha", IsTyping: true}

	worker.handle(frame(t, realtime.ClientTyping, typing))
	assert.Equal(t, "Join the request first", recvError(t, worker.client).Message)

	user.handle(frame(t, realtime.ClientJoinRequest, sr.ID.String()))
	worker.handle(frame(t, realtime.ClientJoinRequest, sr.ID.String()))
	f.settle(t, user.client)
	f.settle(t, worker.client)

	user.handle(frame(t, realtime.ClientTyping, typing))
	env := recvFrame(t, worker.client)
	require.Equal(t, realtime.EventUserTyping, env.Event)
	var got typingFrame
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, u.ID.String(), got.UserID, "sender id comes from the token")
	assert.True(t, got.IsTyping)
	f.settle(t, user.client)

	user.handle(frame(t, realtime.ClientLeaveRequest, sr.ID.String()))
	user.handle(frame(t, realtime.ClientTyping, typing))
	assert.Equal(t, "Join the request first", recvError(t, user.client).Message)
}

func TestWSSetOnline(t *testing.T) {
	f := newWSFixture(t)
	a := f.connect(models.Principal{Role: models.RoleUser, ID: uuid.New()})
	b := f.connect(models.Principal{Role: models.RoleWorker, ID: uuid.New()})

	a.handle(frame(t, realtime.ClientSetOnline, identityFrame{UserID: b.p.ID.String()}))
	assert.Equal(t, realtime.ClientSetOnline, recvError(t, a.client).Event)
	f.settle(t, b.client)

	a.handle(frame(t, realtime.ClientSetOnline, identityFrame{UserID: a.p.ID.String()}))
	for _, c := range []*realtime.Client{a.client, b.client} {
		env := recvFrame(t, c)
		require.Equal(t, realtime.EventUserOnline, env.Event)
		var ev onlineEvent
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		assert.Equal(t, a.p.ID.String(), ev.UserID)
		assert.True(t, ev.Online)
	}
}

func TestWSUnknownEvent(t *testing.T) {
	f := newWSFixture(t)
	s := f.connect(models.Principal{Role: models.RoleUser, ID: uuid.New()})
	s.handle(realtime.Envelope{Event: "dance"})
	assert.Equal(t, "Unknown event", recvError(t, s.client).Message)
}

func TestWSOfflineOnlyAfterLastSocket(t *testing.T) {
	f := newWSFixture(t)
	p := models.Principal{Role: models.RoleUser, ID: uuid.New()}
	first := f.connect(p)
	second := f.connect(p)
	observer := f.connect(models.Principal{Role: models.RoleWorker, ID: uuid.New()})
	ctx := context.Background()

	f.h.disconnect(ctx, first.client)
	f.settle(t, observer.client)
	_, open := <-first.client.Send
	assert.False(t, open)

	f.h.disconnect(ctx, second.client)
	env := recvFrame(t, observer.client)
	require.Equal(t, realtime.EventUserOnline, env.Event)
	var ev onlineEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, p.ID.String(), ev.UserID)
	assert.False(t, ev.Online)
}

// Connections are opened and dropped repeatedly over a real listener so that
// the race detector sees every socket handed back to the upgrader's pool.
func TestWSSocketLifecycle(t *testing.T) {
	f := newWSFixture(t)
	app := fiber.New()
	app.Use("/ws", f.h.Upgrade)
	app.Get("/ws", websocket.New(f.h.Serve))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	observer := realtime.NewClient(models.Principal{Role: models.RoleWorker, ID: uuid.New()})
	f.hub.Register(observer)

	u := testutil.CreateUser(t, f.db, "asha", "Kochi")
	tok, err := utils.SignJWT(wsSecret, u.ID.String(), "user", 5)
	require.NoError(t, err)
	url := "ws://" + ln.Addr().String() + "/ws?token=" + tok

	_, resp, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}

	for i := 0; i < 50; i++ {
		conn, _, err := fws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		// the reply proves the session is registered and reading
		require.NoError(t, conn.WriteJSON(realtime.Envelope{Event: "hello"}))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env realtime.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		assert.Equal(t, realtime.EventError, env.Event)

		f.hub.Emit(realtime.UserRoom(u.ID), realtime.EventNotification, map[string]int{"n": i})
		require.NoError(t, conn.ReadJSON(&env))
		assert.Equal(t, realtime.EventNotification, env.Event)

		require.NoError(t, conn.Close())
		assert.Equal(t, realtime.EventUserOnline, recvFrame(t, observer).Event)
	}
	assert.False(t, f.hub.Online(realtime.UserRoom(u.ID)))
}

func TestRequestIDForms(t *testing.T) {
	id := uuid.New()

	got, ok := requestID(json.RawMessage(`"` + id.String() + `"`))
	require.True(t, ok)
	assert.Equal(t, id, got)

	got, ok = requestID(json.RawMessage(`{"requestId":" ` + id.String() + ` "}`))
	require.True(t, ok)
	assert.Equal(t, id, got)

	for _, raw := range []string{`"nope"`, `{"requestId":""}`, `42`, `null`} {
		_, ok := requestID(json.RawMessage(raw))
		assert.False(t, ok, raw)
	}
}

func TestSessionSelf(t *testing.T) {
	p := models.Principal{Role: models.RoleWorker, ID: uuid.New()}
	s := &wsSession{p: p}

	assert.True(t, s.self(identityFrame{UserID: p.ID.String()}))
	assert.True(t, s.self(identityFrame{UserID: p.ID.String(), Role: "Worker"}))
	assert.False(t, s.self(identityFrame{UserID: p.ID.String(), Role: "user"}))
	assert.False(t, s.self(identityFrame{UserID: uuid.NewString()}))
}

func TestWSPrincipalFromToken(t *testing.T) {
	h := &WSHandler{JWTSecret: wsSecret}
	id := uuid.New()

	tok, err := utils.SignJWT(wsSecret, id.String(), "user", 5)
	require.NoError(t, err)
	p, err := h.principal(tok)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{Role: models.RoleUser, ID: id}, p)

	tok, err = utils.SignJWT(wsSecret, id.String(), "admin", 5)
	require.NoError(t, err)
	_, err = h.principal(tok)
	assert.Error(t, err)

	_, err = h.principal("garbage")
	assert.Error(t, err)
}
