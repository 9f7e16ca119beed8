package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func newTestClient(h *Hub, role models.Role) *Client {
	c := NewClient(models.Principal{Role: role, ID: uuid.New()})
	h.Register(c)
	return c
}

func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case b := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
	}
	return Envelope{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("unexpected frame: %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitReachesOnlyRoomMembers(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, models.RoleWorker)
	b := newTestClient(h, models.RoleUser)
	room := RoomOf(a.Principal)
	h.Join(a, room)
	h.Join(b, UserRoom(b.Principal.ID))

	h.Emit(room, EventNewServiceRequest, map[string]string{"id": "r1"})

	env := recv(t, a)
	assert.Equal(t, EventNewServiceRequest, env.Event)
	assert.JSONEq(t, `{"id":"r1"}`, string(env.Data))
	assertSilent(t, b)
}

func TestEmitExceptSkipsSender(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, models.RoleWorker)
	b := newTestClient(h, models.RoleUser)
	room := RequestRoom(uuid.New())
	h.Join(a, room)
	h.Join(b, room)

	h.EmitExcept(room, EventUserTyping, map[string]bool{"isTyping": true}, a)

	assert.Equal(t, EventUserTyping, recv(t, b).Event)
	assertSilent(t, a)
}

func TestLeaveAndUnregister(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, models.RoleUser)
	room := RequestRoom(uuid.New())
	h.Join(a, room)
	require.Eventually(t, func() bool { return h.Online(room) }, time.Second, 5*time.Millisecond)

	h.Leave(a, room)
	require.Eventually(t, func() bool { return !h.Online(room) }, time.Second, 5*time.Millisecond)

	h.Join(a, room)
	h.Unregister(a)
	require.Eventually(t, func() bool { return h.RoomSize(room) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)
}

func TestBroadcast(t *testing.T) {
	h := startHub(t)
	a := newTestClient(h, models.RoleUser)
	b := newTestClient(h, models.RoleWorker)

	h.Broadcast(EventUserOnline, map[string]any{"online": true})

	assert.Equal(t, EventUserOnline, recv(t, a).Event)
	assert.Equal(t, EventUserOnline, recv(t, b).Event)
}

func TestJoinBeforeRegisterIsIgnored(t *testing.T) {
	h := startHub(t)
	c := NewClient(models.Principal{Role: models.RoleUser, ID: uuid.New()})
	room := RoomOf(c.Principal)
	h.Join(c, room)
	assert.False(t, h.Online(room))
}

func TestRoomsAreKeyedByRole(t *testing.T) {
	id := uuid.New()
	assert.NotEqual(t,
		RoomOf(models.Principal{Role: models.RoleUser, ID: id}),
		RoomOf(models.Principal{Role: models.RoleWorker, ID: id}))
	assert.Equal(t, "request_"+id.String(), RequestRoom(id))
}

func TestUnregisterIsVisibleOnReturn(t *testing.T) {
	h := startHub(t)
	p := models.Principal{Role: models.RoleUser, ID: uuid.New()}
	a, b := NewClient(p), NewClient(p)
	for _, c := range []*Client{a, b} {
		h.Register(c)
		h.Join(c, RoomOf(p))
	}

	h.Unregister(a)
	online, err := h.IsOnline(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, online)

	h.Unregister(b)
	online, err = h.IsOnline(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, online)

	// a second removal is a no-op
	h.Unregister(b)
}
