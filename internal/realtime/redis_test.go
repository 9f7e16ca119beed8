package realtime

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/models"
)

func TestRelayDeliversAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := NewRedis(mr.Addr(), "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	relay := NewRedisRelay(rdb, zap.NewNop())
	h1, h2 := startHub(t), startHub(t)
	h1.UseRelay(relay)
	h2.UseRelay(relay)
	require.NoError(t, relay.Start(ctx, h1))
	require.NoError(t, relay.Start(ctx, h2))

	c := newTestClient(h2, models.RoleWorker)
	room := RoomOf(c.Principal)
	h2.Join(c, room)

	h1.Emit(room, EventDashboardUpdate, map[string]string{"type": "new_request"})

	env := recv(t, c)
	assert.Equal(t, EventDashboardUpdate, env.Event)
	assertSilent(t, c) // exactly once
}

func TestPresence(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewPresence(NewRedis(mr.Addr(), "", 0))
	ctx := context.Background()
	pr := models.Principal{Role: models.RoleUser, ID: uuid.New()}

	online, err := p.IsOnline(ctx, pr)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, p.Connect(ctx, pr))
	require.NoError(t, p.Connect(ctx, pr))
	require.NoError(t, p.Disconnect(ctx, pr))
	online, _ = p.IsOnline(ctx, pr)
	assert.True(t, online, "one socket still open")

	require.NoError(t, p.Disconnect(ctx, pr))
	online, _ = p.IsOnline(ctx, pr)
	assert.False(t, online)
}

func TestNewRedisDisabled(t *testing.T) {
	assert.Nil(t, NewRedis("", "", 0))
}
