package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/testutil"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestSendPersistsAndEmits(t *testing.T) {
	gdb := testutil.NewDB(t)
	hub := &testutil.RecordingEmitter{}
	svc := NewNotifyService(gdb, hub, nil, testutil.Logger())
	u := testutil.CreateUser(t, gdb, "asha", "Kochi")
	to := models.Principal{Role: models.RoleUser, ID: u.ID}

	n, err := svc.Send(context.Background(), to, "hello", models.NotifyMessage, nil)
	require.NoError(t, err)
	assert.Equal(t, u.ID, *n.UserID)
	assert.Nil(t, n.WorkerID)

	assert.Equal(t, []string{realtime.EventNotification}, hub.To(realtime.UserRoom(u.ID)))

	var stored models.Notification
	require.NoError(t, gdb.First(&stored, "id = ?", n.ID).Error)
	assert.False(t, stored.IsRead)
}

func TestPushMailsSelectedTypes(t *testing.T) {
	gdb := testutil.NewDB(t)
	m := &recordingMailer{}
	svc := NewNotifyService(gdb, &testutil.RecordingEmitter{}, m, testutil.Logger())
	w := testutil.CreateWorker(t, gdb, "ravi", "Kochi", "Plumber")
	to := models.Principal{Role: models.RoleWorker, ID: w.ID}

	_, err := svc.Send(context.Background(), to, "new job", models.NotifyNewJob, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.sent[0], w.Email)

	_, err = svc.Send(context.Background(), to, "chat", models.NotifyMessage, nil)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.count(), "messages are not mailed")
}
