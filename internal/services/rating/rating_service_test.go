package rating

import (
	"context"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/testutil"
)

func TestAddKeepsMeanAndCount(t *testing.T) {
	gdb := testutil.NewDB(t)
	hub := &testutil.RecordingEmitter{}
	svc := NewRatingService(gdb, notify.NewNotifyService(gdb, hub, nil, testutil.Logger()), nil, testutil.Logger())
	u := testutil.CreateUser(t, gdb, "asha", "Kochi")
	w := testutil.CreateWorker(t, gdb, "ravi", "Kochi", "Electrician")
	ctx := context.Background()

	ratings := []int{5, 4, 4}
	for _, r := range ratings {
		_, err := svc.Add(ctx, u.ID, AddInput{WorkerID: w.ID, Rating: r, Comment: "ok"})
		require.NoError(t, err)
	}

	var got models.Worker
	require.NoError(t, gdb.First(&got, "id = ?", w.ID).Error)
	assert.Equal(t, 3, got.ReviewsCount)
	assert.Equal(t, 13, got.RatingSum)
	assert.Equal(t, 4.3, got.RatingAverage)

	var n models.Notification
	require.NoError(t, gdb.Order("created_at DESC").First(&n, "worker_id = ?", w.ID).Error)
	assert.Equal(t, models.NotifyNewReview, n.Type)
	assert.Equal(t, "You received a new 4-star review", n.Message)
	assert.Contains(t, hub.To(realtime.WorkerRoom(w.ID)), realtime.EventNotification)

	reviews, err := svc.ListForWorker(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	require.NotNil(t, reviews[0].User)
	assert.Equal(t, "asha", reviews[0].User.Name)
}

func TestAddValidation(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewRatingService(gdb, notify.NewNotifyService(gdb, &testutil.RecordingEmitter{}, nil, testutil.Logger()), nil, testutil.Logger())
	u := testutil.CreateUser(t, gdb, "asha", "Kochi")
	w := testutil.CreateWorker(t, gdb, "ravi", "Kochi", "Electrician")
	ctx := context.Background()

	for _, r := range []int{0, 6} {
		_, err := svc.Add(ctx, u.ID, AddInput{WorkerID: w.ID, Rating: r})
		assert.Error(t, err)
	}

	long := make([]rune, 501)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.Add(ctx, u.ID, AddInput{WorkerID: w.ID, Rating: 3, Comment: string(long)})
	assert.Error(t, err)

	_, err = svc.Add(ctx, u.ID, AddInput{WorkerID: uuid.New(), Rating: 3})
	var fe *fiber.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, fiber.StatusNotFound, fe.Code)

	var count int64
	require.NoError(t, gdb.Model(&models.Review{}).Count(&count).Error)
	assert.Zero(t, count, "failed adds leave no review behind")
}

func TestRecompute(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewRatingService(gdb, notify.NewNotifyService(gdb, &testutil.RecordingEmitter{}, nil, testutil.Logger()), nil, testutil.Logger())
	u := testutil.CreateUser(t, gdb, "asha", "Kochi")
	w := testutil.CreateWorker(t, gdb, "ravi", "Kochi", "Tutor")

	for _, r := range []int{2, 3} {
		require.NoError(t, gdb.Create(&models.Review{UserID: u.ID, WorkerID: w.ID, Rating: r}).Error)
	}
	require.NoError(t, svc.Recompute(context.Background(), w.ID))

	var got models.Worker
	require.NoError(t, gdb.First(&got, "id = ?", w.ID).Error)
	assert.Equal(t, 2, got.ReviewsCount)
	assert.Equal(t, 2.5, got.RatingAverage)
}
