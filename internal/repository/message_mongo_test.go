package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/skilllink/skilllink-api/internal/models"
)

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	reqID := uuid.NewString()
	worker := models.Party{Role: models.RoleWorker, ID: uuid.NewString()}
	user := models.Party{Role: models.RoleUser, ID: uuid.NewString()}

	mt.Run("insert assigns id and timestamps", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewMongoMessageRepository(mt.Coll)

		m := &models.Message{ServiceRequestID: reqID, Sender: user, Receiver: worker, Content: "hi"}
		require.NoError(mt, repo.Insert(context.Background(), m))
		assert.Len(mt, m.ID, 24)
		assert.False(mt, m.CreatedAt.IsZero())
	})

	mt.Run("list decodes in order", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "a"},
				{Key: "service_request_id", Value: reqID},
				{Key: "sender", Value: bson.D{{Key: "role", Value: "user"}, {Key: "id", Value: user.ID}}},
				{Key: "content", Value: "first"},
				{Key: "status", Value: "sent"},
			},
			bson.D{
				{Key: "_id", Value: "b"},
				{Key: "service_request_id", Value: reqID},
				{Key: "sender", Value: bson.D{{Key: "role", Value: "worker"}, {Key: "id", Value: worker.ID}}},
				{Key: "content", Value: "second"},
				{Key: "status", Value: "read"},
			},
		))
		repo := NewMongoMessageRepository(mt.Coll)

		msgs, err := repo.ListByRequest(context.Background(), reqID)
		require.NoError(mt, err)
		require.Len(mt, msgs, 2)
		assert.Equal(mt, "first", msgs[0].Content)
		assert.Equal(mt, models.RoleWorker, msgs[1].Sender.Role)
		assert.Equal(mt, models.MessageRead, msgs[1].Status)
	})

	mt.Run("last with no documents", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewMongoMessageRepository(mt.Coll)

		m, err := repo.Last(context.Background(), reqID)
		require.NoError(mt, err)
		assert.Nil(mt, m)
	})

	mt.Run("mark read reports modified count", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 2}, {Key: "nModified", Value: 2}})
		repo := NewMongoMessageRepository(mt.Coll)

		n, err := repo.MarkRead(context.Background(), reqID, worker, time.Now())
		require.NoError(mt, err)
		assert.EqualValues(mt, 2, n)
	})

	mt.Run("count unread", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))
		repo := NewMongoMessageRepository(mt.Coll)

		n, err := repo.CountUnread(context.Background(), "", worker)
		require.NoError(mt, err)
		assert.EqualValues(mt, 3, n)
	})
}

func TestUnreadFilter(t *testing.T) {
	w := models.Party{Role: models.RoleWorker, ID: "w1"}
	f := unreadFilter("", w)
	_, scoped := f["service_request_id"]
	assert.False(t, scoped)

	f = unreadFilter("r1", w)
	assert.Equal(t, "r1", f["service_request_id"])
	assert.Equal(t, bson.M{"$ne": models.MessageRead}, f["status"])
}
