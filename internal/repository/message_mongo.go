package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skilllink/skilllink-api/internal/models"
)

const MessagesCollection = "messages"

type mongoMessageRepo struct {
	col *mongo.Collection
}

func NewMongoMessageRepository(col *mongo.Collection) MessageRepository {
	return &mongoMessageRepo{col: col}
}

// EnsureMessageIndexes creates the indexes the message queries rely on.
func EnsureMessageIndexes(ctx context.Context, col *mongo.Collection) error {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "service_request_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver.role", Value: 1}, {Key: "receiver.id", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *models.Message) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if m.ID == "" {
		// ObjectIDs grow monotonically and break created_at ties
		m.ID = primitive.NewObjectID().Hex()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *mongoMessageRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"service_request_id": requestID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoMessageRepo) Last(ctx context.Context, requestID string) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var m models.Message
	err := r.col.FindOne(ctx, bson.M{"service_request_id": requestID}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) MarkRead(ctx context.Context, requestID string, receiver models.Party, at time.Time) (int64, error) {
	filter := unreadFilter(requestID, receiver)
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"status":     models.MessageRead,
		"read_at":    at.UTC(),
		"updated_at": at.UTC(),
	}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessageRepo) CountUnread(ctx context.Context, requestID string, receiver models.Party) (int64, error) {
	return r.col.CountDocuments(ctx, unreadFilter(requestID, receiver))
}

func unreadFilter(requestID string, receiver models.Party) bson.M {
	f := bson.M{
		"receiver.role": receiver.Role,
		"receiver.id":   receiver.ID,
		"status":        bson.M{"$ne": models.MessageRead},
	}
	if requestID != "" {
		f["service_request_id"] = requestID
	}
	return f
}
