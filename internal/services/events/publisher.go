package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Event types published on the requests topic.
const (
	RequestCreated   = "request.created"
	RequestAccepted  = "request.accepted"
	RequestRejected  = "request.rejected"
	RequestCompleted = "request.completed"
	RequestCancelled = "request.cancelled"
	ReviewAdded      = "review.added"

	JobPosted    = "job.posted"
	JobAccepted  = "job.accepted"
	JobCompleted = "job.completed"
	JobCancelled = "job.cancelled"
)

type Event struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	ServiceID string    `json:"service_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	WorkerID  string    `json:"worker_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Rating    int       `json:"rating,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, ev Event) error
	Close() error
}

// New returns a Kafka publisher, or a no-op one when no brokers are configured.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// batchTimeout bounds how long a synchronous publish waits for its batch to
// fill; kafka-go's default of one second would stall every request.
const batchTimeout = 10 * time.Millisecond

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: batchTimeout,
		Async:        false,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: b,
		Time:  ev.At,
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
func (Nop) Close() error                                { return nil }
