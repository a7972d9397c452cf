// Package events publishes post-detected events to Kafka for downstream
// consumers. Publishing is optional and best-effort: failures are logged and
// never affect notification dispatch.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"bsky-notifier/internal/domain"
)

// PostDetectedEvent is the wire format published per dispatched post.
type PostDetectedEvent struct {
	EventID    string    `json:"eventId"`
	AccountDID string    `json:"accountDid"`
	PostURI    string    `json:"postUri"`
	Title      string    `json:"title"`
	WebURL     string    `json:"webUrl"`
	IndexedAt  time.Time `json:"indexedAt"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Publisher wraps the franz-go Kafka client as a produce-only sink.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New creates a Publisher against the given brokers and topic.
func New(brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic}, nil
}

// PostDetected publishes one event, keyed by account did so per-account
// ordering is preserved within a partition. Implements notify.EventSink.
func (p *Publisher) PostDetected(ctx context.Context, n *domain.Notification) {
	event := PostDetectedEvent{
		EventID:    uuid.NewString(),
		AccountDID: n.AccountDID,
		PostURI:    n.PostURI,
		Title:      n.Title,
		WebURL:     n.URL,
		IndexedAt:  n.IndexedAt,
		DetectedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal post-detected event")
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(n.AccountDID),
		Value: value,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			log.Error().Err(err).
				Str("topic", p.topic).
				Str("uri", n.PostURI).
				Msg("post-detected event publish failed")
			return
		}
		log.Debug().
			Str("topic", p.topic).
			Str("uri", n.PostURI).
			Msg("post-detected event published")
	})
}

// Close flushes pending records and closes the client.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("kafka flush on close")
	}
	p.client.Close()
}
