// Package events streams status changes to Kafka so downstream consumers
// (dashboards, archives) see the same transitions the notifications report.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Status values carried on StatusEvent.
const (
	StatusDied    = "died"
	StatusUpdated = "updated"
)

// StatusEvent is one observed change to a tracked person.
type StatusEvent struct {
	RunID      string    `json:"run_id"`
	PersonID   string    `json:"person_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Age        *int      `json:"age,omitempty"`
	DeathDate  string    `json:"death_date,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits status events. The engine treats it as optional and
// best-effort.
type Publisher interface {
	Publish(ctx context.Context, event StatusEvent) error
}

// KafkaPublisher produces JSON status events, keyed by person ID so each
// person's history lands in one partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PersonID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce status event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
