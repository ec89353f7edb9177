package kafka

import (
	"context"
	"log/slog"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/events"
)

// Mirror forwards bus envelopes to a Kafka topic.
type Mirror struct {
	bus       *events.Bus
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

func NewMirror(bus *events.Bus, publisher Publisher, topic string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{bus: bus, publisher: publisher, topic: topic, logger: logger}
}

// Run blocks until ctx is done. Publish failures are logged and skipped.
func (m *Mirror) Run(ctx context.Context, topics ...events.Event) error {
	if len(topics) == 0 {
		topics = events.RouterEvents
	}
	ch, unsubscribe := m.bus.Subscribe(256, topics...)
	defer unsubscribe()

	m.logger.Info("kafka mirror started", "topic", m.topic, "events", len(topics))
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			key := env.Key
			if key == "" {
				key = string(env.Type)
			}
			if _, _, err := m.publisher.PublishJSON(ctx, m.topic, key, env); err != nil {
				m.logger.Warn("mirror publish failed", "event", env.Type, "key", key, "error", err)
			}
		}
	}
}
