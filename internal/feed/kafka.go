package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"auctionhouse/internal/domain"
)

// KafkaSink publishes market events to a Kafka topic, keyed by market id
// so each market's events stay ordered within a partition.
type KafkaSink struct {
	writer  *kafka.Writer
	timeout time.Duration
	logger  *slog.Logger
}

// NewKafkaSink creates a sink writing to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string, timeout time.Duration, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			BatchTimeout: 10 * time.Millisecond,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Publish marshals the event and hands it to the async writer. Publish
// failures are logged, never propagated: the engine must not block on the
// reporting path.
func (s *KafkaSink) Publish(ev domain.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal event", slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.MarketID),
		Value: value,
	})
	if err != nil {
		s.logger.Error("publish event",
			slog.String("market_id", ev.MarketID),
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Fanout publishes each event to every sink in order.
type Fanout []interface{ Publish(domain.Event) }

func (f Fanout) Publish(ev domain.Event) {
	for _, sink := range f {
		sink.Publish(ev)
	}
}

// LogSink writes every event to the structured log at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ev domain.Event) {
	s.Logger.Debug("market event",
		slog.String("market_id", ev.MarketID),
		slog.String("type", string(ev.Type)),
	)
}
