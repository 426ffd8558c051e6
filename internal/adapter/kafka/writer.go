// Package kafka publishes climate results to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/biosim-client/internal/config"
	"github.com/couchcryptid/biosim-client/internal/domain"
	"github.com/couchcryptid/biosim-client/internal/observability"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Batch is a set of results produced by one request.
type Batch struct {
	// Kind is the request type, e.g. "normals" or "model".
	Kind string
	// Label names what produced the data: a model name or a normals period.
	Label   string
	Results []domain.LocationResult
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per location result to the sink topic.
type Writer struct {
	writer  messageWriter
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, clock, metrics, logger)
}

func newWriter(w messageWriter, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	return &Writer{writer: w, clock: clock, metrics: metrics, logger: logger}
}

// Publish writes every result of b in a single WriteMessages call. Messages are keyed
// by location so results for the same place land on the same partition.
func (w *Writer) Publish(ctx context.Context, b Batch) error {
	if len(b.Results) == 0 {
		return nil
	}
	now := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(b.Results))
	for i := range b.Results {
		msg, err := serializeToMessage(b.Kind, b.Label, b.Results[i], now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s results: %w", b.Kind, err)
	}
	w.metrics.ResultsPublished.Add(float64(len(msgs)))
	w.logger.Debug("results published", "kind", b.Kind, "label", b.Label, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

type resultMessage struct {
	Kind        string          `json:"kind"`
	Label       string          `json:"label"`
	Location    domain.Location `json:"location"`
	Data        *domain.Dataset `json:"data"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// serializeToMessage marshals a location result into a Kafka message.
func serializeToMessage(kind, label string, r domain.LocationResult, processedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(resultMessage{
		Kind:        kind,
		Label:       label,
		Location:    r.Location,
		Data:        r.Data,
		ProcessedAt: processedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result for %s: %w", r.Location, err)
	}
	return kafkago.Message{
		Key:   []byte(r.Location.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "label", Value: []byte(label)},
			{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))},
		},
	}, nil
}
