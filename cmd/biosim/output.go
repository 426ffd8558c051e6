package main

import (
	"context"
	"encoding/json"
	"io"

	kafkaadapter "github.com/couchcryptid/biosim-client/internal/adapter/kafka"
	"github.com/couchcryptid/biosim-client/internal/domain"
)

// sink receives the results of a command.
type sink interface {
	Publish(ctx context.Context, b kafkaadapter.Batch) error
	Close() error
}

// jsonSink prints one JSON object per location result.
type jsonSink struct {
	enc *json.Encoder
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(w)}
}

type jsonLine struct {
	Kind     string          `json:"kind"`
	Label    string          `json:"label"`
	Location domain.Location `json:"location"`
	Data     *domain.Dataset `json:"data"`
}

func (s *jsonSink) Publish(_ context.Context, b kafkaadapter.Batch) error {
	for _, r := range b.Results {
		if err := s.enc.Encode(jsonLine{Kind: b.Kind, Label: b.Label, Location: r.Location, Data: r.Data}); err != nil {
			return err
		}
	}
	return nil
}

func (s *jsonSink) Close() error { return nil }
