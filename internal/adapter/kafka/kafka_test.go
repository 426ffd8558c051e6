package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/biosim-client/internal/domain"
	"github.com/couchcryptid/biosim-client/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	calls  int
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func degreeDays(t *testing.T, dd float64) *domain.Dataset {
	t.Helper()
	ds := domain.NewDataset([]string{"Year", "DD"})
	require.NoError(t, ds.AddRecord(domain.Record{domain.Int(2000), domain.Real(dd)}))
	ds.Finalize()
	return ds
}

func testWriter(fw *fakeWriter, now time.Time) (*Writer, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return newWriter(fw, clockwork.NewFakeClockAt(now), metrics, slog.New(slog.NewTextHandler(io.Discard, nil))), metrics
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	r := domain.LocationResult{
		Location: domain.Location{LatitudeDeg: 46.8, LongitudeDeg: -71.2, ElevationM: 120},
		Data:     degreeDays(t, 1432.5),
	}

	msg, err := serializeToMessage("model", "DegreeDay_Annual", r, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("46.8_-71.2_120"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("model"), msg.Headers[0].Value)
	assert.Equal(t, "label", msg.Headers[1].Key)
	assert.Equal(t, []byte("DegreeDay_Annual"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var body struct {
		Kind     string          `json:"kind"`
		Label    string          `json:"label"`
		Location json.RawMessage `json:"location"`
		Data     struct {
			Records [][]any `json:"records"`
		} `json:"data"`
		ProcessedAt time.Time `json:"processed_at"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "model", body.Kind)
	assert.JSONEq(t, `{"lat":46.8,"lon":-71.2,"elev":120}`, string(body.Location))
	require.Len(t, body.Data.Records, 1)
	assert.Equal(t, 1432.5, body.Data.Records[0][1])
	assert.True(t, now.Equal(body.ProcessedAt))
}

func TestSerializeToMessage_NoElevation(t *testing.T) {
	r := domain.LocationResult{Location: domain.NewLocation(45.5, -73.56), Data: degreeDays(t, 10)}

	msg, err := serializeToMessage("normals", "1981_2010", r, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte("45.5_-73.56_NaN"), msg.Key)
	assert.Contains(t, string(msg.Value), `"elev":null`)
}

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w, metrics := testWriter(fw, now)

	results := []domain.LocationResult{
		{Location: domain.NewLocation(46.8, -71.2), Data: degreeDays(t, 1)},
		{Location: domain.NewLocation(45.5, -73.56), Data: degreeDays(t, 2)},
	}
	require.NoError(t, w.Publish(context.Background(), Batch{Kind: "model", Label: "DegreeDay_Annual", Results: results}))

	assert.Equal(t, 1, fw.calls, "one write per batch")
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("46.8_-71.2_NaN"), fw.msgs[0].Key)
	assert.Equal(t, []byte("45.5_-73.56_NaN"), fw.msgs[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), fw.msgs[0].Headers[2].Value)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ResultsPublished))

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestPublish_Empty(t *testing.T) {
	fw := &fakeWriter{}
	w, _ := testWriter(fw, time.Now())

	require.NoError(t, w.Publish(context.Background(), Batch{Kind: "model"}))
	assert.Equal(t, 0, fw.calls)
}

func TestPublish_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	w, metrics := testWriter(fw, time.Now())

	err := w.Publish(context.Background(), Batch{Kind: "normals", Results: []domain.LocationResult{
		{Location: domain.NewLocation(46.8, -71.2), Data: degreeDays(t, 1)},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ResultsPublished))
}
