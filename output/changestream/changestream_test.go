package changestream

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
	"github.com/Joshuathomas18/drasi-mqtt-poc/graph"
	"github.com/Joshuathomas18/drasi-mqtt-poc/pkg/retry"
)

type fakeClient struct {
	published       [][]byte
	streamPublished [][]byte
	subjects        []string
	failures        int
	healthy         bool
	closed          bool
}

func (f *fakeClient) Publish(_ context.Context, subject string, data []byte) error {
	if f.failures > 0 {
		f.failures--
		return errors.WrapTransient(assert.AnError, "fake", "Publish", "publish")
	}
	f.subjects = append(f.subjects, subject)
	f.published = append(f.published, data)
	return nil
}

func (f *fakeClient) PublishToStream(_ context.Context, subject string, data []byte) error {
	if f.failures > 0 {
		f.failures--
		return errors.WrapTransient(assert.AnError, "fake", "PublishToStream", "publish")
	}
	f.subjects = append(f.subjects, subject)
	f.streamPublished = append(f.streamPublished, data)
	return nil
}

func (f *fakeClient) IsHealthy() bool { return f.healthy }

func (f *fakeClient) Close(_ context.Context) error {
	f.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func sensorRecord(t *testing.T) graph.ChangeRecord {
	t.Helper()
	props := map[string]any{"temperature": json.Number("21.5")}
	return graph.NewChangeRecord("temp-01", []string{"Sensor", "IoTDevice"}, props)
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(nil, PublisherConfig{Subject: "drasi.changes"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	_, err = NewPublisher(&fakeClient{}, PublisherConfig{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestPublisherIngestWireShape(t *testing.T) {
	client := &fakeClient{healthy: true}
	pub, err := NewPublisher(client, PublisherConfig{Subject: "drasi.changes"}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, pub.Ingest(context.Background(), sensorRecord(t)))

	require.Len(t, client.published, 1)
	assert.Equal(t, []string{"drasi.changes"}, client.subjects)

	var wire struct {
		ID         string          `json:"id"`
		Labels     []string        `json:"labels"`
		Properties json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(client.published[0], &wire))
	assert.Equal(t, "temp-01", wire.ID)
	assert.Equal(t, []string{"Sensor", "IoTDevice"}, wire.Labels)
	assert.JSONEq(t, `{"temperature": 21.5}`, string(wire.Properties))

	ingested, failed, bytes, lastActivity := pub.Stats()
	assert.EqualValues(t, 1, ingested)
	assert.EqualValues(t, 0, failed)
	assert.EqualValues(t, len(client.published[0]), bytes)
	assert.False(t, lastActivity.IsZero())
}

func TestPublisherDurableUsesJetStream(t *testing.T) {
	client := &fakeClient{}
	pub, err := NewPublisher(client, PublisherConfig{Subject: "drasi.changes", Durable: true}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, pub.Ingest(context.Background(), sensorRecord(t)))

	assert.Empty(t, client.published)
	assert.Len(t, client.streamPublished, 1)
}

func TestPublisherRetriesTransientFaults(t *testing.T) {
	client := &fakeClient{failures: 2}
	cfg := retry.Quick()
	pub, err := NewPublisher(client, PublisherConfig{Subject: "drasi.changes", Retry: &cfg}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, pub.Ingest(context.Background(), sensorRecord(t)))
	assert.Len(t, client.published, 1)
}

func TestPublisherReportsExhaustedRetries(t *testing.T) {
	client := &fakeClient{failures: 100}
	cfg := retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	pub, err := NewPublisher(client, PublisherConfig{Subject: "drasi.changes", Retry: &cfg}, quietLogger())
	require.NoError(t, err)

	err = pub.Ingest(context.Background(), sensorRecord(t))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	_, failed, _, _ := pub.Stats()
	assert.EqualValues(t, 1, failed)
}

func TestPublisherClose(t *testing.T) {
	client := &fakeClient{}
	pub, err := NewPublisher(client, PublisherConfig{Subject: "drasi.changes"}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, pub.Close(context.Background()))
	assert.True(t, client.closed)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(quietLogger())

	require.NoError(t, sink.Ingest(context.Background(), sensorRecord(t)))
	require.NoError(t, sink.Ingest(context.Background(), sensorRecord(t)))
	require.NoError(t, sink.Close(context.Background()))

	assert.EqualValues(t, 2, sink.Ingested())
}
