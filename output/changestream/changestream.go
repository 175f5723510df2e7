// Package changestream delivers normalized change records to the downstream
// change-processing pipeline. The NATS publisher is the production sink; the
// log sink prints records to the process log for local runs without a
// downstream consumer.
package changestream

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Joshuathomas18/drasi-mqtt-poc/graph"
)

// Ingestor accepts one change record at a time. Implementations must be safe
// for use from a single producing goroutine; Ingest blocks until the record
// is handed off or an error is known.
type Ingestor interface {
	Ingest(ctx context.Context, record graph.ChangeRecord) error
	Close(ctx context.Context) error
}

// LogSink writes each change record to the logger. It is the default sink
// when no downstream transport is configured.
type LogSink struct {
	logger   *slog.Logger
	ingested atomic.Int64
}

// NewLogSink creates a sink that logs records at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Ingest logs the record. It never fails.
func (s *LogSink) Ingest(_ context.Context, record graph.ChangeRecord) error {
	s.ingested.Add(1)
	s.logger.Info("change record",
		"id", record.ID,
		"labels", record.Labels,
		"properties", record.Properties)
	return nil
}

// Close is a no-op for the log sink.
func (s *LogSink) Close(_ context.Context) error {
	return nil
}

// Ingested returns the number of records logged so far.
func (s *LogSink) Ingested() int64 {
	return s.ingested.Load()
}
