package changestream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
	"github.com/Joshuathomas18/drasi-mqtt-poc/graph"
	"github.com/Joshuathomas18/drasi-mqtt-poc/pkg/retry"
)

// ChangeStreamClient is the subset of the NATS client the publisher uses.
type ChangeStreamClient interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishToStream(ctx context.Context, subject string, data []byte) error
	IsHealthy() bool
	Close(ctx context.Context) error
}

// Publisher emits change records onto a NATS subject. With Durable set it
// publishes through JetStream and waits for the server acknowledgement, so a
// record is only counted as ingested once the stream has stored it.
type Publisher struct {
	client  ChangeStreamClient
	subject string
	durable bool
	retry   retry.Config
	logger  *slog.Logger

	ingested atomic.Int64
	failed   atomic.Int64
	bytes    atomic.Int64

	mu           sync.Mutex
	lastActivity time.Time
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Subject string
	Durable bool
	Retry   *retry.Config
}

// NewPublisher creates a publisher for the given subject.
func NewPublisher(client ChangeStreamClient, cfg PublisherConfig, logger *slog.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig,
			"changestream", "NewPublisher", "client required")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"changestream", "NewPublisher", "subject required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	retryCfg := retry.Quick()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	return &Publisher{
		client:  client,
		subject: cfg.Subject,
		durable: cfg.Durable,
		retry:   retryCfg,
		logger:  logger,
	}, nil
}

// Subject returns the subject records are published to.
func (p *Publisher) Subject() string {
	return p.subject
}

// Ingest encodes and publishes one change record, retrying transient
// transport errors. Invalid records fail immediately without a publish.
func (p *Publisher) Ingest(ctx context.Context, record graph.ChangeRecord) error {
	if err := record.Validate(); err != nil {
		p.failed.Add(1)
		return errors.WrapInvalid(err, "changestream", "Ingest", "validate record")
	}

	data, err := record.Encode()
	if err != nil {
		p.failed.Add(1)
		return errors.WrapInvalid(err, "changestream", "Ingest", "encode record")
	}

	err = retry.Do(ctx, p.retry, func() error {
		if p.durable {
			return p.client.PublishToStream(ctx, p.subject, data)
		}
		return p.client.Publish(ctx, p.subject, data)
	})
	if err != nil {
		p.failed.Add(1)
		return errors.WrapTransient(err, "changestream", "Ingest",
			fmt.Sprintf("publish record %q", record.ID))
	}

	p.ingested.Add(1)
	p.bytes.Add(int64(len(data)))
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()

	p.logger.Debug("change record published",
		"subject", p.subject,
		"id", record.ID,
		"bytes", len(data),
		"durable", p.durable)
	return nil
}

// Close closes the underlying client connection.
func (p *Publisher) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

// Healthy reports whether the downstream connection is live.
func (p *Publisher) Healthy() bool {
	return p.client.IsHealthy()
}

// Stats returns ingestion counters and the time of the last successful
// publish.
func (p *Publisher) Stats() (ingested, failed, bytes int64, lastActivity time.Time) {
	p.mu.Lock()
	lastActivity = p.lastActivity
	p.mu.Unlock()
	return p.ingested.Load(), p.failed.Load(), p.bytes.Load(), lastActivity
}
