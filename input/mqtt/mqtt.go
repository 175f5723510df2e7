// Package mqtt provides the MQTT source component. It owns the broker
// session lifecycle, maps each delivered message into a graph change record,
// and hands records to the configured sink. Connection loss is handled by
// tearing the session down and rebuilding it from scratch with backoff; the
// component never gives up on transient faults.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Joshuathomas18/drasi-mqtt-poc/component"
	"github.com/Joshuathomas18/drasi-mqtt-poc/config"
	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
	"github.com/Joshuathomas18/drasi-mqtt-poc/mapper"
	"github.com/Joshuathomas18/drasi-mqtt-poc/metric"
	"github.com/Joshuathomas18/drasi-mqtt-poc/mqttclient"
	"github.com/Joshuathomas18/drasi-mqtt-poc/output/changestream"
	"github.com/Joshuathomas18/drasi-mqtt-poc/pkg/retry"
	"github.com/Joshuathomas18/drasi-mqtt-poc/router"
)

// Input implements the MQTT source: one broker session feeding one sink.
type Input struct {
	name    string
	cfg     config.BrokerConfig
	session Session
	sink    changestream.Ingestor
	mapper  *mapper.Mapper
	logger  *slog.Logger

	backoff *retry.Backoff

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	running   atomic.Bool
	startTime time.Time
	mu        sync.Mutex
	wg        sync.WaitGroup

	state atomic.Int32 // stores mqttclient.SessionState

	// Counters
	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	recordsEmitted   atomic.Int64
	decodeFailures   atomic.Int64
	emitFailures     atomic.Int64
	faults           atomic.Int64
	lastActivity     atomic.Value // stores time.Time
	lastError        atomic.Value // stores string

	// Prometheus metrics
	metrics *Metrics
}

var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// InputDeps holds runtime dependencies for the MQTT source component
type InputDeps struct {
	Name            string
	Config          config.BrokerConfig
	Labels          router.Table // optional per-pattern label overrides
	Session         Session      // optional, a real client is built from Config when nil
	Sink            changestream.Ingestor
	Backoff         *retry.Config // optional, Broker preset when nil
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// NewInput creates the MQTT source component.
func NewInput(deps InputDeps) *Input {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "mqtt-source")
	}

	session := deps.Session
	if session == nil {
		opts := []mqttclient.Option{
			mqttclient.WithKeepAlive(deps.Config.KeepAlive),
			mqttclient.WithConnectTimeout(deps.Config.ConnectTimeout),
			mqttclient.WithClientIDPrefix(deps.Config.ClientIDPrefix),
			mqttclient.WithLogger(logger),
		}
		if deps.Config.Username != "" {
			opts = append(opts, mqttclient.WithCredentials(deps.Config.Username, deps.Config.Password))
		}
		session = mqttclient.New(deps.Config.Host, deps.Config.Port, opts...)
	}

	backoffCfg := retry.Broker()
	if deps.Backoff != nil {
		backoffCfg = *deps.Backoff
	}

	i := &Input{
		name:      deps.Name,
		cfg:       deps.Config,
		session:   session,
		sink:      deps.Sink,
		mapper:    mapper.New(router.New(deps.Labels), deps.Config.TopicPattern),
		logger:    logger,
		backoff:   retry.NewBackoff(backoffCfg),
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
	i.lastActivity.Store(time.Time{})
	i.lastError.Store("")
	i.setState(mqttclient.StateDisconnected)
	return i
}

// Initialize validates the component wiring before Start.
func (i *Input) Initialize() error {
	if err := mqttclient.ValidateFilter(i.cfg.TopicPattern); err != nil {
		return err
	}
	if i.cfg.QoS > 2 {
		return errors.WrapFatal(
			fmt.Errorf("%w: qos must be 0, 1, or 2", errors.ErrInvalidConfig),
			"mqtt-source", "Initialize", "qos validation")
	}
	if i.sink == nil {
		return errors.WrapFatal(errors.ErrMissingConfig,
			"mqtt-source", "Initialize", "sink required")
	}
	return nil
}

// Start launches the supervisor loop. Idempotent while running.
func (i *Input) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running.Load() {
		return nil
	}

	i.shutdown = make(chan struct{})
	i.done = make(chan struct{})
	i.running.Store(true)
	i.startTime = time.Now()

	// The derived context lets Stop cut short a backoff wait.
	ctx, i.cancel = context.WithCancel(ctx)

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer close(i.done)
		i.supervise(ctx)
	}()

	i.logger.Info("mqtt source started",
		"broker", i.cfg.URL(),
		"topic_pattern", i.cfg.TopicPattern,
		"qos", i.cfg.QoS)

	return nil
}

// Stop signals shutdown and waits up to timeout for the supervisor to exit.
func (i *Input) Stop(timeout time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running.Load() {
		return nil
	}
	i.running.Store(false)

	close(i.shutdown)
	i.cancel()
	i.session.Disconnect(timeout)

	select {
	case <-i.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"mqtt-source", "Stop", "graceful shutdown")
	}

	i.setState(mqttclient.StateDisconnected)
	i.logger.Info("mqtt source stopped")
	return nil
}

// supervise drives the session state machine: connect, subscribe, consume,
// and on fault repeat with backoff. Only a fatal error ends the loop early.
func (i *Input) supervise(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.shutdown:
			return
		default:
		}

		if !i.establish(ctx) {
			return
		}

		if !i.consume(ctx) {
			return
		}
	}
}

// establish runs the connect and subscribe phase, retrying transient faults
// with backoff until it succeeds or the component shuts down. Returns false
// when the loop should exit.
func (i *Input) establish(ctx context.Context) bool {
	for {
		i.setState(mqttclient.StateConnecting)

		err := i.session.Connect(ctx)
		if err == nil {
			err = i.session.Subscribe(i.cfg.TopicPattern, i.cfg.QoS)
			if err == nil {
				i.setState(mqttclient.StateSubscribed)
				i.backoff.Reset()
				if i.metrics != nil {
					i.metrics.reconnects.Inc()
				}
				i.logger.Info("subscribed to broker",
					"broker", i.cfg.URL(),
					"topic_pattern", i.cfg.TopicPattern)
				return true
			}
		}

		if errors.IsFatal(err) {
			i.recordFault(err)
			i.logger.Error("unrecoverable session fault, supervisor exiting", "error", err)
			return false
		}

		i.recordFault(err)
		i.setState(mqttclient.StateFaulted)
		i.logger.Warn("session establishment failed, backing off",
			"error", err,
			"next_delay", i.backoff.Delay())

		if waitErr := i.backoff.Wait(ctx); waitErr != nil {
			return false
		}
		select {
		case <-i.shutdown:
			return false
		default:
		}
	}
}

// consume drains events from the live session until a fault or shutdown.
// Returns true when the supervisor should rebuild the session.
func (i *Input) consume(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-i.shutdown:
			return false
		case err := <-i.session.Errors():
			i.recordFault(err)
			i.setState(mqttclient.StateFaulted)
			i.logger.Warn("broker session fault, reconnecting",
				"error", err,
				"next_delay", i.backoff.Delay())
			if waitErr := i.backoff.Wait(ctx); waitErr != nil {
				return false
			}
			return true
		case ev := <-i.session.Events():
			i.handleEvent(ctx, ev)
		}
	}
}

// handleEvent processes a single broker event. Message events flow through
// the mapper into the sink; everything else is connection bookkeeping.
func (i *Input) handleEvent(ctx context.Context, ev mqttclient.Event) {
	switch e := ev.(type) {
	case mqttclient.MessageEvent:
		i.handleMessage(ctx, e)
	case mqttclient.ConnAckEvent:
		i.logger.Info("broker acknowledged connection", "session_present", e.SessionPresent)
	default:
		// Unrelated broker chatter carries no data to ingest.
	}
}

func (i *Input) handleMessage(ctx context.Context, msg mqttclient.MessageEvent) {
	i.messagesReceived.Add(1)
	i.bytesReceived.Add(int64(len(msg.Payload)))
	now := time.Now()
	i.lastActivity.Store(now)
	if i.metrics != nil {
		i.metrics.messagesReceived.Inc()
		i.metrics.bytesReceived.Add(float64(len(msg.Payload)))
		i.metrics.lastActivity.Set(float64(now.Unix()))
	}

	record, err := i.mapper.Map(msg.Topic, msg.Payload)
	if err != nil {
		// A malformed payload is the publisher's fault, not ours. Skip it
		// and keep the session alive.
		i.decodeFailures.Add(1)
		if i.metrics != nil {
			i.metrics.decodeFailures.Inc()
		}
		i.logger.Warn("skipping undecodable payload", "topic", msg.Topic, "error", err)
		return
	}

	start := time.Now()
	if err := i.sink.Ingest(ctx, record); err != nil {
		i.emitFailures.Add(1)
		i.lastError.Store(err.Error())
		if i.metrics != nil {
			i.metrics.emitFailures.Inc()
		}
		i.logger.Error("failed to emit change record",
			"topic", msg.Topic,
			"id", record.ID,
			"error", err)
		return
	}

	i.recordsEmitted.Add(1)
	if i.metrics != nil {
		i.metrics.recordsEmitted.Inc()
		i.metrics.emitLatency.Observe(time.Since(start).Seconds())
	}
}

func (i *Input) recordFault(err error) {
	i.faults.Add(1)
	if err != nil {
		i.lastError.Store(err.Error())
	}
	if i.metrics != nil {
		i.metrics.transportFaults.Inc()
	}
}

func (i *Input) setState(s mqttclient.SessionState) {
	i.state.Store(int32(s))
	if i.metrics != nil {
		i.metrics.sessionState.Set(float64(s))
	}
}

// State reports the supervisor's view of the broker session.
func (i *Input) State() mqttclient.SessionState {
	return mqttclient.SessionState(i.state.Load())
}

// Meta returns the component metadata
func (i *Input) Meta() component.Metadata {
	name := i.name
	if name == "" {
		name = "mqtt-source"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("MQTT source subscribed to %s on %s", i.cfg.TopicPattern, i.cfg.URL()),
		Version:     "0.1.0",
	}
}

// Health returns the current health status of the component
func (i *Input) Health() component.HealthStatus {
	lastError, _ := i.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    i.running.Load() && i.State() == mqttclient.StateSubscribed,
		LastCheck:  time.Now(),
		ErrorCount: int(i.faults.Load() + i.decodeFailures.Load() + i.emitFailures.Load()),
		LastError:  lastError,
		Uptime:     time.Since(i.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (i *Input) DataFlow() component.FlowMetrics {
	messages := i.messagesReceived.Load()
	bytes := i.bytesReceived.Load()
	failures := i.decodeFailures.Load() + i.emitFailures.Load()
	lastActivity, _ := i.lastActivity.Load().(time.Time)

	var messagesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(i.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(messages) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if messages > 0 {
		errorRate = float64(failures) / float64(messages)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}
