// Package broker publishes canonical events to an AMQP exchange with publisher confirms.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"solanaIndexer/internal/ids"
	"solanaIndexer/internal/jsoncodec"
	"solanaIndexer/internal/model"
)

// Config controls the broker link and per-message retry policy.
type Config struct {
	URL              string
	Topology         Topology
	PublishRetries   int
	RetryBackoff     time.Duration
	ConfirmTimeout   time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	// Dialer defaults to DialAMQP.
	Dialer Dialer
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("broker url is required")
	}
	if c.PublishRetries < 0 {
		return fmt.Errorf("publish retries must be >= 0")
	}
	return c.Topology.Validate()
}

// PublishRecorder receives one call per acknowledged message.
type PublishRecorder interface {
	RecordPublished(at time.Time, latency time.Duration)
}

// FailureSink persists events dropped after their attempts were exhausted.
type FailureSink interface {
	PutFailureBatch(ctx context.Context, failures []model.FailedEvent) error
}

// Publisher owns one broker session. PublishBatch is called by a single goroutine.
type Publisher struct {
	cfg      Config
	dial     Dialer
	stats    PublishRecorder
	failures FailureSink
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time

	mu      sync.Mutex
	session Session
	state   model.ConnectionState

	probe     chan struct{}
	closed    chan struct{}
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPublisher(cfg Config, stats PublishRecorder, failures FailureSink, logger *zap.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Second
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = 500 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = 30 * time.Second
	}
	dial := cfg.Dialer
	if dial == nil {
		dial = DialAMQP
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Publisher{
		cfg:      cfg,
		dial:     dial,
		stats:    stats,
		failures: failures,
		logger:   logger,
		tracer:   otel.Tracer("solana-indexer/broker"),
		now:      time.Now,
		probe:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	p.state = model.ConnectionState{Phase: model.PhaseDisconnected, Since: p.now().UTC()}
	return p, nil
}

// Connect dials the broker and declares the topology. Failure is returned to the
// caller and is not retried here. After a successful connect, lost sessions are
// re-established in the background.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.closed:
		return fmt.Errorf("publisher closed: %w", ErrConnection)
	default:
	}

	p.setState(model.PhaseConnecting, nil)
	session, err := p.open(ctx)
	if err != nil {
		p.setState(model.PhaseDisconnected, err)
		return err
	}
	p.install(session)

	p.logger.Info("broker connected",
		zap.String("exchange", p.cfg.Topology.Exchange),
		zap.String("queue", p.cfg.Topology.Queue),
		zap.String("routing_key", p.cfg.Topology.RoutingKey),
	)

	p.startOnce.Do(func() {
		superviseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.cancel = cancel
		p.wg.Add(1)
		go p.supervise(superviseCtx)
	})
	return nil
}

func (p *Publisher) open(ctx context.Context) (Session, error) {
	session, err := p.dial(ctx, p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w: %w", ErrConnection, err)
	}
	if err := session.Declare(p.cfg.Topology); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("declare topology: %w: %w", ErrConnection, err)
	}
	return session, nil
}

func (p *Publisher) install(session Session) {
	p.mu.Lock()
	old := p.session
	p.session = session
	p.state = model.ConnectionState{Phase: model.PhaseConnected, Since: p.now().UTC()}
	p.mu.Unlock()

	if old != nil && old != session {
		_ = old.Close()
	}
}

// HealthCheck returns the last known connection state without network I/O.
func (p *Publisher) HealthCheck() model.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PublishBatch publishes every event in order and accounts for each one.
// Per-message failures are reported in the summary, never returned.
func (p *Publisher) PublishBatch(ctx context.Context, batch model.Batch) model.BatchSummary {
	ctx, span := p.tracer.Start(ctx, "PublishBatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.size", batch.Len()),
		attribute.String("batch.flush_reason", string(batch.Reason)),
	)

	handoff := batch.FlushedAt
	if handoff.IsZero() {
		handoff = p.now()
	}

	summary := model.BatchSummary{Outcomes: make([]model.PublishOutcome, 0, batch.Len())}
	var failures []model.FailedEvent
	connFailures := 0

	for _, event := range batch.Events {
		outcome := p.publishOne(ctx, event, handoff)
		summary.Outcomes = append(summary.Outcomes, outcome)

		if outcome.Acked {
			summary.Published++
			continue
		}

		summary.Failed++
		if errors.Is(outcome.Err, ErrConnection) {
			connFailures++
		}
		p.logger.Warn("event dropped after publish failure",
			zap.String("signature", outcome.Signature),
			zap.String("message_id", outcome.MessageID),
			zap.String("reason", outcome.Reason),
			zap.Int("attempts", outcome.Attempts),
			zap.Error(outcome.Err),
		)
		failures = append(failures, model.FailedEvent{
			Event:     event,
			MessageID: outcome.MessageID,
			Reason:    outcome.Reason,
			Error:     outcome.Err.Error(),
			Attempts:  outcome.Attempts,
			FailedAt:  p.now().UTC(),
		})
	}

	if batch.Len() > 0 && connFailures == batch.Len() {
		summary.ConnErr = fmt.Errorf("publish batch of %d: %w", batch.Len(), ErrConnection)
	}

	if len(failures) > 0 && p.failures != nil {
		if err := p.failures.PutFailureBatch(ctx, failures); err != nil {
			p.logger.Error("persist publish failures", zap.Int("count", len(failures)), zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("batch.published", summary.Published),
		attribute.Int("batch.failed", summary.Failed),
	)
	if summary.ConnErr != nil {
		span.RecordError(summary.ConnErr)
		span.SetStatus(codes.Error, "broker unavailable")
	}
	return summary
}

func (p *Publisher) publishOne(ctx context.Context, event model.CanonicalEvent, handoff time.Time) model.PublishOutcome {
	outcome := model.PublishOutcome{
		Signature: event.Signature(),
		MessageID: event.MessageID,
	}
	if outcome.MessageID == "" {
		outcome.MessageID = ids.NewMessageID()
	}

	body, err := jsoncodec.Marshal(event)
	if err != nil {
		outcome.Err = fmt.Errorf("%w: %w", ErrSerialization, err)
		outcome.Reason = failureReason(outcome.Err)
		return outcome
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    outcome.MessageID,
		Timestamp:    p.now().UTC(),
		Type:         event.EventType,
		Headers: amqp091.Table{
			"signature": outcome.Signature,
			"chain":     event.Chain,
			"dex":       event.Dex,
		},
		Body: body,
	}

	err = withRetry(ctx, p.cfg.PublishRetries, p.cfg.RetryBackoff, isRetryable, func(ctx context.Context) error {
		outcome.Attempts++
		return p.attempt(ctx, msg)
	})
	if err != nil {
		outcome.Err = err
		outcome.Reason = failureReason(err)
		return outcome
	}

	ackAt := p.now()
	outcome.Acked = true
	p.markHealthy()
	if p.stats != nil {
		p.stats.RecordPublished(ackAt, ackAt.Sub(handoff))
	}
	return outcome
}

func (p *Publisher) attempt(ctx context.Context, msg amqp091.Publishing) error {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()

	if session == nil || session.IsClosed() {
		p.requestProbe()
		return fmt.Errorf("no open session: %w", ErrConnection)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	acked, err := session.PublishConfirmed(attemptCtx, p.cfg.Topology.Exchange, p.cfg.Topology.RoutingKey, msg)
	if err != nil {
		p.markDegraded(err)
		return fmt.Errorf("publish: %w", err)
	}
	if !acked {
		return ErrPublishRejected
	}
	return nil
}

func isRetryable(err error) bool {
	return !errors.Is(err, ErrConnection) && !errors.Is(err, ErrSerialization)
}

func (p *Publisher) markDegraded(cause error) {
	p.mu.Lock()
	if p.state.Phase == model.PhaseConnected {
		p.state = model.ConnectionState{Phase: model.PhaseDegraded, LastError: cause.Error(), Since: p.now().UTC()}
	}
	p.mu.Unlock()
	p.requestProbe()
}

func (p *Publisher) markHealthy() {
	p.mu.Lock()
	if p.state.Phase == model.PhaseDegraded {
		p.state = model.ConnectionState{Phase: model.PhaseConnected, Since: p.now().UTC()}
	}
	p.mu.Unlock()
}

func (p *Publisher) setState(phase model.ConnectionPhase, cause error) {
	state := model.ConnectionState{Phase: phase, Since: p.now().UTC()}
	if cause != nil {
		state.LastError = cause.Error()
	}
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *Publisher) requestProbe() {
	select {
	case p.probe <- struct{}{}:
	default:
	}
}

// Close stops the reconnect loop and closes the session. It must be called after
// the last PublishBatch has returned.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()

		p.mu.Lock()
		session := p.session
		p.session = nil
		p.state = model.ConnectionState{Phase: model.PhaseDisconnected, Since: p.now().UTC()}
		p.mu.Unlock()

		if session != nil {
			err = session.Close()
		}
		p.logger.Info("broker connection closed")
	})
	return err
}
