package broker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"solanaIndexer/internal/model"
)

// supervise watches the current session and re-establishes it with exponential
// backoff once it is lost. The state stays degraded until a reconnect succeeds.
func (p *Publisher) supervise(ctx context.Context) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		session := p.session
		p.mu.Unlock()

		var lost <-chan error
		if session != nil {
			lost = session.NotifyClose()
		}

		select {
		case <-p.closed:
			return
		case cause, ok := <-lost:
			if !ok || cause == nil {
				cause = errors.New("session closed")
			}
			p.logger.Error("broker session lost", zap.Error(cause))
			p.detach(session, cause)
		case <-p.probe:
		}

		p.mu.Lock()
		current := p.session
		p.mu.Unlock()
		if current != nil && !current.IsClosed() {
			continue
		}
		if current != nil {
			p.detach(current, errors.New("session closed"))
		}
		p.reconnect(ctx)
	}
}

func (p *Publisher) detach(session Session, cause error) {
	p.mu.Lock()
	if p.session == session {
		p.session = nil
		p.state = model.ConnectionState{Phase: model.PhaseDegraded, LastError: cause.Error(), Since: p.now().UTC()}
	}
	p.mu.Unlock()
	_ = session.Close()
}

func (p *Publisher) reconnect(ctx context.Context) {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = p.cfg.ReconnectInitial
	schedule.MaxInterval = p.cfg.ReconnectMax
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0.2
	schedule.Reset()

	for attempt := 1; ; attempt++ {
		session, err := p.open(ctx)
		if err == nil {
			p.install(session)
			p.logger.Info("broker reconnected", zap.Int("attempts", attempt))
			return
		}

		delay := schedule.NextBackOff()
		p.mu.Lock()
		p.state = model.ConnectionState{Phase: model.PhaseDegraded, LastError: err.Error(), Since: p.state.Since}
		p.mu.Unlock()
		p.logger.Error("broker reconnect failed",
			zap.Int("attempts", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-p.closed:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
