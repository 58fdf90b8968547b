package indexer

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solanaIndexer/internal/model"
	"solanaIndexer/internal/queue"
	"solanaIndexer/internal/source"
)

// Producer feeds the queue until its input ends, ctx ends, or the queue closes.
type Producer func(ctx context.Context, q Enqueuer) error

// EventSource streams decoded events to a handler.
type EventSource interface {
	Run(ctx context.Context, handle source.Handler) (source.Result, error)
}

const feedBuffer = 64

// FanOut reads src and hands each event to the producer goroutine of its venue.
// Each venue keeps its own enqueue order. Events for venues outside the list go to a
// fallback producer so the router still accounts for them.
func FanOut(src EventSource, venues []string, newRouter func(Enqueuer) *Router, logger *zap.Logger) Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, q Enqueuer) error {
		router := newRouter(q)
		g, gctx := errgroup.WithContext(ctx)

		feeds := make(map[string]chan model.RawDecodedEvent, len(venues))
		for _, venue := range venues {
			feeds[venue] = make(chan model.RawDecodedEvent, feedBuffer)
		}
		fallback := make(chan model.RawDecodedEvent, feedBuffer)

		for venue, feed := range feeds {
			venue, feed := venue, feed
			g.Go(func() error {
				return produce(gctx, router, feed, venue, logger)
			})
		}
		g.Go(func() error {
			return produce(gctx, router, fallback, "unrouted", logger)
		})

		g.Go(func() error {
			defer func() {
				for _, feed := range feeds {
					close(feed)
				}
				close(fallback)
			}()

			result, err := src.Run(gctx, func(ctx context.Context, raw model.RawDecodedEvent) error {
				feed, ok := feeds[raw.Venue]
				if !ok {
					feed = fallback
				}
				select {
				case feed <- raw:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			logger.Info("source finished",
				zap.Int("lines", result.Lines),
				zap.Int("decoded", result.Decoded),
				zap.Int("malformed", result.Malformed),
			)
			return err
		})

		err := g.Wait()
		dropped := len(fallback)
		for _, feed := range feeds {
			dropped += len(feed)
		}
		if dropped > 0 {
			logger.Warn("decoded events dropped on shutdown", zap.Int("count", dropped))
		}
		if err != nil && !errors.Is(err, errStopped) {
			return err
		}
		return nil
	}
}

// errStopped cancels the fan-out once a producer sees the queue closed.
var errStopped = errors.New("producers stopped")

func produce(ctx context.Context, router *Router, feed <-chan model.RawDecodedEvent, venue string, logger *zap.Logger) error {
	for raw := range feed {
		if err := router.Route(ctx, raw); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				logger.Info("queue closed, producer stopping", zap.String("venue", venue))
				return errStopped
			}
			return err
		}
	}
	return nil
}

// FailedEvents replays recorded failures in order. Each event keeps the message id of
// its ledger entry, so a repeated failure overwrites that entry.
func FailedEvents(failures []model.FailedEvent) Producer {
	return func(ctx context.Context, q Enqueuer) error {
		for _, f := range failures {
			event := f.Event
			event.MessageID = f.MessageID
			if err := q.Enqueue(ctx, event); err != nil {
				if errors.Is(err, queue.ErrClosed) {
					return nil
				}
				return err
			}
		}
		return nil
	}
}
