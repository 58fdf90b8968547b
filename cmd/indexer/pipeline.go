package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"solanaIndexer/internal/aggregate"
	"solanaIndexer/internal/broker"
	"solanaIndexer/internal/config"
	"solanaIndexer/internal/health"
	"solanaIndexer/internal/indexer"
	"solanaIndexer/internal/model"
	"solanaIndexer/internal/queue"
	"solanaIndexer/internal/storage"
	"solanaIndexer/internal/storage/postgres"
)

// pipeline holds the queue, aggregator, publisher and observers shared by run and replay.
type pipeline struct {
	queue      *queue.Queue
	publisher  *broker.Publisher
	aggregator *aggregate.Aggregator
	metrics    *health.Metrics
	observer   *health.Observer
	registry   *prometheus.Registry
}

// newPipeline builds the shared stages. dial may be nil to use AMQP.
func newPipeline(cfg config.Config, dial broker.Dialer, sink broker.FailureSink, extra aggregate.FlushRecorder, logger *zap.Logger) (*pipeline, error) {
	q, err := queue.New(cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}

	stats := health.NewStats()
	brokerCfg := cfg.BrokerConfig()
	brokerCfg.Dialer = dial
	publisher, err := broker.NewPublisher(brokerCfg, stats, sink, logger)
	if err != nil {
		return nil, fmt.Errorf("build publisher: %w", err)
	}

	observer := health.NewObserver(stats, publisher, q, time.Now())
	registry := prometheus.NewRegistry()
	metrics := health.NewMetrics(registry, observer)
	if err := metrics.Register(); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var recorder aggregate.FlushRecorder = metrics
	if extra != nil {
		recorder = flushRecorders{metrics, extra}
	}
	aggregator, err := aggregate.NewAggregator(cfg.AggregateConfig(), publisher, recorder, logger)
	if err != nil {
		return nil, fmt.Errorf("build aggregator: %w", err)
	}

	return &pipeline{
		queue:      q,
		publisher:  publisher,
		aggregator: aggregator,
		metrics:    metrics,
		observer:   observer,
		registry:   registry,
	}, nil
}

func (p *pipeline) runner(cfg config.Config, logger *zap.Logger) *indexer.Runner {
	var serve func(context.Context) error
	if cfg.HealthAddr != "" {
		handler := health.Handler(p.observer, p.registry, logger)
		serve = func(ctx context.Context) error {
			return health.Serve(ctx, cfg.HealthAddr, handler, logger)
		}
	}
	return indexer.NewRunner(p.queue, p.aggregator, p.publisher, serve, logger)
}

type flushRecorders []aggregate.FlushRecorder

func (r flushRecorders) RecordFlush(batch model.Batch, summary model.BatchSummary) {
	for _, recorder := range r {
		recorder.RecordFlush(batch, summary)
	}
}

// failureLedger is the configured failure sink with its read side when it has one.
type failureLedger struct {
	sink   broker.FailureSink
	source storage.FailureSource
	purger storage.FailurePurger
	close  func()
}

func (l failureLedger) Close() {
	if l.close != nil {
		l.close()
	}
}

func openFailureLedger(ctx context.Context, cfg config.Config) (failureLedger, error) {
	switch cfg.FailureSink {
	case config.SinkJSONL:
		file := storage.NewJsonlFailureLog(cfg.FailuresOut)
		return failureLedger{sink: file, source: file, purger: file}, nil
	case config.SinkPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return failureLedger{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return failureLedger{}, fmt.Errorf("ensure schema: %w", err)
		}
		return failureLedger{sink: store, source: store, purger: store, close: store.Close}, nil
	case config.SinkNone:
		return failureLedger{sink: storage.NopSink{}}, nil
	default:
		return failureLedger{}, fmt.Errorf("unsupported failure-sink: %s", cfg.FailureSink)
	}
}
