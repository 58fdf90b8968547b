package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solanaIndexer/internal/broker"
	"solanaIndexer/internal/config"
	"solanaIndexer/internal/indexer"
	"solanaIndexer/internal/model"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := openFailureLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	return replayLedger(ctx, cfg, ledger, nil, logger)
}

// replayLedger republishes every ledger entry under its recorded message id. An entry
// that fails again is overwritten in place; with purge, acknowledged entries are removed.
func replayLedger(ctx context.Context, cfg config.Config, ledger failureLedger, dial broker.Dialer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger.source == nil {
		return fmt.Errorf("failure-sink %s cannot be replayed", cfg.FailureSink)
	}

	failures, err := ledger.source.LoadFailures(ctx)
	if err != nil {
		return fmt.Errorf("load failures: %w", err)
	}
	if len(failures) == 0 {
		logger.Info("no failures to replay", zap.String("failure_sink", cfg.FailureSink))
		return nil
	}

	acks := &ackLog{}
	p, err := newPipeline(cfg, dial, ledger.sink, acks, logger)
	if err != nil {
		return err
	}
	defer p.publisher.Close()
	if err := p.publisher.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}

	logger.Info("replay start",
		zap.Int("failures", len(failures)),
		zap.String("failure_sink", cfg.FailureSink),
		zap.Bool("purge", cfg.Purge),
	)

	runErr := p.runner(cfg, logger).Run(ctx, indexer.FailedEvents(failures))

	logger.Info("replay finished",
		zap.Int("failures", len(failures)),
		zap.Int("replayed", acks.outcomes),
		zap.Int("acked", len(acks.acked)),
	)

	if cfg.Purge && len(acks.acked) > 0 {
		if ledger.purger == nil {
			return fmt.Errorf("failure-sink %s cannot be purged", cfg.FailureSink)
		}
		if err := ledger.purger.PurgeFailures(context.WithoutCancel(ctx), acks.acked); err != nil {
			return fmt.Errorf("purge failures: %w", err)
		}
		logger.Info("purged replayed failures", zap.Int("count", len(acks.acked)))
	}
	return runErr
}

// ackLog collects the message ids the broker acknowledged.
type ackLog struct {
	outcomes int
	acked    []string
}

func (a *ackLog) RecordFlush(_ model.Batch, summary model.BatchSummary) {
	for _, outcome := range summary.Outcomes {
		a.outcomes++
		if outcome.Acked {
			a.acked = append(a.acked, outcome.MessageID)
		}
	}
}
