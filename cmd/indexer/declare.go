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
	"solanaIndexer/internal/storage"
)

func runDeclare(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := broker.NewPublisher(cfg.BrokerConfig(), nil, storage.NopSink{}, logger)
	if err != nil {
		return err
	}
	if err := publisher.Connect(ctx); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	logger.Info("topology declared",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.String("routing_key", cfg.RoutingKey),
	)
	return publisher.Close()
}
