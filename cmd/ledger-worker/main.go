// Command ledger-worker consumes ledger events and keeps a per-user journal
// of them in the local store database.
package main

import (
	"os"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/cli"
	applog "moneymanager/internal/log"
	"moneymanager/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(bootstrap.Slog())
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout).WithComponent(applog.ComponentWorker)

	logger.Info("Starting ledger-worker", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	kv, closer, err := cli.OpenKV(cfg.LocalStorePath, logger.Slog())
	if err != nil {
		logger.Error("Failed to open journal store", "error", err, "path", cfg.LocalStorePath)
		os.Exit(1)
	}
	defer closer.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		amqp.WithLogger(logger.WithComponent(applog.ComponentAMQP).Slog()))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ledger := worker.NewLedgerWorker(kv, cfg.JournalLimit, worker.WithLogger(logger.Slog()))

	ctx, done := cli.GracefulShutdown(logger.Slog(), 10*time.Second, func() {
		logger.Info("Ledger events recorded", "count", ledger.Handled())
	})

	if err := client.ConsumeWithReconnect(ctx, ledger.Handle); err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("Ledger worker stopped")
}
