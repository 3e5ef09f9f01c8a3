// Command kasbuku-worker consumes ledger events from AMQP and mirrors the
// ledger into a Google Sheets spreadsheet.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"kasbuku/internal/amqp"
	"kasbuku/internal/cli"
	"kasbuku/internal/sheets"
	sheetsgoogle "kasbuku/internal/sheets/google"
	sheetsmem "kasbuku/internal/sheets/memory"
	"kasbuku/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("kasbuku-worker")
	cfg := cli.LoadAndValidateWorkerConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	var mirror sheets.Mirror
	switch cfg.MirrorBackend {
	case "memory":
		logger.Warn("Using in-memory mirror, rows are lost on restart")
		mirror = sheetsmem.New()
	default:
		client, err := sheetsgoogle.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets mirror", "error", err)
			os.Exit(1)
		}
		mirror = client
	}

	mirrorWorker := worker.NewMirrorWorker(repo, mirror)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqp.ConsumeWithReconnect(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, mirrorWorker.HandleEvent)
	})
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	logger.Info("Mirror worker started",
		"queue", cfg.AMQPQueue,
		"exchange", cfg.AMQPExchange,
		"mirror_backend", cfg.MirrorBackend)

	err := g.Wait()
	if closeErr := repo.Close(); closeErr != nil {
		logger.Error("Failed to close repository", "error", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Mirror worker stopped")
}
