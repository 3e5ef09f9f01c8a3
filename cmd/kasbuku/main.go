// Command kasbuku runs the ledger HTTP API server.
package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"time"

	"kasbuku/internal/access"
	"kasbuku/internal/amqp"
	"kasbuku/internal/auth"
	"kasbuku/internal/cli"
	"kasbuku/internal/http"
	"kasbuku/internal/ledger"
	ledgermem "kasbuku/internal/ledger/memory"
	"kasbuku/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("kasbuku")
	cfg := cli.LoadAndValidateConfig(logger)

	var store ledger.Store
	switch cfg.DataBackend {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		store = ledgermem.New()
	default:
		store = cli.InitSQLite(logger, cfg.SQLiteDBPath)
	}

	accessCtrl := access.NewController(store, cfg.AdminCallers)

	// The server stays up without AMQP; only the sheet mirror lags behind.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			events = client
		}
	}

	service := services.NewLedgerService(store, accessCtrl, events)
	verifier := auth.NewVerifier(cfg.IdentitySecret)
	srv := http.NewServer(":"+cfg.Port, service, verifier, cfg.RateLimitPerMinute, cfg.TrustedProxies)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		if err := service.Close(); err != nil {
			logger.Error("Failed to close ledger service", "error", err)
		}
	})

	go func() {
		logger.Info("Starting HTTP server",
			"addr", srv.Addr,
			"data_backend", cfg.DataBackend,
			"events_enabled", events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
