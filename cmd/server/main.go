package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/config"
	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/logger"
	"github.com/HaruCodeTI/manifeste/api/internal/notify"
	"github.com/HaruCodeTI/manifeste/api/internal/payment"
	"github.com/HaruCodeTI/manifeste/api/internal/router"
	"github.com/HaruCodeTI/manifeste/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}

	// os.Exit skips deferred calls, so flush on both paths.
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		log.Sync() //nolint:errcheck
		os.Exit(1)
	}
	log.Sync() //nolint:errcheck
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(log.Named("ws"))
	go hub.Run(hubCtx)

	var payments *payment.StripeProvider
	if cfg.StripeSecretKey != "" {
		payments, err = payment.NewStripeProvider(payment.StripeConfig{
			APIKey:        cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
			Logger:        log.Named("stripe"),
		})
		if err != nil {
			return fmt.Errorf("stripe: %w", err)
		}
	}

	mailer := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, log, pool, hub, payments, mailer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked and ignored by Shutdown, so the hub
	// closes them itself.
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped cleanly")
	return nil
}
