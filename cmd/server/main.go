package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-backend/config"
	"pos-backend/internal/api"
	"pos-backend/internal/auth"
	"pos-backend/internal/broker"
	"pos-backend/internal/store"
	"pos-backend/internal/util"
	"pos-backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const configKey = "config"

func main() {
	app := &cli.App{
		Name:  "pos-backend",
		Usage: "order and payment lifecycle service",
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.App.Metadata = map[string]any{configKey: cfg}
			return nil
		},
		After: func(*cli.Context) error {
			util.SyncLogger()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the reconcile worker",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrateDB,
			},
			{
				Name:   "reconcile",
				Usage:  "run one reconciliation scan and print the report",
				Action: reconcileOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func serve(c *cli.Context) error {
	cfg := configFrom(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.GetLogger()
	logger.Info("Starting pos-backend", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("pos-backend", cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdownTracer(tp)

	d, err := newDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReconcile, cfg.Kafka.ConsumerGroup)
	reconcileWorker := worker.NewReconcileWorker(consumer, d.reconciler)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	verifier := auth.NewWebhookVerifier(cfg.Webhook.Secret,
		auth.WithReplayWindow(cfg.Webhook.ReplayWindow),
		auth.WithMaxFutureSkew(cfg.Webhook.MaxFutureSkew))

	router := gin.New()
	handler := api.NewHandler(d.orders, d.payments, verifier, map[string]api.Pinger{
		"postgres": d.store,
		"redis":    d.redis,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := reconcileWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reconcile worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := reconcileWorker.Stop(); err != nil {
			logger.Warn("Reconcile worker stop failed", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server exited")
	return err
}

func migrateDB(c *cli.Context) error {
	cfg := configFrom(c)
	if err := store.Migrate(cfg.Database.URL); err != nil {
		return err
	}
	util.GetLogger().Info("Migrations applied")
	return nil
}

// reconcileOnce is the entry point for cron-style schedulers
// The scan is bounded by RECONCILE_LOCK_TTL.
func reconcileOnce(c *cli.Context) error {
	cfg := configFrom(c)
	if err := cfg.Reconcile.Validate(); err != nil {
		return err
	}

	d, err := newDeps(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := d.reconciler.Scan(c.Context)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
