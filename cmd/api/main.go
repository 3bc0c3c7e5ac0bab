package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/santinopnp/PNPtvLive-bot/api/middleware"
	"github.com/santinopnp/PNPtvLive-bot/api/routes"
	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/internal/dispatcher"
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/santinopnp/PNPtvLive-bot/internal/performers"
	"github.com/santinopnp/PNPtvLive-bot/internal/processors"
	"github.com/santinopnp/PNPtvLive-bot/internal/replay"
	"github.com/santinopnp/PNPtvLive-bot/internal/settlement"
	"github.com/santinopnp/PNPtvLive-bot/internal/tips"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
	"github.com/santinopnp/PNPtvLive-bot/pkg/metrics"
	"github.com/santinopnp/PNPtvLive-bot/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(promRegistry)

	var (
		guard    replay.Store
		counters middleware.CounterStore
	)
	if cfg.Redis.Enabled() {
		redisClient, redisErr := redis.New(ctx, cfg.Redis)
		if redisErr != nil {
			logg.Error(ctx, "failed to bootstrap redis", redisErr)
			os.Exit(1)
		}
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				logg.Error(ctx, "error closing redis", closeErr)
			}
		}()
		guard = replay.NewRedisStore(redisClient, cfg.Replay.Retention)
		counters = redisClient
		logg.Info(ctx, "replay guard and admission counters on redis")
	} else {
		memStore := replay.NewMemoryStore(cfg.Replay.Retention)
		guard = memStore
		counters = middleware.NewMemoryCounter()
		sweeper := replay.NewSweeper(memStore, logg, webhookMetrics, cfg.Replay.SweepInterval)
		go func() {
			if sweepErr := sweeper.Run(ctx); sweepErr != nil && sweepErr != context.Canceled {
				logg.Error(ctx, "replay sweeper stopped", sweepErr)
			}
		}()
		logg.Info(ctx, "replay guard and admission counters in memory")
	}

	var sink alerting.Sink
	if cfg.Alerting.Configured() {
		webhookSink := alerting.NewWebhookSink(alerting.WebhookSinkParams{
			SecurityURL: cfg.Alerting.SecurityWebhookURL,
			PaymentsURL: cfg.Alerting.PaymentsWebhookURL,
			QueueSize:   cfg.Alerting.QueueSize,
			Timeout:     cfg.Alerting.Timeout,
			Logger:      logg,
		})
		go func() {
			if runErr := webhookSink.Run(ctx); runErr != nil && runErr != context.Canceled {
				logg.Error(ctx, "alert sink stopped", runErr)
			}
		}()
		sink = webhookSink
	} else {
		sink = alerting.NewLogSink(logg)
	}

	var certVerifier processors.CertVerifier
	if cfg.PayPal.SkipCertVerification && cfg.App.IsDev() {
		certVerifier = processors.InsecureSkipCertVerifier{}
		logg.Warn(ctx, "paypal certificate verification disabled")
	}

	registry := processors.NewRegistry(
		processors.NewBold(cfg.Bold),
		processors.NewPayPal(cfg.PayPal, certVerifier),
	)

	repo := ledger.NewMemoryRepository()
	directory := performers.NewDirectory()
	if _, seedErr := directory.SeedDefault(ctx, cfg.Performer); seedErr != nil {
		logg.Error(ctx, "failed to seed default performer", seedErr)
		os.Exit(1)
	}

	engine, err := settlement.NewEngine(settlement.EngineParams{
		Repo:     repo,
		Consumer: directory,
		Sink:     sink,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create settlement engine", err)
		os.Exit(1)
	}

	d, err := dispatcher.New(dispatcher.Params{
		Registry: registry,
		Guard:    guard,
		Engine:   engine,
		Sink:     sink,
		Logger:   logg,
		Metrics:  webhookMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create webhook dispatcher", err)
		os.Exit(1)
	}

	tipService, err := tips.NewService(tips.ServiceParams{
		Repo:      repo,
		Directory: directory,
		Registry:  registry,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create tip service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:     cfg,
		Logger:     logg,
		Dispatcher: d,
		Guard:      guard,
		Repo:       repo,
		Tips:       tipService,
		Performers: directory,
		Counters:   counters,
		Sink:       sink,
		Gatherer:   promRegistry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"processors": registry.Names(),
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logg.Error(shutdownCtx, "server shutdown error", shutdownErr)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
