package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	_ "polling-engine/docs"
	"polling-engine/internal/config"
	"polling-engine/internal/domain/poll"
	"polling-engine/internal/domain/vote"
	api "polling-engine/internal/http"
	"polling-engine/internal/lifecycle"
	"polling-engine/internal/metrics"
	"polling-engine/internal/notify"
	"polling-engine/internal/platform/consul"
	"polling-engine/internal/platform/database"
	jwtpkg "polling-engine/internal/platform/jwt"
	"polling-engine/internal/repository/memory"
	"polling-engine/internal/repository/mongostore"
	"polling-engine/internal/repository/sqlstore"
	"polling-engine/internal/worker"
)

type backend struct {
	polls   poll.Store
	options poll.OptionStore
	ready   func(ctx context.Context) error
	close   func()
}

// @title           Polling Engine API
// @version         1.0
// @description     Poll lifecycle and vote tally service with JWT auth
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("store connect error", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.close()

	hub := notify.NewHub(logger)
	defer hub.Close()

	var publisher notify.Publisher = hub
	if cfg.FirebaseCredentialsFile != "" {
		sink, err := notify.NewFCMSink(ctx, cfg.FirebaseCredentialsFile, cfg.NotifyBuffer, logger)
		if err != nil {
			logger.Error("fcm init error", "error", err)
			os.Exit(1)
		}
		go sink.Run(ctx)
		publisher = notify.Fanout{hub, sink}
	}

	transitioner := lifecycle.NewTransitioner(store.polls, store.options, publisher, cfg.TransitionTimeout, logger)
	scheduler := worker.NewScheduler(store.polls, transitioner, worker.Config{
		Interval:    cfg.SchedulerInterval,
		Concurrency: cfg.SchedulerConcurrency,
		Timeout:     cfg.TransitionTimeout,
	}, logger)

	router := api.NewRouter(api.Deps{
		Polls:        poll.NewService(store.polls, store.options),
		Votes:        vote.NewService(store.polls, store.options, publisher, logger),
		Lifecycle:    transitioner,
		JWT:          jwtpkg.NewManager(cfg.JWTSecret, cfg.JWTIssuer),
		Hub:          hub,
		NotifyBuffer: cfg.NotifyBuffer,
		Ready:        store.ready,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SchedulerEnabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("scheduler start error", "error", err)
			os.Exit(1)
		}
	}

	var registration *consul.Registration
	if cfg.ConsulAddr != "" {
		registration, err = consul.Register(cfg.ConsulAddr, cfg.Port, logger)
		if err != nil {
			logger.Warn("consul registration failed", "error", err)
		}
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")
	registration.Deregister()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}
	cancel()

	logger.Info("server stopped")
}

func openStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (*backend, error) {
	switch cfg.StoreDriver {
	case "memory":
		s := memory.NewStore()
		return &backend{polls: s, options: s, close: func() {}}, nil

	case "postgres", "sqlite":
		driver := "pgx"
		if cfg.StoreDriver == "sqlite" {
			driver = "sqlite"
		}
		db, err := database.OpenSQL(ctx, logger, driver, cfg.DB_DSN)
		if err != nil {
			return nil, err
		}
		s := sqlstore.New(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{
			polls:   s,
			options: s,
			ready:   db.PingContext,
			close:   func() { _ = db.Close() },
		}, nil

	case "mongo":
		client, err := database.ConnectMongo(ctx, logger, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s := mongostore.New(client.Database(cfg.MongoDB).Collection("polls"))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &backend{
			polls:   s,
			options: s,
			ready: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
