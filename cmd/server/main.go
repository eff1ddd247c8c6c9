package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/room-reservation/internal/config"
	"github.com/iliyamo/room-reservation/internal/database"
	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/logging"
	"github.com/iliyamo/room-reservation/internal/metrics"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/queue"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/repository/memstore"
	"github.com/iliyamo/room-reservation/internal/router"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	var (
		rooms  scheduler.RoomDirectory
		store  scheduler.Store
		health = &handler.HealthHandler{}
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		dir := memstore.NewDirectory()
		if cfg.RoomsSeedFile != "" {
			if dir, err = memstore.LoadDirectory(cfg.RoomsSeedFile); err != nil {
				return err
			}
		} else {
			log.Warn("memory store without ROOMS_SEED_FILE; the room directory is empty")
		}
		rooms, store = dir, memstore.NewStore()
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.DBAutoMigrate {
			if err := database.EnsureSchema(ctx, db); err != nil {
				return err
			}
		}
		rooms = repository.NewRoomRepo(db)
		store = repository.NewReservationRepo(db, repository.RetryPolicy{
			Retries: cfg.DBTxRetries,
			Base:    cfg.DBTxRetryBase,
			OnRetry: func(attempt int, err error) {
				collector.ObserveStoreRetry(attempt, err)
				log.Warn("retrying reservation transaction", "attempt", attempt, "err", err)
			},
		})
		health.DB = db
	}
	log.Info("store ready", "driver", cfg.StoreDriver)

	// The audit consumer stops with ctx.  The publisher has its own context,
	// cancelled only once the HTTP server has drained, so events from
	// in-flight requests are still delivered.
	workers := make(chan struct{}, 2)
	running := 0
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()

	var notifier scheduler.Notifier
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(queue.NewAMQPSender(cfg.AMQPURL), cfg.EventBuffer, log, collector)
		notifier = pub
		running++
		go func() {
			pub.Run(pubCtx)
			workers <- struct{}{}
		}()
		if cfg.AuditConsumerEnabled {
			consumer := queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditLogPath, log)
			running++
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", "err", err)
				}
				workers <- struct{}{}
			}()
		}
	}

	sched := scheduler.New(rooms, store, scheduler.Options{
		Notifier:                  notifier,
		Observer:                  collector,
		Logger:                    log,
		PendingBlocksAvailability: cfg.PendingBlocksAvailability,
	})

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; response cache disabled, rate limiting is per instance", "addr", cfg.Redis.Addr)
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(middleware.RequestLogger(log))
	e.Use(collector.Middleware())

	router.RegisterRoutes(e, health, collector.Handler())
	v1 := router.V1(e, cfg.JWTSecret)
	router.RegisterRooms(v1,
		handler.NewRoomHandler(sched, cfg.Timezone, log),
		middleware.NewRedisCache(cfg.Cache, rdb, log))
	router.RegisterReservations(v1,
		handler.NewReservationHandler(sched, cfg.Timezone, log),
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	addr := ":" + cfg.Port
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return shutdown(shutdownCtx, e, stopPublisher, workers, running, log)
}
