package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tactics-arena/arena-backend/internal/archive"
	"github.com/tactics-arena/arena-backend/internal/config"
	"github.com/tactics-arena/arena-backend/internal/events"
	"github.com/tactics-arena/arena-backend/internal/httpapi"
	"github.com/tactics-arena/arena-backend/internal/hub"
	"github.com/tactics-arena/arena-backend/internal/match"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting arena backend", "addr", cfg.Addr, "env", cfg.Env)

	store, err := archive.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open result archive", "error", err)
	}
	if store != nil {
		logger.Info("result archive connected")
	}

	bus, err := events.Connect(cfg.NATSURL)
	if err != nil {
		logger.Fatal("failed to connect event bus", "error", err)
	}
	if bus != nil {
		defer bus.Close()
		logger.Info("event bus connected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The hub outlives the signal context; it is torn down explicitly
	// below so in-flight matches get their shutdown messages.
	h := hub.NewHub(context.Background(), hub.Deps{
		MatchConfig: match.Config{
			Enabled:      cfg.TimersEnabled,
			TurnTimeout:  cfg.TurnTimeout,
			DraftTimeout: cfg.DraftTimeout,
			Grace:        cfg.TimerGrace,
			IdleTimeout:  cfg.MatchIdleTimeout,
		},
		Archive: store,
		Events:  bus,
	})

	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("failed to create scheduler", "error", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() { h.Inbox() <- hub.Sweep{} }),
	)
	if err != nil {
		logger.Fatal("failed to schedule match sweep", "error", err)
	}
	sched.Start()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      httpapi.SetupRoutes(h, cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Sweep jobs stop first so nothing talks to the hub after it
		// drains; hijacked websockets close when their matches do.
		_ = sched.Shutdown()
		h.Inbox() <- hub.ShutdownHub{}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", "error", err)
	}
	logger.Info("server exited")
}
