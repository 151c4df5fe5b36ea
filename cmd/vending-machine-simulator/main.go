// Package main boots the Vending Machine Simulator HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/vending-machine-simulator/internal/config"
	httpapi "github.com/fairyhunter13/vending-machine-simulator/internal/http"
	"github.com/fairyhunter13/vending-machine-simulator/internal/obs"
	"github.com/fairyhunter13/vending-machine-simulator/internal/queue"
	"github.com/fairyhunter13/vending-machine-simulator/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger.Error("config_invalid", obs.Error(err))
		os.Exit(1)
	}
	level, err := obs.ParseLevel(cfg.LogLevel)
	if err != nil {
		obs.Logger.Warn("log_level_invalid", obs.Error(err))
	}
	obs.InitLogger(obs.WithLevel(level), obs.WithFormat(obs.Format(cfg.LogFormat)))
	obs.Logger.Info("service_starting", "max_machines", cfg.MaxMachines, "journal_limit", cfg.JournalLimit)

	st := store.New(cfg.MaxMachines, cfg.JournalLimit)
	q := queue.New(128)
	mgr := queue.NewManager(cfg, q, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	app := httpapi.NewApp(cfg, st, mgr)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logger.Error("http_server_error", obs.Error(err))
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", obs.Error(err))
	}

	// handlers have returned, so every applied operation is already queued
	mgr.CloseIntake()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", mgr.BacklogSize(), "worker_count", mgr.WorkerCount())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout", "queue_depth", mgr.QueueDepth())
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}
	mgr.Stop()
	obs.Logger.Info("service_stopped", "machines", st.Len())
}
