package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/tickq/internal/api"
	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/config"
	"github.com/seantiz/tickq/internal/engine"
	"github.com/seantiz/tickq/internal/sim"
	"github.com/seantiz/tickq/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("tickq: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("tickq: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"tick_interval", cfg.TickInterval,
		"tick_budget", cfg.TickBudget,
		"config_file", cfg.ConfigFile,
	)

	// eng is assigned before the watcher runs, so reloads always see it.
	var eng *engine.Engine

	var (
		file    *config.File
		watcher *config.Watcher
	)
	if cfg.ConfigFile != "" {
		w, err := config.NewWatcher(cfg.ConfigFile, logger, func(f *config.File) {
			eng.Tune(f.Drain.SaturationWindow)
			logger.Info("drain tuning applied", "saturation_window", eng.SaturationWindow())
		})
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
		watcher = w
		file = w.Current()
	}

	reg := callback.NewRegistry(file.CapacityPolicy())
	if file != nil {
		for _, id := range file.Queues.Declare {
			reg.GetOrCreate(id)
		}
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	simHost := sim.NewHost(os.Stderr)

	opts := engine.Options{
		Journal:         db,
		FailureLogRates: file.FailureLogRates(),
	}
	if file != nil {
		opts.SaturationWindow = file.Drain.SaturationWindow
	}
	eng = engine.NewEngine(reg, simHost, logger, opts)
	// Runs before db.Close so the journal is flushed.
	defer eng.Shutdown()

	prometheus.MustRegister(engine.NewQueueCollector(reg))

	srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger)
	loop := sim.NewLoop(simHost, eng, cfg.TickInterval, cfg.TickBudget, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return loop.Run(ctx) })
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}
	for _, p := range demoProducers {
		g.Go(func() error { return p.run(ctx, reg.Sender(p.queue)) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("tickq: stopped", "tick", simHost.Tick(), "failures_reported", simHost.Reported())
	return nil
}
