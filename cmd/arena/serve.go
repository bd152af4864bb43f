package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/swarm-arena/internal/api"
	"github.com/talgya/swarm-arena/internal/engine"
	"github.com/talgya/swarm-arena/internal/persistence"
)

var paused bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cycle loop with the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&paused, "paused", false, "start with the loop stopped (drive it with POST /api/v1/tick)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror := openMirror(cfg.Mirror)
	var db *persistence.DB
	if mirror != nil {
		defer mirror.Close()
		db = mirror.DB()
	}

	sim := newSimulation(cfg, mirror)
	eng := engine.NewEngine(sim, cfg.Engine.Interval)
	eng.OnCycle = func(st engine.Stats) {
		if st.Cycle%20 == 0 {
			slog.Info("arena report", "cycle", st.Cycle, "summary", summaryLine(st))
		}
	}
	slog.Info("arena ready", "actors", sim.ActorCount(), "seed", cfg.Seed, "interval", cfg.Engine.Interval)

	if !paused {
		if err := eng.Start(ctx); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
	}
	defer eng.Stop()

	srv := api.New(eng, db, cfg.Server)
	srv.ArenaID = cfg.Mirror.ArenaID
	srv.BaseContext = ctx
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	slog.Info("shutting down", "cycle", sim.Cycle())
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
