// Command arena runs the agent economy arena: a server with a live cycle
// loop and HTTP API, or a headless fixed-length simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/engine"
	"github.com/talgya/swarm-arena/internal/llm"
	"github.com/talgya/swarm-arena/internal/persistence"
)

var (
	configPath string
	seedFlag   int64
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Agent economy arena",
	Long: `arena simulates a population of autonomous service actors that trade work
for payment, scam, form cartels and alliances, and die when their balance runs out.

Available subcommands:
  serve    - run the cycle loop with the HTTP API and the SQLite mirror
  simulate - run a fixed number of cycles and print a summary`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().Int64Var(&seedFlag, "seed", 0, "override the random seed (0 keeps the configured seed)")
	rootCmd.AddCommand(serveCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config, applies flag overrides, and installs the logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if seedFlag != 0 {
		cfg.Seed = seedFlag
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

// setupLogging picks JSON output unless stdout is a terminal or the config says otherwise.
func setupLogging(lc config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	useJSON := !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	if lc.JSON != nil {
		useJSON = *lc.JSON
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildReasoner wires the external provider behind the shared breaker. With no
// API key the reasoner is disabled and every decision uses its heuristic.
func buildReasoner(rc config.ReasoningConfig) *llm.Reasoner {
	client := llm.NewClient(rc.APIKeys, rc.Model, rc.RatePerMinute, rc.Burst)
	if client == nil {
		slog.Info("reasoning disabled (no ANTHROPIC_API_KEY set), heuristics only")
	} else {
		slog.Info("reasoning enabled", "model", rc.Model, "keys", len(rc.APIKeys))
	}
	return llm.NewReasoner(client, llm.NewBreaker(rc.BreakerThreshold), rc.Timeout)
}

// openMirror opens the SQLite mirror when enabled. A failure to open is
// logged and the arena runs without a mirror.
func openMirror(mc config.MirrorConfig) *persistence.Mirror {
	if !mc.Enabled {
		return nil
	}
	if err := ensureDir(mc.Path); err != nil {
		slog.Warn("mirror disabled", "error", err)
		return nil
	}
	db, err := persistence.Open(mc.Path)
	if err != nil {
		slog.Warn("mirror disabled", "path", mc.Path, "error", err)
		return nil
	}
	slog.Info("mirror opened", "path", mc.Path, "arena", mc.ArenaID)
	return persistence.NewMirror(db, mc.ArenaID, mc.QueueSize)
}

func newSimulation(cfg config.Config, mirror *persistence.Mirror) *engine.Simulation {
	opts := engine.Options{Reasoner: buildReasoner(cfg.Reasoning)}
	if mirror != nil {
		opts.Mirror = mirror
	}
	return engine.NewSimulation(cfg, opts)
}
