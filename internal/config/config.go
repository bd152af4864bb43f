// Package config holds every tunable of the arena: economy thresholds, emergent
// behavior probabilities, reasoning limits, and service settings.
// Values come from Default(), an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete arena configuration.
type Config struct {
	Seed      int64           `yaml:"seed"`
	Log       LogConfig       `yaml:"log"`
	Economy   EconomyConfig   `yaml:"economy"`
	Scam      ScamConfig      `yaml:"scam"`
	Cartel    CartelConfig    `yaml:"cartel"`
	Alliance  AllianceConfig  `yaml:"alliance"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Engine    EngineConfig    `yaml:"engine"`
	Server    ServerConfig    `yaml:"server"`
	Mirror    MirrorConfig    `yaml:"mirror"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  *bool  `yaml:"json"`  // nil = auto (JSON unless stdout is a terminal)
}

// EconomyConfig sets the population and the money supply rules.
type EconomyConfig struct {
	ActorsPerCategory  int     `yaml:"actors_per_category"`
	InitialBalance     float64 `yaml:"initial_balance"`
	CriticalThreshold  float64 `yaml:"critical_threshold"`
	ExhaustedThreshold float64 `yaml:"exhausted_threshold"`
	Upkeep             float64 `yaml:"upkeep"`              // debited from every live actor each cycle
	WorkPerCycle       int     `yaml:"work_per_cycle"`      // work items generated per cycle
	ExternalClients    int     `yaml:"external_clients"`    // size of the virtual requester pool
	PriceDrift         float64 `yaml:"price_drift"`         // amplitude of market noise
	InitialReputation  float64 `yaml:"initial_reputation"`  // centre of the starting reputation band
	ReputationSpread   float64 `yaml:"reputation_spread"`   // ± around InitialReputation
	DecideAcceptFactor float64 `yaml:"decide_accept_factor"` // heuristic accept iff payment ≥ factor × base
}

// ScamConfig holds the fraud probabilities. The numbers are empirical.
type ScamConfig struct {
	HighTrustCeiling          float64 `yaml:"high_trust_ceiling"`
	Penalty                   float64 `yaml:"penalty"`
	ProbRecommendScam         float64 `yaml:"prob_recommend_scam"`
	ProbRecommendScamCritical float64 `yaml:"prob_recommend_scam_critical"`
	ProbRecommendHonest       float64 `yaml:"prob_recommend_honest"`
	FallbackCritical          float64 `yaml:"fallback_critical"`
	FallbackLowReputation     float64 `yaml:"fallback_low_reputation"`
	FallbackMidReputation     float64 `yaml:"fallback_mid_reputation"`
	FallbackHighReputation    float64 `yaml:"fallback_high_reputation"`
	LowReputationCutoff       float64 `yaml:"low_reputation_cutoff"`
	MidReputationCutoff       float64 `yaml:"mid_reputation_cutoff"`
}

// CartelConfig controls price-fixing negotiation.
type CartelConfig struct {
	FormChance         float64 `yaml:"form_chance"`
	MinReputation      float64 `yaml:"min_reputation"`
	MaxNegotiators     int     `yaml:"max_negotiators"`
	FallbackReputation float64 `yaml:"fallback_reputation"`
	FallbackBalance    float64 `yaml:"fallback_balance"`
	MultiplierLow      float64 `yaml:"multiplier_low"`
	MultiplierHigh     float64 `yaml:"multiplier_high"`
}

// AllianceConfig controls the pairwise alliance lifecycle.
type AllianceConfig struct {
	ManageChance       float64 `yaml:"manage_chance"`
	FormChance         float64 `yaml:"form_chance"`
	BreakChance        float64 `yaml:"break_chance"`
	ReferralCommission float64 `yaml:"referral_commission"`
}

// StrategyConfig controls periodic strategy adaptation.
type StrategyConfig struct {
	EveryTransactions    int     `yaml:"every_transactions"`
	SampleSize           int     `yaml:"sample_size"`
	MinActivity          int     `yaml:"min_activity"`
	HighBalance          float64 `yaml:"high_balance"`
	HighReputation       float64 `yaml:"high_reputation"`
	DesperationMinFactor float64 `yaml:"desperation_min_factor"`
}

// ReasoningConfig controls calls to the external reasoning provider.
type ReasoningConfig struct {
	APIKeys          []string      `yaml:"-"`
	Model            string        `yaml:"model"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	RatePerMinute    int           `yaml:"rate_per_minute"`
	Burst            int           `yaml:"burst"`
	Narrate          bool          `yaml:"narrate"`
}

// MetricsConfig sizes the observability buffers.
type MetricsConfig struct {
	HistorySize  int `yaml:"history_size"`
	VolumeWindow int `yaml:"volume_window"`
	TopN         int `yaml:"top_n"`
}

// EngineConfig controls the cycle loop and memory bounds.
type EngineConfig struct {
	Interval      time.Duration `yaml:"interval"`
	MatchWorkers  int           `yaml:"match_workers"`
	LedgerCap     int           `yaml:"ledger_cap"`
	EventRingSize int           `yaml:"event_ring_size"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	AdminKey    string   `yaml:"-"`
	RelayKey    string   `yaml:"-"`
	TickPerSec  float64  `yaml:"tick_per_sec"`
	MaxSSEConns int      `yaml:"max_sse_conns"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// MirrorConfig controls the best-effort SQLite ledger mirror.
type MirrorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
	ArenaID   string `yaml:"arena_id"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Seed: 42,
		Log:  LogConfig{Level: "info"},
		Economy: EconomyConfig{
			ActorsPerCategory:  4,
			InitialBalance:     1.0,
			CriticalThreshold:  0.10,
			ExhaustedThreshold: 0.01,
			Upkeep:             0.01,
			WorkPerCycle:       8,
			ExternalClients:    24,
			PriceDrift:         0.3,
			InitialReputation:  60,
			ReputationSpread:   15,
			DecideAcceptFactor: 0.8,
		},
		Scam: ScamConfig{
			HighTrustCeiling:          90,
			Penalty:                   30,
			ProbRecommendScam:         0.5,
			ProbRecommendScamCritical: 0.7,
			ProbRecommendHonest:       0.02,
			FallbackCritical:          0.15,
			FallbackLowReputation:     0.08,
			FallbackMidReputation:     0.03,
			FallbackHighReputation:    0.01,
			LowReputationCutoff:       40,
			MidReputationCutoff:       70,
		},
		Cartel: CartelConfig{
			FormChance:         0.1,
			MinReputation:      60,
			MaxNegotiators:     5,
			FallbackReputation: 65,
			FallbackBalance:    0.5,
			MultiplierLow:      1.2,
			MultiplierHigh:     1.5,
		},
		Alliance: AllianceConfig{
			ManageChance:       0.3,
			FormChance:         0.6,
			BreakChance:        0.1,
			ReferralCommission: 0.001,
		},
		Strategy: StrategyConfig{
			EveryTransactions:    10,
			SampleSize:           3,
			MinActivity:          5,
			HighBalance:          2.0,
			HighReputation:       80,
			DesperationMinFactor: 0.5,
		},
		Reasoning: ReasoningConfig{
			Model:            "claude-haiku-4-5-20251001",
			Timeout:          5 * time.Second,
			BreakerThreshold: 3,
			RatePerMinute:    120,
			Burst:            10,
		},
		Metrics: MetricsConfig{
			HistorySize:  100,
			VolumeWindow: 10,
			TopN:         5,
		},
		Engine: EngineConfig{
			Interval:      5 * time.Second,
			MatchWorkers:  4,
			LedgerCap:     1000,
			EventRingSize: 500,
		},
		Server: ServerConfig{
			Port:        8080,
			TickPerSec:  1,
			MaxSSEConns: 4,
		},
		Mirror: MirrorConfig{
			Path:      "data/arena.db",
			QueueSize: 256,
			ArenaID:   "arena-main",
		},
	}
}

// Load reads an optional YAML file over the defaults, applies environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	// Keys are tried in order; the list form wins over the single key.
	if keys := os.Getenv("ANTHROPIC_API_KEYS"); keys != "" {
		c.Reasoning.APIKeys = nil
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Reasoning.APIKeys = append(c.Reasoning.APIKeys, k)
			}
		}
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Reasoning.APIKeys = []string{key}
	}
	if v := os.Getenv("ARENA_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := os.Getenv("ARENA_RELAY_KEY"); v != "" {
		c.Server.RelayKey = v
	}
	if v := os.Getenv("ARENA_DB_PATH"); v != "" {
		c.Mirror.Path = v
		c.Mirror.Enabled = true
	}
	if v := os.Getenv("ARENA_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, origin)
			}
		}
	}
}

// Validate rejects configurations that would break economic invariants.
func (c Config) Validate() error {
	var errs []error
	e := c.Economy
	if e.ExhaustedThreshold < 0 {
		errs = append(errs, errors.New("economy.exhausted_threshold must be >= 0"))
	}
	if e.CriticalThreshold <= e.ExhaustedThreshold {
		errs = append(errs, fmt.Errorf("economy.critical_threshold (%g) must exceed exhausted_threshold (%g)",
			e.CriticalThreshold, e.ExhaustedThreshold))
	}
	if e.ActorsPerCategory < 1 {
		errs = append(errs, errors.New("economy.actors_per_category must be >= 1"))
	}
	s := c.Scam
	if !(s.FallbackCritical > s.FallbackLowReputation &&
		s.FallbackLowReputation > s.FallbackMidReputation &&
		s.FallbackMidReputation > s.FallbackHighReputation) {
		errs = append(errs, errors.New("scam fallback probabilities must be strictly decreasing: critical > low > mid > high"))
	}
	for name, p := range map[string]float64{
		"prob_recommend_scam":          s.ProbRecommendScam,
		"prob_recommend_scam_critical": s.ProbRecommendScamCritical,
		"prob_recommend_honest":        s.ProbRecommendHonest,
		"fallback_critical":            s.FallbackCritical,
		"fallback_high_reputation":     s.FallbackHighReputation,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("scam.%s must be within [0,1]", name))
		}
	}
	if c.Cartel.MultiplierLow < 1 || c.Cartel.MultiplierHigh > 2 || c.Cartel.MultiplierLow > c.Cartel.MultiplierHigh {
		errs = append(errs, errors.New("cartel multiplier band must lie within [1,2]"))
	}
	if c.Cartel.MaxNegotiators < 3 {
		errs = append(errs, errors.New("cartel.max_negotiators must be >= 3 to ever reach quorum"))
	}
	if c.Reasoning.BreakerThreshold < 1 {
		errs = append(errs, errors.New("reasoning.breaker_threshold must be >= 1"))
	}
	if c.Metrics.HistorySize < 1 || c.Metrics.VolumeWindow < 1 {
		errs = append(errs, errors.New("metrics buffers must be >= 1"))
	}
	if c.Engine.MatchWorkers < 1 {
		errs = append(errs, errors.New("engine.match_workers must be >= 1"))
	}
	return errors.Join(errs...)
}
