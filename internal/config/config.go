// Package config loads engine configuration from a YAML file with
// environment-variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Scoring   ScoringConfig   `yaml:"scoring"`
	Execution ExecutionConfig `yaml:"execution"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Risk      RiskConfig      `yaml:"risk"`
	Feed      FeedConfig      `yaml:"feed"`
	Journal   JournalConfig   `yaml:"journal"`
	Log       LogConfig       `yaml:"log"`
}

// ScoringConfig controls the viability scorer.
type ScoringConfig struct {
	ViabilityThreshold float64 `yaml:"viability_threshold"` // admit iff score >= threshold

	// Per-factor weights applied to the raw penalty deltas. 1.0 keeps
	// the base model; 0 disables a factor.
	ConcentrationWeight float64 `yaml:"concentration_weight"`
	LPLockWeight        float64 `yaml:"lp_lock_weight"`
	WashTradingWeight   float64 `yaml:"wash_trading_weight"`
	LiquidityWeight     float64 `yaml:"liquidity_weight"`
	AuditWeight         float64 `yaml:"audit_weight"`

	// BenfordCriticalValue is the chi-square cutoff for the leading
	// digit test (8 degrees of freedom).
	BenfordCriticalValue float64 `yaml:"benford_critical_value"`
	// BenfordMinSamples is the minimum trade count before the test runs.
	BenfordMinSamples int `yaml:"benford_min_samples"`
}

// ExecutionConfig controls the execution coordinator and its breakers.
type ExecutionConfig struct {
	MaxPositionSize      float64 `yaml:"max_position_size"`      // quote units per entry
	SlippageTolerance    float64 `yaml:"slippage_tolerance"`     // fraction per child order
	MaxClipFraction      float64 `yaml:"max_clip_fraction"`      // max child size as fraction of liquidity
	SubmitTimeoutSeconds int     `yaml:"submit_timeout_seconds"` // per provider call
	OrderTTLSeconds      int     `yaml:"order_ttl_seconds"`      // order deadline horizon

	FailureThreshold     int `yaml:"failure_threshold"`      // breaker trips at this count
	FailureWindowSeconds int `yaml:"failure_window_seconds"` // sliding window for the count
	CooldownSeconds      int `yaml:"cooldown_seconds"`       // OPEN -> HALF_OPEN delay

	ProviderRateLimit float64 `yaml:"provider_rate_limit"` // submissions/sec per provider
	BasePriorityFee   float64 `yaml:"base_priority_fee"`   // lamports, scaled by congestion and urgency

	// Providers lists the trade-submission relays in preference order.
	// Empty selects the paper provider (dry-run fills).
	Providers []ProviderEndpoint `yaml:"providers"`
}

// ProviderEndpoint names one external trade-submission relay.
type ProviderEndpoint struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SubmitTimeout returns the per-provider call timeout as a Duration.
func (e ExecutionConfig) SubmitTimeout() time.Duration {
	return time.Duration(e.SubmitTimeoutSeconds) * time.Second
}

// OrderTTL returns the order deadline horizon as a Duration.
func (e ExecutionConfig) OrderTTL() time.Duration {
	return time.Duration(e.OrderTTLSeconds) * time.Second
}

// FailureWindow returns the breaker failure window as a Duration.
func (e ExecutionConfig) FailureWindow() time.Duration {
	return time.Duration(e.FailureWindowSeconds) * time.Second
}

// Cooldown returns the breaker cooldown as a Duration.
func (e ExecutionConfig) Cooldown() time.Duration {
	return time.Duration(e.CooldownSeconds) * time.Second
}

// LifecycleConfig controls the position state machine.
type LifecycleConfig struct {
	StopLossPct   float64 `yaml:"stop_loss_pct"`   // e.g. 0.15 -> stop at entry*(1-0.15)
	TakeProfitPct float64 `yaml:"take_profit_pct"` // full-size exit at entry*(1+pct)

	TrailingActivationPct float64 `yaml:"trailing_activation_pct"` // arm trail at entry*(1+pct)
	TrailingBasePct       float64 `yaml:"trailing_base_pct"`

	PartialExitFraction float64 `yaml:"partial_exit_fraction"` // sold on first trail hit / surge
	PartialExitMinGain  float64 `yaml:"partial_exit_min_gain"` // unrealized gain enabling partial exits

	StagnationMaxHoldMinutes int     `yaml:"stagnation_max_hold_minutes"` // arm trail after this age
	StagnationProfitPct      float64 `yaml:"stagnation_profit_pct"`       // only while gain below this
}

// StagnationMaxHold returns the stagnation activation age as a Duration.
func (l LifecycleConfig) StagnationMaxHold() time.Duration {
	return time.Duration(l.StagnationMaxHoldMinutes) * time.Minute
}

// RiskConfig controls the process-wide risk governor.
type RiskConfig struct {
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
	DrawdownHaltThreshold  float64 `yaml:"drawdown_halt_threshold"` // quote units lost from peak
	DrawdownWindowMinutes  int     `yaml:"drawdown_window_minutes"`
	ConsecutiveFailureHalt int     `yaml:"consecutive_failure_halt"` // pool exhaustions before halt
}

// DrawdownWindow returns the rolling drawdown window as a Duration.
func (r RiskConfig) DrawdownWindow() time.Duration {
	return time.Duration(r.DrawdownWindowMinutes) * time.Minute
}

// FeedConfig controls the market-data feed client.
type FeedConfig struct {
	Endpoint string `yaml:"endpoint"` // websocket URL, empty selects the stub feed
}

// JournalConfig selects persistence backends and sizes their pools.
type JournalConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`   // positions + assessments; empty -> memory
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // ticks + execution results; empty -> memory

	PostgresMaxConns      int `yaml:"postgres_max_conns"`
	ClickhouseMaxConns    int `yaml:"clickhouse_max_conns"`
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
}

func (c JournalConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// Load reads the YAML file at path, applies env overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.setDefaults()

	return &cfg, nil
}

// Default returns a configuration with every default applied, for use
// when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	cfg.setDefaults()
	return cfg
}

// applyEnvOverrides overrides deployment-specific values from the
// environment when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Journal.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Journal.ClickhouseDSN = v
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills zero values with the engine defaults.
func (cfg *Config) setDefaults() {
	s := &cfg.Scoring
	if s.ViabilityThreshold == 0 {
		s.ViabilityThreshold = 70
	}
	if s.ConcentrationWeight == 0 {
		s.ConcentrationWeight = 1.0
	}
	if s.LPLockWeight == 0 {
		s.LPLockWeight = 1.0
	}
	if s.WashTradingWeight == 0 {
		s.WashTradingWeight = 1.0
	}
	if s.LiquidityWeight == 0 {
		s.LiquidityWeight = 1.0
	}
	if s.AuditWeight == 0 {
		s.AuditWeight = 1.0
	}
	if s.BenfordCriticalValue == 0 {
		s.BenfordCriticalValue = 15.507 // 8 d.o.f. at 95% confidence
	}
	if s.BenfordMinSamples == 0 {
		s.BenfordMinSamples = 30
	}

	e := &cfg.Execution
	if e.MaxPositionSize == 0 {
		e.MaxPositionSize = 100
	}
	if e.SlippageTolerance == 0 {
		e.SlippageTolerance = 0.02
	}
	if e.MaxClipFraction == 0 {
		e.MaxClipFraction = 0.01
	}
	if e.SubmitTimeoutSeconds == 0 {
		e.SubmitTimeoutSeconds = 8
	}
	if e.OrderTTLSeconds == 0 {
		e.OrderTTLSeconds = 30
	}
	if e.FailureThreshold == 0 {
		e.FailureThreshold = 5
	}
	if e.FailureWindowSeconds == 0 {
		e.FailureWindowSeconds = 60
	}
	if e.CooldownSeconds == 0 {
		e.CooldownSeconds = 60
	}
	if e.ProviderRateLimit == 0 {
		e.ProviderRateLimit = 4
	}
	if e.BasePriorityFee == 0 {
		e.BasePriorityFee = 10_000
	}

	l := &cfg.Lifecycle
	if l.StopLossPct == 0 {
		l.StopLossPct = 0.50
	}
	if l.TakeProfitPct == 0 {
		l.TakeProfitPct = 3.00
	}
	if l.TrailingActivationPct == 0 {
		l.TrailingActivationPct = 1.00
	}
	if l.TrailingBasePct == 0 {
		l.TrailingBasePct = 0.20
	}
	if l.PartialExitFraction == 0 {
		l.PartialExitFraction = 0.50
	}
	if l.PartialExitMinGain == 0 {
		l.PartialExitMinGain = 0.75
	}
	if l.StagnationMaxHoldMinutes == 0 {
		l.StagnationMaxHoldMinutes = 30
	}
	if l.StagnationProfitPct == 0 {
		l.StagnationProfitPct = 0.50
	}

	r := &cfg.Risk
	if r.MaxConcurrentPositions == 0 {
		r.MaxConcurrentPositions = 3
	}
	if r.DrawdownHaltThreshold == 0 {
		r.DrawdownHaltThreshold = 150
	}
	if r.DrawdownWindowMinutes == 0 {
		r.DrawdownWindowMinutes = 24 * 60
	}
	if r.ConsecutiveFailureHalt == 0 {
		r.ConsecutiveFailureHalt = 3
	}

	j := &cfg.Journal
	if j.PostgresMaxConns == 0 {
		j.PostgresMaxConns = 8
	}
	if j.ClickhouseMaxConns == 0 {
		j.ClickhouseMaxConns = 4
	}
	if j.ConnectTimeoutSeconds == 0 {
		j.ConnectTimeoutSeconds = 5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
