// Package config loads the engine's own operating parameters: rollup level
// definitions, retention, truncation thresholds, and the handles (Cassandra,
// Redis, tracing) everything else in this repository is built on top of.
//
// Agent enrollment, API-key issuance, and the rest of the surrounding
// system's configuration are someone else's problem; this package only
// knows about the knobs the rollup engine itself needs to run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Log          LogConfig           `yaml:"log"`
	Statsd       StatsdConfig        `yaml:"statsd"`
	Cassandra    CassandraConfig     `yaml:"cassandra"`
	Redis        RedisConfig         `yaml:"redis"`
	Telemetry    TelemetryConfig     `yaml:"telemetry"`
	Rollup       RollupConfig        `yaml:"rollup"`
	SharedText   SharedTextConfig    `yaml:"shared_query_text"`
	AgentRollups []AgentRollupConfig `yaml:"agent_rollups"`
}

// AgentRollupConfig declares one node of the flat/static agent-rollup tree
// that cmd/rollupd drives its scheduler from. Real deployments resolve
// this tree from agent enrollment records (out of scope here, per
// internal/agentrollup's doc comment); this is the config-file-backed
// shape for single-tenant or test deployments.
type AgentRollupConfig struct {
	ID     string `yaml:"id"`
	Parent string `yaml:"parent"`
}

// LogConfig controls the named sub-loggers (System/Store/Rollup/Reader).
type LogConfig struct {
	Dir   string `yaml:"dir"`   // empty means log to stderr
	Level string `yaml:"level"` // debug|info|warn|error|fatal
}

// StatsdConfig is retained from the teacher for parity with legacy
// deployments that still scrape StatsD; Prometheus (Telemetry.Metrics) is
// the primary metrics path.
type StatsdConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CassandraConfig describes how to reach the wide-column store.
type CassandraConfig struct {
	Hosts          []string      `yaml:"hosts"`
	Port           int           `yaml:"port"`
	Keyspace       string        `yaml:"keyspace"`
	Strategy       string        `yaml:"strategy"`    // e.g. SimpleStrategy, NetworkTopologyStrategy
	CreateOpts     string        `yaml:"create_opts"`
	Consistency    string        `yaml:"consistency"`
	Timeout        time.Duration `yaml:"timeout"`
	DNSCacheTTL    time.Duration `yaml:"dns_cache_ttl"`
	DiscoverHosts  bool          `yaml:"discover_hosts"`
}

// RedisConfig backs the cross-instance tier of the shared-query-text cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TelemetryConfig controls Prometheus metrics and OpenTelemetry tracing.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls the OTLP gRPC exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
}

// RollupLevel describes one rollup level's bucket interval and retention.
type RollupLevel struct {
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

// RollupConfig describes the rollup-level ladder and capping rules.
type RollupConfig struct {
	// Levels[0] is level 0 (raw per-minute data); Levels[i] for i>=1 is the
	// i'th rollup level. len(Levels) >= 2.
	Levels []RollupLevel `yaml:"levels"`

	// TopNQueries / TopNServiceCalls cap the query/service_call merge per
	// (agent_rollup, transaction_type, capture_time) bucket.
	TopNQueries      int `yaml:"top_n_queries"`
	TopNServiceCalls int `yaml:"top_n_service_calls"`
}

// SharedTextConfig controls the full-text side-table dedup behavior.
type SharedTextConfig struct {
	TruncationThreshold int           `yaml:"truncation_threshold"`
	TTLRefreshWindow     time.Duration `yaml:"ttl_refresh_window"`
	LocalCacheSize       int           `yaml:"local_cache_size"`
}

// ParentMap builds the child->parent map agentrollup.NewStaticResolver
// expects from the flat config-file tree declaration.
func (c Config) ParentMap() map[string]string {
	m := make(map[string]string, len(c.AgentRollups))
	for _, a := range c.AgentRollups {
		m[a.ID] = a.Parent
	}
	return m
}

// MaxRollupInterval returns the largest configured rollup interval, used by
// the TTL policy's work-queue discount (see internal/store.WorkQueueTTL).
func (c RollupConfig) MaxRollupInterval() time.Duration {
	var max time.Duration
	for _, lvl := range c.Levels {
		if lvl.Interval > max {
			max = lvl.Interval
		}
	}
	return max
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Default returns an engine configuration with the reference four-level
// ladder (1 minute raw, 5 minute, 30 minute, 1 day) used throughout the
// tests and scenario walkthroughs in spec.md §8.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Cassandra: CassandraConfig{
			Port:          9042,
			Keyspace:      "aggrollup",
			Strategy:      "SimpleStrategy",
			Consistency:   "LOCAL_QUORUM",
			Timeout:       10 * time.Second,
			DNSCacheTTL:   5 * time.Minute,
			DiscoverHosts: true,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
		Rollup: RollupConfig{
			Levels: []RollupLevel{
				{Interval: time.Minute, Retention: 7 * 24 * time.Hour},
				{Interval: 5 * time.Minute, Retention: 30 * 24 * time.Hour},
				{Interval: 30 * time.Minute, Retention: 90 * 24 * time.Hour},
				{Interval: 24 * time.Hour, Retention: 2 * 365 * 24 * time.Hour},
			},
			TopNQueries:      10,
			TopNServiceCalls: 10,
		},
		SharedText: SharedTextConfig{
			TruncationThreshold: 120,
			TTLRefreshWindow:    time.Hour,
			LocalCacheSize:      4096,
		},
	}
}

// Validate checks the invariants the rest of the engine relies on.
func (c *Config) Validate() error {
	if len(c.Rollup.Levels) < 2 {
		return fmt.Errorf("rollup.levels must define at least level 0 and level 1")
	}
	for i := 1; i < len(c.Rollup.Levels); i++ {
		if c.Rollup.Levels[i].Interval <= c.Rollup.Levels[i-1].Interval {
			return fmt.Errorf("rollup.levels[%d].interval must exceed level %d's interval", i, i-1)
		}
		if c.Rollup.Levels[i].Retention < c.Rollup.Levels[i].Interval {
			return fmt.Errorf("rollup.levels[%d].retention must be at least its interval", i)
		}
	}
	if c.SharedText.TruncationThreshold <= 0 {
		return fmt.Errorf("shared_query_text.truncation_threshold must be positive")
	}
	return nil
}
