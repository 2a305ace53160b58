package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override, e.g. AGENTCORE_TICK_INTERVAL.
const EnvPrefix = "AGENTCORE_"

// Settings are the typed runtime knobs read from a Config.
type Settings struct {
	// TickInterval is the base scheduler interval for agents that do not set their own.
	TickInterval time.Duration
	// Adaptive enables interval widening/narrowing.
	Adaptive bool
	// BatchSize bounds how many definitions load concurrently.
	BatchSize int
	// CacheTTL is the coordinator's default entry lifetime.
	CacheTTL time.Duration
	// BatchWindow is how long the coordinator collects callers into one batch.
	BatchWindow time.Duration
	// CacheCleanupInterval is how often expired entries are purged; 0 disables.
	CacheCleanupInterval time.Duration
	// EventLogLimit caps the in-memory event log; 0 keeps everything.
	EventLogLimit int
	// DefinitionDir is scanned for agent definition files.
	DefinitionDir string
	// LogLevel and LogFormat configure the runtime logger.
	LogLevel  string
	LogFormat string
	// Metrics and Tracing toggle OpenTelemetry instrumentation.
	Metrics bool
	Tracing bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		TickInterval:         time.Second,
		Adaptive:             true,
		BatchSize:            10,
		CacheTTL:             5 * time.Minute,
		BatchWindow:          time.Millisecond,
		CacheCleanupInterval: time.Minute,
		EventLogLimit:        0,
		DefinitionDir:        "agents",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// LoadSettings reads Settings from cfg, falling back to DefaultSettings.
//
// Recognized keys:
//
//	scheduler.interval, scheduler.adaptive
//	loader.batch_size, loader.dir
//	cache.ttl, cache.batch_window, cache.cleanup_interval
//	events.log_limit
//	log.level, log.format
//	telemetry.metrics, telemetry.tracing
func LoadSettings(cfg Config) Settings {
	d := DefaultSettings()
	return Settings{
		TickInterval:         cfg.Duration("scheduler.interval", d.TickInterval),
		Adaptive:             cfg.Bool("scheduler.adaptive", d.Adaptive),
		BatchSize:            cfg.Int("loader.batch_size", d.BatchSize),
		DefinitionDir:        cfg.String("loader.dir", d.DefinitionDir),
		CacheTTL:             cfg.Duration("cache.ttl", d.CacheTTL),
		BatchWindow:          cfg.Duration("cache.batch_window", d.BatchWindow),
		CacheCleanupInterval: cfg.Duration("cache.cleanup_interval", d.CacheCleanupInterval),
		EventLogLimit:        cfg.Int("events.log_limit", d.EventLogLimit),
		LogLevel:             cfg.String("log.level", d.LogLevel),
		LogFormat:            cfg.String("log.format", d.LogFormat),
		Metrics:              cfg.Bool("telemetry.metrics", d.Metrics),
		Tracing:              cfg.Bool("telemetry.tracing", d.Tracing),
	}
}

// ApplyEnv overrides s from AGENTCORE_* environment variables using lookup
// (os.LookupEnv when nil). Unparseable values are ignored.
func (s Settings) ApplyEnv(lookup func(string) (string, bool)) Settings {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := env("TICK_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			s.TickInterval = d
		}
	}
	if v, ok := env("ADAPTIVE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Adaptive = b
		}
	}
	if v, ok := env("BATCH_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.BatchSize = n
		}
	}
	if v, ok := env("CACHE_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			s.CacheTTL = d
		}
	}
	if v, ok := env("DEFINITION_DIR"); ok {
		s.DefinitionDir = v
	}
	if v, ok := env("LOG_LEVEL"); ok {
		s.LogLevel = v
	}
	if v, ok := env("LOG_FORMAT"); ok {
		s.LogFormat = v
	}
	return s
}

// Normalize replaces non-positive values with defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.TickInterval <= 0 {
		s.TickInterval = d.TickInterval
	}
	if s.BatchSize <= 0 {
		s.BatchSize = d.BatchSize
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = d.CacheTTL
	}
	if s.BatchWindow < 0 {
		s.BatchWindow = 0
	}
	if s.CacheCleanupInterval < 0 {
		s.CacheCleanupInterval = 0
	}
	if s.EventLogLimit < 0 {
		s.EventLogLimit = 0
	}
	return s
}
