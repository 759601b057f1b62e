// Package config provides configuration loading for a wrench simulator
// run: environment-overlaid YAML, in the shape mbflow's internal/config
// package uses for its own server/database/logging sections.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything a wrench run needs: simulation sizing,
// logging, and the named scheduler/storage properties the simulator
// core reads from.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Observer   ObserverConfig   `yaml:"observer"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// TracingConfig mirrors internal/otelspan.Config.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// ObserverConfig controls the optional run-time observers a simulator
// run can attach to the controller's event stream: a WebSocket dashboard
// fan-out and a Postgres trace sink.
type ObserverConfig struct {
	EnableWebSocket bool   `yaml:"enable_websocket"`
	WebSocketAddr   string `yaml:"websocket_addr"`

	EnableDatabase bool   `yaml:"enable_database"`
	DatabaseHost   string `yaml:"database_host"`
	DatabasePort   int    `yaml:"database_port"`
	DatabaseName   string `yaml:"database_name"`
	DatabaseUser   string `yaml:"database_user"`
	DatabasePass   string `yaml:"database_password"`
}

// SimulationConfig sizes the simcore.Simulation a run builds.
type SimulationConfig struct {
	Seed       int64  `yaml:"seed"`
	MaxWallClock time.Duration `yaml:"max_wall_clock"`
	WorkflowPath string `yaml:"workflow_path"`
}

// LoggingConfig mirrors internal/wlog.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
}

// SchedulerConfig carries the named scheduler/storage properties a
// BareMetalComputeService, SimpleStorageService, and xrootd.Deployment
// are built with.
type SchedulerConfig struct {
	TerminateWheneverAllResourcesAreDown  bool          `yaml:"terminate_whenever_all_resources_are_down"`
	ReReadyActionAfterActionExecutorCrash bool          `yaml:"re_ready_action_after_action_executor_crash"`
	ThreadStartupOverhead                 time.Duration `yaml:"thread_startup_overhead"`

	CacheMaxLifetime        time.Duration `yaml:"cache_max_lifetime"`
	ReducedSimulation       bool          `yaml:"reduced_simulation"`
	BufferSize              int64         `yaml:"buffer_size"`
	MessageOverhead         float64       `yaml:"message_overhead"`
	CacheLookupOverhead     float64       `yaml:"cache_lookup_overhead"`
	SearchBroadcastOverhead float64       `yaml:"search_broadcast_overhead"`
	UpdateCacheOverhead     float64       `yaml:"update_cache_overhead"`
	LookupOverhead          float64       `yaml:"lookup_overhead"`
}

// Default returns the Config a run has if neither a file nor
// environment variables override anything.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Seed:         1,
			MaxWallClock: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Scheduler: SchedulerConfig{
			TerminateWheneverAllResourcesAreDown:  false,
			ReReadyActionAfterActionExecutorCrash: true,
			ThreadStartupOverhead:                 0,
			CacheMaxLifetime:                      0,
			ReducedSimulation:                     false,
			BufferSize:                            4 << 20,
			MessageOverhead:                       0,
			CacheLookupOverhead:                   0,
			SearchBroadcastOverhead:                0,
			UpdateCacheOverhead:                   0,
			LookupOverhead:                        0,
		},
		Observer: ObserverConfig{
			EnableWebSocket: false,
			WebSocketAddr:   ":8089",
			EnableDatabase:  false,
			DatabaseHost:    "localhost",
			DatabasePort:    5432,
			DatabaseName:    "wrench",
			DatabaseUser:    "wrench",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "wrench",
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}

// Load builds a Config starting from Default, applying path (a YAML
// file, if non-empty) on top, then WRENCH_-prefixed environment
// variables on top of that. A .env file in the working directory is
// read first, as godotenv.Load populates os.Getenv before any
// WRENCH_-prefixed lookups happen.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Simulation.Seed = getEnvAsInt64("WRENCH_SEED", cfg.Simulation.Seed)
	cfg.Simulation.MaxWallClock = getEnvAsDuration("WRENCH_MAX_WALL_CLOCK", cfg.Simulation.MaxWallClock)
	cfg.Simulation.WorkflowPath = getEnv("WRENCH_WORKFLOW_PATH", cfg.Simulation.WorkflowPath)

	cfg.Logging.Level = getEnv("WRENCH_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSON = getEnvAsBool("WRENCH_LOG_JSON", cfg.Logging.JSON)

	s := &cfg.Scheduler
	s.TerminateWheneverAllResourcesAreDown = getEnvAsBool("WRENCH_TERMINATE_WHENEVER_ALL_RESOURCES_ARE_DOWN", s.TerminateWheneverAllResourcesAreDown)
	s.ReReadyActionAfterActionExecutorCrash = getEnvAsBool("WRENCH_RE_READY_ACTION_AFTER_ACTION_EXECUTOR_CRASH", s.ReReadyActionAfterActionExecutorCrash)
	s.ThreadStartupOverhead = getEnvAsDuration("WRENCH_THREAD_STARTUP_OVERHEAD", s.ThreadStartupOverhead)
	s.CacheMaxLifetime = getEnvAsDuration("WRENCH_CACHE_MAX_LIFETIME", s.CacheMaxLifetime)
	s.ReducedSimulation = getEnvAsBool("WRENCH_REDUCED_SIMULATION", s.ReducedSimulation)
	s.BufferSize = getEnvAsInt64("WRENCH_BUFFER_SIZE", s.BufferSize)
	s.MessageOverhead = getEnvAsFloat("WRENCH_MESSAGE_OVERHEAD", s.MessageOverhead)
	s.CacheLookupOverhead = getEnvAsFloat("WRENCH_CACHE_LOOKUP_OVERHEAD", s.CacheLookupOverhead)
	s.SearchBroadcastOverhead = getEnvAsFloat("WRENCH_SEARCH_BROADCAST_OVERHEAD", s.SearchBroadcastOverhead)
	s.UpdateCacheOverhead = getEnvAsFloat("WRENCH_UPDATE_CACHE_OVERHEAD", s.UpdateCacheOverhead)
	s.LookupOverhead = getEnvAsFloat("WRENCH_LOOKUP_OVERHEAD", s.LookupOverhead)

	o := &cfg.Observer
	o.EnableWebSocket = getEnvAsBool("WRENCH_ENABLE_WEBSOCKET", o.EnableWebSocket)
	o.WebSocketAddr = getEnv("WRENCH_WEBSOCKET_ADDR", o.WebSocketAddr)
	o.EnableDatabase = getEnvAsBool("WRENCH_ENABLE_DATABASE", o.EnableDatabase)
	o.DatabaseHost = getEnv("WRENCH_DATABASE_HOST", o.DatabaseHost)
	o.DatabasePort = int(getEnvAsInt64("WRENCH_DATABASE_PORT", int64(o.DatabasePort)))
	o.DatabaseName = getEnv("WRENCH_DATABASE_NAME", o.DatabaseName)
	o.DatabaseUser = getEnv("WRENCH_DATABASE_USER", o.DatabaseUser)
	o.DatabasePass = getEnv("WRENCH_DATABASE_PASSWORD", o.DatabasePass)

	tr := &cfg.Tracing
	tr.Enabled = getEnvAsBool("WRENCH_TRACING_ENABLED", tr.Enabled)
	tr.ServiceName = getEnv("WRENCH_TRACING_SERVICE_NAME", tr.ServiceName)
	tr.Endpoint = getEnv("WRENCH_TRACING_ENDPOINT", tr.Endpoint)
	tr.Insecure = getEnvAsBool("WRENCH_TRACING_INSECURE", tr.Insecure)
	tr.SampleRate = getEnvAsFloat("WRENCH_TRACING_SAMPLE_RATE", tr.SampleRate)
}

// Validate rejects a configuration the rest of the module could not run
// with.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Scheduler.BufferSize <= 0 {
		return fmt.Errorf("scheduler buffer_size must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
