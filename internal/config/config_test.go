package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv() {
	for _, k := range []string{
		"WRENCH_SEED", "WRENCH_MAX_WALL_CLOCK", "WRENCH_WORKFLOW_PATH",
		"WRENCH_LOG_LEVEL", "WRENCH_LOG_JSON",
		"WRENCH_TERMINATE_WHENEVER_ALL_RESOURCES_ARE_DOWN",
		"WRENCH_RE_READY_ACTION_AFTER_ACTION_EXECUTOR_CRASH",
		"WRENCH_THREAD_STARTUP_OVERHEAD", "WRENCH_CACHE_MAX_LIFETIME",
		"WRENCH_REDUCED_SIMULATION", "WRENCH_BUFFER_SIZE",
		"WRENCH_MESSAGE_OVERHEAD", "WRENCH_CACHE_LOOKUP_OVERHEAD",
		"WRENCH_SEARCH_BROADCAST_OVERHEAD", "WRENCH_UPDATE_CACHE_OVERHEAD",
		"WRENCH_LOOKUP_OVERHEAD",
		"WRENCH_ENABLE_WEBSOCKET", "WRENCH_WEBSOCKET_ADDR",
		"WRENCH_ENABLE_DATABASE", "WRENCH_DATABASE_HOST", "WRENCH_DATABASE_PORT",
		"WRENCH_DATABASE_NAME", "WRENCH_DATABASE_USER", "WRENCH_DATABASE_PASSWORD",
		"WRENCH_TRACING_ENABLED", "WRENCH_TRACING_SERVICE_NAME",
		"WRENCH_TRACING_ENDPOINT", "WRENCH_TRACING_INSECURE", "WRENCH_TRACING_SAMPLE_RATE",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.False(t, cfg.Scheduler.TerminateWheneverAllResourcesAreDown)
	assert.True(t, cfg.Scheduler.ReReadyActionAfterActionExecutorCrash)
	assert.Equal(t, int64(4<<20), cfg.Scheduler.BufferSize)
	assert.False(t, cfg.Observer.EnableWebSocket)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "wrench", cfg.Tracing.ServiceName)
}

func TestLoad_TracingEnvOverrides(t *testing.T) {
	clearEnv()
	defer clearEnv()

	os.Setenv("WRENCH_TRACING_ENABLED", "true")
	os.Setenv("WRENCH_TRACING_ENDPOINT", "collector:4318")
	os.Setenv("WRENCH_TRACING_SAMPLE_RATE", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv()
	defer clearEnv()

	os.Setenv("WRENCH_LOG_LEVEL", "debug")
	os.Setenv("WRENCH_REDUCED_SIMULATION", "true")
	os.Setenv("WRENCH_BUFFER_SIZE", "1024")
	os.Setenv("WRENCH_CACHE_MAX_LIFETIME", "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Scheduler.ReducedSimulation)
	assert.Equal(t, int64(1024), cfg.Scheduler.BufferSize)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.CacheMaxLifetime)
}

func TestLoad_InvalidLogLevelRejected(t *testing.T) {
	clearEnv()
	defer clearEnv()

	os.Setenv("WRENCH_LOG_LEVEL", "verbose")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv()

	f, err := os.CreateTemp(t.TempDir(), "wrench-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("scheduler:\n  buffer_size: 2048\n  reduced_simulation: true\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.Scheduler.BufferSize)
	assert.True(t, cfg.Scheduler.ReducedSimulation)
}
