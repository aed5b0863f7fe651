package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.UseMemoryQueue)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 4, cfg.SlotHorizonWeeks)
	assert.Equal(t, 45, cfg.SlotDurationMins)
	assert.Equal(t, "redis", cfg.SessionStore)
	assert.Equal(t, 5*time.Second, cfg.CollaboratorWait)
	assert.Equal(t, "America/Sao_Paulo", cfg.CalendarTimezone)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("COLLABORATOR_TIMEOUT", "2s")
	t.Setenv("SESSION_STORE", "Postgres")
	t.Setenv("GOOGLE_SCHEDULES_LINK", "https://calendar.example/clinic")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.UseMemoryQueue)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 2*time.Second, cfg.CollaboratorWait)
	assert.Equal(t, "postgres", cfg.SessionStore)
	assert.Equal(t, "https://calendar.example/clinic", cfg.SchedulingLink)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("USE_MEMORY_QUEUE", "sim")
	t.Setenv("COLLABORATOR_TIMEOUT", "five seconds")

	cfg := Load()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.True(t, cfg.UseMemoryQueue)
	assert.Equal(t, 5*time.Second, cfg.CollaboratorWait)
}
