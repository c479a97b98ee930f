package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceAcademyGame/internal/dialogue"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "configs/checkpoint.yaml", cfg.CheckpointPath)
	assert.Equal(t, dialogue.PolicyReject, cfg.SessionPolicy())
	assert.True(t, cfg.Watch)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SAG_ADDR", "127.0.0.1:9000")
	t.Setenv("SAG_POLICY", "queue")
	t.Setenv("SAG_DEV", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, dialogue.PolicyQueue, cfg.SessionPolicy())
	assert.True(t, cfg.Dev)
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("SAG_DEV", "sometimes")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigOverrides(t *testing.T) {
	base := Config{Addr: ":8080", CheckpointPath: "a.yaml", Policy: "reject"}
	addr := ":9999"
	policy := "replace"
	watch := false

	got := ConfigOverrides{Addr: &addr, Policy: &policy, Watch: &watch}.Apply(base)
	assert.Equal(t, ":9999", got.Addr)
	assert.Equal(t, "a.yaml", got.CheckpointPath)
	assert.Equal(t, dialogue.PolicyReplace, got.SessionPolicy())
	assert.False(t, got.Watch)

	assert.Equal(t, base, ConfigOverrides{}.Apply(base))
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{CheckpointPath: "x"}.Validate())
	assert.Error(t, Config{Addr: ":1"}.Validate())
	assert.Error(t, Config{Addr: ":1", CheckpointPath: "x", Policy: "sometimes"}.Validate())
}
