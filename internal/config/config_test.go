package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MIXER_DATABASE_URL", "postgres://localhost/mixer")
	t.Setenv("ENCRYPTION_SECRET", "test-secret")
	t.Setenv("RPC_ENDPOINT", "http://localhost:8899")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8, cfg.IntermediateWalletCount)
	require.Equal(t, 3, cfg.MaxConcurrentTx)
	require.False(t, cfg.ParallelMode)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("MIXER_DATABASE_URL")
	os.Unsetenv("ENCRYPTION_SECRET")
	os.Unsetenv("RPC_ENDPOINT")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_RejectsInvertedDelayBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIXER_MIN_DELAY", "30s")
	t.Setenv("MIXER_MAX_DELAY", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroHopCount(t *testing.T) {
	cfg := &Config{IntermediateWalletCount: 0, MaxConcurrentTx: 1}
	require.Error(t, cfg.Validate())
}
