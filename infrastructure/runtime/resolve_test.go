package runtime

import (
	"os"
	"testing"
	"time"
)

func TestResolveInt(t *testing.T) {
	tests := []struct {
		name     string
		cfgValue int
		envKey   string
		envValue string
		fallback int
		want     int
	}{
		{"cfg value wins", 8, "MIXER_INTERMEDIATE_WALLET_COUNT", "", 4, 8},
		{"env value wins when cfg is zero", 0, "MIXER_INTERMEDIATE_WALLET_COUNT", "6", 4, 6},
		{"fallback when both empty", 0, "MIXER_INTERMEDIATE_WALLET_COUNT", "", 4, 4},
		{"cfg zero and env invalid", 0, "MIXER_INTERMEDIATE_WALLET_COUNT", "notanumber", 4, 4},
		{"negative cfg falls through", -1, "MIXER_INTERMEDIATE_WALLET_COUNT", "", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.envKey, tt.envValue)
			} else {
				os.Unsetenv(tt.envKey)
			}
			got := ResolveInt(tt.cfgValue, tt.envKey, tt.fallback)
			if got != tt.want {
				t.Errorf("ResolveInt(%d, %q, %d) = %d, want %d", tt.cfgValue, tt.envKey, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestResolveDuration(t *testing.T) {
	tests := []struct {
		name     string
		cfgValue time.Duration
		envKey   string
		envValue string
		fallback time.Duration
		want     time.Duration
	}{
		{"cfg value wins", 5 * time.Second, "MIXER_BALANCE_CHECK_TIMEOUT", "", time.Second, 5 * time.Second},
		{"env value wins", 0, "MIXER_BALANCE_CHECK_TIMEOUT", "30s", time.Second, 30 * time.Second},
		{"fallback when both empty", 0, "MIXER_BALANCE_CHECK_TIMEOUT", "", time.Second, time.Second},
		{"invalid env falls to fallback", 0, "MIXER_BALANCE_CHECK_TIMEOUT", "notaduration", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.envKey, tt.envValue)
			} else {
				os.Unsetenv(tt.envKey)
			}
			got := ResolveDuration(tt.cfgValue, tt.envKey, tt.fallback)
			if got != tt.want {
				t.Errorf("ResolveDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveString_MaintenanceSchedule(t *testing.T) {
	const key = "MIXER_MAINTENANCE_SCHEDULE"
	const compiledInDefault = "*/5 * * * *"

	t.Run("compiled-in default when unset", func(t *testing.T) {
		os.Unsetenv(key)
		if got := ResolveString("", key, compiledInDefault); got != compiledInDefault {
			t.Errorf("ResolveString() = %q, want %q", got, compiledInDefault)
		}
	})

	t.Run("env override wins", func(t *testing.T) {
		t.Setenv(key, "0 */1 * * *")
		if got := ResolveString("", key, compiledInDefault); got != "0 */1 * * *" {
			t.Errorf("ResolveString() = %q, want override", got)
		}
	})

	t.Run("whitespace-only cfg falls through to env", func(t *testing.T) {
		t.Setenv(key, "@every 10m")
		if got := ResolveString("  ", key, compiledInDefault); got != "@every 10m" {
			t.Errorf("ResolveString() = %q, want @every 10m", got)
		}
	})
}

func TestResolveBool_ConfirmDrain(t *testing.T) {
	const key = "MIXERCTL_CONFIRM_DRAIN"

	tests := []struct {
		name     string
		envValue string
		want     bool
	}{
		{"unset defaults to false (fail closed)", "", false},
		{"yes confirms", "yes", true},
		{"garbage does not confirm", "maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			if got := ResolveBool(false, key); got != tt.want {
				t.Errorf("ResolveBool(false, %q) = %v, want %v", key, got, tt.want)
			}
		})
	}
}
