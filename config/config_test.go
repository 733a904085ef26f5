package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(50), cfg.SignupBonus)
	assert.True(t, cfg.JackpotBaseFloor.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "Australia/Melbourne", cfg.JackpotLocation.String())
	assert.Equal(t, []int64{5, 10, 15, 20, 25, 30}, cfg.PromoAmounts)
	assert.Equal(t, int64(100), cfg.EventCapPerDay)
	assert.Equal(t, []int64{5, 10, 15, 20, 25, 30}, cfg.RechargePackages)
	assert.Equal(t, int64(30), cfg.RechargeCapPerDay)
	assert.True(t, cfg.EventJackpotPerSub.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 500*time.Millisecond, cfg.StateSaveDelay)
	assert.Equal(t, []string{"./data/lbx-state.json", "/tmp/lbx-state.json"}, cfg.StateFileCandidates())
	assert.Equal(t, EventSinkNone, cfg.EventSink)

	// no secret outside production opens the admin gate
	assert.True(t, cfg.DisableAdminAuth)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432")
	t.Setenv("DATABASE_NAME", "lbx")
	t.Setenv("SIGNUP_BONUS", "0")
	t.Setenv("JACKPOT_TIMEZONE", "UTC")
	t.Setenv("PROMO_AMOUNTS", "5, 50")
	t.Setenv("ADMIN_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EVENT_SINK", "kafka")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://u:p@db:5432/lbx?sslmode=disable", cfg.GetDatabaseURL())
	assert.Equal(t, int64(0), cfg.SignupBonus)
	assert.Equal(t, time.UTC, cfg.JackpotLocation)
	assert.Equal(t, []int64{5, 50}, cfg.PromoAmounts)
	assert.False(t, cfg.DisableAdminAuth)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres"}},
		{name: "negative bonus", env: map[string]string{"STORAGE_DRIVER": "memory", "SIGNUP_BONUS": "-1"}},
		{name: "zero floor", env: map[string]string{"STORAGE_DRIVER": "memory", "JACKPOT_BASE_FLOOR": "0"}},
		{name: "bad timezone", env: map[string]string{"STORAGE_DRIVER": "memory", "JACKPOT_TIMEZONE": "Mars/Olympus"}},
		{name: "bad promo amount", env: map[string]string{"STORAGE_DRIVER": "memory", "PROMO_AMOUNTS": "5,x"}},
		{name: "bad recharge package", env: map[string]string{"STORAGE_DRIVER": "memory", "RECHARGE_PACKAGES": "0"}},
		{name: "zero recharge cap", env: map[string]string{"STORAGE_DRIVER": "memory", "RECHARGE_CAP_PER_DAY": "0"}},
		{name: "zero cap", env: map[string]string{"STORAGE_DRIVER": "memory", "EVENT_CAP_PER_DAY": "0"}},
		{name: "production without admin secret", env: map[string]string{"STORAGE_DRIVER": "memory", "ENVIRONMENT": "production"}},
		{name: "unknown sink", env: map[string]string{"STORAGE_DRIVER": "memory", "EVENT_SINK": "carrier-pigeon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_FallbackAllowsMissingURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("ALLOW_MEMORY_FALLBACK", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AllowMemoryFallback)
}

func TestGet_UsesTestConfig(t *testing.T) {
	ResetConfig()
	defer ResetConfig()

	testConfig := NewTestConfig()
	testConfig.SignupBonus = 7
	SetTestConfig(testConfig)

	assert.Same(t, testConfig, Get())
	assert.Equal(t, int64(7), Get().SignupBonus)
}
