package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsLedgerSection(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, 10.0, cfg.Ledger.DefaultCommissionRate)
	assert.Equal(t, "UTC", cfg.Ledger.Timezone)
	assert.False(t, cfg.Ledger.AllowHoldFromAny)
	assert.Equal(t, 500, cfg.Ledger.MaxBulkPay)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 120, cfg.Security.RateLimit.MaxRequests)
}

func TestSetDefaultsOverriddenBySet(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ledger.allow_hold_from_any", true)
	v.Set("ledger.timezone", "Asia/Jakarta")

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.True(t, cfg.Ledger.AllowHoldFromAny)
	assert.Equal(t, "Asia/Jakarta", cfg.Ledger.Timezone)
}
