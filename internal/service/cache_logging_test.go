package service

import (
	"context"
	"testing"

	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/config"
	"github.com/mis-sentinel/internal/constants"
	"github.com/mis-sentinel/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// 缓存不可达时仍返回数据库结果，写入失败记为 warn
func TestCacheWriteFailuresAreLogged(t *testing.T) {
	env := setupLedgerServiceTest(t)
	ctx := context.Background()
	partner := env.createPartner(t, "cache-down@example.com", constants.CommissionTypePercentage, 10)
	env.createEarning(t, partner.ID, 40, constants.EarningStatusPending)

	core, logs := observer.New(zapcore.WarnLevel)
	previous := logger.L
	logger.L = zap.New(core)
	require.NoError(t, cache.InitRedis(&config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}))
	t.Cleanup(func() {
		_ = cache.Close()
		logger.L = previous
	})

	summary, err := env.earnings.Summary(ctx, partner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.TotalCount)

	stats, err := env.partners.Stats(ctx, partner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Earnings.TotalCount)

	assert.Equal(t, 2, logs.FilterMessage("ledger_summary_cache_write_failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("partner_stats_cache_read_failed").Len())
	writes := logs.FilterMessage("partner_stats_cache_write_failed").All()
	require.Len(t, writes, 1)
	assert.EqualValues(t, partner.ID, writes[0].ContextMap()["partner_id"])
}
