package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *CacheManager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { redisClient.Close() })

	return mr, NewCacheManager(redisClient, "ecofarm:", 3600, zap.NewNop())
}

func TestCacheManager_LatestReading(t *testing.T) {
	mr, cm := setupTestRedis(t)
	ctx := context.Background()

	recordedAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	err := cm.SetLatestReading(ctx, &models.Reading{
		Metric:     models.MetricTemperature,
		Value:      25.5,
		Unit:       "°C",
		RecordedAt: recordedAt,
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("ecofarm:stream:temperature:latest"))
	assert.Equal(t, time.Hour, mr.TTL("ecofarm:stream:temperature:latest"))

	got, err := cm.GetLatestReading(ctx, models.MetricTemperature)
	require.NoError(t, err)
	assert.Equal(t, 25.5, got.Value)
	assert.True(t, recordedAt.Equal(got.RecordedAt))
}

func TestCacheManager_Evaluation(t *testing.T) {
	_, cm := setupTestRedis(t)
	ctx := context.Background()

	eval := &models.Evaluation{
		SubjectID:        "plant-1",
		ConsecutiveCount: 2,
		TriggerCount:     3,
		Phase:            models.PhaseAccumulating,
		Violations: []models.MetricCheck{
			{Metric: models.MetricHumidity, Status: models.StatusWarning, Value: 85},
		},
		Durable: true,
	}
	require.NoError(t, cm.SetEvaluation(ctx, eval))

	got, err := cm.GetEvaluation(ctx, "plant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ConsecutiveCount)
	assert.Equal(t, models.PhaseAccumulating, got.Phase)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, models.MetricHumidity, got.Violations[0].Metric)
}

func TestCacheManager_Miss(t *testing.T) {
	_, cm := setupTestRedis(t)

	_, err := cm.GetEvaluation(context.Background(), "plant-unknown")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = cm.GetLatestReading(context.Background(), models.MetricHumidity)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheManager_RedisDown(t *testing.T) {
	mr, cm := setupTestRedis(t)
	mr.Close()

	err := cm.SetEvaluation(context.Background(), &models.Evaluation{SubjectID: "plant-1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
