package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// CacheManager 仪表盘快照缓存（最新读数、最新评估结果）
type CacheManager struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(redisClient *redis.Client, keyPrefix string, ttlSeconds int, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         time.Duration(ttlSeconds) * time.Second,
		logger:      logger,
	}
}

// readingKey 例如 "ecofarm:stream:temperature:latest"
func (c *CacheManager) readingKey(metric models.MetricType) string {
	return fmt.Sprintf("%sstream:%s:latest", c.keyPrefix, metric)
}

// evaluationKey 例如 "ecofarm:subject:plant-1:evaluation"
func (c *CacheManager) evaluationKey(subjectID string) string {
	return fmt.Sprintf("%ssubject:%s:evaluation", c.keyPrefix, subjectID)
}

// SetLatestReading 缓存数据流最新写入的读数
func (c *CacheManager) SetLatestReading(ctx context.Context, reading *models.Reading) error {
	return c.set(ctx, c.readingKey(reading.Metric), reading)
}

// GetLatestReading 读取数据流最新读数
func (c *CacheManager) GetLatestReading(ctx context.Context, metric models.MetricType) (*models.Reading, error) {
	var reading models.Reading
	if err := c.get(ctx, c.readingKey(metric), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// SetEvaluation 缓存植物最新评估结果（UI 显示当前连续违规次数）
func (c *CacheManager) SetEvaluation(ctx context.Context, eval *models.Evaluation) error {
	return c.set(ctx, c.evaluationKey(eval.SubjectID), eval)
}

// GetEvaluation 读取植物最新评估结果
func (c *CacheManager) GetEvaluation(ctx context.Context, subjectID string) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := c.get(ctx, c.evaluationKey(subjectID), &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

func (c *CacheManager) set(ctx context.Context, key string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated cache",
		zap.String("key", key),
	)
	return nil
}

func (c *CacheManager) get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}
