package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStreamNotifier 发布通知到 Redis Streams（供 UI / 推送服务消费）
type RedisStreamNotifier struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewRedisStreamNotifier 创建 Redis Streams 通知器
func NewRedisStreamNotifier(redisClient *redis.Client, stream string, logger *zap.Logger) *RedisStreamNotifier {
	return &RedisStreamNotifier{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// NotifyViolation 发布阈值违规通知
func (r *RedisStreamNotifier) NotifyViolation(ctx context.Context, n *models.ViolationNotification) error {
	return r.publish(ctx, models.NotificationViolation, n.NotificationID, n)
}

// NotifyDetection 发布害虫检测通知
func (r *RedisStreamNotifier) NotifyDetection(ctx context.Context, n *models.DetectionNotification) error {
	return r.publish(ctx, models.NotificationDetection, n.NotificationID, n)
}

// publish 使用 XADD 写入一条消息：type + JSON data
func (r *RedisStreamNotifier) publish(ctx context.Context, notificationType, id string, data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	streamID, err := r.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"type":            notificationType,
			"notification_id": id,
			"data":            string(jsonBytes),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", r.stream, err)
	}

	r.logger.Debug("Published notification to Redis Streams",
		zap.String("stream", r.stream),
		zap.String("stream_id", streamID),
		zap.String("type", notificationType),
	)
	return nil
}
