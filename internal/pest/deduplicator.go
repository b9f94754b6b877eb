package pest

import (
	"context"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/zap"
)

// DetectionStore 已持久化检测事件的读取接口
type DetectionStore interface {
	// GetRecentDetections 返回 detected_at > since 的同类检测（类别大小写不敏感）
	GetRecentDetections(ctx context.Context, eventClass string, since time.Time) ([]models.DetectionEvent, error)
}

// AlertDeduplicator 害虫报警去重：低置信度拒绝，同类在窗口内只报一次
type AlertDeduplicator struct {
	store               DetectionStore
	confidenceThreshold float64
	window              time.Duration
	logger              *zap.Logger
}

// NewAlertDeduplicator 创建去重器
func NewAlertDeduplicator(store DetectionStore, confidenceThreshold float64, rateLimitSeconds int, logger *zap.Logger) *AlertDeduplicator {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 60
	}
	if rateLimitSeconds <= 0 {
		rateLimitSeconds = 60
	}
	return &AlertDeduplicator{
		store:               store,
		confidenceThreshold: confidenceThreshold,
		window:              time.Duration(rateLimitSeconds) * time.Second,
		logger:              logger,
	}
}

// Window 去重窗口
func (d *AlertDeduplicator) Window() time.Duration {
	return d.window
}

// Admit 判断该检测是否应被持久化。调用方负责持久化（持久化后窗口随之延长）。
// 读取历史失败时拒绝并返回错误。
func (d *AlertDeduplicator) Admit(ctx context.Context, eventClass string, confidence float64, now time.Time) (bool, error) {
	if confidence < d.confidenceThreshold {
		d.logger.Debug("Detection below confidence threshold",
			zap.String("event_class", eventClass),
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", d.confidenceThreshold),
		)
		return false, nil
	}

	key := Normalize(eventClass)
	recent, err := d.store.GetRecentDetections(ctx, key, now.Add(-d.window))
	if err != nil {
		return false, fmt.Errorf("failed to get recent detections: %w", err)
	}

	for _, ev := range recent {
		if Normalize(ev.EventClass) != key {
			continue
		}
		if now.Sub(ev.DetectedAt) < d.window {
			d.logger.Debug("Detection suppressed by dedup window",
				zap.String("event_class", eventClass),
				zap.Time("last_detected_at", ev.DetectedAt),
				zap.Duration("window", d.window),
			)
			return false, nil
		}
	}

	return true, nil
}
