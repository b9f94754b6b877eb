package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/zap"
)

// jitterTolerance 吸收时钟/轮询抖动
const jitterTolerance = time.Second

// Store 闸门所需的持久化读接口
type Store interface {
	// LastWriteTime 返回该数据流最后一次写入时间，无记录时返回 nil
	LastWriteTime(ctx context.Context, stream models.MetricType) (*time.Time, error)
	// LoggingIntervalMinutes 返回运维配置的记录间隔（分钟）
	LoggingIntervalMinutes(ctx context.Context) (int, error)
}

// ClockGate 时钟闸门：判断距上次写入是否已过记录间隔
type ClockGate struct {
	store           Store
	defaultInterval time.Duration
	logger          *zap.Logger
}

// NewClockGate 创建时钟闸门
func NewClockGate(store Store, defaultIntervalSeconds int, logger *zap.Logger) *ClockGate {
	if defaultIntervalSeconds <= 0 {
		defaultIntervalSeconds = 1800
	}
	return &ClockGate{
		store:           store,
		defaultInterval: time.Duration(defaultIntervalSeconds) * time.Second,
		logger:          logger,
	}
}

// Interval 读取当前生效的记录间隔。每次调用都重新读取，读取失败时回退到默认值。
func (g *ClockGate) Interval(ctx context.Context) time.Duration {
	minutes, err := g.store.LoggingIntervalMinutes(ctx)
	if err != nil {
		g.logger.Warn("Failed to read logging interval, using default",
			zap.Duration("default_interval", g.defaultInterval),
			zap.Error(err),
		)
		return g.defaultInterval
	}
	if minutes <= 0 {
		g.logger.Warn("Invalid logging interval, using default",
			zap.Int("minutes", minutes),
			zap.Duration("default_interval", g.defaultInterval),
		)
		return g.defaultInterval
	}
	return time.Duration(minutes) * time.Minute
}

// ShouldAdmit 判断该数据流在 now 时刻是否允许写入新读数（只读，不写状态）
func (g *ClockGate) ShouldAdmit(ctx context.Context, stream models.MetricType, now time.Time) (bool, error) {
	last, err := g.store.LastWriteTime(ctx, stream)
	if err != nil {
		return false, fmt.Errorf("failed to get last write time for %s: %w", stream, err)
	}

	// 首次读数：闸门默认打开
	if last == nil {
		return true, nil
	}

	interval := g.Interval(ctx)
	admit := Admit(*last, now, interval)

	g.logger.Debug("Clock gate decision",
		zap.String("stream", string(stream)),
		zap.Time("last_write_at", *last),
		zap.Duration("elapsed", now.Sub(*last)),
		zap.Duration("interval", interval),
		zap.Bool("admit", admit),
	)

	return admit, nil
}

// Admit 纯函数判定：elapsed >= interval - 1s
func Admit(lastWriteAt, now time.Time, interval time.Duration) bool {
	return now.Sub(lastWriteAt) >= interval-jitterTolerance
}
