package evaluator

import (
	"context"
	"math"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/zap"
)

// DeviationMargin 超出范围多少（同指标单位）算严重偏离
const DeviationMargin = 10.0

// defaultBands 未配置阈值时的内置默认范围
var defaultBands = map[models.MetricType]models.ThresholdBand{
	models.MetricTemperature:  {Metric: models.MetricTemperature, Min: 20, Max: 28},
	models.MetricHumidity:     {Metric: models.MetricHumidity, Min: 60, Max: 80},
	models.MetricSoilMoisture: {Metric: models.MetricSoilMoisture, Min: 40, Max: 60},
}

// DefaultBand 返回指标的默认阈值范围
func DefaultBand(metric models.MetricType) models.ThresholdBand {
	return defaultBands[metric]
}

// Classify 将读数按阈值范围分为 optimal / warning / critical
// 边界包含：value == max+DeviationMargin 仍是 warning
func Classify(value float64, band models.ThresholdBand) models.Status {
	if math.IsNaN(value) {
		return models.StatusCritical
	}
	if value >= band.Min && value <= band.Max {
		return models.StatusOptimal
	}
	if value < band.Min-DeviationMargin || value > band.Max+DeviationMargin {
		return models.StatusCritical
	}
	return models.StatusWarning
}

// BandStore 阈值读取接口
type BandStore interface {
	// GetThresholdBand 返回植物某指标的阈值，未配置时返回 nil
	GetThresholdBand(ctx context.Context, subjectID string, metric models.MetricType) (*models.ThresholdBand, error)
}

// BandResolver 解析当前生效的阈值（每次都从存储读取，不做缓存）
type BandResolver struct {
	store  BandStore
	logger *zap.Logger
}

// NewBandResolver 创建阈值解析器
func NewBandResolver(store BandStore, logger *zap.Logger) *BandResolver {
	return &BandResolver{store: store, logger: logger}
}

// Resolve 读取阈值，未配置或读取失败时使用默认值
func (r *BandResolver) Resolve(ctx context.Context, subjectID string, metric models.MetricType) models.ThresholdBand {
	band, err := r.store.GetThresholdBand(ctx, subjectID, metric)
	if err != nil {
		r.logger.Warn("Failed to read threshold band, using default",
			zap.String("subject_id", subjectID),
			zap.String("metric", string(metric)),
			zap.Error(err),
		)
		return DefaultBand(metric)
	}
	if band == nil || band.Min > band.Max {
		return DefaultBand(metric)
	}
	band.Metric = metric
	return *band
}
