package models

import (
	"fmt"
	"time"
)

// MetricType 环境指标类型（即一个数据流）
type MetricType string

const (
	MetricTemperature  MetricType = "temperature"
	MetricHumidity     MetricType = "humidity"
	MetricSoilMoisture MetricType = "soil_moisture"
)

// AllMetrics 受监测的全部指标（固定顺序）
var AllMetrics = []MetricType{MetricTemperature, MetricHumidity, MetricSoilMoisture}

// ParseMetricType 解析指标类型
func ParseMetricType(s string) (MetricType, error) {
	switch MetricType(s) {
	case MetricTemperature, MetricHumidity, MetricSoilMoisture:
		return MetricType(s), nil
	}
	return "", fmt.Errorf("unknown metric type: %s", s)
}

// DefaultUnit 指标的默认单位
func (m MetricType) DefaultUnit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	default:
		return "%"
	}
}

// Reading 传感器读数（对应 sensor_readings 表），写入后不可变
type Reading struct {
	Metric     MetricType `json:"metric_type" db:"metric_type"`
	Value      float64    `json:"value" db:"value"`
	Unit       string     `json:"unit" db:"unit"`
	RecordedAt time.Time  `json:"recorded_at" db:"recorded_at"`
}

// ReadingSet 一次评估使用的读数集合，缺失的指标表示本轮无数据
type ReadingSet map[MetricType]float64

// Has 判断是否包含某指标
func (s ReadingSet) Has(m MetricType) bool {
	_, ok := s[m]
	return ok
}

// IsComplete 三个指标是否齐全
func (s ReadingSet) IsComplete() bool {
	for _, m := range AllMetrics {
		if !s.Has(m) {
			return false
		}
	}
	return true
}

// ThresholdBand 指标的可接受范围 [Min, Max]
type ThresholdBand struct {
	Metric MetricType `json:"metric_type"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
}

// Status 阈值分类结果
type Status string

const (
	StatusOptimal  Status = "optimal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// IsViolation warning 和 critical 均视为违规
func (s Status) IsViolation() bool {
	return s == StatusWarning || s == StatusCritical
}
