package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrBridgeUnavailable 传感器桥接服务不可达或超时
	ErrBridgeUnavailable = errors.New("sensor bridge unavailable")
	// ErrMalformedResponse 响应不是预期的 JSON 结构
	ErrMalformedResponse = errors.New("malformed response")
)

// bridgeResponse 传感器桥接服务响应
type bridgeResponse struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message,omitempty"`
	Data    map[string]json.RawMessage `json:"data"`
}

// bridgeMetric 单个指标
type bridgeMetric struct {
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// SensorSnapshot 一次轮询得到的读数（缺失或为 null 的指标不在 Values 中）
type SensorSnapshot struct {
	Values    models.ReadingSet
	Units     map[models.MetricType]string
	Malformed []models.MetricType
}

// Unit 指标单位，桥接服务未返回时使用默认单位
func (s *SensorSnapshot) Unit(m models.MetricType) string {
	if u, ok := s.Units[m]; ok && u != "" {
		return u
	}
	return m.DefaultUnit()
}

// SensorBridge Arduino 传感器桥接服务客户端
type SensorBridge struct {
	httpClient *resty.Client
	path       string
	logger     *zap.Logger
}

// NewSensorBridge 创建传感器桥接客户端（不重试，失败由下一轮轮询自然重试）
func NewSensorBridge(baseURL, path string, timeout time.Duration, logger *zap.Logger) *SensorBridge {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &SensorBridge{
		httpClient: client,
		path:       path,
		logger:     logger,
	}
}

// Poll 读取所有指标的当前值
func (c *SensorBridge) Poll(ctx context.Context) (*SensorSnapshot, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status code %d", ErrBridgeUnavailable, resp.StatusCode())
	}

	var body bridgeResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("%w: bridge returned status %q: %s", ErrBridgeUnavailable, body.Status, body.Message)
	}

	snapshot := &SensorSnapshot{
		Values: make(models.ReadingSet),
		Units:  make(map[models.MetricType]string),
	}
	for _, metric := range models.AllMetrics {
		raw, ok := body.Data[string(metric)]
		if !ok || string(raw) == "null" {
			continue
		}

		var m bridgeMetric
		if err := json.Unmarshal(raw, &m); err != nil {
			c.logger.Warn("Malformed metric in sensor bridge response",
				zap.String("metric", string(metric)),
				zap.ByteString("raw", raw),
				zap.Error(err),
			)
			snapshot.Malformed = append(snapshot.Malformed, metric)
			continue
		}
		if m.Value == nil {
			continue
		}

		snapshot.Values[metric] = *m.Value
		snapshot.Units[metric] = m.Unit
	}

	return snapshot, nil
}
