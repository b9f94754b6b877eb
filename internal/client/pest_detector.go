package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrDetectorUnavailable 害虫检测服务不可达或超时
var ErrDetectorUnavailable = errors.New("pest detector unavailable")

// DetectedPest 单个检测结果
type DetectedPest struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"` // 0-100
}

// DetectionResult 害虫检测服务响应
type DetectionResult struct {
	Pests          []DetectedPest `json:"pests"`
	AnnotatedImage string         `json:"annotated_image"`
}

// PestDetector YOLO 害虫检测服务客户端
type PestDetector struct {
	httpClient *resty.Client
	path       string
	logger     *zap.Logger
}

// NewPestDetector 创建害虫检测客户端
func NewPestDetector(baseURL, path string, timeout time.Duration, logger *zap.Logger) *PestDetector {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &PestDetector{
		httpClient: client,
		path:       path,
		logger:     logger,
	}
}

// Detect 上传图片并返回检测结果
func (c *PestDetector) Detect(ctx context.Context, imagePath string) (*DetectionResult, error) {
	c.logger.Debug("Calling pest detector",
		zap.String("image_path", imagePath),
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFile("image", imagePath).
		Post(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status code %d", ErrDetectorUnavailable, resp.StatusCode())
	}

	var result DetectionResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	c.logger.Debug("Pest detector returned",
		zap.Int("pest_count", len(result.Pests)),
		zap.String("annotated_image", result.AnnotatedImage),
	)

	return &result, nil
}
