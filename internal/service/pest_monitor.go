package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/client"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/lock"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/metrics"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/notifier"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/pest"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Detector 害虫检测服务
type Detector interface {
	Detect(ctx context.Context, imagePath string) (*client.DetectionResult, error)
}

// Deduplicator 害虫报警去重
type Deduplicator interface {
	Admit(ctx context.Context, eventClass string, confidence float64, now time.Time) (bool, error)
}

// SeverityLookup 害虫严重度查表
type SeverityLookup interface {
	Lookup(pestType string) models.PestProfile
}

// DetectionWriter 检测事件写入接口
type DetectionWriter interface {
	InsertDetectionEvent(ctx context.Context, event *models.DetectionEvent) error
}

// ScanReport 一次检测的处理结果
type ScanReport struct {
	Detected   int                     `json:"detected"`
	Persisted  []models.DetectionEvent `json:"persisted"`
	Suppressed []string                `json:"suppressed"`
}

// PestMonitorDeps 害虫监测服务依赖
type PestMonitorDeps struct {
	Detector     Detector
	Deduplicator Deduplicator
	Catalog      SeverityLookup
	Detections   DetectionWriter
	Notifier     notifier.Notifier
	Now          func() time.Time
}

// PestMonitorService 害虫检测结果处理：去重 → 定级 → 持久化 → 通知
type PestMonitorService struct {
	deps   PestMonitorDeps
	locks  *lock.KeyedMutex
	logger *zap.Logger
}

// NewPestMonitorService 创建害虫监测服务
func NewPestMonitorService(deps PestMonitorDeps, logger *zap.Logger) *PestMonitorService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &PestMonitorService{
		deps:   deps,
		locks:  lock.NewKeyedMutex(),
		logger: logger,
	}
}

// Scan 上传图片到检测服务并处理结果。检测服务不可达时不写入任何数据。
func (s *PestMonitorService) Scan(ctx context.Context, cameraID, imagePath string) (*ScanReport, error) {
	result, err := s.deps.Detector.Detect(ctx, imagePath)
	if err != nil {
		s.logger.Warn("Pest detector call failed",
			zap.String("image_path", imagePath),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to detect pests: %w", err)
	}

	if result.AnnotatedImage == "" {
		result.AnnotatedImage = imagePath
	}
	return s.ProcessDetections(ctx, cameraID, result, s.deps.Now())
}

// ProcessDetections 处理一次检测结果中的所有害虫
// 单个害虫处理失败不影响其他害虫，所有错误合并返回
func (s *PestMonitorService) ProcessDetections(ctx context.Context, cameraID string, result *client.DetectionResult, now time.Time) (*ScanReport, error) {
	report := &ScanReport{Detected: len(result.Pests)}

	var errs error
	for _, det := range result.Pests {
		event, err := s.processOne(ctx, cameraID, result.AnnotatedImage, det, now)
		if err != nil {
			metrics.Detections.WithLabelValues("failed").Inc()
			errs = multierr.Append(errs, err)
			continue
		}
		if event == nil {
			metrics.Detections.WithLabelValues("suppressed").Inc()
			report.Suppressed = append(report.Suppressed, det.Type)
			continue
		}
		metrics.Detections.WithLabelValues("admitted").Inc()
		report.Persisted = append(report.Persisted, *event)
	}

	return report, errs
}

// processOne 去重判断与写入在同一把（按害虫类别的）锁内完成
func (s *PestMonitorService) processOne(ctx context.Context, cameraID, imagePath string, det client.DetectedPest, now time.Time) (*models.DetectionEvent, error) {
	class := strings.TrimSpace(det.Type)
	if class == "" {
		s.logger.Warn("Detection without pest type, ignoring")
		return nil, nil
	}

	// 与去重使用同一归一化键，"spider_mite" 与 "Spider Mite" 互斥
	unlock := s.locks.Lock(pest.Normalize(class))
	defer unlock()

	ok, err := s.deps.Deduplicator.Admit(ctx, class, det.Confidence, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check detection %s: %w", class, err)
	}
	if !ok {
		return nil, nil
	}

	profile := s.deps.Catalog.Lookup(class)
	event := &models.DetectionEvent{
		EventID:          uuid.NewString(),
		EventClass:       class,
		Confidence:       det.Confidence,
		Severity:         profile.Severity,
		SuggestedActions: profile.SuggestedActions,
		DetectedAt:       now,
	}
	if cameraID != "" {
		event.CameraID = &cameraID
	}
	if imagePath != "" {
		event.ImagePath = &imagePath
	}

	if err := s.deps.Detections.InsertDetectionEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist detection %s: %w", class, err)
	}

	s.logger.Info("Pest detection recorded",
		zap.String("event_id", event.EventID),
		zap.String("event_class", class),
		zap.Float64("confidence", det.Confidence),
		zap.String("severity", string(event.Severity)),
		zap.String("profile", profile.Name),
	)

	n := &models.DetectionNotification{
		NotificationID: uuid.NewString(),
		Event:          *event,
		Message:        notifier.DetectionMessage(event),
		EmittedAt:      now,
	}
	if err := s.deps.Notifier.NotifyDetection(ctx, n); err != nil {
		s.logger.Error("Failed to emit detection notification",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}

	return event, nil
}
