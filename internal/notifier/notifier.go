package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier 通知出口。引擎只负责发出结构化事件，投递方式由实现决定。
type Notifier interface {
	NotifyViolation(ctx context.Context, n *models.ViolationNotification) error
	NotifyDetection(ctx context.Context, n *models.DetectionNotification) error
}

// MultiNotifier 扇出到多个通知出口，单个出口失败不影响其他出口
type MultiNotifier struct {
	sinks  []Notifier
	logger *zap.Logger
}

// NewMultiNotifier 创建扇出通知器
func NewMultiNotifier(logger *zap.Logger, sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks, logger: logger}
}

// NotifyViolation 扇出阈值违规通知
func (m *MultiNotifier) NotifyViolation(ctx context.Context, n *models.ViolationNotification) error {
	var errs error
	for _, s := range m.sinks {
		if err := s.NotifyViolation(ctx, n); err != nil {
			m.logger.Error("Failed to deliver violation notification",
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.String("subject_id", n.SubjectID),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// NotifyDetection 扇出害虫检测通知
func (m *MultiNotifier) NotifyDetection(ctx context.Context, n *models.DetectionNotification) error {
	var errs error
	for _, s := range m.sinks {
		if err := s.NotifyDetection(ctx, n); err != nil {
			m.logger.Error("Failed to deliver detection notification",
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.String("event_class", n.Event.EventClass),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ViolationMessage 生成可读的违规描述
func ViolationMessage(subjectName string, violations []models.MetricCheck, count, trigger int) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s %.1f (%s, range %.1f-%.1f)",
			strings.ReplaceAll(string(v.Metric), "_", " "), v.Value, v.Status, v.Band.Min, v.Band.Max))
	}
	if subjectName == "" {
		subjectName = "active plant"
	}
	return fmt.Sprintf("%s: %s out of range for %d consecutive readings (trigger %d)",
		subjectName, strings.Join(parts, "; "), count, trigger)
}

// DetectionMessage 生成可读的害虫检测描述
func DetectionMessage(ev *models.DetectionEvent) string {
	return fmt.Sprintf("%s detected (%.0f%% confidence, %s severity)", ev.EventClass, ev.Confidence, ev.Severity)
}
