package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/lock"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrNoReadings 本轮没有任何读数，不允许修改连续违规次数
	ErrNoReadings = errors.New("no readings to evaluate")
	// ErrNotDurable 评估结果已计算，但连续违规次数未能持久化
	ErrNotDurable = errors.New("violation state not durable")
)

// StateStore 违规状态存储接口
type StateStore interface {
	GetViolationState(ctx context.Context, subjectID string) (*models.ViolationState, error)
	UpdateViolationState(ctx context.Context, subjectID string, count int, evaluatedAt time.Time) error
}

// ViolationTracker 连续违规跟踪器
// 同一植物的评估串行执行（读-判-写在同一把锁内）
type ViolationTracker struct {
	store               StateStore
	bands               *BandResolver
	defaultTriggerCount int
	locks               *lock.KeyedMutex
	logger              *zap.Logger
}

// NewViolationTracker 创建违规跟踪器
func NewViolationTracker(store StateStore, bands *BandResolver, defaultTriggerCount int, logger *zap.Logger) *ViolationTracker {
	if defaultTriggerCount <= 0 {
		defaultTriggerCount = 3
	}
	return &ViolationTracker{
		store:               store,
		bands:               bands,
		defaultTriggerCount: defaultTriggerCount,
		locks:               lock.NewKeyedMutex(),
		logger:              logger,
	}
}

// Evaluate 评估一组读数并更新连续违规次数
//
// 任一指标违规则次数 +1，全部正常则归零。只有新次数恰好等于触发次数时
// Triggered 为 true，持续违规不会重复触发。持久化失败时仍返回结果，
// 但 Durable=false，错误包含 ErrNotDurable。
func (t *ViolationTracker) Evaluate(ctx context.Context, subjectID string, readings models.ReadingSet, now time.Time) (*models.Evaluation, error) {
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}

	unlock := t.locks.Lock(subjectID)
	defer unlock()

	state, err := t.store.GetViolationState(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get violation state: %w", err)
	}

	triggerCount := state.TriggerCount
	if triggerCount <= 0 {
		triggerCount = t.defaultTriggerCount
	}
	current := state.ConsecutiveCount
	if current < 0 {
		current = 0
	}

	checks := make([]models.MetricCheck, 0, len(readings))
	violations := make([]models.MetricCheck, 0)
	for _, metric := range models.AllMetrics {
		value, ok := readings[metric]
		if !ok {
			continue
		}
		band := t.bands.Resolve(ctx, subjectID, metric)
		check := models.MetricCheck{
			Metric: metric,
			Status: Classify(value, band),
			Value:  value,
			Band:   band,
		}
		checks = append(checks, check)
		if check.Status.IsViolation() {
			violations = append(violations, check)
		}
	}

	newCount := 0
	if len(violations) > 0 {
		newCount = current + 1
	}

	eval := &models.Evaluation{
		SubjectID:        subjectID,
		ConsecutiveCount: newCount,
		TriggerCount:     triggerCount,
		Triggered:        len(violations) > 0 && newCount == triggerCount,
		Phase:            models.PhaseOf(newCount, triggerCount),
		Violations:       violations,
		Checks:           checks,
		Durable:          true,
		EvaluatedAt:      now,
	}

	if err := t.store.UpdateViolationState(ctx, subjectID, newCount, now); err != nil {
		eval.Durable = false
		t.logger.Error("Failed to persist violation state",
			zap.String("subject_id", subjectID),
			zap.Int("consecutive_count", newCount),
			zap.Error(err),
		)
		return eval, fmt.Errorf("%w: %w", ErrNotDurable, err)
	}

	t.logger.Debug("Violation evaluated",
		zap.String("subject_id", subjectID),
		zap.Int("consecutive_count", newCount),
		zap.Int("trigger_count", triggerCount),
		zap.Int("violation_count", len(violations)),
		zap.Bool("triggered", eval.Triggered),
	)

	return eval, nil
}
