package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/client"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/config"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/metrics"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/notifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCycleInProgress 上一个采集周期尚未结束
var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

// SensorPoller 传感器数据源
type SensorPoller interface {
	Poll(ctx context.Context) (*client.SensorSnapshot, error)
}

// Gate 写入节流门
type Gate interface {
	ShouldAdmit(ctx context.Context, stream models.MetricType, now time.Time) (bool, error)
}

// ReadingStore 读数写入接口
type ReadingStore interface {
	InsertReading(ctx context.Context, reading *models.Reading) error
}

// SubjectStore 当前监测对象查询接口
type SubjectStore interface {
	GetActiveSubject(ctx context.Context) (*models.Subject, error)
}

// Tracker 连续违规评估接口
type Tracker interface {
	Evaluate(ctx context.Context, subjectID string, readings models.ReadingSet, now time.Time) (*models.Evaluation, error)
}

// SnapshotCache 仪表盘快照缓存接口
type SnapshotCache interface {
	SetLatestReading(ctx context.Context, reading *models.Reading) error
	SetEvaluation(ctx context.Context, eval *models.Evaluation) error
}

// CycleReport 一个采集周期的结果
type CycleReport struct {
	StartedAt  time.Time           `json:"started_at"`
	Polled     models.ReadingSet   `json:"polled"`
	Admitted   []models.MetricType `json:"admitted"`
	Gated      []models.MetricType `json:"gated"`
	Failed     []models.MetricType `json:"failed"`
	SubjectID  string              `json:"subject_id,omitempty"`
	Evaluation *models.Evaluation  `json:"evaluation,omitempty"`
	Notified   bool                `json:"notified"`
}

// IngestionDeps 采集服务依赖
type IngestionDeps struct {
	Bridge   SensorPoller
	Gate     Gate
	Readings ReadingStore
	Subjects SubjectStore
	Tracker  Tracker
	Cache    SnapshotCache // 可为 nil
	Notifier notifier.Notifier
	Now      func() time.Time
}

// IngestionService 采集周期编排：轮询 → 节流写入 → 违规评估 → 通知
// 同一时刻只允许一个周期运行（定时周期与手动同步共用）
type IngestionService struct {
	deps         IngestionDeps
	policy       string
	pollInterval time.Duration
	cycleMu      sync.Mutex
	// pending 上次评估后各数据流已写入的读数，由 cycleMu 保护
	pending      models.ReadingSet
	logger       *zap.Logger
}

// NewIngestionService 创建采集服务
func NewIngestionService(deps IngestionDeps, pollIntervalSeconds int, policy string, logger *zap.Logger) *IngestionService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if policy == "" {
		policy = config.PolicyAllAdmitted
	}
	if pollIntervalSeconds <= 0 {
		pollIntervalSeconds = 10
	}
	return &IngestionService{
		deps:         deps,
		policy:       policy,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		pending:      make(models.ReadingSet),
		logger:       logger,
	}
}

// Start 启动采集循环（阻塞，直到 ctx 取消）
// 收到取消信号时等待当前周期结束，不再开始新周期
func (s *IngestionService) Start(ctx context.Context) error {
	s.logger.Info("Ingestion loop started",
		zap.Duration("poll_interval", s.pollInterval),
		zap.String("evaluation_policy", s.policy),
	)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// 立即执行一次
	s.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Ingestion loop stopped")
			return nil
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *IngestionService) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunCycle(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn("Skipping ingestion cycle, previous cycle still running")
			return
		}
		s.logger.Error("Ingestion cycle failed", zap.Error(err))
	}
}

// ForceSync 手动触发一个采集周期
func (s *IngestionService) ForceSync(ctx context.Context) (*CycleReport, error) {
	s.logger.Info("Force sync requested")
	return s.RunCycle(ctx)
}

// HandleSyncCommand MQTT 同步命令处理
func (s *IngestionService) HandleSyncCommand(topic string, payload []byte) error {
	s.logger.Info("Received sync command", zap.String("topic", topic))
	_, err := s.RunCycle(context.Background())
	if errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn("Sync command ignored, cycle in progress")
		return nil
	}
	return err
}

// RunCycle 执行一个采集周期
//
// 传感器桥接不可达时不写入任何数据，也不评估（连续违规次数保持不变）。
// 违规状态持久化失败时返回的错误包含 evaluator.ErrNotDurable，且不发通知。
func (s *IngestionService) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !s.cycleMu.TryLock() {
		metrics.CyclesSkipped.Inc()
		return nil, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	now := s.deps.Now()
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	report := &CycleReport{StartedAt: now}

	// 1. 轮询传感器
	snapshot, err := s.deps.Bridge.Poll(ctx)
	if err != nil {
		metrics.BridgeErrors.Inc()
		s.logger.Warn("Sensor bridge poll failed, skipping cycle", zap.Error(err))
		return report, fmt.Errorf("failed to poll sensor bridge: %w", err)
	}
	report.Polled = snapshot.Values

	// 2. 按数据流节流写入
	admitted := make(models.ReadingSet)
	for _, metric := range models.AllMetrics {
		value, ok := snapshot.Values[metric]
		if !ok {
			continue
		}

		admit, err := s.deps.Gate.ShouldAdmit(ctx, metric, now)
		if err != nil {
			s.logger.Error("Clock gate check failed",
				zap.String("metric", string(metric)),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, metric)
			continue
		}
		if !admit {
			metrics.ReadingsGated.WithLabelValues(string(metric)).Inc()
			report.Gated = append(report.Gated, metric)
			continue
		}

		reading := &models.Reading{
			Metric:     metric,
			Value:      value,
			Unit:       snapshot.Unit(metric),
			RecordedAt: now,
		}
		if err := s.deps.Readings.InsertReading(ctx, reading); err != nil {
			s.logger.Error("Failed to persist reading",
				zap.String("metric", string(metric)),
				zap.Float64("value", value),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, metric)
			continue
		}

		admitted[metric] = value
		report.Admitted = append(report.Admitted, metric)
		metrics.ReadingsPersisted.WithLabelValues(string(metric)).Inc()
		s.cacheReading(ctx, reading)
	}

	// 3. 评估
	readings, ok := s.evaluationSet(snapshot.Values, admitted)
	if !ok {
		metrics.CyclesTotal.Inc()
		s.logger.Debug("Ingestion cycle completed without evaluation",
			zap.Int("admitted", len(report.Admitted)),
			zap.Int("gated", len(report.Gated)),
		)
		return report, nil
	}

	subject, err := s.deps.Subjects.GetActiveSubject(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to get active subject: %w", err)
	}
	s.consumePending()
	if subject == nil {
		metrics.CyclesTotal.Inc()
		s.logger.Debug("No active subject, skipping evaluation")
		return report, nil
	}
	report.SubjectID = subject.SubjectID

	eval, err := s.deps.Tracker.Evaluate(ctx, subject.SubjectID, readings, now)
	report.Evaluation = eval
	if eval != nil {
		s.recordEvaluation(ctx, eval)
	}
	if err != nil {
		return report, fmt.Errorf("failed to evaluate subject %s: %w", subject.SubjectID, err)
	}

	// 4. 仅在恰好达到触发次数时通知
	if eval.Triggered {
		report.Notified = s.notifyViolation(ctx, subject, eval)
	}

	metrics.CyclesTotal.Inc()
	s.logger.Info("Ingestion cycle completed",
		zap.String("subject_id", subject.SubjectID),
		zap.Int("admitted", len(report.Admitted)),
		zap.Int("consecutive_count", eval.ConsecutiveCount),
		zap.Bool("triggered", eval.Triggered),
	)
	return report, nil
}

// evaluationSet 按评估策略选出本轮用于评估的读数
//
// all_admitted 策略下，各数据流的写入时刻彼此独立，可能错开；
// 因此跨周期累积已写入的读数，三个数据流都有新读数后才评估。
func (s *IngestionService) evaluationSet(polled, admitted models.ReadingSet) (models.ReadingSet, bool) {
	switch s.policy {
	case config.PolicyFullSet:
		return polled, polled.IsComplete()
	default:
		for metric, value := range admitted {
			s.pending[metric] = value
		}
		if !s.pending.IsComplete() {
			return nil, false
		}
		set := make(models.ReadingSet, len(s.pending))
		for metric, value := range s.pending {
			set[metric] = value
		}
		return set, true
	}
}

// consumePending 累积的读数已用于评估，清空
func (s *IngestionService) consumePending() {
	if len(s.pending) > 0 {
		s.pending = make(models.ReadingSet)
	}
}

func (s *IngestionService) notifyViolation(ctx context.Context, subject *models.Subject, eval *models.Evaluation) bool {
	metrics.Triggers.Inc()
	n := &models.ViolationNotification{
		NotificationID:   uuid.NewString(),
		SubjectID:        subject.SubjectID,
		SubjectName:      subject.Name,
		Violations:       eval.Violations,
		ConsecutiveCount: eval.ConsecutiveCount,
		TriggerCount:     eval.TriggerCount,
		Message:          notifier.ViolationMessage(subject.Name, eval.Violations, eval.ConsecutiveCount, eval.TriggerCount),
		EmittedAt:        eval.EvaluatedAt,
	}
	if err := s.deps.Notifier.NotifyViolation(ctx, n); err != nil {
		s.logger.Error("Failed to emit violation notification",
			zap.String("subject_id", subject.SubjectID),
			zap.Error(err),
		)
		return false
	}
	s.logger.Info("Violation notification emitted",
		zap.String("subject_id", subject.SubjectID),
		zap.String("notification_id", n.NotificationID),
		zap.Int("consecutive_count", eval.ConsecutiveCount),
	)
	return true
}

func (s *IngestionService) recordEvaluation(ctx context.Context, eval *models.Evaluation) {
	metrics.Evaluations.WithLabelValues(string(eval.Phase)).Inc()
	if eval.Durable {
		metrics.ConsecutiveViolations.WithLabelValues(eval.SubjectID).Set(float64(eval.ConsecutiveCount))
	}
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SetEvaluation(ctx, eval); err != nil {
		s.logger.Warn("Failed to cache evaluation",
			zap.String("subject_id", eval.SubjectID),
			zap.Error(err),
		)
	}
}

func (s *IngestionService) cacheReading(ctx context.Context, reading *models.Reading) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SetLatestReading(ctx, reading); err != nil {
		s.logger.Warn("Failed to cache reading",
			zap.String("metric", string(reading.Metric)),
			zap.Error(err),
		)
	}
}
