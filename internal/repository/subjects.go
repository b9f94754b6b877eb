package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/zap"
)

// SubjectRepository 植物档案仓库（违规状态、阈值）
type SubjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubjectRepository 创建植物档案仓库
func NewSubjectRepository(db *sql.DB, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveSubject 获取当前启用的植物档案，没有时返回 nil
func (r *SubjectRepository) GetActiveSubject(ctx context.Context) (*models.Subject, error) {
	query := `
		SELECT plant_id, plant_name
		FROM plants
		WHERE is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var s models.Subject
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.SubjectID, &s.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active plant: %w", err)
	}

	return &s, nil
}

// GetViolationState 获取植物的连续违规状态
func (r *SubjectRepository) GetViolationState(ctx context.Context, subjectID string) (*models.ViolationState, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("plant_id is required")
	}

	query := `
		SELECT consecutive_violations, notification_trigger, last_evaluated_at
		FROM plants
		WHERE plant_id = $1
	`

	var (
		state         = models.ViolationState{SubjectID: subjectID}
		triggerCount  sql.NullInt64
		lastEvaluated sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, subjectID).Scan(
		&state.ConsecutiveCount,
		&triggerCount,
		&lastEvaluated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plant not found: %s", subjectID)
		}
		return nil, fmt.Errorf("failed to get violation state: %w", err)
	}

	if triggerCount.Valid {
		state.TriggerCount = int(triggerCount.Int64)
	}
	if lastEvaluated.Valid {
		state.LastEvaluatedAt = &lastEvaluated.Time
	}

	return &state, nil
}

// UpdateViolationState 更新连续违规次数（未命中任何行视为失败）
func (r *SubjectRepository) UpdateViolationState(ctx context.Context, subjectID string, count int, evaluatedAt time.Time) error {
	query := `
		UPDATE plants
		SET consecutive_violations = $1,
		    last_evaluated_at = $2
		WHERE plant_id = $3
	`

	result, err := r.db.ExecContext(ctx, query, count, evaluatedAt, subjectID)
	if err != nil {
		return fmt.Errorf("failed to update violation state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plant not found: %s", subjectID)
	}

	return nil
}

// GetThresholdBand 获取植物某指标的阈值，未配置时返回 nil
func (r *SubjectRepository) GetThresholdBand(ctx context.Context, subjectID string, metric models.MetricType) (*models.ThresholdBand, error) {
	query := `
		SELECT min_value, max_value
		FROM plant_thresholds
		WHERE plant_id = $1 AND metric_type = $2
	`

	band := models.ThresholdBand{Metric: metric}
	err := r.db.QueryRowContext(ctx, query, subjectID, string(metric)).Scan(&band.Min, &band.Max)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get threshold band: %w", err)
	}

	return &band, nil
}
