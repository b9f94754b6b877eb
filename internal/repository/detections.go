package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// DetectionRepository 害虫检测事件仓库（pest_alerts 表）
type DetectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDetectionRepository 创建检测事件仓库
func NewDetectionRepository(db *sql.DB, logger *zap.Logger) *DetectionRepository {
	return &DetectionRepository{
		db:     db,
		logger: logger,
	}
}

// InsertDetectionEvent 写入检测事件
func (r *DetectionRepository) InsertDetectionEvent(ctx context.Context, event *models.DetectionEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	query := `
		INSERT INTO pest_alerts (
			event_id,
			pest_type,
			confidence,
			severity,
			suggested_actions,
			camera_id,
			image_path,
			detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.EventClass,
		event.Confidence,
		string(event.Severity),
		pq.Array(event.SuggestedActions),
		event.CameraID,
		event.ImagePath,
		event.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection event: %w", err)
	}

	return nil
}

// GetRecentDetections 获取 since 之后同类的检测事件，按时间倒序
// eventClass 须为归一化形式（小写，"_"、"-" 与连续空白视为单个空格），pest_type 按同样规则归一化后比较
func (r *DetectionRepository) GetRecentDetections(ctx context.Context, eventClass string, since time.Time) ([]models.DetectionEvent, error) {
	query := `
		SELECT event_id, pest_type, confidence, severity, suggested_actions, camera_id, image_path, detected_at
		FROM pest_alerts
		WHERE BTRIM(REGEXP_REPLACE(LOWER(pest_type), '[[:space:]_-]+', ' ', 'g')) = $1
		  AND detected_at > $2
		ORDER BY detected_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, eventClass, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent detections: %w", err)
	}
	defer rows.Close()

	var events []models.DetectionEvent
	for rows.Next() {
		var (
			ev        models.DetectionEvent
			severity  string
			cameraID  sql.NullString
			imagePath sql.NullString
		)
		if err := rows.Scan(
			&ev.EventID,
			&ev.EventClass,
			&ev.Confidence,
			&severity,
			pq.Array(&ev.SuggestedActions),
			&cameraID,
			&imagePath,
			&ev.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection event: %w", err)
		}

		ev.Severity = models.Severity(severity)
		if cameraID.Valid {
			ev.CameraID = &cameraID.String
		}
		if imagePath.Valid {
			ev.ImagePath = &imagePath.String
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detection events: %w", err)
	}

	return events, nil
}
