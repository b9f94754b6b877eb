package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"go.uber.org/zap"
)

// ReadingRepository 传感器读数仓库
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository 创建读数仓库
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// LastWriteTime 获取数据流最后一次写入时间，无记录时返回 nil
func (r *ReadingRepository) LastWriteTime(ctx context.Context, stream models.MetricType) (*time.Time, error) {
	query := `
		SELECT MAX(recorded_at)
		FROM sensor_readings
		WHERE metric_type = $1
	`

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, string(stream)).Scan(&last); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last write time: %w", err)
	}

	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// InsertReading 写入一条读数
func (r *ReadingRepository) InsertReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}

	query := `
		INSERT INTO sensor_readings (metric_type, value, unit, recorded_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		string(reading.Metric),
		reading.Value,
		reading.Unit,
		reading.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// LatestReadings 获取每个数据流最近一条读数（仪表盘 "last updated" 使用）
func (r *ReadingRepository) LatestReadings(ctx context.Context) ([]models.Reading, error) {
	query := `
		SELECT DISTINCT ON (metric_type) metric_type, value, unit, recorded_at
		FROM sensor_readings
		ORDER BY metric_type, recorded_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var (
			metric  string
			reading models.Reading
		)
		if err := rows.Scan(&metric, &reading.Value, &reading.Unit, &reading.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		mt, err := models.ParseMetricType(metric)
		if err != nil {
			r.logger.Warn("Skipping reading with unknown metric type",
				zap.String("metric_type", metric),
			)
			continue
		}
		reading.Metric = mt
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}
