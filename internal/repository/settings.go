package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SettingLoggingInterval 记录间隔（分钟）
const SettingLoggingInterval = "logging_interval"

// SettingsRepository 系统设置仓库（key-value）
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository 创建设置仓库
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetSetting 读取设置值
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (string, error) {
	query := `SELECT setting_value FROM settings WHERE setting_key = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("setting not found: %s", key)
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	return value, nil
}

// LoggingIntervalMinutes 读取记录间隔（分钟）
func (r *SettingsRepository) LoggingIntervalMinutes(ctx context.Context) (int, error) {
	value, err := r.GetSetting(ctx, SettingLoggingInterval)
	if err != nil {
		return 0, err
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s setting %q: %w", SettingLoggingInterval, value, err)
	}

	return minutes, nil
}
