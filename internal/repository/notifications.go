package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Notification 站内通知记录（对应 notifications 表）
type Notification struct {
	NotificationID string
	SubjectID      *string
	Type           string
	Message        string
	Payload        []byte // JSONB
	CreatedAt      time.Time
}

// NotificationRepository 站内通知仓库
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository 创建通知仓库
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// InsertNotification 写入一条通知（is_read 默认 false）
func (r *NotificationRepository) InsertNotification(ctx context.Context, n *Notification) error {
	if n == nil {
		return fmt.Errorf("notification is required")
	}

	payload := n.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO notifications (notification_id, plant_id, notification_type, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		n.NotificationID,
		n.SubjectID,
		n.Type,
		n.Message,
		payload,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}
