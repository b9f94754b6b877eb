package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/repository"
)

// NotificationStore 站内通知写入接口
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *repository.Notification) error
}

// DatabaseNotifier 写入 notifications 表，供仪表盘通知列表展示
type DatabaseNotifier struct {
	store NotificationStore
}

// NewDatabaseNotifier 创建站内通知器
func NewDatabaseNotifier(store NotificationStore) *DatabaseNotifier {
	return &DatabaseNotifier{store: store}
}

func (d *DatabaseNotifier) NotifyViolation(ctx context.Context, n *models.ViolationNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	subjectID := n.SubjectID
	return d.store.InsertNotification(ctx, &repository.Notification{
		NotificationID: n.NotificationID,
		SubjectID:      &subjectID,
		Type:           models.NotificationViolation,
		Message:        n.Message,
		Payload:        payload,
		CreatedAt:      n.EmittedAt,
	})
}

func (d *DatabaseNotifier) NotifyDetection(ctx context.Context, n *models.DetectionNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return d.store.InsertNotification(ctx, &repository.Notification{
		NotificationID: n.NotificationID,
		Type:           models.NotificationDetection,
		Message:        n.Message,
		Payload:        payload,
		CreatedAt:      n.EmittedAt,
	})
}
