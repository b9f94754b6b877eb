package models

import "time"

// 通知类型
const (
	NotificationViolation = "threshold_violation"
	NotificationDetection = "pest_detection"
)

// ViolationNotification 阈值违规通知（由 UI / 通知层负责投递）
type ViolationNotification struct {
	NotificationID   string        `json:"notification_id"`
	SubjectID        string        `json:"subject_id"`
	SubjectName      string        `json:"subject_name"`
	Violations       []MetricCheck `json:"violations"`
	ConsecutiveCount int           `json:"consecutive_count"`
	TriggerCount     int           `json:"trigger_count"`
	Message          string        `json:"message"`
	EmittedAt        time.Time     `json:"emitted_at"`
}

// DetectionNotification 害虫检测通知
type DetectionNotification struct {
	NotificationID string         `json:"notification_id"`
	Event          DetectionEvent `json:"event"`
	Message        string         `json:"message"`
	EmittedAt      time.Time      `json:"emitted_at"`
}
