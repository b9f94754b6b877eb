package models

import (
	"fmt"
	"time"
)

// Severity 害虫严重度
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity 解析严重度
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity: %s", s)
}

// PestProfile 害虫严重度查表结果
type PestProfile struct {
	Name             string   `json:"name" yaml:"name"`
	Severity         Severity `json:"severity" yaml:"severity"`
	SuggestedActions []string `json:"suggested_actions" yaml:"actions"`
}

// DetectionEvent 害虫检测事件（对应 pest_alerts 表）
type DetectionEvent struct {
	EventID          string    `json:"event_id" db:"event_id"`
	EventClass       string    `json:"event_class" db:"pest_type"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	Severity         Severity  `json:"severity" db:"severity"`
	SuggestedActions []string  `json:"suggested_actions" db:"suggested_actions"`
	CameraID         *string   `json:"camera_id,omitempty" db:"camera_id"`
	ImagePath        *string   `json:"image_path,omitempty" db:"image_path"`
	DetectedAt       time.Time `json:"detected_at" db:"detected_at"`
}
