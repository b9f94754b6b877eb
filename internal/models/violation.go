package models

import "time"

// Subject 被监测对象（当前启用的植物档案）
type Subject struct {
	SubjectID string `json:"subject_id" db:"plant_id"`
	Name      string `json:"name" db:"plant_name"`
}

// ViolationState 连续违规状态（存于 plants 表）
type ViolationState struct {
	SubjectID        string     `json:"subject_id"`
	ConsecutiveCount int        `json:"consecutive_count"`
	TriggerCount     int        `json:"trigger_count"`
	LastEvaluatedAt  *time.Time `json:"last_evaluated_at,omitempty"`
}

// ViolationPhase 违规状态机阶段
type ViolationPhase string

const (
	PhaseNormal             ViolationPhase = "normal"
	PhaseAccumulating       ViolationPhase = "accumulating"
	PhaseTriggered          ViolationPhase = "triggered"
	PhaseSustainedTriggered ViolationPhase = "sustained_triggered"
)

// PhaseOf 根据连续次数和触发次数计算阶段
func PhaseOf(count, trigger int) ViolationPhase {
	switch {
	case count <= 0:
		return PhaseNormal
	case count < trigger:
		return PhaseAccumulating
	case count == trigger:
		return PhaseTriggered
	default:
		return PhaseSustainedTriggered
	}
}

// MetricCheck 单个指标的分类明细
type MetricCheck struct {
	Metric MetricType    `json:"metric"`
	Status Status        `json:"status"`
	Value  float64       `json:"value"`
	Band   ThresholdBand `json:"band"`
}

// Evaluation 一次违规评估的结果
type Evaluation struct {
	SubjectID        string         `json:"subject_id"`
	ConsecutiveCount int            `json:"consecutive_count"`
	TriggerCount     int            `json:"trigger_count"`
	Triggered        bool           `json:"triggered"`
	Phase            ViolationPhase `json:"phase"`
	Violations       []MetricCheck  `json:"violations"`
	Checks           []MetricCheck  `json:"checks"`
	Durable          bool           `json:"durable"`
	EvaluatedAt      time.Time      `json:"evaluated_at"`
}
