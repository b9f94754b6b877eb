package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal 完成的采集周期数
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecofarm_ingestion_cycles_total",
		Help: "Total number of completed ingestion cycles",
	})

	// CyclesSkipped 因上一周期未结束而跳过的周期数
	CyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecofarm_ingestion_cycles_skipped_total",
		Help: "Ingestion cycles skipped because another cycle was in progress",
	})

	// CycleDuration 采集周期耗时
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecofarm_ingestion_cycle_duration_seconds",
		Help:    "Duration of ingestion cycles",
		Buckets: prometheus.DefBuckets,
	})

	// BridgeErrors 传感器桥接轮询失败次数
	BridgeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecofarm_bridge_errors_total",
		Help: "Total number of failed sensor bridge polls",
	})

	ReadingsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecofarm_readings_persisted_total",
		Help: "Readings admitted by the clock gate and persisted",
	}, []string{"metric"})

	ReadingsGated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecofarm_readings_gated_total",
		Help: "Readings rejected by the clock gate",
	}, []string{"metric"})

	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecofarm_evaluations_total",
		Help: "Violation evaluations by resulting phase",
	}, []string{"phase"})

	Triggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecofarm_violation_triggers_total",
		Help: "Violation triggers emitted",
	})

	// ConsecutiveViolations 当前连续违规次数
	ConsecutiveViolations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ecofarm_consecutive_violations",
		Help: "Current consecutive violation count per plant",
	}, []string{"subject_id"})

	Detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecofarm_pest_detections_total",
		Help: "Pest detections by outcome (admitted, suppressed, failed)",
	}, []string{"outcome"})
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecofarm_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecofarm_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
