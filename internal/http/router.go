package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/metrics"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Syncer 手动触发采集周期
type Syncer interface {
	ForceSync(ctx context.Context) (*service.CycleReport, error)
}

// Scanner 提交图片做害虫检测
type Scanner interface {
	Scan(ctx context.Context, cameraID, imagePath string) (*service.ScanReport, error)
}

// SnapshotReader 仪表盘快照读取
type SnapshotReader interface {
	GetLatestReading(ctx context.Context, metric models.MetricType) (*models.Reading, error)
	GetEvaluation(ctx context.Context, subjectID string) (*models.Evaluation, error)
}

// Router 管理接口路由（gorilla/mux）
type Router struct {
	mux    *mux.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		mux:    mux.NewRouter(),
		logger: logger,
	}
	r.mux.Use(r.instrument)
	r.mux.HandleFunc("/health", r.health).Methods(http.MethodGet)
	r.mux.Handle("/metrics", promhttp.Handler())
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterMonitorRoutes 注册采集与害虫检测路由
func (r *Router) RegisterMonitorRoutes(h *MonitorHandler) {
	// 直接挂在根路由上，方法不匹配时返回 405（子路由会退化为 404）
	r.mux.HandleFunc("/api/sync", h.ForceSync).Methods(http.MethodPost)
	r.mux.HandleFunc("/api/pests/scan", h.ScanPests).Methods(http.MethodPost)
	r.mux.HandleFunc("/api/subjects/{id}/evaluation", h.GetEvaluation).Methods(http.MethodGet)
	r.mux.HandleFunc("/api/streams/{metric}/latest", h.GetLatestReading).Methods(http.MethodGet)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument 记录请求数与耗时（按路由模板聚合）
func (r *Router) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := req.URL.Path
		if cur := mux.CurrentRoute(req); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
		metrics.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
