package httpapi

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/cache"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/client"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/evaluator"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var errImageOutsideRoot = errors.New("image_path must be inside the image directory")

// MonitorHandler 采集、害虫检测与快照接口
type MonitorHandler struct {
	syncer    Syncer
	scanner   Scanner
	snapshots SnapshotReader
	imageRoot string
	logger    *zap.Logger
}

// NewMonitorHandler imageRoot 为允许提交检测的图片目录
func NewMonitorHandler(syncer Syncer, scanner Scanner, snapshots SnapshotReader, imageRoot string, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{
		syncer:    syncer,
		scanner:   scanner,
		snapshots: snapshots,
		imageRoot: filepath.Clean(imageRoot),
		logger:    logger,
	}
}

// ForceSync POST /api/sync
func (h *MonitorHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.ForceSync(r.Context())
	if err != nil {
		h.logger.Warn("Force sync failed", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrCycleInProgress):
			writeJSON(w, http.StatusConflict, Fail(err.Error()))
		case errors.Is(err, client.ErrBridgeUnavailable), errors.Is(err, client.ErrMalformedResponse):
			writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
		case errors.Is(err, evaluator.ErrNotDurable):
			// 评估已计算但未持久化，返回结果供调用方重试
			writeJSON(w, http.StatusServiceUnavailable, Result[*service.CycleReport]{
				Code: ResultError, Type: "error", Message: err.Error(), Result: report,
			})
		default:
			writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

type scanRequest struct {
	CameraID  string `json:"camera_id"`
	ImagePath string `json:"image_path"`
}

// ScanPests POST /api/pests/scan
func (h *MonitorHandler) ScanPests(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	req.ImagePath = strings.TrimSpace(req.ImagePath)
	if req.ImagePath == "" {
		writeJSON(w, http.StatusBadRequest, Fail("image_path is required"))
		return
	}
	imagePath, err := h.resolveImagePath(req.ImagePath)
	if err != nil {
		h.logger.Warn("Rejected pest scan image path", zap.String("image_path", req.ImagePath))
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	report, err := h.scanner.Scan(r.Context(), req.CameraID, imagePath)
	if err != nil {
		if errors.Is(err, client.ErrDetectorUnavailable) || errors.Is(err, client.ErrMalformedResponse) {
			writeJSON(w, http.StatusBadGateway, Fail(err.Error()))
			return
		}
		if report == nil {
			writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
			return
		}
		// 部分害虫处理失败
		h.logger.Warn("Pest scan completed with errors", zap.Error(err))
		writeJSON(w, http.StatusMultiStatus, Result[*service.ScanReport]{
			Code: ResultError, Type: "error", Message: err.Error(), Result: report,
		})
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

// GetEvaluation GET /api/subjects/{id}/evaluation
func (h *MonitorHandler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	eval, err := h.snapshots.GetEvaluation(r.Context(), id)
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(eval))
}

// GetLatestReading GET /api/streams/{metric}/latest
func (h *MonitorHandler) GetLatestReading(w http.ResponseWriter, r *http.Request) {
	metric, err := models.ParseMetricType(mux.Vars(r)["metric"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		return
	}
	reading, err := h.snapshots.GetLatestReading(r.Context(), metric)
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(reading))
}

// resolveImagePath 相对路径按图片目录解析；解析结果必须位于图片目录内
func (h *MonitorHandler) resolveImagePath(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(h.imageRoot, p)
	}
	rel, err := filepath.Rel(h.imageRoot, filepath.Clean(p))
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return "", errImageOutsideRoot
	}
	return filepath.Join(h.imageRoot, rel), nil
}

func (h *MonitorHandler) writeSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, cache.ErrCacheMiss) {
		writeJSON(w, http.StatusNotFound, Fail("no snapshot available"))
		return
	}
	h.logger.Error("Failed to read snapshot", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, Fail("failed to read snapshot"))
}
