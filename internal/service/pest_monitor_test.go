package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/client"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/pest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDetectionStore 内存版检测事件存储
type memDetectionStore struct {
	mu        sync.Mutex
	events    []models.DetectionEvent
	insertErr error
}

func (m *memDetectionStore) GetRecentDetections(ctx context.Context, eventClass string, since time.Time) ([]models.DetectionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DetectionEvent
	for _, ev := range m.events {
		if pest.Normalize(ev.EventClass) == eventClass && ev.DetectedAt.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memDetectionStore) InsertDetectionEvent(ctx context.Context, event *models.DetectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, *event)
	return nil
}

type fakeDetector struct {
	result *client.DetectionResult
	err    error
}

func (f *fakeDetector) Detect(ctx context.Context, imagePath string) (*client.DetectionResult, error) {
	return f.result, f.err
}

func newTestPestMonitor(t *testing.T, store *memDetectionStore, detector Detector, n *recordingNotifier, now time.Time) *PestMonitorService {
	catalog, err := pest.DefaultCatalog()
	require.NoError(t, err)
	logger := zap.NewNop()
	return NewPestMonitorService(PestMonitorDeps{
		Detector:     detector,
		Deduplicator: pest.NewAlertDeduplicator(store, 60, 60, logger),
		Catalog:      catalog,
		Detections:   store,
		Notifier:     n,
		Now:          func() time.Time { return now },
	}, logger)
}

func TestPestMonitor_ProcessDetections(t *testing.T) {
	store := &memDetectionStore{}
	n := &recordingNotifier{}
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestPestMonitor(t, store, nil, n, base)

	result := &client.DetectionResult{
		Pests: []client.DetectedPest{
			{Type: "aphid", Confidence: 75},
			{Type: "Aphid", Confidence: 90}, // 同一帧重复
			{Type: "whitefly", Confidence: 40},
		},
		AnnotatedImage: "/uploads/annotated/frame-1.jpg",
	}
	report, err := svc.ProcessDetections(context.Background(), "cam-1", result, base)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Detected)
	require.Len(t, report.Persisted, 1)
	assert.Equal(t, []string{"Aphid", "whitefly"}, report.Suppressed)

	ev := report.Persisted[0]
	assert.Equal(t, "aphid", ev.EventClass)
	assert.Equal(t, models.SeverityMedium, ev.Severity)
	assert.NotEmpty(t, ev.SuggestedActions)
	require.NotNil(t, ev.CameraID)
	assert.Equal(t, "cam-1", *ev.CameraID)
	require.NotNil(t, ev.ImagePath)
	assert.Equal(t, "/uploads/annotated/frame-1.jpg", *ev.ImagePath)

	require.Len(t, n.detections, 1)
	assert.Equal(t, ev.EventID, n.detections[0].Event.EventID)

	// 30 秒后仍在窗口内
	report, err = svc.ProcessDetections(context.Background(), "cam-1", &client.DetectionResult{
		Pests: []client.DetectedPest{{Type: "aphid", Confidence: 80}},
	}, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Empty(t, report.Persisted)

	// 61 秒后允许
	report, err = svc.ProcessDetections(context.Background(), "cam-1", &client.DetectionResult{
		Pests: []client.DetectedPest{{Type: "aphid", Confidence: 80}},
	}, base.Add(61*time.Second))
	require.NoError(t, err)
	assert.Len(t, report.Persisted, 1)
	assert.Len(t, store.events, 2)
}

func TestPestMonitor_UnknownPestFallsBackToMedium(t *testing.T) {
	store := &memDetectionStore{}
	svc := newTestPestMonitor(t, store, nil, &recordingNotifier{}, time.Now())

	report, err := svc.ProcessDetections(context.Background(), "", &client.DetectionResult{
		Pests: []client.DetectedPest{{Type: "purple leaf sprite", Confidence: 99}},
	}, time.Now())
	require.NoError(t, err)
	require.Len(t, report.Persisted, 1)
	assert.Equal(t, models.SeverityMedium, report.Persisted[0].Severity)
	assert.Nil(t, report.Persisted[0].CameraID)
}

func TestPestMonitor_InsertFailureIsReported(t *testing.T) {
	store := &memDetectionStore{insertErr: errors.New("disk full")}
	n := &recordingNotifier{}
	svc := newTestPestMonitor(t, store, nil, n, time.Now())

	report, err := svc.ProcessDetections(context.Background(), "cam-1", &client.DetectionResult{
		Pests: []client.DetectedPest{{Type: "locust", Confidence: 95}},
	}, time.Now())
	assert.Error(t, err)
	assert.Empty(t, report.Persisted)
	assert.Empty(t, n.detections)
}

func TestPestMonitor_ScanDetectorDown(t *testing.T) {
	store := &memDetectionStore{}
	detector := &fakeDetector{err: client.ErrDetectorUnavailable}
	svc := newTestPestMonitor(t, store, detector, &recordingNotifier{}, time.Now())

	report, err := svc.Scan(context.Background(), "cam-1", "/tmp/frame.jpg")
	assert.ErrorIs(t, err, client.ErrDetectorUnavailable)
	assert.Nil(t, report)
	assert.Empty(t, store.events)
}

func TestPestMonitor_ScanUsesOriginalImageWithoutAnnotation(t *testing.T) {
	store := &memDetectionStore{}
	detector := &fakeDetector{result: &client.DetectionResult{
		Pests: []client.DetectedPest{{Type: "Fall Armyworm", Confidence: 88}},
	}}
	svc := newTestPestMonitor(t, store, detector, &recordingNotifier{}, time.Now())

	report, err := svc.Scan(context.Background(), "cam-2", "/tmp/frame.jpg")
	require.NoError(t, err)
	require.Len(t, report.Persisted, 1)
	assert.Equal(t, models.SeverityCritical, report.Persisted[0].Severity)
	require.NotNil(t, report.Persisted[0].ImagePath)
	assert.Equal(t, "/tmp/frame.jpg", *report.Persisted[0].ImagePath)
}

func TestPestMonitor_ConcurrentSameClassPersistsOnce(t *testing.T) {
	store := &memDetectionStore{}
	now := time.Now()
	svc := newTestPestMonitor(t, store, nil, &recordingNotifier{}, now)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ProcessDetections(context.Background(), "cam-1", &client.DetectionResult{
				Pests: []client.DetectedPest{{Type: "Thrips", Confidence: 70}},
			}, now)
		}()
	}
	wg.Wait()

	assert.Len(t, store.events, 1)
}

func TestPestMonitor_ConcurrentSeparatorVariantsPersistOnce(t *testing.T) {
	store := &memDetectionStore{}
	now := time.Now()
	svc := newTestPestMonitor(t, store, nil, &recordingNotifier{}, now)

	classes := []string{"spider_mite", "Spider Mite", "spider-mite", "SPIDER MITE"}
	var wg sync.WaitGroup
	for _, class := range classes {
		wg.Add(1)
		go func(class string) {
			defer wg.Done()
			_, _ = svc.ProcessDetections(context.Background(), "cam-1", &client.DetectionResult{
				Pests: []client.DetectedPest{{Type: class, Confidence: 70}},
			}, now)
		}(class)
	}
	wg.Wait()

	assert.Len(t, store.events, 1)
}
