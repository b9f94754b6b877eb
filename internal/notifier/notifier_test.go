package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"
	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func sampleViolation() *models.ViolationNotification {
	return &models.ViolationNotification{
		NotificationID: "n-1",
		SubjectID:      "plant-1",
		SubjectName:    "Tomato",
		Violations: []models.MetricCheck{{
			Metric: models.MetricTemperature,
			Status: models.StatusCritical,
			Value:  40,
			Band:   models.ThresholdBand{Metric: models.MetricTemperature, Min: 20, Max: 28},
		}},
		ConsecutiveCount: 3,
		TriggerCount:     3,
		Message:          "Tomato: temperature 40.0 (critical, range 20.0-28.0) out of range",
		EmittedAt:        time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func sampleDetection() *models.DetectionNotification {
	return &models.DetectionNotification{
		NotificationID: "n-2",
		Event: models.DetectionEvent{
			EventID:    "e-1",
			EventClass: "Aphids",
			Confidence: 82,
			Severity:   models.SeverityHigh,
			DetectedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		},
		Message:   "Aphids detected (82% confidence, high severity)",
		EmittedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestRedisStreamNotifier_NotifyViolation(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	n := NewRedisStreamNotifier(redisClient, "ecofarm:notifications:stream", zap.NewNop())
	require.NoError(t, n.NotifyViolation(context.Background(), sampleViolation()))

	msgs, err := redisClient.XRange(context.Background(), "ecofarm:notifications:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.NotificationViolation, msgs[0].Values["type"])
	assert.Equal(t, "n-1", msgs[0].Values["notification_id"])

	var decoded models.ViolationNotification
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "plant-1", decoded.SubjectID)
	assert.Equal(t, 3, decoded.ConsecutiveCount)
}

func TestRedisStreamNotifier_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { redisClient.Close() })
	mr.Close()

	n := NewRedisStreamNotifier(redisClient, "s", zap.NewNop())
	assert.Error(t, n.NotifyDetection(context.Background(), sampleDetection()))
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestMQTTNotifier_Topics(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, "ecofarm/alerts", 1)

	require.NoError(t, n.NotifyViolation(context.Background(), sampleViolation()))
	require.NoError(t, n.NotifyDetection(context.Background(), sampleDetection()))

	assert.Equal(t, []string{"ecofarm/alerts/violation/plant-1", "ecofarm/alerts/pest/high"}, pub.topics)

	var decoded models.DetectionNotification
	require.NoError(t, json.Unmarshal(pub.payloads[1], &decoded))
	assert.Equal(t, "Aphids", decoded.Event.EventClass)
}

type fakeNotificationStore struct {
	inserted []*repository.Notification
}

func (f *fakeNotificationStore) InsertNotification(ctx context.Context, n *repository.Notification) error {
	f.inserted = append(f.inserted, n)
	return nil
}

func TestDatabaseNotifier(t *testing.T) {
	store := &fakeNotificationStore{}
	n := NewDatabaseNotifier(store)

	require.NoError(t, n.NotifyViolation(context.Background(), sampleViolation()))
	require.NoError(t, n.NotifyDetection(context.Background(), sampleDetection()))
	require.Len(t, store.inserted, 2)

	assert.Equal(t, models.NotificationViolation, store.inserted[0].Type)
	require.NotNil(t, store.inserted[0].SubjectID)
	assert.Equal(t, "plant-1", *store.inserted[0].SubjectID)

	assert.Equal(t, models.NotificationDetection, store.inserted[1].Type)
	assert.Nil(t, store.inserted[1].SubjectID)
	assert.Contains(t, string(store.inserted[1].Payload), "Aphids")
}

type countingNotifier struct {
	violations int
	detections int
	err        error
}

func (c *countingNotifier) NotifyViolation(ctx context.Context, n *models.ViolationNotification) error {
	c.violations++
	return c.err
}

func (c *countingNotifier) NotifyDetection(ctx context.Context, n *models.DetectionNotification) error {
	c.detections++
	return c.err
}

func TestMultiNotifier_DeliversToAllSinks(t *testing.T) {
	failing := &countingNotifier{err: errors.New("sink down")}
	ok := &countingNotifier{}
	multi := NewMultiNotifier(zap.NewNop(), failing, ok)

	err := multi.NotifyViolation(context.Background(), sampleViolation())
	assert.Error(t, err)
	assert.Equal(t, 1, ok.violations)
	assert.Len(t, multierr.Errors(err), 1)

	failing.err = nil
	assert.NoError(t, multi.NotifyDetection(context.Background(), sampleDetection()))
	assert.Equal(t, 1, failing.detections)
	assert.Equal(t, 1, ok.detections)
}

func TestViolationMessage(t *testing.T) {
	v := sampleViolation()
	msg := ViolationMessage("Tomato", v.Violations, 3, 3)
	assert.Equal(t, "Tomato: temperature 40.0 (critical, range 20.0-28.0) out of range for 3 consecutive readings (trigger 3)", msg)

	msg = ViolationMessage("", []models.MetricCheck{{
		Metric: models.MetricSoilMoisture, Status: models.StatusWarning, Value: 65,
		Band: models.ThresholdBand{Min: 40, Max: 60},
	}}, 4, 3)
	assert.Contains(t, msg, "active plant: soil moisture 65.0")
}
