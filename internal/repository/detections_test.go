package repository

import (
	"context"
	"testing"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInsertDetectionEvent_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewDetectionRepository(db, zap.NewNop())

	eventID := uuid.New().String()
	cameraID := "cam-1"
	now := time.Now()

	mock.ExpectExec(`INSERT INTO pest_alerts`).
		WithArgs(eventID, "aphid", 82.5, "medium", sqlmock.AnyArg(), "cam-1", nil, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertDetectionEvent(context.Background(), &models.DetectionEvent{
		EventID:          eventID,
		EventClass:       "aphid",
		Confidence:       82.5,
		Severity:         models.SeverityMedium,
		SuggestedActions: []string{"Spray water"},
		CameraID:         &cameraID,
		DetectedAt:       now,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDetectionEvent_Validation(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewDetectionRepository(db, zap.NewNop())

	assert.Error(t, repo.InsertDetectionEvent(context.Background(), nil))
	err := repo.InsertDetectionEvent(context.Background(), &models.DetectionEvent{EventClass: "aphid"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event_id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentDetections_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewDetectionRepository(db, zap.NewNop())

	since := time.Now().Add(-time.Minute)
	detectedAt := time.Now().Add(-20 * time.Second)
	rows := sqlmock.NewRows([]string{
		"event_id", "pest_type", "confidence", "severity", "suggested_actions", "camera_id", "image_path", "detected_at",
	}).AddRow(
		"evt-1", "Aphid", 75.0, "medium", `{"Spray water",soap}`, "cam-1", nil, detectedAt,
	)

	mock.ExpectQuery(`FROM pest_alerts\s+WHERE BTRIM\(REGEXP_REPLACE\(LOWER\(pest_type\)`).
		WithArgs("aphid", since).
		WillReturnRows(rows)

	events, err := repo.GetRecentDetections(context.Background(), "aphid", since)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].EventID)
	assert.Equal(t, "Aphid", events[0].EventClass)
	assert.Equal(t, models.SeverityMedium, events[0].Severity)
	assert.Equal(t, []string{"Spray water", "soap"}, events[0].SuggestedActions)
	require.NotNil(t, events[0].CameraID)
	assert.Equal(t, "cam-1", *events[0].CameraID)
	assert.Nil(t, events[0].ImagePath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNotification(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNotificationRepository(db, zap.NewNop())

	subjectID := "plant-1"
	now := time.Now()
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("n-1", "plant-1", models.NotificationViolation, "Temperature out of range", []byte("{}"), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertNotification(context.Background(), &Notification{
		NotificationID: "n-1",
		SubjectID:      &subjectID,
		Type:           models.NotificationViolation,
		Message:        "Temperature out of range",
		CreatedAt:      now,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
