package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestLastWriteTime_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewReadingRepository(db, zap.NewNop())

	last := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MAX\(recorded_at\)`).
		WithArgs("temperature").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(last))

	got, err := repo.LastWriteTime(context.Background(), models.MetricTemperature)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, last.Equal(*got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastWriteTime_NoReadings(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewReadingRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT MAX\(recorded_at\)`).
		WithArgs("humidity").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := repo.LastWriteTime(context.Background(), models.MetricHumidity)

	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastWriteTime_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewReadingRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT MAX\(recorded_at\)`).
		WithArgs("soil_moisture").
		WillReturnError(errors.New("connection refused"))

	got, err := repo.LastWriteTime(context.Background(), models.MetricSoilMoisture)

	assert.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "failed to query last write time")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewReadingRepository(db, zap.NewNop())

	now := time.Now()
	mock.ExpectExec(`INSERT INTO sensor_readings`).
		WithArgs("temperature", 25.5, "°C", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertReading(context.Background(), &models.Reading{
		Metric:     models.MetricTemperature,
		Value:      25.5,
		Unit:       "°C",
		RecordedAt: now,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_Nil(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewReadingRepository(db, zap.NewNop())

	err := repo.InsertReading(context.Background(), nil)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReadings_SkipsUnknownMetric(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewReadingRepository(db, zap.NewNop())

	now := time.Now()
	rows := sqlmock.NewRows([]string{"metric_type", "value", "unit", "recorded_at"}).
		AddRow("humidity", 71.0, "%", now).
		AddRow("light", 400.0, "lux", now).
		AddRow("temperature", 24.0, "°C", now)
	mock.ExpectQuery(`SELECT DISTINCT ON \(metric_type\)`).WillReturnRows(rows)

	readings, err := repo.LatestReadings(context.Background())

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, models.MetricHumidity, readings[0].Metric)
	assert.Equal(t, models.MetricTemperature, readings[1].Metric)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoggingIntervalMinutes(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewSettingsRepository(db, zap.NewNop())
	ctx := context.Background()

	mock.ExpectQuery(`SELECT setting_value FROM settings`).
		WithArgs(SettingLoggingInterval).
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}).AddRow(" 15 "))
	minutes, err := repo.LoggingIntervalMinutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, minutes)

	mock.ExpectQuery(`SELECT setting_value FROM settings`).
		WithArgs(SettingLoggingInterval).
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}).AddRow("thirty"))
	_, err = repo.LoggingIntervalMinutes(ctx)
	assert.Error(t, err)

	mock.ExpectQuery(`SELECT setting_value FROM settings`).
		WithArgs(SettingLoggingInterval).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.LoggingIntervalMinutes(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "setting not found")

	require.NoError(t, mock.ExpectationsWereMet())
}
