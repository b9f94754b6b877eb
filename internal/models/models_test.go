package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, PhaseNormal, PhaseOf(0, 3))
	assert.Equal(t, PhaseAccumulating, PhaseOf(2, 3))
	assert.Equal(t, PhaseTriggered, PhaseOf(3, 3))
	assert.Equal(t, PhaseSustainedTriggered, PhaseOf(4, 3))
}

func TestParseMetricType(t *testing.T) {
	m, err := ParseMetricType("soil_moisture")
	assert.NoError(t, err)
	assert.Equal(t, MetricSoilMoisture, m)

	_, err = ParseMetricType("ph")
	assert.Error(t, err)
}

func TestReadingSet_IsComplete(t *testing.T) {
	set := ReadingSet{MetricTemperature: 25, MetricHumidity: 70}
	assert.False(t, set.IsComplete())

	set[MetricSoilMoisture] = 50
	assert.True(t, set.IsComplete())
}

func TestStatus_IsViolation(t *testing.T) {
	assert.False(t, StatusOptimal.IsViolation())
	assert.True(t, StatusWarning.IsViolation())
	assert.True(t, StatusCritical.IsViolation())
}
