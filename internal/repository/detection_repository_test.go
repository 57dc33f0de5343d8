package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"patentes-service/internal/domain/detection"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestDetectionsPerHour(t *testing.T) {
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		total int64
		first *time.Time
		last  *time.Time
		want  float64
	}{
		{"no rows", 0, nil, nil, 0},
		{"missing timestamps", 10, nil, nil, 0},
		{"two hour span", 10, timePtr(base), timePtr(base.Add(2 * time.Hour)), 5.0},
		{"span under an hour floors to one", 100, timePtr(base), timePtr(base.Add(30 * time.Minute)), 100.0},
		{"single instant floors to one", 7, timePtr(base), timePtr(base), 7.0},
		{"rounded to one decimal", 10, timePtr(base), timePtr(base.Add(3 * time.Hour)), 3.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectionsPerHour(tt.total, tt.first, tt.last))
		})
	}
}

func TestMergeSightings(t *testing.T) {
	patents := []detection.PatentRow{
		{Detection: detection.Detection{PlateText: "ABC123"}},
		{Detection: detection.Detection{PlateText: "ABC123"}},
		{Detection: detection.Detection{PlateText: "XYZ999"}},
		{Detection: detection.Detection{PlateText: "GHOST1"}},
	}
	counts := map[string]int64{
		"ABC123": 3,
		"XYZ999": 1,
	}

	mergeSightings(patents, counts)

	assert.Equal(t, int64(3), patents[0].Sightings)
	assert.Equal(t, int64(3), patents[1].Sightings)
	assert.Equal(t, int64(1), patents[2].Sightings)
	// A plate missing from the aggregation result defaults to 0.
	assert.Equal(t, int64(0), patents[3].Sightings)
}

func TestMergeSightingsEmptyPage(t *testing.T) {
	assert.NotPanics(t, func() {
		mergeSightings(nil, map[string]int64{"ABC123": 2})
		mergeSightings([]detection.PatentRow{}, nil)
	})
}

func TestOrderedLimitOffset(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2", orderedLimitOffset(0))
	assert.Equal(t, " ORDER BY created_at DESC, id DESC LIMIT $8 OFFSET $9", orderedLimitOffset(7))
}
