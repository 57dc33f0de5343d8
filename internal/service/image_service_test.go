package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentes-service/internal/config"
	"patentes-service/internal/domain/detection"
)

// newValidationOnlyService builds a service with no repositories. Safe for
// paths that must fail validation before any store access; a test that
// accidentally reaches the store panics instead of passing silently.
func newValidationOnlyService(t *testing.T) *QueryService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pagination.MaxPageSize = 100
	return NewQueryService(nil, nil, cfg, zerolog.Nop())
}

func TestEventImagesRejectsMalformedKeyBeforeStore(t *testing.T) {
	s := newValidationOnlyService(t)

	_, err := s.EventImages(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Contains(t, err.Error(), "event_id")
}

func TestImageRawRejectsMalformedKeyBeforeStore(t *testing.T) {
	s := newValidationOnlyService(t)

	_, err := s.ImageRaw(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Contains(t, err.Error(), "image_id")
}

func TestImagesKeysetRejectsMalformedCursor(t *testing.T) {
	s := newValidationOnlyService(t)

	tests := []struct {
		name   string
		params KeysetParams
		field  string
	}{
		{
			"bad cursor timestamp",
			KeysetParams{CursorTS: "yesterday", CursorID: uuid.NewString()},
			"cursor_ts",
		},
		{
			"bad cursor id",
			KeysetParams{CursorTS: time.Now().Format(time.RFC3339), CursorID: "not-a-uuid"},
			"cursor_id",
		},
		{
			"id without timestamp",
			KeysetParams{CursorID: uuid.NewString()},
			"cursor_ts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ImagesKeyset(context.Background(), tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSearchPlateRejectsEmptyQuery(t *testing.T) {
	s := newValidationOnlyService(t)

	_, err := s.SearchPlate(context.Background(), "", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestToImageItemEncodesPayload(t *testing.T) {
	brand := "cheurolet"
	row := detection.ImageRow{
		EventID:   uuid.New(),
		ImageID:   uuid.New(),
		CreatedAt: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		Data:      []byte{0xFF, 0xD8, 0xFF},
		Type:      detection.ImageTypeVehiclePicture,
		PlateText: "ABC123",
		Brand:     &brand,
	}

	item := toImageItem(row)
	require.NotNil(t, item.ImageData)
	assert.Equal(t, base64.StdEncoding.EncodeToString(row.Data), *item.ImageData)
	assert.Equal(t, "2024-03-15T12:00:00Z", item.CreatedAt)
	assert.Equal(t, row.ImageID.String(), item.ImageID)

	// Brand normalization is an output transform.
	require.NotNil(t, item.Brand)
	assert.Equal(t, "Chevrolet", *item.Brand)
}

func TestToImageItemTimestampRoundTripsAsCursor(t *testing.T) {
	// Items feed the next request's cursor, so sub-second precision must
	// survive the trip through the JSON form and back.
	created := time.Date(2024, 3, 15, 12, 0, 0, 500_000_000, time.UTC)
	item := toImageItem(detection.ImageRow{
		EventID:   uuid.New(),
		ImageID:   uuid.New(),
		CreatedAt: created,
		Type:      detection.ImageTypeVehiclePicture,
	})

	parsed, err := time.Parse(time.RFC3339, item.CreatedAt)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(created), "cursor ts %q must equal %v", item.CreatedAt, created)
}

func TestToImageItemNilPayloadMeansNoImage(t *testing.T) {
	item := toImageItem(detection.ImageRow{
		EventID: uuid.New(),
		ImageID: uuid.New(),
		Type:    detection.ImageTypePlate,
	})
	assert.Nil(t, item.ImageData)
	assert.Nil(t, item.Brand)
}
