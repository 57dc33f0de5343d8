package detection

import (
	"time"

	"github.com/google/uuid"
)

// ImageType tags the capture stage an EventImage came from.
type ImageType string

const (
	ImageTypeVehicleDetection ImageType = "vehicle_detection"
	ImageTypeVehiclePicture   ImageType = "vehicle_picture"
	ImageTypePlate            ImageType = "plate"
)

// DefaultImageTypes is used when a caller requests only unknown type tags.
func DefaultImageTypes() []ImageType {
	return []ImageType{ImageTypeVehicleDetection, ImageTypeVehiclePicture}
}

func ValidImageType(t ImageType) bool {
	switch t {
	case ImageTypeVehicleDetection, ImageTypeVehiclePicture, ImageTypePlate:
		return true
	}
	return false
}

// Detection is one recognition event produced by the ingestion pipeline.
// Rows are immutable; this service never writes them.
type Detection struct {
	ID          uuid.UUID `json:"event_id"`
	PlateText   string    `json:"plate_text"`
	Brand       *string   `json:"vehicle_brand,omitempty"`
	Color       *string   `json:"vehicle_color,omitempty"`
	VehicleType *string   `json:"vehicle_type,omitempty"`
	Confidence  *float64  `json:"plate_confidence,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PatentRow is a Detection enriched with its sightings count (how many
// detections across the whole table share the same plate text).
type PatentRow struct {
	Detection
	Sightings int64 `json:"sightings"`
}

// Image is one binary artifact belonging to a Detection. Data may be nil,
// which means "no image available", not an error.
type Image struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	CreatedAt time.Time
	Data      []byte
	Type      ImageType
	FileName  *string
}

// ImageRow is the joined view returned by the latest/search/range queries:
// an image together with its owning detection's plate data.
type ImageRow struct {
	EventID    uuid.UUID
	ImageID    uuid.UUID
	CreatedAt  time.Time
	Data       []byte
	Type       ImageType
	FileName   *string
	PlateText  string
	Confidence *float64
	Brand      *string
}

// Direction selects which side of the cursor a keyset page is read from.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// Cursor identifies the last-seen row of a keyset page. The (CreatedAt, ID)
// pair totally orders event_images, so strict inequality against it never
// skips or repeats rows.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Stats is the aggregate view over detection_events for a date range.
// The wire form lives in the service layer.
type Stats struct {
	Total             int64
	UniquePlates      int64
	AvgConfidence     float64
	LowConfidence     int64
	MidConfidence     int64
	HighConfidence    int64
	FirstDetectionAt  *time.Time
	LastDetectionAt   *time.Time
	DetectionsPerHour float64
}
