package service

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"patentes-service/internal/domain/detection"
	"patentes-service/internal/repository"
	"patentes-service/internal/utils"
)

// ImageItem is the JSON view of one image joined with its detection data.
// ImageData is base64; null means no payload is stored for the row.
type ImageItem struct {
	EventID    string   `json:"event_id"`
	ImageID    string   `json:"image_id"`
	CreatedAt  string   `json:"created_at"`
	ImageData  *string  `json:"image_data"`
	ImageType  string   `json:"image_type"`
	FileName   *string  `json:"file_name,omitempty"`
	PlateText  string   `json:"plate_text"`
	Confidence *float64 `json:"plate_confidence,omitempty"`
	Brand      *string  `json:"vehicle_brand,omitempty"`
}

func toImageItem(r detection.ImageRow) ImageItem {
	// created_at is microsecond-precision in the store and doubles as the
	// next request's cursor, so it must round-trip without losing
	// fractional seconds.
	item := ImageItem{
		EventID:    r.EventID.String(),
		ImageID:    r.ImageID.String(),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339Nano),
		ImageType:  string(r.Type),
		FileName:   r.FileName,
		PlateText:  r.PlateText,
		Confidence: r.Confidence,
	}
	if r.Data != nil {
		encoded := base64.StdEncoding.EncodeToString(r.Data)
		item.ImageData = &encoded
	}
	if r.Brand != nil {
		normalized := utils.NormalizeBrand(*r.Brand)
		item.Brand = &normalized
	}
	return item
}

func toImageItems(rows []detection.ImageRow) []ImageItem {
	items := make([]ImageItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toImageItem(r))
	}
	return items
}

// LatestImages returns the newest images with detection data, base64-encoded.
func (s *QueryService) LatestImages(ctx context.Context, limit int) ([]ImageItem, error) {
	rows, err := s.images.LatestImages(ctx, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch latest images")
		return nil, err
	}
	return toImageItems(rows), nil
}

// SearchPlate returns images whose plate text contains the term.
func (s *QueryService) SearchPlate(ctx context.Context, plateText string, limit int) ([]ImageItem, error) {
	if plateText == "" {
		return nil, malformed("plate query")
	}
	rows, err := s.images.SearchByPlate(ctx, plateText, limit)
	if err != nil {
		s.log.Error().Err(err).Str("plate", plateText).Msg("failed to search by plate")
		return nil, err
	}
	return toImageItems(rows), nil
}

// ImagesByDateRange returns images inside the inclusive datetime range.
// Unparseable bounds yield an empty result, not an error; the leniency on
// malformed dates is deliberate and matches the rest of the engine.
func (s *QueryService) ImagesByDateRange(ctx context.Context, start, end string, limit int) ([]ImageItem, error) {
	startT, okStart := repository.ParseFilterDate(start)
	endT, okEnd := repository.ParseFilterDate(end)
	if !okStart || !okEnd {
		s.log.Warn().Str("start", start).Str("end", end).Msg("unparseable datetime range, returning empty result")
		return []ImageItem{}, nil
	}

	rows, err := s.images.ImagesByDateRange(ctx, startT, endT, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch images by date range")
		return nil, err
	}
	return toImageItems(rows), nil
}

// RecentThumbnails returns the newest vehicle_picture payloads, skipping
// rows with no stored image.
func (s *QueryService) RecentThumbnails(ctx context.Context, limit int) ([]ImageItem, error) {
	rows, err := s.images.RecentThumbnails(ctx, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch recent thumbnails")
		return nil, err
	}
	items := make([]ImageItem, 0, len(rows))
	for _, r := range rows {
		if r.Data == nil {
			continue
		}
		items = append(items, toImageItem(r))
	}
	return items, nil
}

// EventImage is one image payload for an event, encoded for inline JSON use.
type EventImage struct {
	ImageData string `json:"image_data"`
	ImageType string `json:"image_type"`
}

// EventImages returns every stored payload for one detection, in type
// priority order. The key is validated before any store access.
func (s *QueryService) EventImages(ctx context.Context, eventID string) ([]EventImage, error) {
	id, err := uuid.Parse(eventID)
	if err != nil {
		return nil, malformed("event_id")
	}

	images, err := s.images.ImagesByEventID(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Msg("failed to fetch event images")
		return nil, err
	}

	result := make([]EventImage, 0, len(images))
	for _, img := range images {
		result = append(result, EventImage{
			ImageData: base64.StdEncoding.EncodeToString(img.Data),
			ImageType: string(img.Type),
		})
	}
	return result, nil
}

// ImageRaw returns one image's raw bytes and type tag for direct streaming.
func (s *QueryService) ImageRaw(ctx context.Context, imageID string) (*detection.Image, error) {
	id, err := uuid.Parse(imageID)
	if err != nil {
		return nil, malformed("image_id")
	}

	img, err := s.images.ImageByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Str("image_id", imageID).Msg("failed to fetch image")
		}
		return nil, err
	}
	return img, nil
}

// KeysetParams is a raw cursor-paginated request as received from a caller.
type KeysetParams struct {
	CursorTS  string
	CursorID  string
	Direction string
	Limit     int
	Types     []string
	Search    string
	StartDate string
	EndDate   string
}

// KeysetPage is one cursor-paginated page. TotalCount is present only on
// cursor-less requests; each item carries its own (created_at, id) pair
// usable as the next cursor.
type KeysetPage struct {
	Items      []ImageItem `json:"items"`
	TotalCount *int64      `json:"total_count,omitempty"`
}

// ImagesKeyset pages over images by cursor. A cursor must be supplied whole:
// a malformed timestamp or id in it is a malformed-input failure, unlike the
// optional filters.
func (s *QueryService) ImagesKeyset(ctx context.Context, p KeysetParams) (*KeysetPage, error) {
	q := repository.KeysetQuery{
		Limit:     p.Limit,
		Direction: detection.DirectionForward,
		Search:    p.Search,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
	}
	if p.Direction == string(detection.DirectionBackward) {
		q.Direction = detection.DirectionBackward
	}

	if p.CursorTS != "" || p.CursorID != "" {
		ts, err := time.Parse(time.RFC3339, p.CursorTS)
		if err != nil {
			return nil, malformed("cursor_ts")
		}
		id, err := uuid.Parse(p.CursorID)
		if err != nil {
			return nil, malformed("cursor_id")
		}
		q.Cursor = &detection.Cursor{CreatedAt: ts, ID: id}
	}

	for _, t := range p.Types {
		q.Types = append(q.Types, detection.ImageType(t))
	}

	rows, total, err := s.images.ListImagesKeyset(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch keyset page")
		return nil, err
	}

	return &KeysetPage{Items: toImageItems(rows), TotalCount: total}, nil
}

// NewImagesForDownload returns raw image rows created after the given
// timestamp, oldest first, for the export job.
func (s *QueryService) NewImagesForDownload(ctx context.Context, since *time.Time) ([]detection.ImageRow, error) {
	rows, err := s.images.ImagesSince(ctx, since)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch new images for download")
		return nil, err
	}
	return rows, nil
}

// ImageFeed is the JSON-facing variant of the incremental feed. A malformed
// since value is dropped, yielding the full feed.
func (s *QueryService) ImageFeed(ctx context.Context, since string) ([]ImageItem, error) {
	var sinceT *time.Time
	if t, ok := repository.ParseFilterDate(since); ok {
		sinceT = &t
	}
	rows, err := s.images.ImagesSince(ctx, sinceT)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch image feed")
		return nil, err
	}
	return toImageItems(rows), nil
}
