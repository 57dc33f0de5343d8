package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"patentes-service/internal/config"
	"patentes-service/internal/domain/detection"
	"patentes-service/internal/repository"
	"patentes-service/internal/utils"
)

// ErrMalformedInput marks an identifying key or required parameter that
// failed validation. It is raised before any store access. Malformed
// optional filters are never an error; they are dropped.
var ErrMalformedInput = errors.New("malformed input")

type QueryService struct {
	detections  *repository.DetectionRepository
	images      *repository.ImageRepository
	maxPageSize int
	log         zerolog.Logger
}

func NewQueryService(
	detections *repository.DetectionRepository,
	images *repository.ImageRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *QueryService {
	return &QueryService{
		detections:  detections,
		images:      images,
		maxPageSize: cfg.Pagination.MaxPageSize,
		log:         log,
	}
}

// PatentPage is one offset-paginated page of enriched detections.
type PatentPage struct {
	Patents    []detection.PatentRow `json:"patents"`
	TotalCount int64                 `json:"total_count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
}

// ListPatents returns one page of detections with sightings counts and
// normalized brand names. Page and page size are clamped, never rejected.
func (s *QueryService) ListPatents(ctx context.Context, page, pageSize int, f repository.Filters) (*PatentPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	patents, total, err := s.detections.ListPatents(ctx, page, pageSize, f)
	if err != nil {
		s.log.Error().Err(err).Int("page", page).Msg("failed to list patents")
		return nil, err
	}

	for i := range patents {
		normalizeBrand(&patents[i].Detection)
	}

	return &PatentPage{
		Patents:    patents,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// StatsResponse carries the aggregate metrics with timestamps serialized to
// RFC 3339. On an empty result set both timestamps are null and every
// numeric field is zero.
type StatsResponse struct {
	Total             int64   `json:"total"`
	UniquePlates      int64   `json:"unique_plates"`
	AvgConfidence     float64 `json:"avg_confidence"`
	LowConfidence     int64   `json:"low_confidence_count"`
	MidConfidence     int64   `json:"mid_conf"`
	HighConfidence    int64   `json:"high_conf"`
	FirstDetectionAt  *string `json:"first_detection_at"`
	LastDetectionAt   *string `json:"last_detection_at"`
	DetectionsPerHour float64 `json:"detections_per_hour"`
}

// Stats computes the aggregate view over an optional date range. Malformed
// dates are dropped, widening the range rather than failing.
func (s *QueryService) Stats(ctx context.Context, startDate, endDate string) (*StatsResponse, error) {
	f := repository.Filters{StartDate: startDate, EndDate: endDate}

	stats, err := s.detections.GetStats(ctx, f)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch stats")
		return nil, err
	}

	return &StatsResponse{
		Total:             stats.Total,
		UniquePlates:      stats.UniquePlates,
		AvgConfidence:     stats.AvgConfidence,
		LowConfidence:     stats.LowConfidence,
		MidConfidence:     stats.MidConfidence,
		HighConfidence:    stats.HighConfidence,
		FirstDetectionAt:  formatTime(stats.FirstDetectionAt),
		LastDetectionAt:   formatTime(stats.LastDetectionAt),
		DetectionsPerHour: stats.DetectionsPerHour,
	}, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func normalizeBrand(d *detection.Detection) {
	if d.Brand != nil {
		normalized := utils.NormalizeBrand(*d.Brand)
		d.Brand = &normalized
	}
}

func malformed(field string) error {
	return fmt.Errorf("%w: invalid %s", ErrMalformedInput, field)
}
