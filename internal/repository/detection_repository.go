package repository

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"patentes-service/internal/config"
	"patentes-service/internal/domain/detection"
)

// DetectionRepository reads detection_events. All methods are pure reads;
// multi-statement operations run on one connection but without a shared
// snapshot. Rows are append-only and immutable, so a count and the page it
// accompanies can differ only by rows ingested in between. Accepted.
type DetectionRepository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	maxPageSize    int
}

func NewDetectionRepository(pool *pgxpool.Pool, cfg *config.Config) *DetectionRepository {
	return &DetectionRepository{
		pool:           pool,
		acquireTimeout: cfg.DB.AcquireTimeout,
		maxPageSize:    cfg.Pagination.MaxPageSize,
	}
}

const patentColumns = `
	id,
	camera_plate_text,
	vehicle_brand,
	vehicle_color,
	vehicle_type,
	camera_confidence,
	created_at`

// ListPatents returns one offset-paginated page of detections ordered by
// recency, the total match count, and per-row sightings counts. Arbitrarily
// deep offsets are accepted; cost grows linearly with depth.
func (r *DetectionRepository) ListPatents(ctx context.Context, page, pageSize int, f Filters) ([]detection.PatentRow, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > r.maxPageSize {
		pageSize = r.maxPageSize
	}
	offset := (page - 1) * pageSize

	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	where, params := f.whereClause(0)

	var total int64
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM detection_events"+where, params...).Scan(&total); err != nil {
		return nil, 0, storeErr("counting detections", err)
	}

	pageQuery := "SELECT" + patentColumns + " FROM detection_events" + where +
		orderedLimitOffset(len(params))
	pageParams := append(params, pageSize, offset)

	rows, err := conn.Query(ctx, pageQuery, pageParams...)
	if err != nil {
		return nil, 0, storeErr("fetching detections page", err)
	}
	defer rows.Close()

	patents := make([]detection.PatentRow, 0, pageSize)
	for rows.Next() {
		var p detection.PatentRow
		if err := rows.Scan(&p.ID, &p.PlateText, &p.Brand, &p.Color,
			&p.VehicleType, &p.Confidence, &p.CreatedAt); err != nil {
			return nil, 0, storeErr("scanning detection row", err)
		}
		patents = append(patents, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("reading detections page", err)
	}
	rows.Close()

	if err := r.attachSightings(ctx, conn, patents); err != nil {
		return nil, 0, err
	}
	return patents, total, nil
}

func orderedLimitOffset(argOffset int) string {
	return " ORDER BY created_at DESC, id DESC" +
		" LIMIT $" + strconv.Itoa(argOffset+1) + " OFFSET $" + strconv.Itoa(argOffset+2)
}

// attachSightings enriches the current page with the number of detections
// across the whole table sharing each row's plate text. One batched query
// restricted to the page's plates; never a per-row lookup.
func (r *DetectionRepository) attachSightings(ctx context.Context, conn *pgxpool.Conn, patents []detection.PatentRow) error {
	if len(patents) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(patents))
	plates := make([]string, 0, len(patents))
	for _, p := range patents {
		if p.PlateText == "" {
			continue
		}
		if _, ok := seen[p.PlateText]; ok {
			continue
		}
		seen[p.PlateText] = struct{}{}
		plates = append(plates, p.PlateText)
	}
	if len(plates) == 0 {
		return nil
	}

	rows, err := conn.Query(ctx, `
		SELECT camera_plate_text, COUNT(*)
		FROM detection_events
		WHERE camera_plate_text = ANY($1)
		GROUP BY camera_plate_text`, plates)
	if err != nil {
		return storeErr("counting sightings", err)
	}
	defer rows.Close()

	counts := make(map[string]int64, len(plates))
	for rows.Next() {
		var plate string
		var n int64
		if err := rows.Scan(&plate, &n); err != nil {
			return storeErr("scanning sightings row", err)
		}
		counts[plate] = n
	}
	if err := rows.Err(); err != nil {
		return storeErr("reading sightings", err)
	}

	mergeSightings(patents, counts)
	return nil
}

// mergeSightings copies each plate's count onto its page rows. A plate
// absent from the counts map cannot happen when the aggregation ran against
// this page's plates, but defaults to 0 rather than trust that.
func mergeSightings(patents []detection.PatentRow, counts map[string]int64) {
	for i := range patents {
		patents[i].Sightings = counts[patents[i].PlateText]
	}
}

// GetStats computes the aggregate view in a single round trip. Only the
// date-range filters apply here.
func (r *DetectionRepository) GetStats(ctx context.Context, f Filters) (*detection.Stats, error) {
	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	where, params := f.whereClause(0)

	var s detection.Stats
	err = conn.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT camera_plate_text),
			COALESCE(AVG(camera_confidence), 0),
			COUNT(*) FILTER (WHERE camera_confidence < 0.7),
			COUNT(*) FILTER (WHERE camera_confidence >= 0.7 AND camera_confidence < 0.9),
			COUNT(*) FILTER (WHERE camera_confidence >= 0.9),
			MIN(created_at),
			MAX(created_at)
		FROM detection_events`+where, params...).
		Scan(&s.Total, &s.UniquePlates, &s.AvgConfidence,
			&s.LowConfidence, &s.MidConfidence, &s.HighConfidence,
			&s.FirstDetectionAt, &s.LastDetectionAt)
	if err != nil {
		return nil, storeErr("fetching stats", err)
	}

	s.AvgConfidence = math.Round(s.AvgConfidence*10000) / 10000
	s.DetectionsPerHour = detectionsPerHour(s.Total, s.FirstDetectionAt, s.LastDetectionAt)
	return &s, nil
}

// detectionsPerHour derives the throughput rate, flooring the elapsed span
// at one hour so a burst of detections inside a short window does not blow
// the rate up. Zero, not NaN, when nothing matched.
func detectionsPerHour(total int64, first, last *time.Time) float64 {
	if total == 0 || first == nil || last == nil {
		return 0
	}
	hours := last.Sub(*first).Hours()
	rate := float64(total) / math.Max(hours, 1)
	return math.Round(rate*10) / 10
}
