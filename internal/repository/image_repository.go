package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"patentes-service/internal/config"
	"patentes-service/internal/domain/detection"
)

// ImageRepository reads event_images and their joined detection data.
type ImageRepository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	maxPageSize    int
}

func NewImageRepository(pool *pgxpool.Pool, cfg *config.Config) *ImageRepository {
	return &ImageRepository{
		pool:           pool,
		acquireTimeout: cfg.DB.AcquireTimeout,
		maxPageSize:    cfg.Pagination.MaxPageSize,
	}
}

const imageRowColumns = `
	de.id AS event_id,
	ei.id AS image_id,
	ei.created_at,
	ei.image_data,
	ei.image_type,
	ei.file_name,
	de.camera_plate_text AS plate_text,
	de.camera_confidence AS plate_confidence,
	de.vehicle_brand
FROM detection_events de
JOIN event_images ei ON de.id = ei.event_id`

func scanImageRows(rows pgx.Rows) ([]detection.ImageRow, error) {
	var out []detection.ImageRow
	for rows.Next() {
		var r detection.ImageRow
		if err := rows.Scan(&r.EventID, &r.ImageID, &r.CreatedAt, &r.Data,
			&r.Type, &r.FileName, &r.PlateText, &r.Confidence, &r.Brand); err != nil {
			return nil, storeErr("scanning image row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("reading image rows", err)
	}
	return out, nil
}

// LatestImages returns the most recent images with their detection data,
// newest first.
func (r *ImageRepository) LatestImages(ctx context.Context, limit int) ([]detection.ImageRow, error) {
	limit = r.clampLimit(limit)

	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, "SELECT"+imageRowColumns+
		" ORDER BY ei.created_at DESC, ei.id DESC LIMIT $1", limit)
	if err != nil {
		return nil, storeErr("fetching latest images", err)
	}
	defer rows.Close()
	return scanImageRows(rows)
}

// SearchByPlate returns images whose detection's plate text contains the
// given term, case-insensitively, newest first.
func (r *ImageRepository) SearchByPlate(ctx context.Context, plateText string, limit int) ([]detection.ImageRow, error) {
	limit = r.clampLimit(limit)

	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, "SELECT"+imageRowColumns+
		" WHERE de.camera_plate_text ILIKE $1"+
		" ORDER BY de.created_at DESC, de.id DESC LIMIT $2",
		"%"+plateText+"%", limit)
	if err != nil {
		return nil, storeErr("searching by plate", err)
	}
	defer rows.Close()
	return scanImageRows(rows)
}

// ImagesByDateRange returns images whose detection falls inside the
// inclusive [start, end] bounds, newest first.
func (r *ImageRepository) ImagesByDateRange(ctx context.Context, start, end time.Time, limit int) ([]detection.ImageRow, error) {
	limit = r.clampLimit(limit)

	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, "SELECT"+imageRowColumns+
		" WHERE de.created_at >= $1 AND de.created_at <= $2"+
		" ORDER BY de.created_at DESC, de.id DESC LIMIT $3",
		start, end, limit)
	if err != nil {
		return nil, storeErr("fetching images by date range", err)
	}
	defer rows.Close()
	return scanImageRows(rows)
}

// RecentThumbnails returns the newest vehicle_picture payloads, filtered
// server-side by type tag.
func (r *ImageRepository) RecentThumbnails(ctx context.Context, limit int) ([]detection.ImageRow, error) {
	limit = r.clampLimit(limit)

	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, "SELECT"+imageRowColumns+
		" WHERE ei.image_type = $1"+
		" ORDER BY ei.created_at DESC, ei.id DESC LIMIT $2",
		detection.ImageTypeVehiclePicture, limit)
	if err != nil {
		return nil, storeErr("fetching recent thumbnails", err)
	}
	defer rows.Close()
	return scanImageRows(rows)
}

// ImagesByEventID returns every image belonging to one detection, ordered
// by a fixed type priority: vehicle_detection, vehicle_picture, plate, then
// anything else. Rows without a payload are skipped.
func (r *ImageRepository) ImagesByEventID(ctx context.Context, eventID uuid.UUID) ([]detection.Image, error) {
	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, event_id, created_at, image_data, image_type, file_name
		FROM event_images
		WHERE event_id = $1
		ORDER BY
			CASE image_type
				WHEN 'vehicle_detection' THEN 1
				WHEN 'vehicle_picture' THEN 2
				WHEN 'plate' THEN 3
				ELSE 4
			END,
			id`, eventID)
	if err != nil {
		return nil, storeErr("fetching images for event", err)
	}
	defer rows.Close()

	var images []detection.Image
	for rows.Next() {
		var img detection.Image
		if err := rows.Scan(&img.ID, &img.EventID, &img.CreatedAt,
			&img.Data, &img.Type, &img.FileName); err != nil {
			return nil, storeErr("scanning image", err)
		}
		if img.Data == nil {
			continue
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("reading images for event", err)
	}
	return images, nil
}

// ImageByID returns one image's raw bytes and type tag, or ErrNotFound.
// No encoding transform; the caller streams the bytes directly.
func (r *ImageRepository) ImageByID(ctx context.Context, id uuid.UUID) (*detection.Image, error) {
	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	var img detection.Image
	err = conn.QueryRow(ctx, `
		SELECT id, event_id, created_at, image_data, image_type, file_name
		FROM event_images
		WHERE id = $1`, id).
		Scan(&img.ID, &img.EventID, &img.CreatedAt, &img.Data, &img.Type, &img.FileName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("fetching image by id", err)
	}
	return &img, nil
}

// KeysetQuery is one cursor-paginated request over event_images.
type KeysetQuery struct {
	Cursor    *detection.Cursor
	Limit     int
	Direction detection.Direction
	Types     []detection.ImageType

	// Shared optional filters; malformed dates are dropped.
	Search    string
	StartDate string
	EndDate   string
}

// ListImagesKeyset pages over event_images by the (created_at, id) key
// without re-scanning skipped rows. Rows always come back in (created_at,
// id) descending presentation order regardless of travel direction; a
// backward page is fetched ascending so the store can seek an index, then
// reversed in memory. Total is computed only on cursor-less requests.
func (r *ImageRepository) ListImagesKeyset(ctx context.Context, q KeysetQuery) ([]detection.ImageRow, *int64, error) {
	sql := buildKeysetSQL(q, r.clampLimit(q.Limit))

	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	var total *int64
	if q.Cursor == nil {
		var n int64
		if err := conn.QueryRow(ctx, sql.countQuery, sql.countParams...).Scan(&n); err != nil {
			return nil, nil, storeErr("counting keyset images", err)
		}
		total = &n
	}

	rows, err := conn.Query(ctx, sql.pageQuery, sql.pageParams...)
	if err != nil {
		return nil, nil, storeErr("fetching keyset page", err)
	}
	defer rows.Close()

	items, err := scanImageRows(rows)
	if err != nil {
		return nil, nil, err
	}

	if q.Cursor != nil && q.Direction == detection.DirectionBackward {
		reverseImageRows(items)
	}
	return items, total, nil
}

const imageRowCountFrom = `
	FROM detection_events de
	JOIN event_images ei ON de.id = ei.event_id`

type keysetSQL struct {
	countQuery  string
	countParams []any
	pageQuery   string
	pageParams  []any
}

// buildKeysetSQL assembles the count and page statements for one keyset
// request. The count statement never carries the cursor predicate; the page
// statement orders descending for forward travel and ascending for backward
// so either direction is an index seek.
func buildKeysetSQL(q KeysetQuery, limit int) keysetSQL {
	conds := []string{"ei.image_type = ANY($1)"}
	params := []any{imageTypeStrings(sanitizeImageTypes(q.Types))}

	next := func(v any) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", len(params))
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		conds = append(conds, "de.camera_plate_text ILIKE "+next("%"+s+"%"))
	}
	if t, ok := ParseFilterDate(q.StartDate); ok {
		conds = append(conds, "ei.created_at >= "+next(t))
	}
	if t, ok := ParseFilterDate(q.EndDate); ok {
		conds = append(conds, "ei.created_at <= "+next(t))
	}

	out := keysetSQL{
		countQuery:  "SELECT COUNT(*)" + imageRowCountFrom + " WHERE " + strings.Join(conds, " AND "),
		countParams: params[:len(params):len(params)],
	}

	order := " ORDER BY ei.created_at DESC, ei.id DESC"
	if q.Cursor != nil {
		tsArg := next(q.Cursor.CreatedAt)
		idArg := next(q.Cursor.ID)
		if q.Direction == detection.DirectionBackward {
			conds = append(conds, fmt.Sprintf("(ei.created_at, ei.id) > (%s, %s)", tsArg, idArg))
			order = " ORDER BY ei.created_at ASC, ei.id ASC"
		} else {
			conds = append(conds, fmt.Sprintf("(ei.created_at, ei.id) < (%s, %s)", tsArg, idArg))
		}
	}

	out.pageQuery = "SELECT" + imageRowColumns +
		" WHERE " + strings.Join(conds, " AND ") + order +
		" LIMIT " + next(limit)
	out.pageParams = params
	return out
}

// ImagesSince returns images created strictly after the given timestamp in
// ascending (created_at, id) order, for the incremental downloader. A nil
// timestamp means "from the beginning".
func (r *ImageRepository) ImagesSince(ctx context.Context, since *time.Time) ([]detection.ImageRow, error) {
	conn, err := acquire(ctx, r.pool, r.acquireTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, "SELECT"+imageRowColumns+
		" WHERE $1::timestamptz IS NULL OR ei.created_at > $1"+
		" ORDER BY ei.created_at ASC, ei.id ASC", since)
	if err != nil {
		return nil, storeErr("fetching new images", err)
	}
	defer rows.Close()
	return scanImageRows(rows)
}

func (r *ImageRepository) clampLimit(limit int) int {
	if limit < 1 {
		limit = 1
	}
	if limit > r.maxPageSize {
		limit = r.maxPageSize
	}
	return limit
}

// sanitizeImageTypes keeps only known type tags. When every requested tag
// is unknown (or none were requested), falls back to the default pair
// instead of matching nothing.
func sanitizeImageTypes(types []detection.ImageType) []detection.ImageType {
	var valid []detection.ImageType
	for _, t := range types {
		if detection.ValidImageType(t) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return detection.DefaultImageTypes()
	}
	return valid
}

func imageTypeStrings(types []detection.ImageType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func reverseImageRows(rows []detection.ImageRow) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
