package repository

import (
	"fmt"
	"strings"
	"time"
)

// Filters holds the optional predicates shared by the pagination and stats
// queries. Every field may be empty; an empty field contributes no clause.
//
// Filtering always runs against raw stored text. Brand normalization is a
// display transform applied to output rows, never to filter input.
type Filters struct {
	Search        string
	Brands        []string
	Colors        []string
	Types         []string
	StartDate     string
	EndDate       string
	MinConfidence *float64
}

// Date layouts accepted for the start/end bounds, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseFilterDate returns the parsed time, or false if the string does not
// match any accepted layout. Malformed optional dates are dropped, not
// rejected; the engine never errors on an optional filter.
func ParseFilterDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// clampConfidence forces a threshold into [0, 1]. Stored values outside the
// range pass through untouched; only the filter input is clamped.
func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// whereClause builds the conjunction of active predicates against
// detection_events columns, with positionally numbered parameters starting
// at argOffset+1. Values are never interpolated into the clause text.
// Returns ("", nil) when no filter is active.
func (f Filters) whereClause(argOffset int) (string, []any) {
	var conds []string
	var params []any

	next := func(v any) string {
		params = append(params, v)
		return fmt.Sprintf("$%d", argOffset+len(params))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "camera_plate_text ILIKE "+next("%"+s+"%"))
	}

	addCategorical := func(column string, values []string) {
		var ors []string
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			ors = append(ors, column+" ILIKE "+next("%"+v+"%"))
		}
		if len(ors) == 1 {
			conds = append(conds, ors[0])
		} else if len(ors) > 1 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	addCategorical("vehicle_brand", f.Brands)
	addCategorical("vehicle_color", f.Colors)
	addCategorical("vehicle_type", f.Types)

	if t, ok := ParseFilterDate(f.StartDate); ok {
		conds = append(conds, "created_at >= "+next(t))
	}
	if t, ok := ParseFilterDate(f.EndDate); ok {
		conds = append(conds, "created_at <= "+next(t))
	}

	if f.MinConfidence != nil {
		conds = append(conds, "camera_confidence >= "+next(clampConfidence(*f.MinConfidence)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}
