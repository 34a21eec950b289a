// Package registry serves the analytical REST endpoints: overview,
// trends, rankings, map hotspots, and entity search/detail. All filters
// compile to bound parameters over the same warehouse tables the chat
// pipeline queries.
package registry

import (
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bizgraph/registry-analytics/internal/errors"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

const isoDate = "2006-01-02"

// argList accumulates positional parameters while filter fragments are
// assembled; add returns the placeholder for the value just bound
type argList struct {
	vals []interface{}
}

func (a *argList) add(v interface{}) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

// dateWindow resolves the date_from/date_to query params. Missing bounds
// fall back to the trailing window, reversed bounds are swapped, and
// spans wider than maxYears keep their most recent maxYears.
func dateWindow(fromParam, toParam string, trailingMonths, maxYears int, now time.Time) (time.Time, time.Time, error) {
	var from, to time.Time
	if fromParam == "" || toParam == "" {
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(trailingMonths - 1), 0)
		return start, end, nil
	}

	from, err := time.ParseInLocation(isoDate, fromParam, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewInvalidDateError(fromParam)
	}
	to, err = time.ParseInLocation(isoDate, toParam, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewInvalidDateError(toParam)
	}
	if to.Before(from) {
		from, to = to, from
	}
	if floor := to.AddDate(-maxYears, 0, 0); from.Before(floor) {
		from = floor
	}
	return from, to, nil
}

// ssicFilter builds the industry predicate for the ssic/category query
// params. An explicit code always wins over a category; a trailing '*' on
// the code is redundant since codes are prefix-matched, but accepted. The
// predicate is always bound, so an empty category code set matches no
// rows rather than all of them.
func ssicFilter(tax *taxonomy.Taxonomy, column, code, category string, args *argList) (string, error) {
	switch {
	case code != "":
		code = strings.TrimSuffix(strings.TrimSpace(code), "*")
		if code == "" || len(code) > 5 || !allDigits(code) {
			return "", errors.NewInvalidInputError("ssic", "must be 1-5 digits")
		}
		return " AND " + column + " LIKE " + args.add(code+"%"), nil

	case category != "":
		codes, ok := tax.CategoryCodes(category)
		if !ok {
			return "", errors.NewUnknownCategoryError(category)
		}
		patterns := make([]string, len(codes))
		for i, c := range codes {
			patterns[i] = c + "%"
		}
		return " AND " + column + " LIKE ANY(" + args.add(pq.Array(patterns)) + ")", nil

	default:
		return "", nil
	}
}

// allowed area filter columns; anything else is rejected before it gets
// near the SQL text
var areaColumns = map[string]string{
	"planning_area": "planning_area_id",
	"subzone":       "subzone_id",
}

// areaFilter builds the geography predicate for area_type/area params.
// The column comes from a fixed whitelist, the value is a bound parameter.
func areaFilter(gaz *taxonomy.Gazetteer, areaType, area string, args *argList) (string, error) {
	if area == "" {
		return "", nil
	}
	if areaType == "" {
		areaType = "planning_area"
	}
	column, ok := areaColumns[areaType]
	if !ok {
		return "", errors.New(errors.ErrCodeUnknownAreaType, "Unknown area type").
			WithDetails("area_type must be planning_area or subzone")
	}

	id := strings.ToUpper(strings.TrimSpace(area))
	if resolved, ok := gaz.Resolve(area); ok {
		id = resolved.ID
	}
	return " AND " + column + " = " + args.add(id), nil
}

func allDigits(s string) bool {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// pageParams parses limit/offset with clamping
func pageParams(limitParam, offsetParam string, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if n, err := strconv.Atoi(limitParam); err == nil && n > 0 {
		limit = n
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if n, err := strconv.Atoi(offsetParam); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}
