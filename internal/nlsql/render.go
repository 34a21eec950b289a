package nlsql

import (
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/errors"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

// Template is one per-intent SQL skeleton. Skeletons are static text with
// :name placeholders; user-derived values only ever travel through the
// bound parameter list, so no extracted string can change query shape.
type Template struct {
	Name     string
	Version  int
	Skeleton string
	// Required slots; rendering fails with an insufficient-slots error
	// when any is absent and has no default.
	Required []string
}

// RenderedQuery is a compiled, executable statement. Params are positional
// ($1..$n) in ParamNames order.
type RenderedQuery struct {
	SQL        string
	Params     []interface{}
	ParamNames []string
	Template   string
}

// Renderer turns (intent, slots) into SQL. It is a pure function of its
// inputs plus the now argument, which anchors the trailing-window default
// for questions that name no dates.
type Renderer struct {
	cfg config.NLSQLConfig
	tax *taxonomy.Taxonomy
}

func NewRenderer(cfg config.NLSQLConfig, tax *taxonomy.Taxonomy) *Renderer {
	return &Renderer{cfg: cfg, tax: tax}
}

const aggTable = "agg_new_entities_monthly"

var templates = map[Intent]Template{
	IntentTrend: {
		Name:    "trend_monthly",
		Version: 1,
		Skeleton: `SELECT to_char(month_start, 'YYYYMM')::int AS month, SUM(entity_count)::int AS cnt
FROM ` + aggTable + `
WHERE month_start BETWEEN :date_from AND :date_to{area}{ssic}
GROUP BY month_start
ORDER BY month_start`,
	},
	IntentRanking: {
		Name:    "ranking_ssic",
		Version: 1,
		Skeleton: `SELECT ssic_code, SUM(entity_count)::int AS cnt
FROM ` + aggTable + `
WHERE month_start BETWEEN :date_from AND :date_to{area}{ssic}
GROUP BY ssic_code
ORDER BY cnt DESC, ssic_code
LIMIT :limit`,
	},
	IntentHotspot: {
		Name:    "hotspot_planning_area",
		Version: 1,
		Skeleton: `SELECT planning_area_id, SUM(entity_count)::int AS cnt
FROM ` + aggTable + `
WHERE month_start BETWEEN :date_from AND :date_to{ssic}
GROUP BY planning_area_id
ORDER BY cnt DESC, planning_area_id
LIMIT :limit`,
	},
	IntentComparison: {
		Name:    "comparison_areas",
		Version: 1,
		Skeleton: `SELECT to_char(month_start, 'YYYYMM')::int AS month, planning_area_id, SUM(entity_count)::int AS cnt
FROM ` + aggTable + `
WHERE month_start BETWEEN :date_from AND :date_to
AND planning_area_id IN (:compare_area_a, :compare_area_b){ssic}
GROUP BY month_start, planning_area_id
ORDER BY month_start, planning_area_id`,
		Required: []string{"compare_area_a", "compare_area_b"},
	},
	IntentEntityLookup: {
		Name:    "entity_lookup",
		Version: 1,
		Skeleton: `SELECT uen, entity_name, entity_status_description, entity_type_description,
registration_incorporation_date, primary_ssic_code, primary_ssic_description,
postal_code, planning_area_id, subzone_id
FROM acra_entities
WHERE {lookup}
LIMIT 1`,
	},
}

// Render compiles the intent's template against the slot set. General has
// no template and renders to an empty statement; the orchestrator answers
// it without touching the warehouse.
func (r *Renderer) Render(intent Intent, slots SlotSet, now time.Time) (RenderedQuery, error) {
	if intent == IntentGeneral {
		return RenderedQuery{Template: "none"}, nil
	}
	tpl, ok := templates[intent]
	if !ok {
		return RenderedQuery{}, errors.New(errors.ErrCodeUnknownTemplate, "no template registered for intent "+string(intent))
	}

	if missing := missingRequired(tpl, slots); len(missing) > 0 {
		return RenderedQuery{}, errors.NewInsufficientSlotsError(string(intent), missing)
	}

	values := map[string]interface{}{}
	skeleton := tpl.Skeleton

	if intent == IntentEntityLookup {
		switch {
		case slots.UEN != "":
			skeleton = strings.Replace(skeleton, "{lookup}", "uen = :uen", 1)
			values["uen"] = slots.UEN
		case slots.EntityName != "":
			skeleton = strings.Replace(skeleton, "{lookup}", "lower(entity_name) = lower(:entity_name)", 1)
			values["entity_name"] = slots.EntityName
		default:
			return RenderedQuery{}, errors.NewInsufficientSlotsError(string(intent), []string{"uen"})
		}
	} else {
		from, to, err := r.resolveDates(slots, now)
		if err != nil {
			return RenderedQuery{}, err
		}
		values["date_from"] = from
		values["date_to"] = to

		skeleton = r.applyAreaFragment(skeleton, slots, values)
		skeleton = r.applySSICFragment(skeleton, slots, values)

		if strings.Contains(skeleton, ":limit") {
			values["limit"] = r.clampLimit(slots.Limit)
		}
		if slots.CompareAreaA != "" {
			values["compare_area_a"] = slots.CompareAreaA
			values["compare_area_b"] = slots.CompareAreaB
		}
	}

	sqlText, params, names, err := bindNamed(skeleton, values)
	if err != nil {
		return RenderedQuery{}, err
	}
	return RenderedQuery{SQL: sqlText, Params: params, ParamNames: names, Template: tpl.Name}, nil
}

func missingRequired(tpl Template, slots SlotSet) []string {
	present := map[string]bool{
		"compare_area_a": slots.CompareAreaA != "",
		"compare_area_b": slots.CompareAreaB != "",
		"uen":            slots.UEN != "",
	}
	var missing []string
	for _, name := range tpl.Required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// resolveDates applies the trailing-window default, snaps the lower bound
// to its month start (the aggregate is month-grained) and clamps the span.
func (r *Renderer) resolveDates(slots SlotSet, now time.Time) (time.Time, time.Time, error) {
	var from, to time.Time
	if slots.DateFrom == "" || slots.DateTo == "" {
		// trailing N complete months ending with the last finished month
		end := firstOfMonth(now.Year(), now.Month()).AddDate(0, 0, -1)
		start := firstOfMonth(end.Year(), end.Month()).AddDate(0, -(r.cfg.DefaultTrailingMonths - 1), 0)
		from, to = start, end
	} else {
		var err error
		from, err = time.ParseInLocation(isoDate, slots.DateFrom, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewInvalidDateError(slots.DateFrom)
		}
		to, err = time.ParseInLocation(isoDate, slots.DateTo, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewInvalidDateError(slots.DateTo)
		}
		if to.Before(from) {
			from, to = to, from
		}
	}

	from = firstOfMonth(from.Year(), from.Month())
	if floor := to.AddDate(-r.cfg.MaxDateSpanYears, 0, 0); from.Before(floor) {
		from = firstOfMonth(floor.Year(), floor.Month())
	}
	return from, to, nil
}

func (r *Renderer) applyAreaFragment(skeleton string, slots SlotSet, values map[string]interface{}) string {
	switch {
	case slots.Subzone != "":
		values["subzone"] = slots.Subzone
		return strings.Replace(skeleton, "{area}", "\nAND subzone_id = :subzone", 1)
	case slots.PlanningArea != "":
		values["planning_area"] = slots.PlanningArea
		return strings.Replace(skeleton, "{area}", "\nAND planning_area_id = :planning_area", 1)
	default:
		return strings.Replace(skeleton, "{area}", "", 1)
	}
}

// applySSICFragment turns the industry slot into a prefix-match predicate
// over one bound array parameter. An industry slot that resolves to zero
// codes still binds an empty array, which matches no rows; the filter is
// never silently dropped.
func (r *Renderer) applySSICFragment(skeleton string, slots SlotSet, values map[string]interface{}) string {
	var codes []string
	switch {
	case slots.SSICCode != "":
		codes = []string{slots.SSICCode}
	case slots.SSICCategory != "":
		codes, _ = r.tax.CategoryCodes(slots.SSICCategory)
	default:
		return strings.Replace(skeleton, "{ssic}", "", 1)
	}

	patterns := make([]string, len(codes))
	for i, c := range codes {
		patterns[i] = c + "%"
	}
	values["ssic_patterns"] = pq.Array(patterns)
	return strings.Replace(skeleton, "{ssic}", "\nAND ssic_code LIKE ANY(:ssic_patterns)", 1)
}

func (r *Renderer) clampLimit(limit int) int {
	if limit <= 0 {
		return r.cfg.DefaultLimit
	}
	if limit > r.cfg.MaxLimit {
		return r.cfg.MaxLimit
	}
	return limit
}

// bindNamed compiles :name placeholders to $n positional parameters in
// first-occurrence order. A repeated name reuses its ordinal. Double
// colons pass through untouched so Postgres casts survive.
func bindNamed(skeleton string, values map[string]interface{}) (string, []interface{}, []string, error) {
	var sb strings.Builder
	var params []interface{}
	var names []string
	ordinals := map[string]int{}

	for i := 0; i < len(skeleton); i++ {
		ch := skeleton[i]
		if ch != ':' {
			sb.WriteByte(ch)
			continue
		}
		if i+1 < len(skeleton) && skeleton[i+1] == ':' {
			sb.WriteString("::")
			i++
			continue
		}
		j := i + 1
		for j < len(skeleton) && isNameChar(skeleton[j]) {
			j++
		}
		if j == i+1 {
			sb.WriteByte(ch)
			continue
		}
		name := skeleton[i+1 : j]
		n, seen := ordinals[name]
		if !seen {
			v, ok := values[name]
			if !ok {
				return "", nil, nil, errors.New(errors.ErrCodeTemplateBinding, "no value bound for placeholder :"+name)
			}
			params = append(params, v)
			names = append(names, name)
			n = len(params)
			ordinals[name] = n
		}
		sb.WriteString("$" + strconv.Itoa(n))
		i = j - 1
	}
	return sb.String(), params, names, nil
}

func isNameChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
