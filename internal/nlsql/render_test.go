package nlsql

import (
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/errors"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	tax, err := taxonomy.Load()
	require.NoError(t, err)
	return NewRenderer(testNLSQLConfig(), tax)
}

func testNLSQLConfig() config.NLSQLConfig {
	return config.NLSQLConfig{
		DefaultLimit:          10,
		MaxLimit:              50,
		DefaultTrailingMonths: 12,
		MaxDateSpanYears:      10,
		CacheTTL:              5 * time.Minute,
		MaxQuestionLength:     500,
	}
}

func TestBindNamed(t *testing.T) {
	sqlText, params, names, err := bindNamed(
		"SELECT a::int FROM t WHERE x = :foo AND y = :bar AND z = :foo",
		map[string]interface{}{"foo": 1, "bar": "b"},
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT a::int FROM t WHERE x = $1 AND y = $2 AND z = $1", sqlText)
	assert.Equal(t, []interface{}{1, "b"}, params)
	assert.Equal(t, []string{"foo", "bar"}, names)
}

func TestBindNamedMissingValue(t *testing.T) {
	_, _, _, err := bindNamed("WHERE x = :missing", map[string]interface{}{})
	var enhanced *errors.EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, errors.ErrCodeTemplateBinding, enhanced.Code)
}

func TestRenderRanking(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentRanking, SlotSet{
		DateFrom:     "2023-03-15",
		DateTo:       "2024-03-15",
		PlanningArea: "TAMPINES",
		Limit:        5,
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "ranking_ssic", out.Template)
	assert.NotContains(t, out.SQL, ":")
	assert.Contains(t, out.SQL, "planning_area_id = $")
	assert.Contains(t, out.SQL, "LIMIT $")
	assert.Equal(t, []string{"date_from", "date_to", "planning_area", "limit"}, out.ParamNames)
	// lower bound snapped to month start, aggregate is month-grained
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), out.Params[0])
	assert.Equal(t, 5, out.Params[3])
}

func TestRenderTrendDefaults(t *testing.T) {
	r := testRenderer(t)

	// no dates: trailing 12 complete months ending with February 2024
	out, err := r.Render(IntentTrend, SlotSet{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), out.Params[0])
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), out.Params[1])
	assert.NotContains(t, out.SQL, "planning_area_id =")
	assert.NotContains(t, out.SQL, "LIKE ANY")
}

func TestRenderLimitClamped(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentHotspot, SlotSet{Limit: 900}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Params[len(out.Params)-1])

	out, err = r.Render(IntentHotspot, SlotSet{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Params[len(out.Params)-1])
}

func TestRenderDateSpanClamped(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentTrend, SlotSet{DateFrom: "1990-01-01", DateTo: "2023-12-31"}, fixedNow)
	require.NoError(t, err)
	// keeps the most recent ten years of the requested span
	assert.Equal(t, time.Date(2013, 12, 1, 0, 0, 0, 0, time.UTC), out.Params[0])
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), out.Params[1])
}

func TestRenderSSICCategoryExpandsToPatterns(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentTrend, SlotSet{SSICCategory: "construction", DateFrom: "2023-01-01", DateTo: "2023-12-31"}, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "ssic_code LIKE ANY($3)")
	assert.Equal(t, pq.Array([]string{"41%", "42%", "43%"}), out.Params[2])
}

func TestRenderUnknownCategoryBindsEmptyPatterns(t *testing.T) {
	r := testRenderer(t)

	// an unresolvable category must still bind the filter so it matches
	// nothing, never silently widen to all industries
	out, err := r.Render(IntentTrend, SlotSet{SSICCategory: "does_not_exist"}, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "LIKE ANY")
	assert.Equal(t, pq.Array([]string{}), out.Params[2])
}

func TestRenderComparisonRequiresPair(t *testing.T) {
	r := testRenderer(t)

	_, err := r.Render(IntentComparison, SlotSet{CompareAreaA: "BEDOK"}, fixedNow)
	var enhanced *errors.EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, errors.ErrCodeInsufficientSlots, enhanced.Code)
	assert.Contains(t, enhanced.Metadata["missing_slots"], "compare_area_b")
}

func TestRenderComparison(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentComparison, SlotSet{
		CompareAreaA: "JURONG_WEST",
		CompareAreaB: "WOODLANDS",
		SSICCategory: "fnb",
		DateFrom:     "2023-01-01",
		DateTo:       "2023-12-31",
	}, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "planning_area_id IN ($3, $4)")
	assert.Equal(t, "JURONG_WEST", out.Params[2])
	assert.Equal(t, "WOODLANDS", out.Params[3])
}

func TestRenderEntityLookup(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentEntityLookup, SlotSet{UEN: "201812345A"}, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "uen = $1")
	assert.Equal(t, []interface{}{"201812345A"}, out.Params)

	out, err = r.Render(IntentEntityLookup, SlotSet{EntityName: "Acme Holdings"}, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "lower(entity_name) = lower($1)")

	_, err = r.Render(IntentEntityLookup, SlotSet{}, fixedNow)
	var enhanced *errors.EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, errors.ErrCodeInsufficientSlots, enhanced.Code)
}

func TestRenderGeneralHasNoSQL(t *testing.T) {
	r := testRenderer(t)

	out, err := r.Render(IntentGeneral, SlotSet{}, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, out.SQL)
	assert.Empty(t, out.Params)
}

func TestRenderDeterministic(t *testing.T) {
	r := testRenderer(t)
	slots := SlotSet{PlanningArea: "BEDOK", SSICCategory: "fnb", Limit: 7}

	first, err := r.Render(IntentRanking, slots, fixedNow)
	require.NoError(t, err)
	second, err := r.Render(IntentRanking, slots, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, first.Params, second.Params)
}

func TestRenderNeverInlinesValues(t *testing.T) {
	r := testRenderer(t)

	hostile := SlotSet{EntityName: "'; DROP TABLE acra_entities; --"}
	out, err := r.Render(IntentEntityLookup, hostile, fixedNow)
	require.NoError(t, err)
	assert.False(t, strings.Contains(out.SQL, "DROP TABLE"))
	assert.Equal(t, []interface{}{"'; DROP TABLE acra_entities; --"}, out.Params)
}
