package registry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/observability"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
	"github.com/bizgraph/registry-analytics/internal/warehouse"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func testService(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tax, err := taxonomy.Load()
	require.NoError(t, err)
	gaz, err := taxonomy.LoadGazetteer()
	require.NoError(t, err)

	cfg := config.NLSQLConfig{
		DefaultLimit:          10,
		MaxLimit:              50,
		DefaultTrailingMonths: 12,
		MaxDateSpanYears:      10,
	}
	logger := observability.NewLogger("registry-test").WithOutput(&bytes.Buffer{})

	svc := NewService(warehouse.NewWithDB(db, 5*time.Second), tax, gaz, cfg, logger).
		WithClock(func() time.Time { return testNow })

	router := gin.New()
	svc.RegisterRoutes(router.Group("/api"))
	return router, mock
}

func doGET(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestCategories(t *testing.T) {
	router, _ := testService(t)

	w, body := doGET(t, router, "/api/ssic/categories")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["sectors"])
}

func TestOverview(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(120))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(100))
	mock.ExpectQuery("GROUP BY ssic_code").
		WillReturnRows(sqlmock.NewRows([]string{"ssic_code", "cnt"}).AddRow("56111", 40))
	mock.ExpectQuery("GROUP BY planning_area_id").
		WillReturnRows(sqlmock.NewRows([]string{"planning_area_id", "cnt"}).AddRow("TAMPINES", 25))

	w, body := doGET(t, router, "/api/overview")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(120), body["total_new_entities"])
	assert.InDelta(t, 20.0, body["yoy_change_pct"], 0.001)
	top := body["top_ssic"].(map[string]interface{})
	assert.Equal(t, "56111", top["ssic_code"])
	hot := body["hottest_area"].(map[string]interface{})
	assert.Equal(t, "Tampines", hot["name"])
	// default trailing window ends with the last complete month
	assert.Equal(t, "2023-03-01", body["date_from"])
	assert.Equal(t, "2024-02-29", body["date_to"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverviewYoYNullWhenNoPriorData(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(50))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(0))
	mock.ExpectQuery("GROUP BY ssic_code").
		WillReturnRows(sqlmock.NewRows([]string{"ssic_code", "cnt"}))
	mock.ExpectQuery("GROUP BY planning_area_id").
		WillReturnRows(sqlmock.NewRows([]string{"planning_area_id", "cnt"}))

	w, body := doGET(t, router, "/api/overview")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["yoy_change_pct"])
	assert.Nil(t, body["top_ssic"])
	assert.Nil(t, body["hottest_area"])
}

func TestTrendsWithCategoryFilter(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("FROM agg_new_entities_monthly").
		WithArgs(
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			sqlmock.AnyArg(), // bound pattern array for the category codes
		).
		WillReturnRows(sqlmock.NewRows([]string{"month", "cnt"}).
			AddRow(202301, 10).
			AddRow(202302, 12))

	w, body := doGET(t, router, "/api/trends/new-entities?date_from=2023-01-01&date_to=2023-12-31&category=fnb")
	require.Equal(t, http.StatusOK, w.Code)

	series := body["series"].([]interface{})
	require.Len(t, series, 2)
	first := series[0].(map[string]interface{})
	assert.Equal(t, float64(202301), first["month"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendsUnknownCategoryIsNotFound(t *testing.T) {
	router, mock := testService(t)

	w, body := doGET(t, router, "/api/trends/new-entities?category=nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "UNKNOWN_SSIC_CATEGORY", errBody["code"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendsRejectsUnknownAreaType(t *testing.T) {
	router, _ := testService(t)

	w, body := doGET(t, router, "/api/trends/new-entities?area_type=postcode&area=520000")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "UNKNOWN_AREA_TYPE", errBody["code"])
}

func TestRankingsJoinsDescriptions(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("LEFT JOIN dim_ssic").
		WillReturnRows(sqlmock.NewRows([]string{"ssic_code", "description", "cnt"}).
			AddRow("56111", "Restaurants", 40).
			AddRow("47110", "Supermarkets", 25))

	w, body := doGET(t, router, "/api/rankings/top-ssic?limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	rankings := body["rankings"].([]interface{})
	require.Len(t, rankings, 2)
	first := rankings[0].(map[string]interface{})
	assert.Equal(t, "Restaurants", first["description"])
}

func TestHotspotsJoinGeometry(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("LEFT JOIN dim_subzone").
		WillReturnRows(sqlmock.NewRows([]string{"subzone_id", "name", "planning_area_id", "geometry", "cnt"}).
			AddRow("TAMPINES_EAST", "Tampines East", "TAMPINES", `{"type":"Polygon"}`, 30))

	w, body := doGET(t, router, "/api/map/hotspots")
	require.Equal(t, http.StatusOK, w.Code)

	hotspots := body["hotspots"].([]interface{})
	require.Len(t, hotspots, 1)
	first := hotspots[0].(map[string]interface{})
	assert.Equal(t, "Tampines East", first["name"])
	assert.Contains(t, first["geometry"], "Polygon")
}

func TestEntitySearch(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%acme%", "ACME").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(1))
	mock.ExpectQuery("FROM acra_entities").
		WillReturnRows(sqlmock.NewRows([]string{"uen", "entity_name"}).
			AddRow("201812345A", "ACME HOLDINGS PTE. LTD."))

	w, body := doGET(t, router, "/api/entities/search?q=acme")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), body["total"])
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitySearchRequiresQuery(t *testing.T) {
	router, _ := testService(t)

	w, body := doGET(t, router, "/api/entities/search")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_INPUT", errBody["code"])
}

func TestEntityDetail(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("WHERE uen =").
		WithArgs("201812345A").
		WillReturnRows(sqlmock.NewRows([]string{"uen", "entity_name"}).
			AddRow("201812345A", "ACME HOLDINGS PTE. LTD."))

	w, body := doGET(t, router, "/api/entities/201812345a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ACME HOLDINGS PTE. LTD.", body["entity_name"])
}

func TestEntityDetailNotFound(t *testing.T) {
	router, mock := testService(t)

	mock.ExpectQuery("WHERE uen =").
		WithArgs("999999999X").
		WillReturnRows(sqlmock.NewRows([]string{"uen"}))

	w, body := doGET(t, router, "/api/entities/999999999X")
	assert.Equal(t, http.StatusNotFound, w.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "ENTITY_NOT_FOUND", errBody["code"])
}
