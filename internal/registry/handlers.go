package registry

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/errors"
	"github.com/bizgraph/registry-analytics/internal/observability"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
	"github.com/bizgraph/registry-analytics/internal/warehouse"
)

// Store is the warehouse access the endpoints need
type Store interface {
	Execute(ctx context.Context, sqlText string, params []interface{}) ([]warehouse.Row, error)
	QueryRow(ctx context.Context, sqlText string, params []interface{}) (warehouse.Row, bool, error)
}

// Service owns the analytical read endpoints
type Service struct {
	store  Store
	tax    *taxonomy.Taxonomy
	gaz    *taxonomy.Gazetteer
	cfg    config.NLSQLConfig
	logger *observability.Logger
	now    func() time.Time
}

func NewService(store Store, tax *taxonomy.Taxonomy, gaz *taxonomy.Gazetteer, cfg config.NLSQLConfig, logger *observability.Logger) *Service {
	return &Service{store: store, tax: tax, gaz: gaz, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the time source for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterRoutes mounts the read endpoints on the given group
func (s *Service) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/ssic/categories", s.handleCategories)
	api.GET("/overview", s.handleOverview)
	api.GET("/trends/new-entities", s.handleTrends)
	api.GET("/rankings/top-ssic", s.handleRankings)
	api.GET("/map/hotspots", s.handleHotspots)
	api.GET("/entities/search", s.handleEntitySearch)
	api.GET("/entities/:uen", s.handleEntityDetail)
}

func (s *Service) fail(c *gin.Context, err error) {
	if errors.StatusCode(err) >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "registry endpoint failed", err, map[string]interface{}{
			"path": c.FullPath(),
		})
	}
	c.JSON(errors.StatusCode(err), errors.Payload(err))
}

func (s *Service) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sectors": s.tax.Sectors})
}

// commonFilters assembles the agg-table predicate shared by overview,
// trends, rankings and hotspots
func (s *Service) commonFilters(c *gin.Context, args *argList) (string, time.Time, time.Time, error) {
	from, to, err := dateWindow(c.Query("date_from"), c.Query("date_to"),
		s.cfg.DefaultTrailingMonths, s.cfg.MaxDateSpanYears, s.now())
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}

	where := "month_start BETWEEN " + args.add(from) + " AND " + args.add(to)

	frag, err := ssicFilter(s.tax, "ssic_code", c.Query("ssic"), c.Query("category"), args)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	where += frag

	frag, err = areaFilter(s.gaz, c.Query("area_type"), c.Query("area"), args)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	where += frag

	return where, from, to, nil
}

func (s *Service) handleOverview(c *gin.Context) {
	ctx := c.Request.Context()

	args := &argList{}
	where, from, to, err := s.commonFilters(c, args)
	if err != nil {
		s.fail(c, err)
		return
	}

	row, _, err := s.store.QueryRow(ctx,
		"SELECT COALESCE(SUM(entity_count), 0)::int AS total FROM agg_new_entities_monthly WHERE "+where,
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}
	total := rowInt(row, "total")

	// same filters over the same span one year earlier
	priorArgs := &argList{}
	priorWhere, _, _, err := s.priorFilters(c, priorArgs, from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	priorRow, _, err := s.store.QueryRow(ctx,
		"SELECT COALESCE(SUM(entity_count), 0)::int AS total FROM agg_new_entities_monthly WHERE "+priorWhere,
		priorArgs.vals)
	if err != nil {
		s.fail(c, err)
		return
	}
	prior := rowInt(priorRow, "total")

	var yoy interface{}
	if prior > 0 {
		yoy = float64(total-prior) / float64(prior) * 100
	}

	topRow, topFound, err := s.store.QueryRow(ctx,
		"SELECT ssic_code, SUM(entity_count)::int AS cnt FROM agg_new_entities_monthly WHERE "+where+
			" GROUP BY ssic_code ORDER BY cnt DESC, ssic_code LIMIT 1",
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	hotRow, hotFound, err := s.store.QueryRow(ctx,
		"SELECT planning_area_id, SUM(entity_count)::int AS cnt FROM agg_new_entities_monthly WHERE "+where+
			" AND planning_area_id <> '' GROUP BY planning_area_id ORDER BY cnt DESC, planning_area_id LIMIT 1",
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{
		"date_from":          from.Format(isoDate),
		"date_to":            to.Format(isoDate),
		"total_new_entities": total,
		"yoy_change_pct":     yoy,
		"top_ssic":           nil,
		"hottest_area":       nil,
	}
	if topFound {
		resp["top_ssic"] = gin.H{"ssic_code": rowString(topRow, "ssic_code"), "count": rowInt(topRow, "cnt")}
	}
	if hotFound {
		id := rowString(hotRow, "planning_area_id")
		resp["hottest_area"] = gin.H{"id": id, "name": s.areaName(id), "count": rowInt(hotRow, "cnt")}
	}
	c.JSON(http.StatusOK, resp)
}

// priorFilters rebuilds the common predicate with the window shifted back
// one year, keeping the non-date filters identical
func (s *Service) priorFilters(c *gin.Context, args *argList, from, to time.Time) (string, time.Time, time.Time, error) {
	pf, pt := from.AddDate(-1, 0, 0), to.AddDate(-1, 0, 0)
	where := "month_start BETWEEN " + args.add(pf) + " AND " + args.add(pt)

	frag, err := ssicFilter(s.tax, "ssic_code", c.Query("ssic"), c.Query("category"), args)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	where += frag

	frag, err = areaFilter(s.gaz, c.Query("area_type"), c.Query("area"), args)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return where + frag, pf, pt, nil
}

func (s *Service) handleTrends(c *gin.Context) {
	args := &argList{}
	where, from, to, err := s.commonFilters(c, args)
	if err != nil {
		s.fail(c, err)
		return
	}

	rows, err := s.store.Execute(c.Request.Context(),
		"SELECT to_char(month_start, 'YYYYMM')::int AS month, SUM(entity_count)::int AS cnt FROM agg_new_entities_monthly WHERE "+
			where+" GROUP BY month_start ORDER BY month_start",
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	series := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		series = append(series, gin.H{"month": rowInt(r, "month"), "count": rowInt(r, "cnt")})
	}
	c.JSON(http.StatusOK, gin.H{
		"date_from": from.Format(isoDate),
		"date_to":   to.Format(isoDate),
		"series":    series,
	})
}

func (s *Service) handleRankings(c *gin.Context) {
	args := &argList{}
	where, from, to, err := s.commonFilters(c, args)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, _ := pageParams(c.Query("limit"), "", s.cfg.DefaultLimit, s.cfg.MaxLimit)

	rows, err := s.store.Execute(c.Request.Context(),
		"SELECT a.ssic_code, COALESCE(d.ssic_description, '') AS description, SUM(a.entity_count)::int AS cnt "+
			"FROM agg_new_entities_monthly a LEFT JOIN dim_ssic d ON d.ssic_code = a.ssic_code WHERE "+
			replaceColumns(where, "a.")+
			" GROUP BY a.ssic_code, d.ssic_description ORDER BY cnt DESC, a.ssic_code LIMIT "+args.add(limit),
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	rankings := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		rankings = append(rankings, gin.H{
			"ssic_code":   rowString(r, "ssic_code"),
			"description": rowString(r, "description"),
			"count":       rowInt(r, "cnt"),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"date_from": from.Format(isoDate),
		"date_to":   to.Format(isoDate),
		"rankings":  rankings,
	})
}

func (s *Service) handleHotspots(c *gin.Context) {
	args := &argList{}
	where, from, to, err := s.commonFilters(c, args)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, _ := pageParams(c.Query("limit"), "", s.cfg.DefaultLimit, s.cfg.MaxLimit)

	rows, err := s.store.Execute(c.Request.Context(),
		"SELECT a.subzone_id, COALESCE(z.name, a.subzone_id) AS name, COALESCE(z.planning_area_id, '') AS planning_area_id, "+
			"COALESCE(z.geometry, '') AS geometry, SUM(a.entity_count)::int AS cnt "+
			"FROM agg_new_entities_monthly a LEFT JOIN dim_subzone z ON z.subzone_id = a.subzone_id WHERE "+
			replaceColumns(where, "a.")+
			" AND a.subzone_id <> '' GROUP BY a.subzone_id, z.name, z.planning_area_id, z.geometry "+
			"ORDER BY cnt DESC, a.subzone_id LIMIT "+args.add(limit),
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	hotspots := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		hotspots = append(hotspots, gin.H{
			"subzone_id":       rowString(r, "subzone_id"),
			"name":             rowString(r, "name"),
			"planning_area_id": rowString(r, "planning_area_id"),
			"geometry":         rowString(r, "geometry"),
			"count":            rowInt(r, "cnt"),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"date_from": from.Format(isoDate),
		"date_to":   to.Format(isoDate),
		"hotspots":  hotspots,
	})
}

const entityColumns = "uen, entity_name, entity_status_description, entity_type_description, " +
	"registration_incorporation_date, primary_ssic_code, primary_ssic_description, postal_code, " +
	"planning_area_id, subzone_id"

func (s *Service) handleEntitySearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		s.fail(c, errors.NewInvalidInputError("q", "search term is required"))
		return
	}

	args := &argList{}
	where := "(entity_name ILIKE " + args.add("%"+q+"%") + " OR uen = " + args.add(strings.ToUpper(q)) + ")"

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		where += " AND entity_status_description ILIKE " + args.add(status)
	}
	frag, err := ssicFilter(s.tax, "primary_ssic_code", c.Query("ssic"), c.Query("category"), args)
	if err != nil {
		s.fail(c, err)
		return
	}
	where += frag

	ctx := c.Request.Context()
	countRow, _, err := s.store.QueryRow(ctx,
		"SELECT COUNT(*)::int AS total FROM acra_entities WHERE "+where, args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	limit, offset := pageParams(c.Query("limit"), c.Query("offset"), s.cfg.DefaultLimit, s.cfg.MaxLimit)
	rows, err := s.store.Execute(ctx,
		"SELECT "+entityColumns+" FROM acra_entities WHERE "+where+
			" ORDER BY entity_name, uen LIMIT "+args.add(limit)+" OFFSET "+args.add(offset),
		args.vals)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   rowInt(countRow, "total"),
		"limit":   limit,
		"offset":  offset,
		"results": rows,
	})
}

func (s *Service) handleEntityDetail(c *gin.Context) {
	uen := strings.ToUpper(strings.TrimSpace(c.Param("uen")))
	if uen == "" {
		s.fail(c, errors.NewInvalidInputError("uen", "must not be empty"))
		return
	}

	row, found, err := s.store.QueryRow(c.Request.Context(),
		"SELECT "+entityColumns+", latitude, longitude FROM acra_entities WHERE uen = $1", []interface{}{uen})
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		s.fail(c, errors.NewEntityNotFoundError(uen))
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Service) areaName(id string) string {
	if area, ok := s.gaz.ResolveID(id); ok {
		return area.Name
	}
	return id
}

// replaceColumns qualifies the shared predicate's column names for
// queries that alias the aggregate table
func replaceColumns(where, prefix string) string {
	for _, col := range []string{"month_start", "ssic_code", "planning_area_id", "subzone_id"} {
		where = strings.ReplaceAll(where, col+" ", prefix+col+" ")
	}
	return where
}

func rowInt(row warehouse.Row, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func rowString(row warehouse.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}
