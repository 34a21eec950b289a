package nlsql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/errors"
	"github.com/bizgraph/registry-analytics/internal/observability"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
	"github.com/bizgraph/registry-analytics/internal/warehouse"
)

// Executor runs a rendered statement against the warehouse
type Executor interface {
	Execute(ctx context.Context, sqlText string, params []interface{}) ([]warehouse.Row, error)
}

// ChatRequest is the body of both chat endpoints
type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

// ExplainResponse shows what the engine understood and would run,
// without touching the warehouse
type ExplainResponse struct {
	Intent Intent  `json:"intent"`
	Slots  SlotSet `json:"slots"`
	SQL    string  `json:"sql"`
}

// AnswerResponse adds execution results and the narrative summary
type AnswerResponse struct {
	Intent    Intent          `json:"intent"`
	Slots     SlotSet         `json:"slots"`
	SQL       string          `json:"sql"`
	Data      []warehouse.Row `json:"data"`
	Narrative string          `json:"narrative"`
}

// Processor owns the question pipeline: normalize, extract, classify,
// render, execute, narrate. A single Processor is shared across requests;
// all per-request state lives on the stack.
type Processor struct {
	tax        *taxonomy.Taxonomy
	gaz        *taxonomy.Gazetteer
	classifier *Classifier
	renderer   *Renderer
	narrator   *Narrator
	executor   Executor
	cache      *redis.Client
	cfg        config.NLSQLConfig
	logger     *observability.Logger
	now        func() time.Time
}

func NewProcessor(cfg config.NLSQLConfig, tax *taxonomy.Taxonomy, gaz *taxonomy.Gazetteer, executor Executor, cache *redis.Client, logger *observability.Logger) *Processor {
	return &Processor{
		tax:        tax,
		gaz:        gaz,
		classifier: NewClassifier(),
		renderer:   NewRenderer(cfg, tax),
		narrator:   NewNarrator(gaz),
		executor:   executor,
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source; tests pin it for stable relative
// date resolution
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// pipeline runs the stages up to rendering. Errors carry the classified
// intent and extracted slots in their metadata so callers can surface
// what was understood alongside what was missing.
func (p *Processor) pipeline(question string) (Intent, SlotSet, RenderedQuery, error) {
	ex := Extract(question, p.now(), p.tax, p.gaz)
	intent := p.classifier.Classify(ex.Signals)

	rendered, err := p.renderer.Render(intent, ex.Slots, p.now())
	if err != nil {
		if enhanced, ok := err.(*errors.EnhancedError); ok {
			err = enhanced.WithMetadata("intent", string(intent)).WithMetadata("slots", ex.Slots)
		}
		return intent, ex.Slots, RenderedQuery{}, err
	}
	return intent, ex.Slots, rendered, nil
}

// Explain answers the sql-only endpoint. Results are cached per
// normalized question and processing date: relative ranges anchor on the
// current date, so an entry is only valid for the day it was rendered.
func (p *Processor) Explain(ctx context.Context, question string) (*ExplainResponse, error) {
	if err := p.validate(question); err != nil {
		return nil, err
	}

	key := p.cacheKey(question)
	if cached, ok := p.cachedExplain(ctx, key); ok {
		observability.RecordRenderCache(true)
		return cached, nil
	}
	observability.RecordRenderCache(false)

	intent, slots, rendered, err := p.pipeline(question)
	observability.RecordQuestion(string(intent), err)
	if err != nil {
		return nil, err
	}

	resp := &ExplainResponse{Intent: intent, Slots: slots, SQL: rendered.SQL}
	p.storeExplain(ctx, key, resp)
	return resp, nil
}

// Answer runs the full pipeline including warehouse execution. Zero rows
// is a success with an explicit no-data narrative. A context that dies
// between execution and narration aborts the response rather than
// narrating over partial state.
func (p *Processor) Answer(ctx context.Context, question string) (*AnswerResponse, error) {
	if err := p.validate(question); err != nil {
		return nil, err
	}

	intent, slots, rendered, err := p.pipeline(question)
	observability.RecordQuestion(string(intent), err)
	if err != nil {
		return nil, err
	}

	resp := &AnswerResponse{Intent: intent, Slots: slots, SQL: rendered.SQL, Data: []warehouse.Row{}}
	if intent == IntentGeneral {
		resp.Narrative = p.narrator.Narrate(intent, slots, nil)
		return resp, nil
	}

	start := time.Now()
	rows, err := p.executor.Execute(ctx, rendered.SQL, rendered.Params)
	observability.RecordWarehouseQuery(rendered.Template, time.Since(start))
	if err != nil {
		if enhanced, ok := err.(*errors.EnhancedError); ok {
			err = enhanced.WithMetadata("intent", string(intent)).WithMetadata("template", rendered.Template)
		}
		p.logger.Error(ctx, "warehouse execution failed", err, map[string]interface{}{
			"template": rendered.Template,
			"intent":   string(intent),
		})
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeUpstreamTimeout, "request cancelled before narration")
	}

	if rows != nil {
		resp.Data = rows
	}
	resp.Narrative = p.narrator.Narrate(intent, slots, rows)
	return resp, nil
}

func (p *Processor) validate(question string) error {
	norm := Normalize(question)
	if norm == "" {
		return errors.NewInvalidInputError("question", "must not be empty")
	}
	if len(norm) > p.cfg.MaxQuestionLength {
		return errors.NewInvalidInputError("question", fmt.Sprintf("exceeds %d characters", p.cfg.MaxQuestionLength))
	}
	return nil
}

func (p *Processor) cacheKey(question string) string {
	return fmt.Sprintf("nlsql:explain:%s:%s", p.now().UTC().Format(isoDate), Normalize(question))
}

func (p *Processor) cachedExplain(ctx context.Context, key string) (*ExplainResponse, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, err := p.cache.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var resp ExplainResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (p *Processor) storeExplain(ctx context.Context, key string, resp *ExplainResponse) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, data, p.cfg.CacheTTL).Err(); err != nil {
		p.logger.Warn(ctx, "explain cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

// RegisterRoutes mounts the chat endpoints on the given group
func (p *Processor) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/chat/sql-only", p.handleSQLOnly)
	api.POST("/chat/query", p.handleQuery)
}

func (p *Processor) handleSQLOnly(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := errors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	resp, err := p.Explain(c.Request.Context(), req.Question)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (p *Processor) handleQuery(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		enhancedErr := errors.NewInvalidInputError("request body", err.Error())
		c.JSON(http.StatusBadRequest, formatErrorResponse(enhancedErr))
		return
	}

	resp, err := p.Answer(c.Request.Context(), req.Question)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func formatErrorResponse(err error) gin.H {
	return gin.H(errors.Payload(err))
}

func getErrorStatusCode(err error) int {
	return errors.StatusCode(err)
}
