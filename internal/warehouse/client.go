// Package warehouse is the client for the analytical store. It executes
// rendered, parameter-bound SQL and classifies failures into the distinct
// conditions the API surfaces: timeout, connectivity, and rejected query.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bizgraph/registry-analytics/internal/errors"
	"github.com/bizgraph/registry-analytics/internal/observability"
)

// Config holds the warehouse connection settings
type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
	Timeout  time.Duration
}

// Row is one result row keyed by column name
type Row map[string]interface{}

// Client executes queries against the PostgreSQL warehouse
type Client struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewClient opens a warehouse connection and verifies it
func NewClient(cfg Config) (*Client, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewWithDB(db, cfg.Timeout), nil
}

// NewWithDB wraps an existing database handle; used by tests
func NewWithDB(db *sql.DB, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{db: db, queryTimeout: timeout}
}

// Ping tests the warehouse connection
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the warehouse connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Timeout returns the configured per-query timeout
func (c *Client) Timeout() time.Duration {
	return c.queryTimeout
}

// Execute runs a parameter-bound query and returns rows keyed by column
// name. Values never travel inside sqlText, only through params. A single
// attempt is made; retries belong to the caller's policy, not here.
func (c *Client) Execute(ctx context.Context, sqlText string, params []interface{}) ([]Row, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	rows, err := c.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	// Empty result set is success with zero rows, never an error
	result := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, c.classify(ctx, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, c.classify(ctx, err)
	}

	return result, nil
}

// QueryRow runs a single-row query; ok is false when no row matched
func (c *Client) QueryRow(ctx context.Context, sqlText string, params []interface{}) (Row, bool, error) {
	rows, err := c.Execute(ctx, sqlText, params)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// classify maps driver errors to the distinct upstream failure conditions
func (c *Client) classify(ctx context.Context, err error) *errors.EnhancedError {
	if ctx.Err() == context.DeadlineExceeded {
		observability.RecordWarehouseError("timeout")
		return errors.NewUpstreamTimeoutError(err, c.queryTimeout.String())
	}
	if ctx.Err() == context.Canceled {
		observability.RecordWarehouseError("canceled")
		return errors.Wrap(err, errors.ErrCodeUpstreamExecution, "Warehouse query canceled")
	}

	if pqErr, ok := err.(*pq.Error); ok {
		// Class 42 is syntax/access errors, class 22 is data exceptions:
		// both mean the warehouse understood and refused the query
		class := string(pqErr.Code.Class())
		if class == "42" || class == "22" || class == "26" {
			observability.RecordWarehouseError("rejected")
			return errors.NewQueryRejectedError(err)
		}
	}

	if isSyntaxMessage(err) {
		observability.RecordWarehouseError("rejected")
		return errors.NewQueryRejectedError(err)
	}

	observability.RecordWarehouseError("unavailable")
	return errors.NewUpstreamExecutionError(err)
}

// isSyntaxMessage catches syntax rejections that arrive without a pq error
// code, e.g. from connection pool test doubles
func isSyntaxMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "syntax error") || strings.Contains(msg, "does not exist")
}

// normalizeValue converts driver byte slices into strings so JSON encoding
// of result rows is stable
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
