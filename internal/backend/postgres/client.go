// Package postgres implements backend.Client on PostgreSQL. Rows are
// rendered as jsonb documents so repositories see the same shapes a REST
// data API would return, including embedded relations and counts.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"socialcore/internal/backend"
)

// Querier is the subset of pgxpool.Pool the client needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Config struct {
	DSN      string
	MaxConns int32
}

type Client struct {
	db     Querier
	gen    sqlGen
	logger zerolog.Logger
	close  func()
}

type Option func(*Client)

func WithRelations(r Relations) Option {
	return func(c *Client) { c.gen.relations = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

var _ backend.Client = (*Client)(nil)

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	c := New(pool, opts...)
	c.close = pool.Close
	return c, nil
}

// New wraps an existing connection or pool.
func New(db Querier, opts ...Option) *Client {
	c := &Client{
		db:     db,
		gen:    sqlGen{relations: DefaultRelations()},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Ping runs a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	var one int
	return c.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (c *Client) Select(ctx context.Context, q backend.Query) (json.RawMessage, error) {
	query, args, err := c.gen.selectSQL(q)
	if err != nil {
		return nil, err
	}
	return c.queryRows(ctx, "select", q.Table, query, args)
}

func (c *Client) MaybeSingle(ctx context.Context, q backend.Query) (json.RawMessage, error) {
	query, args, err := c.gen.selectSQL(q.WithLimit(1))
	if err != nil {
		return nil, err
	}
	return c.queryOne(ctx, "maybe_single", q.Table, query, args)
}

func (c *Client) Count(ctx context.Context, q backend.Query) (int, error) {
	query, args, err := c.gen.countSQL(q)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	var n int64
	err = c.db.QueryRow(ctx, query, args...).Scan(&n)
	c.logSQL("count", q.Table, query, start, err)
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

func (c *Client) Insert(ctx context.Context, table string, values backend.Row, returning backend.Query) (json.RawMessage, error) {
	query, args, err := c.gen.insertSQL(table, values, nil, returning)
	if err != nil {
		return nil, err
	}
	return c.queryOne(ctx, "insert", table, query, args)
}

func (c *Client) Update(ctx context.Context, q backend.Query, values backend.Row) (json.RawMessage, error) {
	query, args, err := c.gen.updateSQL(q, values)
	if err != nil {
		return nil, err
	}
	return c.queryOne(ctx, "update", q.Table, query, args)
}

func (c *Client) Upsert(ctx context.Context, table string, values backend.Row, opts backend.UpsertOptions, returning backend.Query) (json.RawMessage, error) {
	query, args, err := c.gen.insertSQL(table, values, &opts, returning)
	if err != nil {
		return nil, err
	}
	return c.queryOne(ctx, "upsert", table, query, args)
}

func (c *Client) Delete(ctx context.Context, q backend.Query) error {
	query, args, err := c.gen.deleteSQL(q)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = c.db.Exec(ctx, query, args...)
	c.logSQL("delete", q.Table, query, start, err)
	return mapError(err)
}

func (c *Client) RPC(ctx context.Context, fn string, args map[string]any) (json.RawMessage, error) {
	query, values, err := c.gen.rpcSQL(fn, args)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var raw []byte
	err = c.db.QueryRow(ctx, query, values...).Scan(&raw)
	c.logSQL("rpc", fn, query, start, err)
	if err != nil {
		return nil, mapError(err)
	}
	return json.RawMessage(raw), nil
}

func (c *Client) queryRows(ctx context.Context, op, table, query string, args []any) (json.RawMessage, error) {
	start := time.Now()
	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		c.logSQL(op, table, query, start, err)
		return nil, mapError(err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	buf.WriteByte('[')
	n := 0
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			c.logSQL(op, table, query, start, err)
			return nil, mapError(err)
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
		n++
	}
	err = rows.Err()
	c.logSQL(op, table, query, start, err)
	if err != nil {
		return nil, mapError(err)
	}
	buf.WriteByte(']')
	return json.RawMessage(buf.Bytes()), nil
}

func (c *Client) queryOne(ctx context.Context, op, table, query string, args []any) (json.RawMessage, error) {
	start := time.Now()
	var raw []byte
	err := c.db.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		c.logSQL(op, table, query, start, nil)
		return nil, nil
	}
	c.logSQL(op, table, query, start, err)
	if err != nil {
		return nil, mapError(err)
	}
	return json.RawMessage(raw), nil
}

func (c *Client) logSQL(op, table, query string, start time.Time, err error) {
	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str("op", op).
		Str("table", table).
		Dur("elapsed", time.Since(start)).
		Str("sql", query).
		Msg("backend query")
}

// mapError converts driver errors into backend errors keyed by SQLSTATE.
// A missing function is reported under the data API's code so callers can
// match a single value.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	code := pgErr.Code
	if code == "42883" {
		code = backend.CodeUndefinedFunction
	}
	return &backend.Error{Message: pgErr.Message, Code: code, Details: pgErr.Detail}
}
