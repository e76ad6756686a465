package backend

import (
	"context"
	"encoding/json"
)

// Client executes queries. List results are JSON arrays; single-row results
// are JSON objects, or nil when no row matched.
type Client interface {
	Select(ctx context.Context, q Query) (json.RawMessage, error)
	MaybeSingle(ctx context.Context, q Query) (json.RawMessage, error)
	Count(ctx context.Context, q Query) (int, error)
	// Insert adds one row and returns it projected through returning.
	Insert(ctx context.Context, table string, values Row, returning Query) (json.RawMessage, error)
	// Update changes rows matching q.Filters and returns the first updated
	// row projected through q's columns and embeds.
	Update(ctx context.Context, q Query, values Row) (json.RawMessage, error)
	// Upsert returns nil when a duplicate was ignored.
	Upsert(ctx context.Context, table string, values Row, opts UpsertOptions, returning Query) (json.RawMessage, error)
	Delete(ctx context.Context, q Query) error
	// RPC calls a server-side function and returns its result as a JSON array.
	RPC(ctx context.Context, fn string, args map[string]any) (json.RawMessage, error)
}

// SelectInto runs q and decodes every row into T.
func SelectInto[T any](ctx context.Context, c Client, q Query) ([]T, error) {
	raw, err := c.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

// MaybeSingleInto returns nil when no row matched.
func MaybeSingleInto[T any](ctx context.Context, c Client, q Query) (*T, error) {
	raw, err := c.MaybeSingle(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeOne[T](raw)
}

// SingleInto is MaybeSingleInto that reports a missing row as ErrNoRows.
func SingleInto[T any](ctx context.Context, c Client, q Query) (T, error) {
	var zero T
	out, err := MaybeSingleInto[T](ctx, c, q)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, ErrNoRows
	}
	return *out, nil
}

// RPCInto calls fn and decodes the returned rows into T.
func RPCInto[T any](ctx context.Context, c Client, fn string, args map[string]any) ([]T, error) {
	raw, err := c.RPC(ctx, fn, args)
	if err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

// Decode unmarshals a single-row result. A nil or null result is ErrNoRows.
func Decode[T any](raw json.RawMessage) (T, error) {
	var zero T
	out, err := decodeOne[T](raw)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, ErrNoRows
	}
	return *out, nil
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	if isEmpty(raw) {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Message: "decode rows: " + err.Error(), Code: CodeDecode}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func decodeOne[T any](raw json.RawMessage) (*T, error) {
	if isEmpty(raw) {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Message: "decode row: " + err.Error(), Code: CodeDecode}
	}
	return &out, nil
}

func isEmpty(raw json.RawMessage) bool {
	s := string(raw)
	return len(raw) == 0 || s == "null"
}
