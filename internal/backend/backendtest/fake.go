// Package backendtest provides a scripted backend.Client for repository tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"socialcore/internal/backend"
)

type Op string

const (
	OpSelect      Op = "select"
	OpMaybeSingle Op = "maybe_single"
	OpCount       Op = "count"
	OpInsert      Op = "insert"
	OpUpdate      Op = "update"
	OpUpsert      Op = "upsert"
	OpDelete      Op = "delete"
	OpRPC         Op = "rpc"
)

// Call records one request. For RPC calls Table holds the function name.
type Call struct {
	Op      Op
	Table   string
	Query   backend.Query
	Values  backend.Row
	Upsert  backend.UpsertOptions
	RPCArgs map[string]any
}

// Handler answers a call. The returned value is JSON encoded; for OpCount it
// must be an int.
type Handler func(call Call) (any, error)

// Fake is a backend.Client driven by per-table handlers. Unscripted selects
// return no rows and unscripted writes succeed with no row.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

var _ backend.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{handlers: map[string]Handler{}}
}

// On scripts the handler for op against table.
func (f *Fake) On(op Op, table string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[handlerKey(op, table)] = h
	return f
}

// Return scripts a fixed result.
func (f *Fake) Return(op Op, table string, value any) *Fake {
	return f.On(op, table, func(Call) (any, error) { return value, nil })
}

// Fail scripts a fixed error.
func (f *Fake) Fail(op Op, table string, err error) *Fake {
	return f.On(op, table, func(Call) (any, error) { return nil, err })
}

// Calls returns the recorded calls for op against table, oldest first.
func (f *Fake) Calls(op Op, table string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Op == op && c.Table == table {
			out = append(out, c)
		}
	}
	return out
}

// AllCalls returns every recorded call in order.
func (f *Fake) AllCalls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Select(_ context.Context, q backend.Query) (json.RawMessage, error) {
	return f.dispatch(Call{Op: OpSelect, Table: q.Table, Query: q}, "[]")
}

func (f *Fake) MaybeSingle(_ context.Context, q backend.Query) (json.RawMessage, error) {
	return f.dispatch(Call{Op: OpMaybeSingle, Table: q.Table, Query: q}, "")
}

func (f *Fake) Count(_ context.Context, q backend.Query) (int, error) {
	call := Call{Op: OpCount, Table: q.Table, Query: q}
	h := f.record(call)
	if h == nil {
		return 0, nil
	}
	v, err := h(call)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("backendtest: count handler for %s returned %T", q.Table, v)
	}
	return n, nil
}

func (f *Fake) Insert(_ context.Context, table string, values backend.Row, returning backend.Query) (json.RawMessage, error) {
	return f.dispatch(Call{Op: OpInsert, Table: table, Query: returning, Values: values}, "")
}

func (f *Fake) Update(_ context.Context, q backend.Query, values backend.Row) (json.RawMessage, error) {
	return f.dispatch(Call{Op: OpUpdate, Table: q.Table, Query: q, Values: values}, "")
}

func (f *Fake) Upsert(_ context.Context, table string, values backend.Row, opts backend.UpsertOptions, returning backend.Query) (json.RawMessage, error) {
	return f.dispatch(Call{Op: OpUpsert, Table: table, Query: returning, Values: values, Upsert: opts}, "")
}

func (f *Fake) Delete(_ context.Context, q backend.Query) error {
	_, err := f.dispatch(Call{Op: OpDelete, Table: q.Table, Query: q}, "")
	return err
}

func (f *Fake) RPC(_ context.Context, fn string, args map[string]any) (json.RawMessage, error) {
	return f.dispatch(Call{Op: OpRPC, Table: fn, RPCArgs: args}, "[]")
}

func (f *Fake) record(call Call) Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.handlers[handlerKey(call.Op, call.Table)]
}

func (f *Fake) dispatch(call Call, empty string) (json.RawMessage, error) {
	h := f.record(call)
	if h == nil {
		if empty == "" {
			return nil, nil
		}
		return json.RawMessage(empty), nil
	}
	v, err := h(call)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(string); ok {
		return json.RawMessage(raw), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("backendtest: encode result for %s %s: %w", call.Op, call.Table, err)
	}
	return raw, nil
}

func handlerKey(op Op, table string) string {
	return string(op) + ":" + table
}

// FilterValue returns the value of the first equality or IN filter on column.
func FilterValue(q backend.Query, column string) (any, bool) {
	for _, f := range q.Filters {
		if f.Column == column && (f.Op == backend.OpEq || f.Op == backend.OpIn) {
			return f.Value, true
		}
	}
	return nil, false
}

// HasEmbed reports whether q embeds relation.
func HasEmbed(q backend.Query, relation string) bool {
	for _, e := range q.Embeds {
		if e.Relation == relation {
			return true
		}
	}
	return false
}
