// Package backend describes the row-oriented query API the repositories run
// against. Results are JSON documents shaped like the table rows, with
// embedded relations nested under their relation name.
package backend

import "slices"

// Query selects rows from Table. Builder methods return modified copies, so
// a base query can be shared and extended freely.
type Query struct {
	Table   string
	Columns []string
	Embeds  []Embed
	Filters []Filter
	Order   []Order
	Offset  int
	// Limit of zero means no limit.
	Limit int
}

// Embed nests a related table into each row. With Count set the relation is
// rendered as [{"count": n}].
type Embed struct {
	Relation string
	Columns  []string
	Count    bool
}

type Order struct {
	Column string
	Desc   bool
}

func From(table string) Query {
	return Query{Table: table}
}

func (q Query) Select(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

func (q Query) Embed(relation string, columns ...string) Query {
	q.Embeds = append(slices.Clip(q.Embeds), Embed{Relation: relation, Columns: append([]string(nil), columns...)})
	return q
}

func (q Query) EmbedCount(relation string) Query {
	q.Embeds = append(slices.Clip(q.Embeds), Embed{Relation: relation, Count: true})
	return q
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(slices.Clip(q.Filters), filters...)
	return q
}

func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = append(slices.Clip(q.Order), Order{Column: column, Desc: desc})
	return q
}

// Range limits the result to rows from..to inclusive.
func (q Query) Range(from, to int) Query {
	if from < 0 {
		from = 0
	}
	q.Offset = from
	q.Limit = to - from + 1
	if q.Limit < 0 {
		q.Limit = 0
	}
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

type FilterOp string

const (
	OpEq     FilterOp = "eq"
	OpNeq    FilterOp = "neq"
	OpIn     FilterOp = "in"
	OpILike  FilterOp = "ilike"
	OpIsNull FilterOp = "is_null"
	OpOr     FilterOp = "or"
)

type Filter struct {
	Op     FilterOp
	Column string
	Value  any
	// Any holds the alternatives of an OpOr filter.
	Any []Filter
}

func Eq(column string, value any) Filter {
	return Filter{Op: OpEq, Column: column, Value: value}
}

func Neq(column string, value any) Filter {
	return Filter{Op: OpNeq, Column: column, Value: value}
}

// In matches rows whose column is one of values. An empty list matches nothing.
func In[T any](column string, values []T) Filter {
	list := make([]any, 0, len(values))
	for _, v := range values {
		list = append(list, v)
	}
	return Filter{Op: OpIn, Column: column, Value: list}
}

func ILike(column, pattern string) Filter {
	return Filter{Op: OpILike, Column: column, Value: pattern}
}

func IsNull(column string) Filter {
	return Filter{Op: OpIsNull, Column: column}
}

func Or(filters ...Filter) Filter {
	return Filter{Op: OpOr, Any: append([]Filter(nil), filters...)}
}

// Row is a set of column values for inserts and updates.
type Row map[string]any

type UpsertOptions struct {
	OnConflict       []string
	IgnoreDuplicates bool
}
