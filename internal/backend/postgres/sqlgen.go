package postgres

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"socialcore/internal/backend"
)

var (
	psql    = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// sqlGen renders backend queries as SQL producing one jsonb document per row.
type sqlGen struct {
	relations Relations
}

func (g sqlGen) selectSQL(q backend.Query) (string, []any, error) {
	sb, err := g.projection(q, q.Table, ident(q.Table)+" AS t")
	if err != nil {
		return "", nil, err
	}
	if sb, err = applyFilters(sb, q.Filters); err != nil {
		return "", nil, err
	}
	for _, o := range q.Order {
		col, err := column(o.Column)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		sb = sb.OrderBy(col + " " + dir)
	}
	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		sb = sb.Offset(uint64(q.Offset))
	}
	inner, args, err := sb.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "SELECT to_jsonb(r) FROM (" + inner + ") AS r", args, nil
}

func (g sqlGen) countSQL(q backend.Query) (string, []any, error) {
	if err := validIdent(q.Table); err != nil {
		return "", nil, err
	}
	sb := psql.Select("count(*)").From(ident(q.Table) + " AS t")
	sb, err := applyFilters(sb, q.Filters)
	if err != nil {
		return "", nil, err
	}
	return sb.ToSql()
}

func (g sqlGen) insertSQL(table string, values backend.Row, opts *backend.UpsertOptions, returning backend.Query) (string, []any, error) {
	if err := validIdent(table); err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no values", table)
	}
	cols := sortedColumns(values)
	quoted := make([]string, 0, len(cols))
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		if err := validIdent(c); err != nil {
			return "", nil, err
		}
		quoted = append(quoted, ident(c))
		vals = append(vals, values[c])
	}

	suffix := "RETURNING *"
	if opts != nil {
		conflict, err := conflictClause(cols, *opts)
		if err != nil {
			return "", nil, err
		}
		suffix = conflict + " " + suffix
	}
	ins, args, err := psql.Insert(ident(table)).Columns(quoted...).Values(vals...).Suffix(suffix).ToSql()
	if err != nil {
		return "", nil, err
	}
	return g.wrapWrite("ins", ins, args, table, returning)
}

func (g sqlGen) updateSQL(q backend.Query, values backend.Row) (string, []any, error) {
	if err := validIdent(q.Table); err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", q.Table)
	}
	if len(q.Filters) == 0 {
		return "", nil, fmt.Errorf("update %s: refusing to update without filters", q.Table)
	}
	set := make(map[string]any, len(values))
	for c, v := range values {
		if err := validIdent(c); err != nil {
			return "", nil, err
		}
		set[ident(c)] = v
	}
	ub := psql.Update(ident(q.Table) + " AS t").SetMap(set).Suffix("RETURNING t.*")
	for _, f := range q.Filters {
		pred, err := predicate(f)
		if err != nil {
			return "", nil, err
		}
		ub = ub.Where(pred)
	}
	upd, args, err := ub.ToSql()
	if err != nil {
		return "", nil, err
	}
	return g.wrapWrite("upd", upd, args, q.Table, q)
}

func (g sqlGen) deleteSQL(q backend.Query) (string, []any, error) {
	if err := validIdent(q.Table); err != nil {
		return "", nil, err
	}
	if len(q.Filters) == 0 {
		return "", nil, fmt.Errorf("delete from %s: refusing to delete without filters", q.Table)
	}
	db := psql.Delete(ident(q.Table) + " AS t")
	for _, f := range q.Filters {
		pred, err := predicate(f)
		if err != nil {
			return "", nil, err
		}
		db = db.Where(pred)
	}
	return db.ToSql()
}

func (g sqlGen) rpcSQL(fn string, args map[string]any) (string, []any, error) {
	if err := validIdent(fn); err != nil {
		return "", nil, err
	}
	names := make([]string, 0, len(args))
	for name := range args {
		if err := validIdent(name); err != nil {
			return "", nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	values := make([]any, 0, len(names))
	for i, name := range names {
		parts = append(parts, fmt.Sprintf("%s => $%d", ident(name), i+1))
		values = append(values, args[name])
	}
	query := fmt.Sprintf("SELECT coalesce(jsonb_agg(to_jsonb(r)), '[]'::jsonb) FROM %s(%s) AS r", ident(fn), strings.Join(parts, ", "))
	return query, values, nil
}

// wrapWrite runs a data-modifying statement in a CTE and projects its
// returned rows the same way selects are projected.
func (g sqlGen) wrapWrite(alias, stmt string, args []any, table string, returning backend.Query) (string, []any, error) {
	proj, err := g.projection(returning, table, alias+" AS t")
	if err != nil {
		return "", nil, err
	}
	projSQL, projArgs, err := proj.Limit(1).ToSql()
	if err != nil {
		return "", nil, err
	}
	if len(projArgs) > 0 {
		return "", nil, fmt.Errorf("returning projection must not take arguments")
	}
	return "WITH " + alias + " AS (" + stmt + ") SELECT to_jsonb(r) FROM (" + projSQL + ") AS r", args, nil
}

func (g sqlGen) projection(q backend.Query, table, from string) (sq.SelectBuilder, error) {
	if err := validIdent(table); err != nil {
		return sq.SelectBuilder{}, err
	}
	cols := []string{"t.*"}
	if len(q.Columns) > 0 && !containsStar(q.Columns) {
		cols = cols[:0]
		for _, c := range q.Columns {
			col, err := column(c)
			if err != nil {
				return sq.SelectBuilder{}, err
			}
			cols = append(cols, col)
		}
	}
	for _, e := range q.Embeds {
		expr, err := g.embed(table, e)
		if err != nil {
			return sq.SelectBuilder{}, err
		}
		cols = append(cols, expr)
	}
	return psql.Select(cols...).From(from), nil
}

func (g sqlGen) embed(table string, e backend.Embed) (string, error) {
	rel, ok := g.relations.lookup(table, e.Relation)
	if !ok {
		return "", &backend.Error{
			Message: fmt.Sprintf("could not find a relationship between '%s' and '%s'", table, e.Relation),
			Code:    backend.CodeUnsupportedRelationship,
		}
	}
	if err := validIdent(e.Relation); err != nil {
		return "", err
	}
	join := fmt.Sprintf("e.%s = t.%s", ident(rel.ForeignColumn), ident(rel.LocalColumn))
	target := ident(rel.Target)
	if e.Count {
		return fmt.Sprintf("(SELECT jsonb_build_array(jsonb_build_object('count', count(*))) FROM %s AS e WHERE %s) AS %s",
			target, join, ident(e.Relation)), nil
	}
	obj, err := jsonObject(e.Columns)
	if err != nil {
		return "", err
	}
	if rel.Many {
		return fmt.Sprintf("(SELECT coalesce(jsonb_agg(%s), '[]'::jsonb) FROM %s AS e WHERE %s) AS %s",
			obj, target, join, ident(e.Relation)), nil
	}
	return fmt.Sprintf("(SELECT %s FROM %s AS e WHERE %s LIMIT 1) AS %s", obj, target, join, ident(e.Relation)), nil
}

func jsonObject(columns []string) (string, error) {
	if len(columns) == 0 || containsStar(columns) {
		return "to_jsonb(e)", nil
	}
	parts := make([]string, 0, len(columns)*2)
	for _, c := range columns {
		if err := validIdent(c); err != nil {
			return "", err
		}
		parts = append(parts, "'"+c+"'", "e."+ident(c))
	}
	return "jsonb_build_object(" + strings.Join(parts, ", ") + ")", nil
}

func applyFilters(sb sq.SelectBuilder, filters []backend.Filter) (sq.SelectBuilder, error) {
	for _, f := range filters {
		pred, err := predicate(f)
		if err != nil {
			return sb, err
		}
		sb = sb.Where(pred)
	}
	return sb, nil
}

func predicate(f backend.Filter) (sq.Sqlizer, error) {
	if f.Op == backend.OpOr {
		or := sq.Or{}
		for _, alt := range f.Any {
			pred, err := predicate(alt)
			if err != nil {
				return nil, err
			}
			or = append(or, pred)
		}
		if len(or) == 0 {
			return sq.Expr("false"), nil
		}
		return or, nil
	}

	col, err := column(f.Column)
	if err != nil {
		return nil, err
	}
	switch f.Op {
	case backend.OpEq:
		return sq.Eq{col: f.Value}, nil
	case backend.OpNeq:
		return sq.NotEq{col: f.Value}, nil
	case backend.OpIn:
		values, _ := f.Value.([]any)
		if len(values) == 0 {
			return sq.Expr("false"), nil
		}
		return sq.Eq{col: values}, nil
	case backend.OpILike:
		return sq.ILike{col: f.Value}, nil
	case backend.OpIsNull:
		return sq.Eq{col: nil}, nil
	}
	return nil, fmt.Errorf("unsupported filter op %q", f.Op)
}

func conflictClause(cols []string, opts backend.UpsertOptions) (string, error) {
	if len(opts.OnConflict) == 0 {
		return "ON CONFLICT DO NOTHING", nil
	}
	target := make([]string, 0, len(opts.OnConflict))
	conflict := make(map[string]bool, len(opts.OnConflict))
	for _, c := range opts.OnConflict {
		if err := validIdent(c); err != nil {
			return "", err
		}
		target = append(target, ident(c))
		conflict[c] = true
	}
	clause := "ON CONFLICT (" + strings.Join(target, ", ") + ")"
	if opts.IgnoreDuplicates {
		return clause + " DO NOTHING", nil
	}
	var sets []string
	for _, c := range cols {
		if conflict[c] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(c), ident(c)))
	}
	if len(sets) == 0 {
		return clause + " DO NOTHING", nil
	}
	return clause + " DO UPDATE SET " + strings.Join(sets, ", "), nil
}

func column(name string) (string, error) {
	if err := validIdent(name); err != nil {
		return "", err
	}
	return "t." + ident(name), nil
}

func validIdent(name string) error {
	if !identRE.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func ident(name string) string {
	return `"` + name + `"`
}

func containsStar(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) == "*" {
			return true
		}
	}
	return false
}

func sortedColumns(values backend.Row) []string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
