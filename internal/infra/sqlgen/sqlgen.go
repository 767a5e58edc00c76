// Package sqlgen builds parameterised SQL for the mapping tables. Both SQL
// backends share it; only placeholder syntax and JSON functions differ.
package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
)

// Dialect selects placeholder and JSON syntax.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Statement is one SQL statement with its bind values. When Expect is
// positive the statement is a guard: a count query that must return Expect
// before the statements after it may run.
type Statement struct {
	SQL    string
	Args   []any
	Expect int
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (b *builder) bind(c mapping.Column, v any) string {
	b.args = append(b.args, Value(c, v))
	if b.d == SQLite {
		return "?"
	}
	n := len(b.args)
	switch c.Kind {
	case mapping.KindUUID:
		return fmt.Sprintf("$%d::text::uuid", n)
	case mapping.KindDate:
		return fmt.Sprintf("$%d::text::date", n)
	case mapping.KindTimestamp:
		return fmt.Sprintf("$%d::text::timestamptz", n)
	case mapping.KindJSON:
		return fmt.Sprintf("$%d::text::jsonb", n)
	case mapping.KindNumber:
		return fmt.Sprintf("$%d::numeric", n)
	case mapping.KindInteger:
		return fmt.Sprintf("$%d::bigint", n)
	case mapping.KindBool:
		return fmt.Sprintf("$%d::boolean", n)
	default:
		return fmt.Sprintf("$%d::text", n)
	}
}

// Value normalises a row value for binding: JSON columns are encoded to
// text and numbers are widened to the column's Go type.
func Value(c mapping.Column, v any) any {
	if v == nil {
		return nil
	}
	switch c.Kind {
	case mapping.KindJSON:
		switch x := v.(type) {
		case string:
			return x
		case []byte:
			return string(x)
		case json.RawMessage:
			return string(x)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(raw)
	case mapping.KindNumber:
		switch x := v.(type) {
		case int:
			return float64(x)
		case int64:
			return float64(x)
		case float32:
			return float64(x)
		}
	case mapping.KindInteger:
		switch x := v.(type) {
		case int:
			return int64(x)
		case float64:
			return int64(x)
		}
	}
	return v
}

func column(t mapping.Table, name string) (mapping.Column, error) {
	c, ok := t.ByTransport(name)
	if !ok {
		return mapping.Column{}, fmt.Errorf("sqlgen: unknown column %s.%s", t.Name, name)
	}
	return c, nil
}

// orderedKeys returns the row's keys in table declaration order.
func orderedKeys(t mapping.Table, row mapping.Row) ([]string, error) {
	for k := range row {
		if _, err := column(t, k); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(row))
	for _, c := range t.Columns {
		if _, ok := row[c.Transport]; ok {
			keys = append(keys, c.Transport)
		}
	}
	return keys, nil
}

// Insert builds one multi-row INSERT per distinct column set, so absent
// columns fall back to their defaults on both dialects.
func Insert(d Dialect, t mapping.Table, rows []mapping.Row) ([]Statement, error) {
	groups := map[string][]mapping.Row{}
	var order []string
	for _, r := range rows {
		keys, err := orderedKeys(t, r)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			continue
		}
		sig := strings.Join(keys, ",")
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], r)
	}

	out := make([]Statement, 0, len(order))
	for _, sig := range order {
		keys := strings.Split(sig, ",")
		b := &builder{d: d}
		fmt.Fprintf(&b.sb, "INSERT INTO %s (%s) VALUES ", t.Name, sig)
		for i, r := range groups[sig] {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.sb.WriteByte('(')
			for j, k := range keys {
				if j > 0 {
					b.sb.WriteString(", ")
				}
				c, _ := t.ByTransport(k)
				b.sb.WriteString(b.bind(c, r[k]))
			}
			b.sb.WriteByte(')')
		}
		out = append(out, Statement{SQL: b.sb.String(), Args: b.args})
	}
	return out, nil
}

var ownerKey = mapping.Column{Transport: "user_id", Kind: mapping.KindUUID}

// scope narrows a WHERE clause to rows the owner holds: directly through the
// owner column, or through the parent document for line items.
func (b *builder) scope(t mapping.Table, owner string) {
	switch {
	case t.Owner != "":
		fmt.Fprintf(&b.sb, " AND %s = %s", t.Owner, b.bind(ownerKey, owner))
	case t.Parent != "":
		fmt.Fprintf(&b.sb, " AND %s IN (SELECT id FROM %s WHERE user_id = %s)",
			t.Parent, t.ParentTable, b.bind(ownerKey, owner))
	}
}

// Update builds an UPDATE of the row's columns for rows matching col = val
// that belong to owner.
func Update(d Dialect, t mapping.Table, row mapping.Row, col string, val any, owner string) (Statement, error) {
	keys, err := orderedKeys(t, row)
	if err != nil {
		return Statement{}, err
	}
	if len(keys) == 0 {
		return Statement{}, fmt.Errorf("sqlgen: empty update on %s", t.Name)
	}
	fc, err := column(t, col)
	if err != nil {
		return Statement{}, err
	}

	b := &builder{d: d}
	fmt.Fprintf(&b.sb, "UPDATE %s SET ", t.Name)
	for i, k := range keys {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		c, _ := t.ByTransport(k)
		fmt.Fprintf(&b.sb, "%s = %s", k, b.bind(c, row[k]))
	}
	fmt.Fprintf(&b.sb, " WHERE %s = %s", col, b.bind(fc, val))
	b.scope(t, owner)
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Delete builds a DELETE for rows matching col = val that belong to owner.
func Delete(d Dialect, t mapping.Table, col string, val any, owner string) (Statement, error) {
	fc, err := column(t, col)
	if err != nil {
		return Statement{}, err
	}
	b := &builder{d: d}
	fmt.Fprintf(&b.sb, "DELETE FROM %s WHERE %s = %s", t.Name, col, b.bind(fc, val))
	b.scope(t, owner)
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// ParentGuard builds the guard for inserting line items: every distinct
// parent the rows reference must be a document owner holds.
func ParentGuard(d Dialect, t mapping.Table, rows []mapping.Row, owner string) (Statement, error) {
	if t.Parent == "" {
		return Statement{}, fmt.Errorf("sqlgen: %s has no parent table", t.Name)
	}
	pc, err := column(t, t.Parent)
	if err != nil {
		return Statement{}, err
	}

	seen := map[string]bool{}
	var ids []any
	for _, r := range rows {
		id, _ := r[t.Parent].(string)
		if id == "" {
			return Statement{}, fmt.Errorf("sqlgen: %s row without %s", t.Name, t.Parent)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	b := &builder{d: d}
	fmt.Fprintf(&b.sb, "SELECT count(*) FROM %s WHERE id IN (", t.ParentTable)
	for i, id := range ids {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(b.bind(pc, id))
	}
	fmt.Fprintf(&b.sb, ") AND user_id = %s", b.bind(ownerKey, owner))
	return Statement{SQL: b.sb.String(), Args: b.args, Expect: len(ids)}, nil
}

// Query describes a select returning all matching rows as one JSON array.
type Query struct {
	Table   mapping.Table
	Where   string
	Value   any
	OrderBy string
	Desc    bool
	// Embed nests the child table's rows under EmbedAs on every row.
	Embed   *mapping.Table
	EmbedAs string
	Limit   int
}

// SelectJSON builds a query whose single result column is a JSON array of
// row objects keyed by transport names. Decoding into records happens in Go.
func SelectJSON(d Dialect, q Query) (Statement, error) {
	fc, err := column(q.Table, q.Where)
	if err != nil {
		return Statement{}, err
	}
	if q.OrderBy != "" {
		if _, err := column(q.Table, q.OrderBy); err != nil {
			return Statement{}, err
		}
	}

	obj := d.object("p", q.Table.Columns)
	if q.Embed != nil {
		child := d.object("c", q.Embed.Columns)
		sub := fmt.Sprintf("SELECT %s FROM %s c WHERE c.%s = p.id",
			d.aggregate(child, "c.position", false), q.Embed.Name, q.Embed.Parent)
		obj = d.withField(obj, q.EmbedAs, sub)
	}

	b := &builder{d: d}
	where := fmt.Sprintf("p.%s = %s", q.Where, b.bind(fc, q.Value))
	inner := fmt.Sprintf("SELECT %s AS obj", obj)
	if q.OrderBy != "" {
		inner += fmt.Sprintf(", p.%s AS ord", q.OrderBy)
	}
	inner += fmt.Sprintf(" FROM %s p WHERE %s", q.Table.Name, where)
	if q.OrderBy != "" {
		inner += " ORDER BY p." + q.OrderBy
		if q.Desc {
			inner += " DESC"
		}
	}
	if q.Limit > 0 {
		inner += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	orderExpr := ""
	if q.OrderBy != "" {
		orderExpr = "q.ord"
	}
	fmt.Fprintf(&b.sb, "SELECT %s FROM (%s) q", d.aggregate("q.obj", orderExpr, q.Desc), inner)
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

func (d Dialect) object(alias string, cols []mapping.Column) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		ref := alias + "." + c.Transport
		if d == SQLite {
			switch c.Kind {
			case mapping.KindBool:
				ref = fmt.Sprintf("json(CASE WHEN %s THEN 'true' ELSE 'false' END)", ref)
			case mapping.KindJSON:
				ref = fmt.Sprintf("json(%s)", ref)
			}
		}
		parts = append(parts, fmt.Sprintf("'%s', %s", c.Transport, ref))
	}
	if d == SQLite {
		return "json_object(" + strings.Join(parts, ", ") + ")"
	}
	return "json_build_object(" + strings.Join(parts, ", ") + ")"
}

// withField appends a subquery-valued field to an object expression.
func (d Dialect) withField(obj, name, sub string) string {
	field := fmt.Sprintf(", '%s', (%s))", name, sub)
	if d == SQLite {
		field = fmt.Sprintf(", '%s', json((%s)))", name, sub)
	}
	return strings.TrimSuffix(obj, ")") + field
}

func (d Dialect) aggregate(expr, orderExpr string, desc bool) string {
	if d == SQLite {
		// json_group_array keeps the derived table's order.
		return fmt.Sprintf("json_group_array(json(%s))", expr)
	}
	order := ""
	if orderExpr != "" {
		order = " ORDER BY " + orderExpr
		if desc {
			order += " DESC"
		}
	}
	return fmt.Sprintf("coalesce(json_agg(%s%s), '[]'::json)", expr, order)
}
