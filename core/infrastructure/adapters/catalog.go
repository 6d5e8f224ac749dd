package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// tableRef is a resolved table. Only resolved identifiers are ever quoted
// into SQL.
type tableRef struct {
	schema  string
	name    string
	display string
}

// tableSchema is the described shape of one table.
type tableSchema struct {
	ref     tableRef
	columns []domain.ColumnDescriptor
	byName  map[string]int
	byLower map[string]int
	key     string
	hasPK   bool
}

// catalog memoizes table listing and column description for the lifetime of
// one adapter.
type catalog struct {
	tables    []tableRef
	byDisplay map[string]tableRef
	schemas   map[string]*tableSchema
}

func (a *sqlAdapter) loadTables(ctx context.Context) error {
	if a.cat.byDisplay != nil {
		return nil
	}
	query, args := a.d.listTablesQuery(a.desc)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	def := a.d.defaultSchema(a.desc)
	var tables []tableRef
	byDisplay := make(map[string]tableRef)
	for rows.Next() {
		var schema sql.NullString
		var name string
		if err := rows.Scan(&schema, &name); err != nil {
			return err
		}
		ref := tableRef{schema: schema.String, name: name, display: name}
		if ref.schema != "" && !strings.EqualFold(ref.schema, def) {
			ref.display = ref.schema + "." + name
		}
		if _, dup := byDisplay[ref.display]; dup {
			continue
		}
		byDisplay[ref.display] = ref
		tables = append(tables, ref)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	a.cat.tables = tables
	a.cat.byDisplay = byDisplay
	return nil
}

// resolve maps a display name to its table reference.
func (a *sqlAdapter) resolve(ctx context.Context, table string) (tableRef, error) {
	if strings.TrimSpace(table) == "" {
		return tableRef{}, apperrors.ValidationFailed("table name is required")
	}
	if err := a.loadTables(ctx); err != nil {
		return tableRef{}, err
	}
	ref, ok := a.cat.byDisplay[table]
	if !ok {
		return tableRef{}, apperrors.ObjectNotFound("table", table)
	}
	return ref, nil
}

// describe resolves and describes a table once per adapter.
func (a *sqlAdapter) describe(ctx context.Context, table string) (*tableSchema, error) {
	if ts, ok := a.cat.schemas[table]; ok {
		return ts, nil
	}
	ref, err := a.resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	query, args := a.d.describeQuery(ref)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []domain.ColumnDescriptor
	var pkOrd []int64
	for rows.Next() {
		var (
			name                     string
			base, full, nullable     sql.NullString
			def                      sql.NullString
			isPK, isAuto             sql.NullInt64
			maxLen, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&name, &base, &full, &nullable, &def, &isPK, &isAuto, &maxLen, &precision, &scale); err != nil {
			return nil, err
		}
		col := domain.ColumnDescriptor{
			Name:            name,
			Type:            strings.ToLower(base.String),
			FullType:        full.String,
			Nullable:        !strings.EqualFold(nullable.String, "NO"),
			IsPrimaryKey:    isPK.Int64 > 0,
			IsAutoIncrement: isAuto.Int64 > 0,
			MaxLength:       intPtr(maxLen),
			Precision:       intPtr(precision),
			Scale:           intPtr(scale),
		}
		if col.FullType == "" {
			col.FullType = base.String
		}
		if def.Valid {
			d := def.String
			col.Default = &d
		}
		col.Finalize()
		cols = append(cols, col)
		pkOrd = append(pkOrd, isPK.Int64)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ts := newTableSchema(ref, cols, pkOrd)
	if a.cat.schemas == nil {
		a.cat.schemas = make(map[string]*tableSchema)
	}
	a.cat.schemas[table] = ts
	return ts, nil
}

func newTableSchema(ref tableRef, cols []domain.ColumnDescriptor, pkOrd []int64) *tableSchema {
	ts := &tableSchema{
		ref:     ref,
		columns: cols,
		byName:  make(map[string]int, len(cols)),
		byLower: make(map[string]int, len(cols)),
	}
	best := int64(0)
	for i, c := range cols {
		ts.byName[c.Name] = i
		if _, ok := ts.byLower[strings.ToLower(c.Name)]; !ok {
			ts.byLower[strings.ToLower(c.Name)] = i
		}
		if i < len(pkOrd) && pkOrd[i] > 0 && (best == 0 || pkOrd[i] < best) {
			best = pkOrd[i]
			ts.key = c.Name
			ts.hasPK = true
		}
	}
	if ts.key == "" && len(cols) > 0 {
		ts.key = cols[0].Name
	}
	return ts
}

// column looks a column up exactly, then case-insensitively.
func (t *tableSchema) column(name string) (domain.ColumnDescriptor, bool) {
	if i, ok := t.byName[name]; ok {
		return t.columns[i], true
	}
	if i, ok := t.byLower[strings.ToLower(name)]; ok {
		return t.columns[i], true
	}
	return domain.ColumnDescriptor{}, false
}

func (t *tableSchema) names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// project keeps the known requested columns in request order, without
// duplicates. An empty result falls back to every column.
func (t *tableSchema) project(requested []string) []string {
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, r := range requested {
		c, ok := t.column(strings.TrimSpace(r))
		if !ok || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c.Name)
	}
	if len(out) == 0 {
		return t.names()
	}
	return out
}

// orderBy renders the ordering key, or the dialect constant when the table
// has no columns at all.
func (t *tableSchema) orderBy(d dialect) string {
	if t.key != "" {
		return d.quoteIdent(t.key)
	}
	return d.constantOrder()
}

func isIntegerColumn(c domain.ColumnDescriptor) bool {
	if domain.IsIntegerType(c.Type) {
		return true
	}
	// Oracle NUMBER(p,0)
	return c.Type == "number" && c.Scale != nil && *c.Scale == 0 && c.Precision != nil
}

// coerceID converts a string id to the key column's native type.
func (t *tableSchema) coerceID(id string) any {
	c, ok := t.column(t.key)
	if !ok || !isIntegerColumn(c) {
		return id
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
		return n
	}
	return id
}

// coerceValue normalizes a decoded JSON value for binding to column col.
func (t *tableSchema) coerceValue(col string, v any) any {
	c, known := t.column(col)
	intCol := known && isIntegerColumn(c)
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case float64:
		if intCol && val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case string:
		if intCol {
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return n
			}
		}
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
