package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/observability"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
	"github.com/hyperterse/tablescope/core/shared/redact"
)

const bulkDeleteChunk = 500

// sqlAdapter is the single relational engine. Everything engine-specific
// lives behind d.
type sqlAdapter struct {
	d     dialect
	opts  Options
	desc  domain.ConnectionDescriptor
	db    *sql.DB
	major int
	cat   catalog
	log   logging.Logger
}

func newSQLAdapter(d dialect, opts Options) *sqlAdapter {
	return &sqlAdapter{
		d:    d,
		opts: opts.withDefaults(),
		log:  logging.New("adapter:" + string(d.kind())),
	}
}

func (a *sqlAdapter) Kind() domain.BackendKind { return a.d.kind() }

func (a *sqlAdapter) kindName() string { return string(a.d.kind()) }

// Connect opens a single-connection pool and pings it under the connect
// timeout. A failed attempt is never retried.
func (a *sqlAdapter) Connect(ctx context.Context, desc domain.ConnectionDescriptor) (err error) {
	ctx, done := track(ctx, a.kindName(), "connect")
	defer done(&err)

	desc = desc.Normalize()
	if err := desc.Validate(); err != nil {
		return apperrors.ValidationFailed("%s", err.Error())
	}
	a.desc = desc

	a.log.Debugf("Opening %s connection to %s", a.kindName(), desc)
	db, err := a.d.open(desc)
	if err != nil {
		return apperrors.ConnectFailed(a.kindName(), errors.New(redact.Scrub(err.Error(), desc.Password)))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return apperrors.ConnectFailed(a.kindName(), errors.New(redact.Scrub(err.Error(), desc.Password)))
	}

	a.db = db
	a.major = serverMajor(pingCtx, db, a.d)
	a.log.Debugf("Connected (server major version %d)", a.major)
	return nil
}

func (a *sqlAdapter) ready() error {
	if a.db == nil {
		return apperrors.NewAppError(apperrors.ErrCodeInternalError, "adapter is not connected", nil)
	}
	return nil
}

func (a *sqlAdapter) logQuery(query string) {
	if a.opts.QueryLogging {
		a.log.Debugf("SQL: %s", query)
	}
}

func (a *sqlAdapter) query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	a.logQuery(query)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (a *sqlAdapter) exec(ctx context.Context, query string, args ...any) (int64, error) {
	a.logQuery(query)
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a *sqlAdapter) ListTables(ctx context.Context) (tables []domain.TableDescriptor, err error) {
	ctx, done := track(ctx, a.kindName(), "list_tables")
	defer done(&err)
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := a.loadTables(ctx); err != nil {
		return nil, a.fail("list tables", err)
	}
	tables = make([]domain.TableDescriptor, 0, len(a.cat.tables))
	for _, ref := range a.cat.tables {
		tables = append(tables, domain.TableDescriptor{
			Database: a.d.databaseLabel(a.desc, ref.schema),
			Table:    ref.display,
		})
	}
	return tables, nil
}

func (a *sqlAdapter) ListColumns(ctx context.Context, table string) (cols []domain.ColumnDescriptor, err error) {
	ctx, done := track(ctx, a.kindName(), "list_columns")
	defer done(&err)
	if err := a.ready(); err != nil {
		return nil, err
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return nil, a.fail("describe table", err)
	}
	return append([]domain.ColumnDescriptor(nil), ts.columns...), nil
}

func (a *sqlAdapter) count(ctx context.Context, ref tableRef) (int64, error) {
	query := "SELECT COUNT(*) FROM " + qualified(a.d, ref)
	a.logQuery(query)
	var n int64
	if err := a.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (a *sqlAdapter) RecordCount(ctx context.Context, table string) (n int64, err error) {
	ctx, done := track(ctx, a.kindName(), "count")
	defer done(&err)
	if err := a.ready(); err != nil {
		return 0, err
	}
	ref, err := a.resolve(ctx, table)
	if err != nil {
		return 0, a.fail("count", err)
	}
	n, err = a.count(ctx, ref)
	if err != nil {
		return 0, a.fail("count", err)
	}
	return n, nil
}

func (a *sqlAdapter) FirstNRecords(ctx context.Context, table string, n int) (records []domain.Record, err error) {
	ctx, done := track(ctx, a.kindName(), "preview")
	defer done(&err)
	if err := a.ready(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = domain.PreviewSize
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return nil, a.fail("preview", err)
	}
	records, err = a.fetchPage(ctx, ts, ts.names(), 0, n)
	if err != nil {
		return nil, a.fail("preview", err)
	}
	return records, nil
}

func (a *sqlAdapter) Paginate(ctx context.Context, req domain.PageRequest) (res *domain.PageResult, err error) {
	ctx, done := track(ctx, a.kindName(), "paginate")
	defer done(&err)
	if err := a.ready(); err != nil {
		return nil, err
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationFailed("%s", err.Error())
	}
	ts, err := a.describe(ctx, req.Table)
	if err != nil {
		return nil, a.fail("paginate", err)
	}
	total, err := a.count(ctx, ts.ref)
	if err != nil {
		return nil, a.fail("paginate", err)
	}

	res = &domain.PageResult{
		Records:    []domain.Record{},
		TotalCount: total,
		TotalPages: domain.TotalPages(total, req.PageSize),
	}
	if int64(req.Offset()) >= total {
		return res, nil
	}
	records, err := a.fetchPage(ctx, ts, ts.project(req.Columns), req.Offset(), req.PageSize)
	if err != nil {
		return nil, a.fail("paginate", err)
	}
	res.Records = records
	return res, nil
}

// fetchPage walks the dialect's strategies in order. The first one that runs
// wins; failures are logged at debug and counted.
func (a *sqlAdapter) fetchPage(ctx context.Context, ts *tableSchema, cols []string, offset, limit int) ([]domain.Record, error) {
	q := pageQuery{
		table:   qualified(a.d, ts.ref),
		columns: quoteList(a.d, cols),
		orderBy: ts.orderBy(a.d),
		offset:  offset,
		limit:   limit,
	}
	if ts.key != "" {
		q.key = a.d.quoteIdent(ts.key)
	}

	var lastErr error
	for _, st := range a.d.strategies() {
		if st.minMajor > 0 && a.major > 0 && a.major < st.minMajor {
			a.log.Debugf("Skipping %s pagination on server version %d", st.name, a.major)
			continue
		}
		query, args, ok := st.build(a.d, q)
		if !ok {
			continue
		}
		records, err := a.query(ctx, query, args...)
		observability.RecordPaginationAttempt(ctx, a.kindName(), st.name, err == nil)
		if err == nil {
			return records, nil
		}
		a.log.Debugf("Pagination strategy %s failed: %s", st.name, redact.Scrub(err.Error(), a.desc.Password))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no pagination strategy applies to table %s", ts.ref.display)
	}
	return nil, lastErr
}

func (a *sqlAdapter) GetByID(ctx context.Context, table, id string) (rec domain.Record, err error) {
	ctx, done := track(ctx, a.kindName(), "get")
	defer done(&err)
	if err := a.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.ValidationFailed("%s", domain.ErrEmptyRecordID.Error())
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return nil, a.fail("get record", err)
	}
	s := newStmt(a.d).write("SELECT ", quoteList(a.d, ts.names()), " FROM ", qualified(a.d, ts.ref))
	s.write(" WHERE ", a.d.quoteIdent(ts.key), " = ", s.arg(ts.coerceID(id)))
	query, args := s.build()
	records, err := a.query(ctx, query, args...)
	if err != nil {
		return nil, a.fail("get record", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (a *sqlAdapter) Insert(ctx context.Context, table string, data domain.Record) (id string, err error) {
	ctx, done := track(ctx, a.kindName(), "insert")
	defer done(&err)
	if err := a.ready(); err != nil {
		return "", err
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return "", a.fail("insert", err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cols []string
	var vals []any
	var supplied any
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		c, ok := ts.column(k)
		if !ok || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		v := ts.coerceValue(c.Name, data[k])
		cols = append(cols, c.Name)
		vals = append(vals, v)
		if c.Name == ts.key {
			supplied = v
		}
	}
	if len(cols) == 0 {
		return "", apperrors.ValidationFailed("%s for table '%s'", domain.ErrEmptyInsertValue.Error(), table)
	}

	s := newStmt(a.d).write("INSERT INTO ", qualified(a.d, ts.ref), " (", quoteList(a.d, cols), ")")
	key := a.d.quoteIdent(ts.key)
	if a.d.returning() == outputInserted {
		s.write(" OUTPUT INSERTED.", key)
	}
	s.write(" VALUES (")
	for i, v := range vals {
		if i > 0 {
			s.write(", ")
		}
		s.write(s.arg(v))
	}
	s.write(")")

	var generated any
	switch a.d.returning() {
	case returningClause, outputInserted:
		if a.d.returning() == returningClause {
			s.write(" RETURNING ", key)
		}
		query, args := s.build()
		a.logQuery(query)
		if err := a.db.QueryRowContext(ctx, query, args...).Scan(&generated); err != nil {
			return "", a.fail("insert", err)
		}
	case returningInto:
		var out string
		s.write(" RETURNING ", key, " INTO ", s.arg(sql.Out{Dest: &out}))
		query, args := s.build()
		a.logQuery(query)
		if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
			return "", a.fail("insert", err)
		}
		generated = out
	case lastInsertID:
		query, args := s.build()
		a.logQuery(query)
		res, err := a.db.ExecContext(ctx, query, args...)
		if err != nil {
			return "", a.fail("insert", err)
		}
		if n, err := res.LastInsertId(); err == nil && n != 0 {
			generated = n
		}
	}

	id = formatID(generated)
	if id == "" {
		id = formatID(supplied)
	}
	if id == "" {
		// The row is committed either way; keyless tables have no id to report.
		a.log.Debugf("Insert into %s did not report a key for %s", ts.ref.name, ts.key)
	}
	return id, nil
}

func (a *sqlAdapter) Update(ctx context.Context, table, id, column string, value any) (ok bool, err error) {
	ctx, done := track(ctx, a.kindName(), "update")
	defer done(&err)
	if err := a.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, apperrors.ValidationFailed("%s", domain.ErrEmptyRecordID.Error())
	}
	if strings.TrimSpace(column) == "" {
		return false, apperrors.ValidationFailed("%s", domain.ErrEmptyColumnName.Error())
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return false, a.fail("update", err)
	}
	c, found := ts.column(column)
	if !found {
		return false, apperrors.ObjectNotFound("column", column)
	}

	s := newStmt(a.d).write("UPDATE ", qualified(a.d, ts.ref), " SET ", a.d.quoteIdent(c.Name), " = ")
	s.write(s.arg(ts.coerceValue(c.Name, value)))
	s.write(" WHERE ", a.d.quoteIdent(ts.key), " = ", s.arg(ts.coerceID(id)))
	query, args := s.build()
	n, err := a.exec(ctx, query, args...)
	if err != nil {
		return false, a.fail("update", err)
	}
	return n > 0, nil
}

func (a *sqlAdapter) Delete(ctx context.Context, table, id string) (ok bool, err error) {
	ctx, done := track(ctx, a.kindName(), "delete")
	defer done(&err)
	if err := a.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, apperrors.ValidationFailed("%s", domain.ErrEmptyRecordID.Error())
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return false, a.fail("delete", err)
	}
	s := newStmt(a.d).write("DELETE FROM ", qualified(a.d, ts.ref), " WHERE ", a.d.quoteIdent(ts.key), " = ")
	s.write(s.arg(ts.coerceID(id)))
	query, args := s.build()
	n, err := a.exec(ctx, query, args...)
	if err != nil {
		return false, a.fail("delete", err)
	}
	return n > 0, nil
}

func (a *sqlAdapter) BulkDelete(ctx context.Context, table string, ids []string) (total int64, err error) {
	ctx, done := track(ctx, a.kindName(), "bulk_delete")
	defer done(&err)
	if err := a.ready(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	ts, err := a.describe(ctx, table)
	if err != nil {
		return 0, a.fail("bulk delete", err)
	}

	for start := 0; start < len(ids); start += bulkDeleteChunk {
		end := min(start+bulkDeleteChunk, len(ids))
		s := newStmt(a.d).write("DELETE FROM ", qualified(a.d, ts.ref), " WHERE ", a.d.quoteIdent(ts.key), " IN (")
		for i, id := range ids[start:end] {
			if i > 0 {
				s.write(", ")
			}
			s.write(s.arg(ts.coerceID(id)))
		}
		s.write(")")
		query, args := s.build()
		n, err := a.exec(ctx, query, args...)
		if err != nil {
			return total, a.fail("bulk delete", err)
		}
		total += n
	}
	return total, nil
}

// Close is idempotent and safe on an adapter that never connected.
func (a *sqlAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.cat = catalog{}
	return err
}

func formatID(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
