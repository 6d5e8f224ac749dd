package adapters

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// returningStyle is how an INSERT reports the generated key.
type returningStyle int

const (
	returningClause returningStyle = iota // INSERT ... RETURNING k
	outputInserted                        // INSERT ... OUTPUT INSERTED.k VALUES ...
	lastInsertID                          // sql.Result.LastInsertId
	returningInto                         // INSERT ... RETURNING k INTO :n
)

// dialect carries everything that differs between relational engines. The
// engine in sql_adapter.go never branches on the backend kind.
type dialect interface {
	kind() domain.BackendKind

	// open builds the *sql.DB without touching the network.
	open(desc domain.ConnectionDescriptor) (*sql.DB, error)

	quoteIdent(name string) string

	// placeholder returns the n-th (1-based) bind marker.
	placeholder(n int) string

	// constantOrder is the ORDER BY expression used when a table has no
	// columns to order by. Empty means the ORDER BY is omitted.
	constantOrder() string

	// listTablesQuery returns rows of (schema, name).
	listTablesQuery(desc domain.ConnectionDescriptor) (string, []any)

	// describeQuery returns rows of name, base_type, full_type, nullable,
	// default, is_pk, is_auto, max_length, precision, scale.
	describeQuery(ref tableRef) (string, []any)

	defaultSchema(desc domain.ConnectionDescriptor) string

	databaseLabel(desc domain.ConnectionDescriptor, schema string) string

	returning() returningStyle

	strategies() []strategy

	// classify maps a driver error to an error code. ok is false when the
	// dialect does not recognize the error.
	classify(err error) (apperrors.ErrorCode, bool)

	// versionQuery returns a query yielding the server version string, or ""
	// when the dialect never needs it.
	versionQuery() string
}

// stmt accumulates a statement and its bind arguments.
type stmt struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func newStmt(d dialect) *stmt {
	return &stmt{d: d}
}

func (s *stmt) write(parts ...string) *stmt {
	for _, p := range parts {
		s.sb.WriteString(p)
	}
	return s
}

// arg binds v and returns its placeholder.
func (s *stmt) arg(v any) string {
	s.args = append(s.args, v)
	return s.d.placeholder(len(s.args))
}

func (s *stmt) build() (string, []any) {
	return s.sb.String(), s.args
}

// qualified renders a table reference with its schema when the dialect uses one.
func qualified(d dialect, ref tableRef) string {
	if ref.schema == "" {
		return d.quoteIdent(ref.name)
	}
	return d.quoteIdent(ref.schema) + "." + d.quoteIdent(ref.name)
}

func quoteList(d dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// majorVersion reads the leading integer of a version string such as
// "15.0.2000.5" or "8.0.36-log". It returns 0 when nothing parses.
func majorVersion(v string) int {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0
	}
	return n
}

// serverMajor queries the server version. Failures are treated as unknown.
func serverMajor(ctx context.Context, db *sql.DB, d dialect) int {
	q := d.versionQuery()
	if q == "" {
		return 0
	}
	var v string
	if err := db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return 0
	}
	return majorVersion(v)
}
