package adapters

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

type sqliteDialect struct{}

func (sqliteDialect) kind() domain.BackendKind { return domain.KindSQLite }

// open refuses to create a database: the driver would otherwise make an
// empty file for any path it is given.
func (sqliteDialect) open(desc domain.ConnectionDescriptor) (*sql.DB, error) {
	if _, err := os.Stat(desc.Database); err != nil {
		return nil, err
	}
	return sql.Open("sqlite", "file:"+desc.Database+"?_pragma=busy_timeout(5000)")
}

func (sqliteDialect) quoteIdent(name string) string { return doubleQuote(name) }

func (sqliteDialect) placeholder(n int) string { return questionPlaceholder(n) }

func (sqliteDialect) constantOrder() string { return "" }

func (sqliteDialect) listTablesQuery(domain.ConnectionDescriptor) (string, []any) {
	return `SELECT '', name FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`, nil
}

func (sqliteDialect) describeQuery(ref tableRef) (string, []any) {
	return `SELECT name,
  type,
  type,
  CASE WHEN "notnull" = 1 OR pk > 0 THEN 'NO' ELSE 'YES' END,
  dflt_value,
  pk,
  CASE WHEN pk = 1 AND lower(type) = 'integer'
    AND (SELECT COUNT(*) FROM pragma_table_info(?) WHERE pk > 0) = 1 THEN 1 ELSE 0 END,
  NULL,
  NULL,
  NULL
FROM pragma_table_info(?)
ORDER BY cid`, []any{ref.name, ref.name}
}

func (sqliteDialect) defaultSchema(domain.ConnectionDescriptor) string { return "" }

func (sqliteDialect) databaseLabel(desc domain.ConnectionDescriptor, _ string) string {
	return filepath.Base(desc.Database)
}

func (sqliteDialect) returning() returningStyle { return returningClause }

func (sqliteDialect) strategies() []strategy {
	return []strategy{limitOffset, rowNumber(0), ordinal}
}

func (sqliteDialect) classify(err error) (apperrors.ErrorCode, bool) {
	switch {
	case containsAny(err.Error(), "no such table", "no such column"):
		return apperrors.ErrCodeObjectNotFound, true
	case containsAny(err.Error(), "unable to open database", "no such file"):
		return apperrors.ErrCodeConnectFailed, true
	}
	return "", false
}

func (sqliteDialect) versionQuery() string { return "" }
