package adapters

import (
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

type postgresDialect struct{}

func (postgresDialect) kind() domain.BackendKind { return domain.KindPostgres }

// open parses a URL built with url.UserPassword so special characters in the
// password survive, and hands the config to the pgx stdlib bridge.
func (postgresDialect) open(desc domain.ConnectionDescriptor) (*sql.DB, error) {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(desc.User, desc.Password),
		Host:   desc.Server + ":" + strconv.Itoa(desc.EffectivePort()),
		Path:   "/" + desc.Database,
	}
	cfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*cfg), nil
}

func (postgresDialect) quoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (postgresDialect) placeholder(n int) string { return dollarPlaceholder(n) }

func (postgresDialect) constantOrder() string { return "" }

func (postgresDialect) listTablesQuery(domain.ConnectionDescriptor) (string, []any) {
	return `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
  AND table_schema NOT LIKE 'pg_toast%'
  AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_schema, table_name`, nil
}

func (postgresDialect) describeQuery(ref tableRef) (string, []any) {
	return `SELECT c.column_name,
  c.data_type,
  CASE
    WHEN c.character_maximum_length IS NOT NULL THEN c.data_type || '(' || c.character_maximum_length::text || ')'
    WHEN c.data_type IN ('numeric', 'decimal') AND c.numeric_precision IS NOT NULL
      THEN c.data_type || '(' || c.numeric_precision::text || ',' || COALESCE(c.numeric_scale, 0)::text || ')'
    ELSE c.data_type
  END,
  c.is_nullable,
  c.column_default,
  COALESCE(pk.ordinal_position, 0),
  CASE WHEN c.column_default LIKE 'nextval(%' OR c.is_identity = 'YES' THEN 1 ELSE 0 END,
  c.character_maximum_length,
  CASE WHEN c.data_type IN ('numeric', 'decimal') THEN c.numeric_precision END,
  CASE WHEN c.data_type IN ('numeric', 'decimal') THEN c.numeric_scale END
FROM information_schema.columns c
LEFT JOIN (
  SELECT kcu.column_name, kcu.ordinal_position
  FROM information_schema.table_constraints tc
  JOIN information_schema.key_column_usage kcu
    ON tc.constraint_name = kcu.constraint_name
   AND tc.table_schema = kcu.table_schema
   AND tc.table_name = kcu.table_name
  WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`, []any{ref.schema, ref.name}
}

func (postgresDialect) defaultSchema(domain.ConnectionDescriptor) string { return "public" }

func (postgresDialect) databaseLabel(desc domain.ConnectionDescriptor, _ string) string {
	return desc.Database
}

func (postgresDialect) returning() returningStyle { return returningClause }

func (postgresDialect) strategies() []strategy {
	return []strategy{limitOffset, rowNumber(0), ordinal}
}

func (postgresDialect) classify(err error) (apperrors.ErrorCode, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			return apperrors.ErrCodeConnectFailed, true
		}
		return "", false
	}
	switch {
	case pgErr.Code == "42P01", pgErr.Code == "42703", pgErr.Code == "3F000":
		return apperrors.ErrCodeObjectNotFound, true
	case pgErr.Code == "28P01", pgErr.Code == "28000", strings.HasPrefix(pgErr.Code, "08"):
		return apperrors.ErrCodeConnectFailed, true
	}
	return apperrors.ErrCodeBackendError, true
}

func (postgresDialect) versionQuery() string { return "" }
