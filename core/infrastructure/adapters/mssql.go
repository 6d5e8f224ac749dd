package adapters

import (
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

type mssqlDialect struct{}

func (mssqlDialect) kind() domain.BackendKind { return domain.KindMSSQL }

func (mssqlDialect) open(desc domain.ConnectionDescriptor) (*sql.DB, error) {
	q := url.Values{}
	q.Set("database", desc.Database)
	q.Set("encrypt", "disable")
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(desc.User, desc.Password),
		Host:     desc.Server + ":" + strconv.Itoa(desc.EffectivePort()),
		RawQuery: q.Encode(),
	}
	connector, err := mssql.NewConnector(u.String())
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (mssqlDialect) quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (mssqlDialect) placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// OFFSET/FETCH and ROW_NUMBER both require an ORDER BY.
func (mssqlDialect) constantOrder() string { return "(SELECT NULL)" }

func (mssqlDialect) listTablesQuery(domain.ConnectionDescriptor) (string, []any) {
	return `SELECT TABLE_SCHEMA, TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
ORDER BY TABLE_SCHEMA, TABLE_NAME`, nil
}

func (mssqlDialect) describeQuery(ref tableRef) (string, []any) {
	return `SELECT c.COLUMN_NAME,
  c.DATA_TYPE,
  CASE
    WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN c.DATA_TYPE + '(max)'
    WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL THEN c.DATA_TYPE + '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(12)) + ')'
    WHEN c.DATA_TYPE IN ('decimal', 'numeric')
      THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS varchar(12)) + ',' + CAST(c.NUMERIC_SCALE AS varchar(12)) + ')'
    ELSE c.DATA_TYPE
  END,
  c.IS_NULLABLE,
  c.COLUMN_DEFAULT,
  COALESCE(pk.ORDINAL_POSITION, 0),
  COALESCE(COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity'), 0),
  CASE WHEN c.CHARACTER_MAXIMUM_LENGTH > 0 THEN c.CHARACTER_MAXIMUM_LENGTH END,
  CASE WHEN c.DATA_TYPE IN ('decimal', 'numeric') THEN CAST(c.NUMERIC_PRECISION AS int) END,
  CASE WHEN c.DATA_TYPE IN ('decimal', 'numeric') THEN c.NUMERIC_SCALE END
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
  SELECT ku.COLUMN_NAME, ku.ORDINAL_POSITION
  FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
  JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
    ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = ku.TABLE_SCHEMA
  WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
) pk ON pk.COLUMN_NAME = c.COLUMN_NAME
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`, []any{ref.schema, ref.name}
}

func (mssqlDialect) defaultSchema(domain.ConnectionDescriptor) string { return "dbo" }

func (mssqlDialect) databaseLabel(desc domain.ConnectionDescriptor, _ string) string {
	return desc.Database
}

func (mssqlDialect) returning() returningStyle { return outputInserted }

func (mssqlDialect) strategies() []strategy {
	// OFFSET/FETCH arrived in SQL Server 2012 (major version 11).
	return []strategy{offsetFetch(11), rowNumber(0), ordinalTop}
}

func (mssqlDialect) classify(err error) (apperrors.ErrorCode, bool) {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		return "", false
	}
	switch msErr.Number {
	case 208, 207:
		return apperrors.ErrCodeObjectNotFound, true
	case 18456, 4060:
		return apperrors.ErrCodeConnectFailed, true
	}
	return apperrors.ErrCodeBackendError, true
}

func (mssqlDialect) versionQuery() string {
	return "SELECT CAST(SERVERPROPERTY('ProductVersion') AS nvarchar(128))"
}
