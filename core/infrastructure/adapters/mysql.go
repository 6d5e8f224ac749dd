package adapters

import (
	"database/sql"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

type mysqlDialect struct{}

func (mysqlDialect) kind() domain.BackendKind { return domain.KindMySQL }

func (mysqlDialect) open(desc domain.ConnectionDescriptor) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = desc.User
	cfg.Passwd = desc.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(desc.Server, strconv.Itoa(desc.EffectivePort()))
	cfg.DBName = desc.Database
	cfg.ParseTime = true
	// affected-row counts report matched rows, so an update that writes the
	// same value still counts as found
	cfg.ClientFoundRows = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (mysqlDialect) quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) placeholder(n int) string { return questionPlaceholder(n) }

func (mysqlDialect) constantOrder() string { return "" }

func (mysqlDialect) listTablesQuery(domain.ConnectionDescriptor) (string, []any) {
	return `SELECT '', TABLE_NAME
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
ORDER BY TABLE_NAME`, nil
}

func (mysqlDialect) describeQuery(ref tableRef) (string, []any) {
	return `SELECT COLUMN_NAME,
  DATA_TYPE,
  COLUMN_TYPE,
  IS_NULLABLE,
  COLUMN_DEFAULT,
  CASE WHEN COLUMN_KEY = 'PRI' THEN 1 ELSE 0 END,
  CASE WHEN EXTRA LIKE '%auto_increment%' THEN 1 ELSE 0 END,
  CHARACTER_MAXIMUM_LENGTH,
  CASE WHEN DATA_TYPE IN ('decimal', 'numeric') THEN NUMERIC_PRECISION END,
  CASE WHEN DATA_TYPE IN ('decimal', 'numeric') THEN NUMERIC_SCALE END
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`, []any{ref.name}
}

func (mysqlDialect) defaultSchema(domain.ConnectionDescriptor) string { return "" }

func (mysqlDialect) databaseLabel(desc domain.ConnectionDescriptor, _ string) string {
	return desc.Database
}

func (mysqlDialect) returning() returningStyle { return lastInsertID }

func (mysqlDialect) strategies() []strategy {
	return []strategy{limitOffset, rowNumber(8), ordinal}
}

func (mysqlDialect) classify(err error) (apperrors.ErrorCode, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return "", false
	}
	switch myErr.Number {
	case 1146, 1054, 1049:
		return apperrors.ErrCodeObjectNotFound, true
	case 1045, 1044:
		return apperrors.ErrCodeConnectFailed, true
	}
	return apperrors.ErrCodeBackendError, true
}

func (mysqlDialect) versionQuery() string { return "SELECT VERSION()" }
