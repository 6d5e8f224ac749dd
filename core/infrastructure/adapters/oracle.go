package adapters

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/godror/godror"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

type oracleDialect struct{}

func (oracleDialect) kind() domain.BackendKind { return domain.KindOracle }

// open uses connection parameters rather than a user/password@host string so
// the password is never spliced into a DSN.
func (oracleDialect) open(desc domain.ConnectionDescriptor) (*sql.DB, error) {
	var params godror.ConnectionParams
	params.Username = desc.User
	params.Password = godror.NewPassword(desc.Password)
	params.ConnectString = desc.Server + ":" + strconv.Itoa(desc.EffectivePort()) + "/" + desc.Database
	return sql.OpenDB(godror.NewConnector(params)), nil
}

func (oracleDialect) quoteIdent(name string) string { return doubleQuote(name) }

func (oracleDialect) placeholder(n int) string { return ":" + strconv.Itoa(n) }

func (oracleDialect) constantOrder() string { return "NULL" }

func (oracleDialect) listTablesQuery(domain.ConnectionDescriptor) (string, []any) {
	return `SELECT USER, table_name FROM user_tables
UNION ALL
SELECT USER, view_name FROM user_views
ORDER BY 2`, nil
}

func (oracleDialect) describeQuery(ref tableRef) (string, []any) {
	return `SELECT c.column_name,
  c.data_type,
  CASE
    WHEN c.data_type IN ('VARCHAR2', 'NVARCHAR2', 'CHAR', 'NCHAR', 'RAW') THEN c.data_type || '(' || c.char_length || ')'
    WHEN c.data_type = 'NUMBER' AND c.data_precision IS NOT NULL
      THEN 'NUMBER(' || c.data_precision || ',' || NVL(c.data_scale, 0) || ')'
    ELSE c.data_type
  END,
  CASE WHEN c.nullable = 'Y' THEN 'YES' ELSE 'NO' END,
  NULL,
  NVL((
    SELECT MIN(cc.position)
    FROM all_constraints k
    JOIN all_cons_columns cc ON k.owner = cc.owner AND k.constraint_name = cc.constraint_name
    WHERE k.constraint_type = 'P' AND k.owner = c.owner AND k.table_name = c.table_name
      AND cc.column_name = c.column_name
  ), 0),
  CASE WHEN c.identity_column = 'YES' THEN 1 ELSE 0 END,
  CASE WHEN c.data_type IN ('VARCHAR2', 'NVARCHAR2', 'CHAR', 'NCHAR', 'RAW') THEN c.char_length END,
  CASE WHEN c.data_type = 'NUMBER' THEN c.data_precision END,
  CASE WHEN c.data_type = 'NUMBER' THEN c.data_scale END
FROM all_tab_columns c
WHERE c.owner = :1 AND c.table_name = :2
ORDER BY c.column_id`, []any{ref.schema, ref.name}
}

func (oracleDialect) defaultSchema(desc domain.ConnectionDescriptor) string {
	return strings.ToUpper(desc.User)
}

func (oracleDialect) databaseLabel(desc domain.ConnectionDescriptor, _ string) string {
	return desc.Database
}

func (oracleDialect) returning() returningStyle { return returningInto }

func (oracleDialect) strategies() []strategy {
	return []strategy{offsetFetch(12), rowNumber(0), rownumNesting}
}

func (oracleDialect) classify(err error) (apperrors.ErrorCode, bool) {
	oraErr, ok := godror.AsOraErr(err)
	if !ok {
		return "", false
	}
	switch oraErr.Code() {
	case 942, 904:
		return apperrors.ErrCodeObjectNotFound, true
	case 1017, 12541, 12514, 12154:
		return apperrors.ErrCodeConnectFailed, true
	}
	return apperrors.ErrCodeBackendError, true
}

func (oracleDialect) versionQuery() string {
	return "SELECT version FROM product_component_version WHERE product LIKE 'Oracle Database%' AND ROWNUM = 1"
}
