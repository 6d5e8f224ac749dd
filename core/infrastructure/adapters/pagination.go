package adapters

// pageQuery is the input every pagination strategy renders. All identifiers
// are already quoted.
type pageQuery struct {
	table   string
	columns string
	orderBy string
	key     string
	offset  int
	limit   int
}

// strategy is one way of fetching a page. build reports ok=false when the
// strategy cannot express the query for this table.
type strategy struct {
	name     string
	minMajor int
	build    func(d dialect, q pageQuery) (string, []any, bool)
}

var limitOffset = strategy{
	name: "limit_offset",
	build: func(d dialect, q pageQuery) (string, []any, bool) {
		s := newStmt(d).write("SELECT ", q.columns, " FROM ", q.table)
		if q.orderBy != "" {
			s.write(" ORDER BY ", q.orderBy)
		}
		s.write(" LIMIT ", s.arg(q.limit))
		s.write(" OFFSET ", s.arg(q.offset))
		sql, args := s.build()
		return sql, args, true
	},
}

func offsetFetch(minMajor int) strategy {
	return strategy{
		name:     "offset_fetch",
		minMajor: minMajor,
		build: func(d dialect, q pageQuery) (string, []any, bool) {
			s := newStmt(d).write("SELECT ", q.columns, " FROM ", q.table)
			if q.orderBy != "" {
				s.write(" ORDER BY ", q.orderBy)
			}
			s.write(" OFFSET ", s.arg(q.offset), " ROWS")
			s.write(" FETCH NEXT ", s.arg(q.limit), " ROWS ONLY")
			sql, args := s.build()
			return sql, args, true
		},
	}
}

func rowNumber(minMajor int) strategy {
	return strategy{
		name:     "row_number",
		minMajor: minMajor,
		build: func(d dialect, q pageQuery) (string, []any, bool) {
			over := "ROW_NUMBER() OVER ()"
			if q.orderBy != "" {
				over = "ROW_NUMBER() OVER (ORDER BY " + q.orderBy + ")"
			}
			s := newStmt(d).write(
				"SELECT ", q.columns, " FROM (SELECT ", q.columns, ", ", over, " AS rn__ FROM ", q.table, ") p",
			)
			s.write(" WHERE rn__ > ", s.arg(q.offset))
			s.write(" AND rn__ <= ", s.arg(q.offset+q.limit))
			s.write(" ORDER BY rn__")
			sql, args := s.build()
			return sql, args, true
		},
	}
}

// ordinal skips the first offset keys with an anti-join instead of OFFSET.
var ordinal = strategy{
	name: "ordinal",
	build: func(d dialect, q pageQuery) (string, []any, bool) {
		if q.key == "" {
			return "", nil, false
		}
		s := newStmt(d).write("SELECT ", q.columns, " FROM ", q.table, " o")
		if q.offset > 0 {
			s.write(
				" WHERE NOT EXISTS (SELECT 1 FROM (SELECT ", q.key, " FROM ", q.table,
				" ORDER BY ", q.key, " LIMIT ", s.arg(q.offset), ") s WHERE s.", q.key, " = o.", q.key, ")",
			)
		}
		s.write(" ORDER BY o.", q.key, " LIMIT ", s.arg(q.limit))
		sql, args := s.build()
		return sql, args, true
	},
}

// ordinalTop is the ordinal strategy for engines that spell LIMIT as TOP.
var ordinalTop = strategy{
	name: "ordinal",
	build: func(d dialect, q pageQuery) (string, []any, bool) {
		if q.key == "" {
			return "", nil, false
		}
		s := newStmt(d)
		s.write("SELECT TOP (", s.arg(q.limit), ") ", q.columns, " FROM ", q.table, " o")
		if q.offset > 0 {
			s.write(
				" WHERE NOT EXISTS (SELECT 1 FROM (SELECT TOP (", s.arg(q.offset), ") ", q.key, " FROM ", q.table,
				" ORDER BY ", q.key, ") s WHERE s.", q.key, " = o.", q.key, ")",
			)
		}
		s.write(" ORDER BY o.", q.key)
		sql, args := s.build()
		return sql, args, true
	},
}

// rownumNesting is the classic Oracle form for servers without OFFSET/FETCH.
var rownumNesting = strategy{
	name: "rownum",
	build: func(d dialect, q pageQuery) (string, []any, bool) {
		s := newStmt(d).write("SELECT ", q.columns, " FROM (SELECT a.*, ROWNUM rn__ FROM (SELECT ", q.columns, " FROM ", q.table)
		if q.orderBy != "" {
			s.write(" ORDER BY ", q.orderBy)
		}
		s.write(") a WHERE ROWNUM <= ", s.arg(q.offset+q.limit), ")")
		s.write(" WHERE rn__ > ", s.arg(q.offset), " ORDER BY rn__")
		sql, args := s.build()
		return sql, args, true
	},
}
