package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/tablescope/core/domain"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

const userRows = 23

// newSQLiteFixture creates a database with a keyed users table and an
// unkeyed notes table and returns a descriptor for it.
func newSQLiteFixture(t *testing.T) domain.ConnectionDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		age INTEGER DEFAULT 0
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE notes (body TEXT, score REAL)`)
	require.NoError(t, err)

	for i := 1; i <= userRows; i++ {
		_, err = db.Exec(`INSERT INTO users (name, email, age) VALUES (?, ?, ?)`,
			fmt.Sprintf("user%02d", i), fmt.Sprintf("user%02d@example.com", i), 20+i)
		require.NoError(t, err)
	}
	for i := 1; i <= 4; i++ {
		_, err = db.Exec(`INSERT INTO notes (body, score) VALUES (?, ?)`, fmt.Sprintf("note %d", i), float64(i)/2)
		require.NoError(t, err)
	}

	return domain.ConnectionDescriptor{Kind: domain.KindSQLite, Database: path}
}

func openSQLite(t *testing.T) (*sqlAdapter, domain.ConnectionDescriptor) {
	t.Helper()
	desc := newSQLiteFixture(t)
	a := newSQLAdapter(sqliteDialect{}, Options{QueryLogging: true})
	require.NoError(t, a.Connect(context.Background(), desc))
	t.Cleanup(func() { _ = a.Close() })
	return a, desc
}

func ids(records []domain.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r["id"].(int64))
	}
	return out
}

func TestSQLite_ListTables(t *testing.T) {
	a, _ := openSQLite(t)

	tables, err := a.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "notes", tables[0].Table)
	assert.Equal(t, "users", tables[1].Table)
	assert.Equal(t, "fixture.db", tables[0].Database)
}

func TestSQLite_ListTables_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, db.Close())

	a, err := Open(context.Background(), domain.ConnectionDescriptor{Kind: domain.KindSQLite, Database: path}, Options{})
	require.NoError(t, err)
	defer a.Close()

	tables, err := a.ListTables(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)
}

func TestSQLite_ListColumns(t *testing.T) {
	a, _ := openSQLite(t)

	cols, err := a.ListColumns(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, cols, 4)

	byName := map[string]domain.ColumnDescriptor{}
	for _, c := range cols {
		byName[c.Name] = c
	}
	assert.True(t, byName["id"].IsPrimaryKey)
	assert.True(t, byName["id"].IsAutoIncrement)
	assert.False(t, byName["id"].Required)
	assert.Equal(t, "integer", byName["id"].Type)
	assert.True(t, byName["name"].Required)
	assert.True(t, byName["email"].Nullable)
	require.NotNil(t, byName["age"].Default)
	assert.Equal(t, "0", *byName["age"].Default)
	assert.False(t, byName["age"].Required)
}

func TestSQLite_UnknownTable(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	_, err := a.ListColumns(ctx, "ghosts")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = a.RecordCount(ctx, "ghosts")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = a.Paginate(ctx, domain.PageRequest{Table: "ghosts"})
	assert.True(t, apperrors.IsNotFound(err))

	// display names are matched exactly
	_, err = a.RecordCount(ctx, "USERS")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSQLite_RecordCountAndPreview(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	n, err := a.RecordCount(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(userRows), n)

	preview, err := a.FirstNRecords(ctx, "users", 0)
	require.NoError(t, err)
	assert.Len(t, preview, domain.PreviewSize)
	assert.Equal(t, int64(1), preview[0]["id"])
}

func TestSQLite_Paginate(t *testing.T) {
	a, _ := openSQLite(t)

	tests := []struct {
		name      string
		req       domain.PageRequest
		wantIDs   []int64
		wantLen   int
		wantPages int64
	}{
		{
			name:      "first page",
			req:       domain.PageRequest{Table: "users", Page: 1, PageSize: 10},
			wantIDs:   []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantLen:   10,
			wantPages: 3,
		},
		{
			name:      "last partial page",
			req:       domain.PageRequest{Table: "users", Page: 3, PageSize: 10},
			wantIDs:   []int64{21, 22, 23},
			wantLen:   3,
			wantPages: 3,
		},
		{
			name:      "past the end",
			req:       domain.PageRequest{Table: "users", Page: 4, PageSize: 10},
			wantIDs:   []int64{},
			wantLen:   0,
			wantPages: 3,
		},
		{
			name:      "defaults",
			req:       domain.PageRequest{Table: "users"},
			wantLen:   userRows,
			wantPages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Paginate(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, int64(userRows), res.TotalCount)
			assert.Equal(t, tt.wantPages, res.TotalPages)
			assert.Len(t, res.Records, tt.wantLen)
			if tt.wantIDs != nil {
				assert.Equal(t, tt.wantIDs, ids(res.Records))
			}
		})
	}
}

func TestSQLite_Paginate_Validation(t *testing.T) {
	a, _ := openSQLite(t)

	for _, req := range []domain.PageRequest{
		{Table: "users", Page: -1},
		{Table: "users", PageSize: domain.MaxPageSize + 1},
		{Table: ""},
	} {
		_, err := a.Paginate(context.Background(), req)
		assert.True(t, apperrors.IsValidationError(err), "request %+v", req)
	}
}

func TestSQLite_Paginate_Projection(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	res, err := a.Paginate(ctx, domain.PageRequest{Table: "users", PageSize: 5, Columns: []string{"name", "bogus", "name"}})
	require.NoError(t, err)
	require.Len(t, res.Records, 5)
	assert.Equal(t, domain.Record{"name": "user01"}, res.Records[0])

	res, err = a.Paginate(ctx, domain.PageRequest{Table: "users", PageSize: 5, Columns: []string{"bogus"}})
	require.NoError(t, err)
	assert.Len(t, res.Records[0], 4)
}

func TestSQLite_PaginationStrategiesAgree(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	for _, table := range []string{"users", "notes"} {
		ts, err := a.describe(ctx, table)
		require.NoError(t, err)

		for _, window := range [][2]int{{0, 5}, {10, 5}, {20, 10}} {
			q := pageQuery{
				table:   qualified(a.d, ts.ref),
				columns: quoteList(a.d, ts.names()),
				orderBy: ts.orderBy(a.d),
				key:     a.d.quoteIdent(ts.key),
				offset:  window[0],
				limit:   window[1],
			}

			var baseline []domain.Record
			for i, st := range a.d.strategies() {
				t.Run(fmt.Sprintf("%s/%s/%d-%d", table, st.name, window[0], window[1]), func(t *testing.T) {
					query, args, ok := st.build(a.d, q)
					require.True(t, ok)
					records, err := a.query(ctx, query, args...)
					require.NoError(t, err)
					if i == 0 {
						baseline = records
						return
					}
					assert.Equal(t, baseline, records)
				})
			}
		}
	}
}

func TestSQLite_CRUD(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	id, err := a.Insert(ctx, "users", domain.Record{
		"name":    "zed",
		"email":   "zed@example.com",
		"age":     json.Number("30"),
		"unknown": "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, "24", id)

	rec, err := a.GetByID(ctx, "users", id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "zed", rec["name"])
	assert.Equal(t, int64(30), rec["age"])

	ok, err := a.Update(ctx, "users", id, "name", "zoe")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err = a.GetByID(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "zoe", rec["name"])

	ok, err = a.Update(ctx, "users", "9999", "name", "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Update(ctx, "users", id, "nickname", "z")
	assert.True(t, apperrors.IsNotFound(err))

	ok, err = a.Delete(ctx, "users", id)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err = a.GetByID(ctx, "users", id)
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err = a.Delete(ctx, "users", id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_Insert_NoKnownColumns(t *testing.T) {
	a, _ := openSQLite(t)

	_, err := a.Insert(context.Background(), "users", domain.Record{"nope": 1})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestSQLite_BulkDelete(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	n, err := a.BulkDelete(ctx, "users", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = a.BulkDelete(ctx, "users", []string{"1", "2", "999"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := a.RecordCount(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(userRows-2), count)
}

func TestSQLite_BulkDelete_Chunks(t *testing.T) {
	a, _ := openSQLite(t)

	many := make([]string, 0, bulkDeleteChunk+10)
	for i := 1; i <= bulkDeleteChunk+10; i++ {
		many = append(many, fmt.Sprint(i))
	}
	n, err := a.BulkDelete(context.Background(), "users", many)
	require.NoError(t, err)
	assert.Equal(t, int64(userRows), n)
}

func TestSQLite_TableWithoutPrimaryKey(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	ts, err := a.describe(ctx, "notes")
	require.NoError(t, err)
	assert.False(t, ts.hasPK)
	assert.Equal(t, "body", ts.key)

	rec, err := a.GetByID(ctx, "notes", "note 2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1.0, rec["score"])
}

func TestSQLite_InsertWithoutReportedKey(t *testing.T) {
	a, _ := openSQLite(t)
	ctx := context.Background()

	id, err := a.Insert(ctx, "notes", domain.Record{"score": 3})
	require.NoError(t, err)
	assert.Empty(t, id)

	n, err := a.RecordCount(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestSQLite_ConnectFailures(t *testing.T) {
	missing := domain.ConnectionDescriptor{Kind: domain.KindSQLite, Database: filepath.Join(t.TempDir(), "missing.db")}
	_, err := Open(context.Background(), missing, Options{})
	assert.True(t, apperrors.IsConnectFailed(err))

	_, err = Open(context.Background(), domain.ConnectionDescriptor{Kind: domain.KindSQLite}, Options{})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestSQLite_Close(t *testing.T) {
	a := newSQLAdapter(sqliteDialect{}, Options{})
	assert.NoError(t, a.Close(), "close before connect")

	desc := newSQLiteFixture(t)
	require.NoError(t, a.Connect(context.Background(), desc))
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())

	_, err := a.ListTables(context.Background())
	assert.Error(t, err)
}
