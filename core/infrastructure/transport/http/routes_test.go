package http

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hyperterse/tablescope/core/application/browser"
	"github.com/hyperterse/tablescope/core/application/session"
	"github.com/hyperterse/tablescope/core/infrastructure/adapters"
	"github.com/hyperterse/tablescope/core/infrastructure/cache"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/handlers"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	layer := cache.NewLayer(cache.NewMemoryStore())
	t.Cleanup(func() { _ = layer.Close() })

	svc := browser.NewService(session.NewRegistry(layer, 0), layer, adapters.Opener(adapters.Options{}), cache.DefaultTTLs())
	srv := NewServer(Options{Port: "0"})
	RegisterRoutes(srv.Router(), svc, 3600, "test")

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testAPI{t: t, server: ts, client: ts.Client()}
}

func newInventoryDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, sku TEXT NOT NULL, qty INTEGER DEFAULT 0)`)
	require.NoError(t, err)
	for i := 1; i <= 7; i++ {
		_, err = db.Exec(`INSERT INTO items (sku, qty) VALUES (?, ?)`, fmt.Sprintf("SKU-%d", i), i*10)
		require.NoError(t, err)
	}
	return path
}

func (a *testAPI) do(method, path string, body any) (*http.Response, map[string]any) {
	a.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set(handlers.SessionHeader, a.token)
	}
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out map[string]any
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (a *testAPI) connect(dbPath string) *http.Response {
	a.t.Helper()
	resp, body := a.do(http.MethodPost, "/api/connect", map[string]any{
		"db_type":  "sqlite",
		"database": dbPath,
	})
	require.Equal(a.t, http.StatusOK, resp.StatusCode, body)
	a.token = body["session_id"].(string)
	return resp
}

func TestHeartbeat(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(http.MethodGet, "/heartbeat", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestConnect_SetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)
	resp := api.connect(newInventoryDB(t))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == handlers.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, api.token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		setup    func()
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing session",
			method:   http.MethodGet,
			path:     "/api/tables",
			wantCode: http.StatusUnauthorized,
			wantErr:  "SESSION_NOT_FOUND",
		},
		{
			name:     "unknown session",
			setup:    func() { api.token = "4b4c1d2e-0000-4000-8000-000000000000" },
			method:   http.MethodGet,
			path:     "/api/tables",
			wantCode: http.StatusUnauthorized,
			wantErr:  "SESSION_NOT_FOUND",
		},
		{
			name:     "connect body invalid",
			method:   http.MethodPost,
			path:     "/api/connect",
			body:     map[string]any{"db_type": "sqlite"},
			wantCode: http.StatusBadRequest,
			wantErr:  "VALIDATION_FAILED",
		},
		{
			name:     "connect unknown backend",
			method:   http.MethodPost,
			path:     "/api/connect",
			body:     map[string]any{"db_type": "db2", "database": "x", "server": "h"},
			wantCode: http.StatusBadRequest,
			wantErr:  "VALIDATION_FAILED",
		},
		{
			name:     "connect unreachable file",
			method:   http.MethodPost,
			path:     "/api/connect",
			body:     map[string]any{"db_type": "sqlite", "database": filepath.Join(t.TempDir(), "none.db")},
			wantCode: http.StatusBadGateway,
			wantErr:  "CONNECT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.token = ""
			if tt.setup != nil {
				tt.setup()
			}
			resp, body := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantErr, body["code"])
			assert.NotEmpty(t, body["message"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestBrowseAndEdit(t *testing.T) {
	api := newTestAPI(t)
	api.connect(newInventoryDB(t))

	resp, _ := api.do(http.MethodGet, "/api/tables/items/count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := api.do(http.MethodGet, "/api/tables/items/records?page=2&page_size=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), body["total_count"])
	assert.Equal(t, float64(3), body["total_pages"])
	records := body["records"].([]any)
	require.Len(t, records, 3)
	assert.Equal(t, float64(4), records[0].(map[string]any)["id"])

	resp, body = api.do(http.MethodGet, "/api/tables/items/records?columns=sku&columns=id", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := body["records"].([]any)[0].(map[string]any)
	assert.Len(t, first, 2)
	assert.Equal(t, []any{"sku", "id"}, body["columns"])

	resp, body = api.do(http.MethodGet, "/api/tables/items/records?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])

	resp, body = api.do(http.MethodPost, "/api/tables/items/records", map[string]any{
		"data": map[string]any{"sku": "SKU-NEW", "qty": 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "8", body["record_id"])

	resp, _ = api.do(http.MethodPut, "/api/tables/items/records/8", map[string]any{"column": "qty", "value": 6})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = api.do(http.MethodGet, "/api/tables/items/records/8", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(6), body["record"].(map[string]any)["qty"])

	resp, body = api.do(http.MethodPut, "/api/tables/items/records/999", map[string]any{"column": "qty", "value": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "WRITE_CONFLICT", body["code"])

	resp, body = api.do(http.MethodDelete, "/api/tables/items/records", map[string]any{"record_ids": []any{1, "2", 8}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, float64(3), body["deleted_count"])

	resp, body = api.do(http.MethodGet, "/api/tables/items/count", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["count"])

	resp, body = api.do(http.MethodGet, "/api/tables/items/records/8", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "OBJECT_NOT_FOUND", body["code"])

	resp, body = api.do(http.MethodGet, "/api/tables/ghost/columns", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "OBJECT_NOT_FOUND", body["code"])
}

func TestSessionAndCacheRoutes(t *testing.T) {
	api := newTestAPI(t)
	api.connect(newInventoryDB(t))

	resp, body := api.do(http.MethodGet, "/api/connection-info/"+api.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sqlite", body["db_type"])
	assert.NotContains(t, body, "password")

	resp, body = api.do(http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["active_sessions"], api.token)

	api.do(http.MethodGet, "/api/tables/items/preview", nil)
	resp, body = api.do(http.MethodGet, "/api/cache/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	categories := body["categories"].(map[string]any)
	assert.Equal(t, float64(1), categories["preview"])
	assert.Equal(t, float64(1), categories["tables"])

	resp, body = api.do(http.MethodDelete, "/api/cache/clear/table/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["cache_entries_cleared"])

	resp, _ = api.do(http.MethodGet, "/api/cache/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/api/reconnect/"+api.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = api.do(http.MethodPost, "/api/disconnect/"+api.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = api.do(http.MethodGet, "/api/tables", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", body["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(http.MethodGet, "/heartbeat", nil)

	resp, err := api.client.Get(api.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "tablescope_http_requests_total"))
}

func TestTableNamesWithEscapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escapes.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE "rate%20card" (id INTEGER PRIMARY KEY)`,
		`INSERT INTO "rate%20card" (id) VALUES (1), (2)`,
		`CREATE TABLE "in/out" (id INTEGER PRIMARY KEY)`,
		`INSERT INTO "in/out" (id) VALUES (1), (2), (3)`,
	} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	api := newTestAPI(t)
	api.connect(path)

	tests := []struct {
		name  string
		path  string
		table string
		count float64
	}{
		{name: "escaped percent is decoded once", path: "rate%2520card", table: "rate%20card", count: 2},
		{name: "escaped slash", path: "in%2Fout", table: "in/out", count: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := api.do(http.MethodGet, "/api/tables/"+tt.path+"/count", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)
			assert.Equal(t, tt.table, body["table"])
			assert.Equal(t, tt.count, body["count"])
		})
	}
}

func TestCacheStats(t *testing.T) {
	api := newTestAPI(t)
	api.connect(newInventoryDB(t))
	api.do(http.MethodGet, "/api/tables", nil)

	resp, body := api.do(http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	stats := body["stats"].(map[string]any)
	assert.Equal(t, "memory", stats["backend"])
	assert.NotEqual(t, "0", stats["keys"])
}

func TestOpenAPIDocument(t *testing.T) {
	api := newTestAPI(t)

	resp, err := api.client.Get(api.server.URL + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.True(t, strings.HasPrefix(doc.OpenAPI, "3.0."))

	tests := []struct {
		path    string
		methods []string
	}{
		{path: "/api/tables", methods: []string{"get"}},
		{path: "/api/tables/{table}/records", methods: []string{"get", "post", "delete"}},
		{path: "/api/tables/{table}/records/{id}", methods: []string{"get", "put", "post", "delete"}},
		{path: "/api/cache/stats", methods: []string{"get"}},
		{path: "/metrics", methods: []string{"get"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			item, ok := doc.Paths[tt.path]
			require.True(t, ok, "missing path %s", tt.path)
			assert.Len(t, item, len(tt.methods))
			for _, m := range tt.methods {
				assert.Contains(t, item, m)
			}
		})
	}

	op := doc.Paths["/api/tables/{table}/records/{id}"]["get"].(map[string]any)
	params := op["parameters"].([]any)
	require.Len(t, params, 2)
	assert.Equal(t, "table", params[0].(map[string]any)["name"])
	assert.NotEmpty(t, op["security"])
}
