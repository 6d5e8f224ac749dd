package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/pb33f/libopenapi"

	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

type routeDoc struct {
	summary string
	session bool
	paged   bool
	body    string
}

// routeDocs describes every registered route by "METHOD pattern". Routes
// missing here are still listed, with a generated summary.
var routeDocs = map[string]routeDoc{
	"GET /heartbeat":                           {summary: "Liveness check"},
	"GET /metrics":                             {summary: "Prometheus metrics"},
	"GET /openapi.json":                        {summary: "This document"},
	"POST /api/connect":                        {summary: "Open a session against a database", body: "ConnectRequest"},
	"GET /api/reconnect/{session_id}":          {summary: "Re-check a session's database and extend it"},
	"POST /api/disconnect/{session_id}":        {summary: "End a session and clear its cache"},
	"GET /api/connection-info/{session_id}":    {summary: "Connection details of a session, without the password"},
	"GET /api/sessions":                        {summary: "List active session ids"},
	"DELETE /api/sessions/{session_id}":        {summary: "Drop a session"},
	"GET /api/tables":                          {summary: "List tables", session: true},
	"GET /api/tables/{table}/columns":          {summary: "List column names", session: true},
	"GET /api/tables/{table}/schema":           {summary: "Describe columns", session: true},
	"GET /api/tables/{table}/count":            {summary: "Count rows", session: true},
	"GET /api/tables/{table}/preview":          {summary: "First rows of a table", session: true},
	"GET /api/tables/{table}/records":          {summary: "Page through rows", session: true, paged: true},
	"GET /api/tables/{table}/records/selected": {summary: "Page through selected columns", session: true, paged: true},
	"POST /api/tables/{table}/records":         {summary: "Insert a row", session: true, body: "CreateRecordRequest"},
	"DELETE /api/tables/{table}/records":       {summary: "Delete rows by id", session: true, body: "BulkDeleteRequest"},
	"GET /api/tables/{table}/records/{id}":     {summary: "Fetch one row", session: true},
	"PUT /api/tables/{table}/records/{id}":     {summary: "Update one column of a row", session: true, body: "UpdateRecordRequest"},
	"POST /api/tables/{table}/records/{id}":    {summary: "Update one column of a row", session: true, body: "UpdateRecordRequest"},
	"DELETE /api/tables/{table}/records/{id}":  {summary: "Delete one row", session: true},
	"GET /api/cache/status":                    {summary: "Cached entries of the session by category", session: true},
	"GET /api/cache/health":                    {summary: "Cache store reachability"},
	"GET /api/cache/stats":                     {summary: "Cache store statistics"},
	"DELETE /api/cache/clear":                  {summary: "Clear the session's cached data", session: true},
	"DELETE /api/cache/clear/table/{table}":    {summary: "Clear one table's cached data", session: true},
}

var openapiLog = logging.New("http:openapi")

var pathItemMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

var pathParamPattern = regexp.MustCompile(`\{([^}/]+)\}`)

var schemas = map[string]any{
	"Error": object(map[string]any{
		"error":   str(),
		"message": str(),
		"code":    str(),
	}),
	"ConnectRequest": withRequired(object(map[string]any{
		"db_type":  map[string]any{"type": "string", "enum": []string{"postgresql", "mysql", "mssql", "oracle", "sqlite", "mongodb"}},
		"server":   str(),
		"database": str(),
		"user":     str(),
		"password": map[string]any{"type": "string", "format": "password"},
		"port":     map[string]any{"type": "integer", "minimum": 0, "maximum": 65535},
	}), "db_type", "database"),
	"CreateRecordRequest": withRequired(object(map[string]any{
		"data": map[string]any{"type": "object", "additionalProperties": true},
	}), "data"),
	"UpdateRecordRequest": withRequired(object(map[string]any{
		"column": str(),
		"value":  map[string]any{},
	}), "column"),
	"BulkDeleteRequest": withRequired(object(map[string]any{
		"record_ids": map[string]any{"type": "array", "items": map[string]any{}},
	}), "record_ids"),
}

func str() map[string]any { return map[string]any{"type": "string"} }

func object(props map[string]any) map[string]any {
	return map[string]any{"type": "object", "properties": props}
}

func withRequired(schema map[string]any, fields ...string) map[string]any {
	schema["required"] = fields
	return schema
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

// GenerateOpenAPISpec walks the registered routes and renders an OpenAPI 3.0
// document for them. The result is parsed back with libopenapi so a broken
// document never reaches clients.
func GenerateOpenAPISpec(routes chi.Routes, version string) ([]byte, error) {
	paths := map[string]map[string]any{}
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		method = strings.ToLower(method)
		if !pathItemMethods[method] {
			return nil
		}
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}
		if paths[route] == nil {
			paths[route] = map[string]any{}
		}
		paths[route][method] = operation(strings.ToUpper(method), route)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk routes: %w", err)
	}

	spec := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Tablescope API",
			"version":     version,
			"description": "Browse and edit tables of a connected database. Sessions are carried by the session_id cookie or the X-Session-ID header.",
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": schemas,
			"securitySchemes": map[string]any{
				"sessionCookie": map[string]any{"type": "apiKey", "in": "cookie", "name": SessionCookie},
				"sessionHeader": map[string]any{"type": "apiKey", "in": "header", "name": SessionHeader},
			},
		},
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec: %w", err)
	}
	document, err := libopenapi.NewDocument(specJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create libopenapi document: %w", err)
	}
	if _, err := document.BuildV3Model(); err != nil {
		return nil, fmt.Errorf("failed to build v3 model (validation error): %w", err)
	}
	return specJSON, nil
}

func operation(method, route string) map[string]any {
	doc, ok := routeDocs[method+" "+route]
	if !ok {
		doc.summary = method + " " + route
	}

	var params []map[string]any
	for _, m := range pathParamPattern.FindAllStringSubmatch(route, -1) {
		params = append(params, map[string]any{
			"name": m[1], "in": "path", "required": true, "schema": str(),
		})
	}
	if doc.paged {
		params = append(params,
			map[string]any{"name": "page", "in": "query", "schema": map[string]any{"type": "integer", "minimum": 1, "default": 1}},
			map[string]any{"name": "page_size", "in": "query", "schema": map[string]any{"type": "integer", "minimum": 1, "maximum": 1000, "default": 10}},
			map[string]any{"name": "columns", "in": "query", "style": "form", "explode": true,
				"schema": map[string]any{"type": "array", "items": str()}},
		)
	}

	errorResponse := func(description string) map[string]any {
		return map[string]any{
			"description": description,
			"content":     map[string]any{"application/json": map[string]any{"schema": ref("Error")}},
		}
	}
	responses := map[string]any{
		"200": map[string]any{
			"description": "OK",
			"content":     map[string]any{"application/json": map[string]any{"schema": map[string]any{"type": "object"}}},
		},
		"500": errorResponse("Internal error"),
	}
	if route == "/metrics" {
		responses["200"] = map[string]any{
			"description": "OK",
			"content":     map[string]any{"text/plain": map[string]any{"schema": str()}},
		}
	}
	if doc.session {
		responses["401"] = errorResponse("Missing or unknown session")
		responses["404"] = errorResponse("Unknown table, column or record")
	}
	if doc.body != "" || doc.paged {
		responses["400"] = errorResponse("Invalid request")
	}

	op := map[string]any{
		"summary":     doc.summary,
		"operationId": operationID(method, route),
		"responses":   responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	if doc.body != "" {
		op["requestBody"] = map[string]any{
			"required": true,
			"content":  map[string]any{"application/json": map[string]any{"schema": ref(doc.body)}},
		}
	}
	if doc.session {
		op["security"] = []map[string][]string{{"sessionCookie": {}}, {"sessionHeader": {}}}
	}
	return op
}

// operationID turns "GET /api/tables/{table}/records" into
// "getApiTablesTableRecords".
func operationID(method, route string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, part := range strings.FieldsFunc(route, func(r rune) bool {
		return r == '/' || r == '{' || r == '}' || r == '-' || r == '_' || r == '.'
	}) {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// OpenAPIHandler serves the document for routes, built on first request so it
// sees every route registered after it.
func OpenAPIHandler(routes chi.Routes, version string) http.HandlerFunc {
	var (
		once    sync.Once
		specDoc []byte
		specErr error
	)
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			specDoc, specErr = GenerateOpenAPISpec(routes, version)
		})
		if specErr != nil {
			openapiLog.Errorf("OpenAPI generation failed: %v", specErr)
			http.Error(w, "failed to generate OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(specDoc)
	}
}
