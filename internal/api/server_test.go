package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Port:            8080,
		DatabasePath:    filepath.Join(dir, "test.db"),
		ConnectionsPath: filepath.Join(dir, "connections.json"),
		PageSize:        50,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	go srv.hub.Run()

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)`,
		`CREATE TABLE notes (body TEXT)`,
		`INSERT INTO users (id, name, age) VALUES (1, 'alice', 30), (2, 'bob', 25), (3, NULL, 40)`,
	}
	for _, stmt := range stmts {
		if _, err := srv.exec.Query(ctx, stmt); err != nil {
			t.Fatalf("setup %q failed: %v", stmt, err)
		}
	}
	return srv
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: response is not JSON: %v\n%s", method, path, err, rec.Body.String())
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["driver"] == "" {
		t.Error("driver should be reported")
	}
}

func TestListTables(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/tables", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	names := resp.Data.([]any)
	if len(names) != 2 || names[0] != "notes" || names[1] != "users" {
		t.Errorf("tables = %v, want [notes users]", names)
	}
}

func TestColumnsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/tables/users/columns", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cols := resp.Data.([]any)
	if len(cols) != 3 {
		t.Fatalf("got %d columns, want 3", len(cols))
	}
	first := cols[0].(map[string]any)
	if first["name"] != "id" || first["is_pk"] != true {
		t.Errorf("cols[0] = %v, want primary key id", first)
	}
}

func TestColumnsMissingTable(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/tables/ghosts/columns", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestReadRows(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/tables/users/rows?sort=name&dir=desc&page=1&page_size=2", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Meta == nil || resp.Meta.Total != 3 {
		t.Errorf("meta total = %+v, want 3", resp.Meta)
	}

	data := resp.Data.(map[string]any)
	rows := data["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	first := rows[0].(map[string]any)
	if first["name"] != "bob" {
		t.Errorf("rows[0].name = %v, want bob (DESC sort)", first["name"])
	}

	display := data["display"].([]any)
	if len(display) != 2 {
		t.Fatalf("got %d display rows, want 2", len(display))
	}
	cells := display[0].([]any)
	kind := cells[0].(map[string]any)["kind"]
	if kind != "literal" {
		t.Errorf("display[0][0].kind = %v, want literal", kind)
	}
}

func TestReadRowsNullDisplay(t *testing.T) {
	srv := newTestServer(t, nil)
	_, resp := doJSON(t, srv.Handler(), http.MethodGet, "/tables/users/rows?sort=id&dir=asc", nil)

	data := resp.Data.(map[string]any)
	display := data["display"].([]any)
	// Row id=3 has a NULL name in the second cell.
	cells := display[2].([]any)
	name := cells[1].(map[string]any)
	if name["kind"] != "null_marker" {
		t.Errorf("kind = %v, want null_marker", name["kind"])
	}
}

func TestInsertRow(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodPost, "/tables/users/rows", map[string]any{
		"row": map[string]any{"id": 4, "name": "carol", "age": 22},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %+v", rec.Code, resp.Error)
	}

	_, read := doJSON(t, h, http.MethodGet, "/tables/users/rows", nil)
	if read.Meta.Total != 4 {
		t.Errorf("total after insert = %d, want 4", read.Meta.Total)
	}
}

func TestUpdateRow(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodPut, "/tables/users/rows", map[string]any{
		"row": map[string]any{"id": 1, "name": "O'Brien"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %+v", rec.Code, resp.Error)
	}

	_, read := doJSON(t, h, http.MethodGet, "/tables/users/rows?sort=id&dir=asc", nil)
	rows := read.Data.(map[string]any)["rows"].([]any)
	if got := rows[0].(map[string]any)["name"]; got != "O'Brien" {
		t.Errorf("name after update = %v, want O'Brien", got)
	}
}

func TestDeleteRow(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodDelete, "/tables/users/rows", map[string]any{
		"pk_value": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %+v", rec.Code, resp.Error)
	}

	_, read := doJSON(t, h, http.MethodGet, "/tables/users/rows", nil)
	if read.Meta.Total != 2 {
		t.Errorf("total after delete = %d, want 2", read.Meta.Total)
	}
}

func TestDeleteRequiresPKValue(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodDelete, "/tables/users/rows", map[string]any{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "BAD_REQUEST" {
		t.Errorf("error = %+v, want BAD_REQUEST", resp.Error)
	}
}

func TestMutationWithoutPrimaryKey(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodPut, "/tables/notes/rows", map[string]any{
		"row": map[string]any{"body": "hello"},
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NO_PRIMARY_KEY" {
		t.Errorf("error = %+v, want NO_PRIMARY_KEY", resp.Error)
	}
}

func TestAlterEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodPost, "/tables/users/alter", []map[string]any{
		{
			"op_type":    "add",
			"column_def": map[string]any{"name": "email", "type_name": "TEXT", "is_nullable": true},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %+v", rec.Code, resp.Error)
	}

	_, read := doJSON(t, h, http.MethodGet, "/tables/users/columns", nil)
	cols := read.Data.([]any)
	if len(cols) != 4 {
		t.Errorf("got %d columns after alter, want 4", len(cols))
	}
}

func TestAlterRejectsPrimaryKeyIndexDrop(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE tags (label TEXT, weight INTEGER, PRIMARY KEY (label))`,
		`CREATE INDEX idx_tags_weight ON tags (weight)`,
	}
	for _, stmt := range stmts {
		if _, err := srv.exec.Query(ctx, stmt); err != nil {
			t.Fatalf("setup %q failed: %v", stmt, err)
		}
	}

	rec, resp := doJSON(t, h, http.MethodPost, "/tables/tags/alter", []map[string]any{
		{"op_type": "drop_index", "index_name": "sqlite_autoindex_tags_1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %+v", rec.Code, resp.Error)
	}
	if resp.Error == nil || resp.Error.Code != "INVALID" {
		t.Errorf("error = %+v, want INVALID", resp.Error)
	}

	// A regular index is still droppable.
	rec, resp = doJSON(t, h, http.MethodPost, "/tables/tags/alter", []map[string]any{
		{"op_type": "drop_index", "index_name": "idx_tags_weight"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %+v", rec.Code, resp.Error)
	}
}

func TestAlterRejectsEmptyList(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/tables/users/alter", []map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConnectionLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.Handler()

	rec, resp := doJSON(t, h, http.MethodPost, "/connections", map[string]any{
		"name":    "local",
		"dialect": "sqlite",
		"path":    "/tmp/local.db",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %+v", rec.Code, resp.Error)
	}
	id := resp.Data.(map[string]any)["id"].(string)
	if id == "" {
		t.Fatal("created profile has no id")
	}

	rec, resp = doJSON(t, h, http.MethodGet, "/connections/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	if got := resp.Data.(map[string]any)["name"]; got != "local" {
		t.Errorf("name = %v, want local", got)
	}

	rec, _ = doJSON(t, h, http.MethodPut, "/connections/"+id, map[string]any{
		"name":    "renamed",
		"dialect": "sqlite",
		"path":    "/tmp/local.db",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/connections/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/connections/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestConnectionNameRequired(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodPost, "/connections", map[string]any{
		"dialect": "sqlite",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "INVALID" {
		t.Errorf("error = %+v, want INVALID", resp.Error)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.Auth = AuthConfig{Enabled: true, APIKey: "secret-key-0123456789"}
	})
	h := srv.Handler()

	// Health bypasses authentication.
	rec, _ := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	rec, resp := doJSON(t, h, http.MethodGet, "/tables", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error = %+v, want UNAUTHORIZED", resp.Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/tables", nil)
	req.Header.Set("X-API-Key", "secret-key-0123456789")
	keyed := httptest.NewRecorder()
	h.ServeHTTP(keyed, req)
	if keyed.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", keyed.Code)
	}
}

func TestAuthConfigValidation(t *testing.T) {
	_, err := NewServer(Config{
		DatabasePath: "ignored.db",
		Auth:         AuthConfig{Enabled: true, APIKey: "short"},
	})
	if err == nil || !strings.Contains(err.Error(), "at least 16 characters") {
		t.Errorf("err = %v, want key length complaint", err)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitRequests = 60
		cfg.RateLimitBurst = 3
	})
	h := srv.Handler()

	var limited bool
	for i := 0; i < 5; i++ {
		rec, resp := doJSON(t, h, http.MethodGet, "/health", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if resp.Error == nil || resp.Error.Code != "RATE_LIMITED" {
				t.Errorf("error = %+v, want RATE_LIMITED", resp.Error)
			}
			break
		}
	}
	if !limited {
		t.Error("burst of 3 never produced a 429 in 5 requests")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/tables", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}

func TestCORSAllowList(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.AllowedOrigins = []string{"http://good.example"}
	})
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://bad.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://good.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://good.example" {
		t.Errorf("allowed origin got allow-origin %q", got)
	}
}

func TestGenerateUnconfigured(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodPost, "/generate", map[string]any{
		"prompt": "list all users",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_CONFIGURED" {
		t.Errorf("error = %+v, want NOT_CONFIGURED", resp.Error)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec, resp := doJSON(t, srv.Handler(), http.MethodGet, "/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestRequestsCarryDistinctAddresses(t *testing.T) {
	// Two clients each get their own bucket.
	srv := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitRequests = 60
		cfg.RateLimitBurst = 1
	})
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.0.%d:1234", i+1)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %d status = %d, want 200", i+1, rec.Code)
		}
	}
}
