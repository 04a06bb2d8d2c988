package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/happydigua/recch/core/alter"
	rerrors "github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/present"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
	"github.com/happydigua/recch/core/sqlite"
	"github.com/happydigua/recch/core/value"
	"github.com/happydigua/recch/internal/connections"
	"github.com/happydigua/recch/internal/logging"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int64  `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
	Driver   string `json:"driver"`
}

// CellView is the display classification of one cell.
type CellView struct {
	Kind    string `json:"kind"`
	Preview string `json:"preview"`
	Full    string `json:"full,omitempty"`
}

// RowsResult is the paged read response.
type RowsResult struct {
	Columns  []schema.ColumnDefinition `json:"columns"`
	Rows     []map[string]any          `json:"rows"`
	Display  [][]CellView              `json:"display"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

var startTime = time.Now()

const version = "0.3.0"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "recch API",
		"version": version,
		"endpoints": []string{
			"GET /health",
			"GET /connections",
			"POST /connections",
			"GET /connections/:id",
			"PUT /connections/:id",
			"DELETE /connections/:id",
			"GET /tables",
			"GET /tables/:table/columns",
			"GET /tables/:table/indexes",
			"GET /tables/:table/rows",
			"POST /tables/:table/rows",
			"PUT /tables/:table/rows",
			"DELETE /tables/:table/rows",
			"POST /tables/:table/alter",
			"POST /generate",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, HealthInfo{
		Status:   "ok",
		Version:  version,
		Uptime:   time.Since(startTime).Round(time.Second).String(),
		Database: s.cfg.DatabasePath,
		Driver:   driverLabel(),
	})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profiles, err := s.store.List()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
			return
		}
		respond(w, http.StatusOK, profiles)

	case http.MethodPost:
		var p connections.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
			return
		}
		saved, err := s.store.Add(p)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respond(w, http.StatusCreated, saved)

	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET or POST")
	}
}

func (s *Server) handleConnectionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/connections/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.store.Get(id)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respond(w, http.StatusOK, p)

	case http.MethodPut:
		var p connections.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
			return
		}
		p.ID = id
		if err := s.store.Update(p); err != nil {
			respondStoreError(w, err)
			return
		}
		respond(w, http.StatusOK, p)

	case http.MethodDelete:
		if err := s.store.Delete(id); err != nil {
			respondStoreError(w, err)
			return
		}
		respond(w, http.StatusOK, map[string]string{"deleted": id})

	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET, PUT or DELETE")
	}
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET")
		return
	}

	rows, err := s.exec.Query(r.Context(),
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		respondExecError(w, err)
		return
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if v, ok := row["name"]; ok {
			names = append(names, v.AsString())
		}
	}
	respond(w, http.StatusOK, names)
}

// handleTableSub routes /tables/{table}/{action}.
func (s *Server) handleTableSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tables/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	table, action := parts[0], parts[1]

	switch action {
	case "columns":
		s.handleColumns(w, r, table)
	case "indexes":
		s.handleIndexes(w, r, table)
	case "rows":
		s.handleRows(w, r, table)
	case "alter":
		s.handleAlter(w, r, table)
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	}
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request, table string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET")
		return
	}
	cols, err := s.exec.Columns(r.Context(), table, "")
	if err != nil {
		respondExecError(w, err)
		return
	}
	respond(w, http.StatusOK, cols)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request, table string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET")
		return
	}
	idxs, err := s.exec.Indexes(r.Context(), table)
	if err != nil {
		respondExecError(w, err)
		return
	}
	if idxs == nil {
		idxs = []schema.IndexDefinition{}
	}
	respond(w, http.StatusOK, idxs)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request, table string) {
	switch r.Method {
	case http.MethodGet:
		s.handleReadRows(w, r, table)
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		s.handleMutateRows(w, r, table)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use GET, POST, PUT or DELETE")
	}
}

func (s *Server) handleReadRows(w http.ResponseWriter, r *http.Request, table string) {
	ctx := r.Context()

	cat, err := s.loadCatalog(r, table)
	if err != nil {
		respondExecError(w, err)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}

	var sort sqlbuild.SortState
	if col := q.Get("sort"); col != "" {
		dir := sqlbuild.DirectionAscending
		if strings.EqualFold(q.Get("dir"), "desc") {
			dir = sqlbuild.DirectionDescending
		}
		sort.Apply(col, dir)
	}

	paged := sqlbuild.PagedQuery{
		Dialect: s.dialect,
		Table:   table,
		Page:    sqlbuild.NewPageState(page, pageSize),
		Sort:    sort,
	}

	countRows, err := s.exec.Query(ctx, paged.CountQuery())
	if err != nil {
		respondExecError(w, err)
		return
	}
	var total int64
	if len(countRows) > 0 {
		for _, v := range countRows[0] {
			if v.Kind() == value.KindNumber {
				total = int64(v.AsNumber())
			}
		}
	}

	dataRows, err := s.exec.Query(ctx, paged.DataQuery())
	if err != nil {
		respondExecError(w, err)
		return
	}

	result := RowsResult{
		Columns:  cat.Columns(),
		Rows:     make([]map[string]any, 0, len(dataRows)),
		Display:  make([][]CellView, 0, len(dataRows)),
		Total:    total,
		Page:     paged.Page.Page,
		PageSize: paged.Page.PageSize,
	}
	for _, row := range dataRows {
		doc := make(map[string]any, len(cat.Columns()))
		cells := make([]CellView, 0, len(cat.Columns()))
		for _, col := range cat.Columns() {
			v := row[col.Name]
			doc[col.Name] = v.ToAny()
			p := present.Classify(v)
			cells = append(cells, CellView{
				Kind:    p.Kind.String(),
				Preview: p.Preview,
				Full:    p.Full,
			})
		}
		result.Rows = append(result.Rows, doc)
		result.Display = append(result.Display, cells)
	}

	respondWithTotal(w, http.StatusOK, result, total)
}

type mutateRequest struct {
	Row     value.Row    `json:"row,omitempty"`
	PKValue *value.Value `json:"pk_value,omitempty"`
}

func (s *Server) handleMutateRows(w http.ResponseWriter, r *http.Request, table string) {
	ctx := r.Context()

	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}

	cat, err := s.loadCatalog(r, table)
	if err != nil {
		respondExecError(w, err)
		return
	}

	m := sqlbuild.Mutation{Dialect: s.dialect, Catalog: cat}
	var (
		stmt      string
		operation string
	)
	switch r.Method {
	case http.MethodPost:
		operation = "insert"
		stmt, err = m.Insert(req.Row)
	case http.MethodPut:
		operation = "update"
		stmt, err = m.Update(req.Row)
	case http.MethodDelete:
		operation = "delete"
		if req.PKValue == nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "pk_value is required")
			return
		}
		stmt, err = m.Delete(*req.PKValue)
	}
	if err != nil {
		respondExecError(w, err)
		return
	}

	if _, err := s.exec.Query(ctx, stmt); err != nil {
		respondExecError(w, err)
		return
	}
	logging.MutationApplied(ctx, operation, table)
	s.catalogs.Invalidate(table)
	s.hub.DataChanged(table, operation)
	respond(w, http.StatusOK, map[string]string{"operation": operation, "table": table})
}

func (s *Server) handleAlter(w http.ResponseWriter, r *http.Request, table string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use POST")
		return
	}

	var ops []alter.Operation
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}
	if len(ops) == 0 {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "No operations given")
		return
	}

	// Posted operations skip the editor path, so its drop guard is
	// re-checked here against the live catalog.
	cat, err := s.loadCatalog(r, table)
	if err != nil {
		respondExecError(w, err)
		return
	}
	for _, op := range ops {
		if op.Type != alter.OpDropIndex {
			continue
		}
		for _, idx := range cat.Indexes() {
			if idx.Name == op.IndexName && !alter.DropEligible(idx) {
				respondError(w, http.StatusBadRequest, "INVALID", "primary key indexes cannot be dropped")
				return
			}
		}
	}

	for _, op := range ops {
		if err := s.exec.Alter(r.Context(), table, op); err != nil {
			respondExecError(w, err)
			return
		}
	}
	s.catalogs.Invalidate(table)
	s.hub.SchemaChanged(table, string(ops[len(ops)-1].Type))
	respond(w, http.StatusOK, map[string]any{"table": table, "applied": len(ops)})
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Table  string `json:"table,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Use POST")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "prompt is required")
		return
	}

	client, err := s.newTextgenClient()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", err.Error())
		return
	}

	var cat *schema.Catalog
	if req.Table != "" {
		loaded, err := s.loadCatalog(r, req.Table)
		if err != nil {
			respondExecError(w, err)
			return
		}
		cat = loaded
	}

	stmt, err := client.GenerateSQL(r.Context(), req.Prompt, s.dialect.String(), cat)
	if err != nil {
		respondError(w, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"sql": stmt})
}

func driverLabel() string {
	return sqlite.DriverType()
}

func respondStoreError(w http.ResponseWriter, err error) {
	var nf *rerrors.NotFoundError
	var val *rerrors.ValidationError
	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &val):
		respondError(w, http.StatusBadRequest, "INVALID", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
	}
}

// respondExecError maps domain errors to HTTP statuses. Executor failures
// carry the engine's message through verbatim.
func respondExecError(w http.ResponseWriter, err error) {
	var (
		nf  *rerrors.NotFoundError
		val *rerrors.ValidationError
		npk *rerrors.NoPrimaryKeyError
		cf  *rerrors.CatalogFetchError
	)
	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &val):
		respondError(w, http.StatusBadRequest, "INVALID", err.Error())
	case errors.As(err, &npk):
		respondError(w, http.StatusConflict, "NO_PRIMARY_KEY", err.Error())
	case errors.As(err, &cf):
		respondError(w, http.StatusBadGateway, "CATALOG_FETCH_FAILED", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "EXECUTION_ERROR", err.Error())
	}
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondWithTotal(w http.ResponseWriter, status int, data interface{}, total int64) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
