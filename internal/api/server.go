// Package api provides the REST and WebSocket server for browsing and
// editing tables over HTTP.
package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
	"github.com/happydigua/recch/internal/cache"
	"github.com/happydigua/recch/internal/connections"
	"github.com/happydigua/recch/internal/logging"
	"github.com/happydigua/recch/internal/sqlexec"
	"github.com/happydigua/recch/internal/textgen"
)

// catalogTTL bounds how stale a cached table catalog may get when the
// schema changes outside this process.
const catalogTTL = 30 * time.Second

// Server serves one SQLite database over HTTP.
type Server struct {
	cfg      Config
	exec     *sqlexec.Executor
	dialect  sqlbuild.Dialect
	store    *connections.Store
	hub      *Hub
	catalogs *cache.TTLCache[string, *schema.Catalog]
}

// NewServer opens the configured database and prepares the server.
func NewServer(cfg Config) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return nil, fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return nil, fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	exec, err := sqlexec.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	connPath := cfg.ConnectionsPath
	if connPath == "" {
		connPath, err = connections.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		cfg:      cfg,
		exec:     exec,
		dialect:  sqlbuild.DialectSQLite,
		store:    connections.NewStore(connPath),
		hub:      NewHub(),
		catalogs: cache.New[string, *schema.Catalog](catalogTTL),
	}, nil
}

// loadCatalog fetches the table's catalog, reusing a cached copy while it
// is fresh. Mutations and schema changes invalidate the entry directly.
func (s *Server) loadCatalog(r *http.Request, table string) (*schema.Catalog, error) {
	if cat, ok := s.catalogs.Get(table); ok {
		return cat, nil
	}
	cat := &schema.Catalog{}
	if err := cat.Load(r.Context(), s.exec, table, ""); err != nil {
		return nil, err
	}
	logging.CatalogLoaded(r.Context(), table, "", len(cat.Columns()), len(cat.Indexes()))
	s.catalogs.Set(table, cat)
	return cat, nil
}

// Close releases the server's database handle.
func (s *Server) Close() error { return s.exec.Close() }

// Handler builds the full middleware chain around the route mux.
func (s *Server) Handler() http.Handler {
	mux := s.routes()

	var handler http.Handler = mux
	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"note", "API key required")
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if s.cfg.RateLimitRequests > 0 {
		limiter := NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		})
		handler = limiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.cfg.RateLimitBurst)
	}

	handler = corsMiddleware(s.cfg.AllowedOrigins, handler)
	handler = logging.CombinedMiddleware(handler)
	return handler
}

// Start runs the hub and serves until the listener fails.
func (s *Server) Start() error {
	go s.hub.Run()

	protocol := "http"
	if s.cfg.TLS.Enabled {
		protocol = "https"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"database", s.cfg.DatabasePath)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	handler := s.Handler()
	if s.cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/connections", s.handleConnections)
	mux.HandleFunc("/connections/", s.handleConnectionByID)
	mux.HandleFunc("/tables", s.handleTables)
	mux.HandleFunc("/tables/", s.handleTableSub)
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// corsMiddleware sets the CORS headers. An empty allow list permits all
// origins.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(allowedSet) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowedSet[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// newTextgenClient loads the configured text generation endpoint.
func (s *Server) newTextgenClient() (*textgen.Client, error) {
	path := s.cfg.AIConfigPath
	if path == "" {
		return nil, fmt.Errorf("text generation not configured")
	}
	cfg, err := textgen.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		return nil, fmt.Errorf("text generation not configured")
	}
	return textgen.NewClient(cfg), nil
}
