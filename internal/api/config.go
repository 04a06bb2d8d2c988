package api

// Config holds server configuration.
type Config struct {
	Port              int
	DatabasePath      string     // SQLite database to serve
	PageSize          int        // default rows per page
	ConnectionsPath   string     // saved connection profiles file
	AIConfigPath      string     // text generation endpoint config file
	RateLimitRequests int        // requests per minute (0 = disabled)
	RateLimitBurst    int        // burst size
	Auth              AuthConfig // authentication configuration
	TLS               TLSConfig  // TLS configuration
	AllowedOrigins    []string   // CORS allowed origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // enable HTTPS
	CertFile string // path to TLS certificate file
	KeyFile  string // path to TLS private key file
}
