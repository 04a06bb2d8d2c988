// Command recch is a schema-driven browser and editor for SQL databases.
// It discovers table structure at runtime and synthesizes every read and
// write from the discovered catalog.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/happydigua/recch/core/browse"
	"github.com/happydigua/recch/core/schema"
	"github.com/happydigua/recch/core/sqlbuild"
	"github.com/happydigua/recch/internal/api"
	"github.com/happydigua/recch/internal/connections"
	"github.com/happydigua/recch/internal/export"
	"github.com/happydigua/recch/internal/logging"
	"github.com/happydigua/recch/internal/sqlexec"
	"github.com/happydigua/recch/internal/textgen"
)

const version = "0.3.0"

// CLI defines the command-line interface for recch.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn"`
	LogFormat string `name:"log-format" help:"Log format (json, text)" default:"text"`

	Tables      TablesCmd       `cmd:"" help:"List tables in a database"`
	Columns     ColumnsCmd      `cmd:"" help:"Show a table's columns"`
	Indexes     IndexesCmd      `cmd:"" help:"Show a table's indexes"`
	Browse      BrowseCmd       `cmd:"" help:"Browse a table page by page"`
	Query       QueryCmd        `cmd:"" help:"Run a single SQL statement"`
	Repl        ReplCmd         `cmd:"" help:"Interactive SQL shell"`
	Export      ExportCmd       `cmd:"" help:"Export a table to JSON Lines"`
	Generate    GenerateCmd     `cmd:"" help:"Generate SQL from a natural-language request"`
	Connections ConnectionGroup `cmd:"" help:"Manage saved connection profiles"`
	Serve       ServeCmd        `cmd:"" help:"Start REST API server"`
	Version     VersionCmd      `cmd:"" help:"Print version information"`
}

// openExecutor opens the database for a command.
func openExecutor(db string) (*sqlexec.Executor, error) {
	if db == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return sqlexec.Open(db)
}

// TablesCmd lists tables.
type TablesCmd struct {
	DB string `arg:"" help:"SQLite database file" type:"path"`
}

func (c *TablesCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	rows, err := exec.Query(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Println(row["name"].AsString())
	}
	return nil
}

// ColumnsCmd shows column definitions.
type ColumnsCmd struct {
	DB    string `arg:"" help:"SQLite database file" type:"path"`
	Table string `arg:"" help:"Table name"`
	JSON  bool   `help:"Output as JSON"`
}

func (c *ColumnsCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	cols, err := exec.Columns(context.Background(), c.Table, "")
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(cols)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tPK\tNULLABLE\tDEFAULT")
	for _, col := range cols {
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n",
			col.Name, col.TypeName, col.IsPK, col.IsNullable, col.DefaultValue)
	}
	return w.Flush()
}

// IndexesCmd shows index definitions.
type IndexesCmd struct {
	DB    string `arg:"" help:"SQLite database file" type:"path"`
	Table string `arg:"" help:"Table name"`
	JSON  bool   `help:"Output as JSON"`
}

func (c *IndexesCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	idxs, err := exec.Indexes(context.Background(), c.Table)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(idxs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOLUMNS\tUNIQUE\tPK")
	for _, idx := range idxs {
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\n",
			idx.Name, strings.Join(idx.Columns, ","), idx.IsUnique, idx.IsPK)
	}
	return w.Flush()
}

// BrowseCmd prints one page of a table.
type BrowseCmd struct {
	DB       string `arg:"" help:"SQLite database file" type:"path"`
	Table    string `arg:"" help:"Table name"`
	Page     int    `help:"Page number (1-based)" default:"1"`
	PageSize int    `name:"page-size" help:"Rows per page" default:"50"`
	Sort     string `help:"Column to sort by"`
	Desc     bool   `help:"Sort descending"`
}

func (c *BrowseCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	ctx := context.Background()
	session := browse.NewSession(exec, sqlbuild.DialectSQLite, c.PageSize)
	if err := session.SelectTable(ctx, c.Table, ""); err != nil {
		return err
	}
	if c.Sort != "" {
		dir := sqlbuild.DirectionAscending
		if c.Desc {
			dir = sqlbuild.DirectionDescending
		}
		if err := session.SetSort(ctx, c.Sort, dir); err != nil {
			return err
		}
	}
	if c.Page > 1 {
		if err := session.SetPage(ctx, c.Page); err != nil {
			return err
		}
	}

	printPage(session)
	return nil
}

func printPage(session *browse.Session) {
	cols := session.Catalog().Columns()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = strings.ToUpper(col.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, row := range session.PresentedRows() {
		cells := make([]string, len(row))
		for i, p := range row {
			cells[i] = p.Preview
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()

	page := session.Page()
	fmt.Printf("\npage %d (%d per page), %d rows total\n",
		page.Page, page.PageSize, session.Total())
}

// QueryCmd runs one statement and prints the result.
type QueryCmd struct {
	DB   string `arg:"" help:"SQLite database file" type:"path"`
	SQL  string `arg:"" help:"SQL statement"`
	JSON bool   `help:"Output as JSON"`
}

func (c *QueryCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	rows, err := exec.Query(context.Background(), c.SQL)
	if err != nil {
		return err
	}
	return printRows(rows, c.JSON)
}

// ExportCmd streams a table to JSON Lines.
type ExportCmd struct {
	DB       string `arg:"" help:"SQLite database file" type:"path"`
	Table    string `arg:"" help:"Table name"`
	Out      string `help:"Output file (.xz enables compression); stdout when omitted" type:"path"`
	PageSize int    `name:"page-size" help:"Rows fetched per page" default:"500"`
	Compress bool   `help:"Compress output with xz"`
}

func (c *ExportCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	opts := export.Options{
		Table:    c.Table,
		PageSize: c.PageSize,
		Compress: c.Compress,
	}

	ctx := context.Background()
	if c.Out == "" {
		_, err = export.Write(ctx, exec, sqlbuild.DialectSQLite, os.Stdout, opts)
		return err
	}
	n, err := export.File(ctx, exec, sqlbuild.DialectSQLite, c.Out, opts)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d rows to %s\n", n, c.Out)
	return nil
}

// GenerateCmd asks the configured completion endpoint for a SQL statement.
type GenerateCmd struct {
	Prompt string `arg:"" help:"Natural-language request"`
	DB     string `help:"SQLite database file, for schema context" type:"path"`
	Table  string `help:"Table name, for schema context"`
	Config string `help:"Endpoint config file" type:"path"`
}

func (c *GenerateCmd) Run() error {
	path := c.Config
	if path == "" {
		base, err := connections.DefaultPath()
		if err != nil {
			return err
		}
		path = strings.TrimSuffix(base, "connections.json") + "ai_config.json"
	}
	cfg, err := textgen.LoadConfig(path)
	if err != nil {
		return err
	}
	if !cfg.Configured() {
		return fmt.Errorf("no endpoint configured in %s (set api_url and model)", path)
	}

	ctx := context.Background()
	var cat *schema.Catalog
	if c.DB != "" && c.Table != "" {
		exec, err := openExecutor(c.DB)
		if err != nil {
			return err
		}
		defer exec.Close()
		cat = &schema.Catalog{}
		if err := cat.Load(ctx, exec, c.Table, ""); err != nil {
			return err
		}
	}

	stmt, err := textgen.NewClient(cfg).GenerateSQL(ctx, c.Prompt, sqlbuild.DialectSQLite.String(), cat)
	if err != nil {
		return err
	}
	fmt.Println(stmt)
	return nil
}

// ConnectionGroup contains profile management commands.
type ConnectionGroup struct {
	List ConnListCmd `cmd:"" help:"List saved profiles"`
	Add  ConnAddCmd  `cmd:"" help:"Save a new profile"`
	Rm   ConnRmCmd   `cmd:"" help:"Delete a profile"`
}

func profileStore(path string) (*connections.Store, error) {
	if path == "" {
		var err error
		path, err = connections.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return connections.NewStore(path), nil
}

// ConnListCmd lists saved profiles.
type ConnListCmd struct {
	File string `help:"Profile file path" type:"path"`
}

func (c *ConnListCmd) Run() error {
	store, err := profileStore(c.File)
	if err != nil {
		return err
	}
	profiles, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIALECT\tTARGET")
	for _, p := range profiles {
		target := p.Path
		if target == "" {
			target = fmt.Sprintf("%s:%d/%s", p.Host, p.Port, p.Database)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Dialect, target)
	}
	return w.Flush()
}

// ConnAddCmd saves a new profile.
type ConnAddCmd struct {
	Name     string `arg:"" help:"Profile name"`
	Dialect  string `help:"Dialect (mysql, postgres, sqlite)" default:"sqlite"`
	Path     string `help:"Database file for file-backed engines" type:"path"`
	Host     string `help:"Server host"`
	Port     int    `help:"Server port"`
	User     string `help:"User name"`
	Password string `help:"Password"`
	Database string `help:"Database name"`
	File     string `help:"Profile file path" type:"path"`
}

func (c *ConnAddCmd) Run() error {
	store, err := profileStore(c.File)
	if err != nil {
		return err
	}
	saved, err := store.Add(connections.Profile{
		Name:     c.Name,
		Dialect:  c.Dialect,
		Path:     c.Path,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
	})
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%s)\n", saved.Name, saved.ID)
	return nil
}

// ConnRmCmd deletes a profile.
type ConnRmCmd struct {
	ID   string `arg:"" help:"Profile ID"`
	File string `help:"Profile file path" type:"path"`
}

func (c *ConnRmCmd) Run() error {
	store, err := profileStore(c.File)
	if err != nil {
		return err
	}
	return store.Delete(c.ID)
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	DB             string   `arg:"" help:"SQLite database file" type:"path"`
	Port           int      `help:"HTTP server port" default:"8081"`
	PageSize       int      `name:"page-size" help:"Default rows per page" default:"50"`
	APIKey         string   `name:"api-key" help:"Require this API key on every request" env:"RECCH_API_KEY"`
	RateLimit      int      `name:"rate-limit" help:"Requests per minute per client (0 = disabled)"`
	AllowedOrigins []string `name:"allowed-origins" help:"CORS allowed origins (empty = allow all)"`
	TLSCert        string   `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey         string   `name:"tls-key" help:"TLS private key file" type:"path"`
	AIConfig       string   `name:"ai-config" help:"Text generation endpoint config file" type:"path"`
}

func (c *ServeCmd) Run() error {
	cfg := api.Config{
		Port:              c.Port,
		DatabasePath:      c.DB,
		PageSize:          c.PageSize,
		AIConfigPath:      c.AIConfig,
		RateLimitRequests: c.RateLimit,
		AllowedOrigins:    c.AllowedOrigins,
		Auth: api.AuthConfig{
			Enabled: c.APIKey != "",
			APIKey:  c.APIKey,
		},
		TLS: api.TLSConfig{
			Enabled:  c.TLSCert != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
	}
	server, err := api.NewServer(cfg)
	if err != nil {
		return err
	}
	defer server.Close()
	return server.Start()
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("recch version %s\n", version)
	return nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("recch"),
		kong.Description("recch - schema-driven database browser and editor"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), parseFormat(CLI.LogFormat))

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}

func parseFormat(name string) logging.Format {
	if name == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}
