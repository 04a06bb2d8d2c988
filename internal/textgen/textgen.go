// Package textgen turns natural-language requests into SQL statements by
// calling an OpenAI-compatible chat completion endpoint. The generated text
// is advisory: it is returned to the caller for review, never executed
// directly.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/happydigua/recch/core/errors"
	"github.com/happydigua/recch/core/schema"
)

// Config holds the endpoint settings. The file lives next to the
// connection profiles.
type Config struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config and no error so callers can prompt for setup.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, errors.Wrapf(err, "read %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// SaveConfig writes the config file at path.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Configured reports whether the config carries enough to make a request.
func (c Config) Configured() bool {
	return c.APIURL != "" && c.Model != ""
}

// endpoint normalizes the configured base URL into the chat completions
// endpoint. Users paste base URLs with and without the path; both work.
func (c Config) endpoint() string {
	u := strings.TrimRight(c.APIURL, "/")
	if strings.HasSuffix(u, "/chat/completions") {
		return u
	}
	return u + "/chat/completions"
}

// Client calls the completion endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client with a 60 second request timeout.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You are a SQL assistant. Reply with exactly one SQL statement for the user's request, with no explanation and no markdown."

// GenerateSQL produces one SQL statement for the request against the given
// table schema.
func (c *Client) GenerateSQL(ctx context.Context, request, dialect string, cat *schema.Catalog) (string, error) {
	if !c.cfg.Configured() {
		return "", errors.NewValidation("config", "api_url and model must be set")
	}

	prompt := buildPrompt(request, dialect, cat)
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call completion endpoint")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.Wrapf(err, "parse response (status %d)", resp.StatusCode)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion endpoint: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion endpoint: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion endpoint: empty choices")
	}

	return StripFences(parsed.Choices[0].Message.Content), nil
}

// buildPrompt describes the table so the model can address real columns.
func buildPrompt(request, dialect string, cat *schema.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dialect: %s\n", dialect)
	if cat != nil && cat.Loaded() {
		fmt.Fprintf(&b, "Table: %s\nColumns:\n", cat.Table())
		for _, col := range cat.Columns() {
			fmt.Fprintf(&b, "  %s %s", col.Name, col.TypeName)
			if col.IsPK {
				b.WriteString(" PRIMARY KEY")
			}
			if !col.IsNullable {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "Request: %s", request)
	return b.String()
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace. Models add fences even when told not
// to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line if the fence opened with one.
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, " \t") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
