package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrMissingCredentials is returned by Validate when the platform username or
// password is not configured. The bot must not start polling without both.
var ErrMissingCredentials = errors.New("config: missing username or password")

// Config is the root configuration for dmbot.
type Config struct {
	// Platform credentials come from the environment only and are never persisted.
	Username string `json:"-"`
	Password string `json:"-"`

	DataDir   string          `json:"data_dir,omitempty"` // default "~/.dmbot/data"
	Timezone  string          `json:"timezone,omitempty"` // IANA name or "Local" (default)
	Bridge    BridgeConfig    `json:"bridge"`
	Session   SessionConfig   `json:"session,omitempty"`
	Inbox     InboxConfig     `json:"inbox"`
	Lookup    LookupConfig    `json:"lookup"`
	Journal   JournalConfig   `json:"journal,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// BridgeConfig points at the messaging bridge sidecar.
type BridgeConfig struct {
	URL       string `json:"url,omitempty"`
	Token     string `json:"-"` // env only
	Timeout   string `json:"timeout,omitempty"` // Go duration, default "30s"
	UserAgent string `json:"user_agent,omitempty"`
}

// SessionConfig locates the persisted session file.
type SessionConfig struct {
	Path string `json:"path,omitempty"` // default "<data_dir>/session.json"
}

// InboxConfig tunes the poll cycle.
type InboxConfig struct {
	ThreadLimit    int    `json:"thread_limit,omitempty"`     // default 10
	MessageLimit   int    `json:"message_limit,omitempty"`    // default 5
	PollInterval   string `json:"poll_interval,omitempty"`    // Go duration, default "1s"
	SendAck        bool   `json:"send_ack"`                   // default true
	Concurrency    int    `json:"concurrency,omitempty"`      // default 1 (sequential)
	MaxReplyLength int    `json:"max_reply_length,omitempty"` // bytes per message, 0 = platform default
	WelcomeText    string `json:"welcome_text,omitempty"`
}

// LookupConfig configures the external lookup APIs.
type LookupConfig struct {
	InfoURL       string  `json:"info_url,omitempty"`
	VistsURL      string  `json:"vists_url,omitempty"`
	Timeout       string  `json:"timeout,omitempty"` // Go duration, default "30s"
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
	Burst         int     `json:"burst,omitempty"`
}

// JournalConfig enables the SQLite dispatch journal. Empty path disables it.
type JournalConfig struct {
	Path string `json:"path,omitempty"`
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "dmbot"
	Headers     map[string]string `json:"headers,omitempty"`
}

// Validate checks the settings required before any login attempt.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if c.Bridge.URL == "" {
		return errors.New("config: bridge url is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// DataPath returns the expanded data directory.
func (c *Config) DataPath() string {
	return ExpandHome(c.DataDir)
}

// SessionPath returns the expanded session file path.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return ExpandHome(c.Session.Path)
	}
	return filepath.Join(c.DataPath(), "session.json")
}

// JournalPath returns the expanded journal path, or "" when disabled.
func (c *Config) JournalPath() string {
	return ExpandHome(c.Journal.Path)
}

// Interval returns the delay between poll cycles.
func (ic InboxConfig) Interval() time.Duration {
	return parseDuration(ic.PollInterval, time.Second)
}

// RequestTimeout returns the per-request timeout for bridge calls.
func (bc BridgeConfig) RequestTimeout() time.Duration {
	return parseDuration(bc.Timeout, 30*time.Second)
}

// RequestTimeout returns the per-request timeout for lookup calls.
func (lc LookupConfig) RequestTimeout() time.Duration {
	return parseDuration(lc.Timeout, 30*time.Second)
}

// Location resolves Timezone for timestamp rendering.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	case "UTC", "utc":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

const secretMask = "***"

// Mask returns s masked for display, or "" when unset.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	return secretMask
}
