package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/dmbot/internal/lookup"
)

const DefaultBridgeURL = "http://127.0.0.1:8765"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:  "~/.dmbot/data",
		Timezone: "Local",
		Bridge: BridgeConfig{
			URL:     DefaultBridgeURL,
			Timeout: "30s",
		},
		Inbox: InboxConfig{
			ThreadLimit:  10,
			MessageLimit: 5,
			PollInterval: "1s",
			SendAck:      true,
			Concurrency:  1,
		},
		Lookup: LookupConfig{
			InfoURL:       lookup.DefaultInfoURL,
			VistsURL:      lookup.DefaultVistsURL,
			Timeout:       "30s",
			RatePerSecond: 2,
			Burst:         4,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "dmbot",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Credentials. Older deployments export bare USERNAME/PASSWORD; the OS often
	// sets USERNAME on its own, so the bare pair only counts when PASSWORD is set.
	if os.Getenv("PASSWORD") != "" {
		envStr("USERNAME", &c.Username)
		envStr("PASSWORD", &c.Password)
	}
	envStr("DMBOT_USERNAME", &c.Username)
	envStr("DMBOT_PASSWORD", &c.Password)

	envStr("DMBOT_DATA_DIR", &c.DataDir)
	envStr("DMBOT_TIMEZONE", &c.Timezone)
	envStr("DMBOT_SESSION_PATH", &c.Session.Path)
	envStr("DMBOT_JOURNAL_PATH", &c.Journal.Path)

	// Bridge
	envStr("DMBOT_BRIDGE_URL", &c.Bridge.URL)
	envStr("DMBOT_BRIDGE_TOKEN", &c.Bridge.Token)
	envStr("DMBOT_BRIDGE_TIMEOUT", &c.Bridge.Timeout)

	// Inbox
	if v := os.Getenv("DMBOT_POLL_INTERVAL"); v != "" {
		// bare numbers are seconds
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			v = (time.Duration(secs * float64(time.Second))).String()
		}
		c.Inbox.PollInterval = v
	}
	envInt("DMBOT_THREAD_LIMIT", &c.Inbox.ThreadLimit)
	envInt("DMBOT_MESSAGE_LIMIT", &c.Inbox.MessageLimit)
	envInt("DMBOT_CONCURRENCY", &c.Inbox.Concurrency)
	envBool("DMBOT_SEND_ACK", &c.Inbox.SendAck)

	// Lookup
	envStr("DMBOT_INFO_URL", &c.Lookup.InfoURL)
	envStr("DMBOT_VISTS_URL", &c.Lookup.VistsURL)
	envStr("DMBOT_LOOKUP_TIMEOUT", &c.Lookup.Timeout)

	// Telemetry
	envStr("DMBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("DMBOT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("DMBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("DMBOT_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envBool("DMBOT_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. It reports whether the
// file existed.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load env file %s: %w", path, err)
	}
	return true, nil
}

// WriteEnvFile merges updates into the env file at path, keeping other keys.
func WriteEnvFile(path string, updates map[string]string) error {
	env := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		existing, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("read env file: %w", err)
		}
		env = existing
	}
	for k, v := range updates {
		env[k] = v
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}

// envKeys lists the variables printed by doctor.
var envKeys = []string{
	"DMBOT_USERNAME", "DMBOT_PASSWORD", "DMBOT_BRIDGE_URL", "DMBOT_BRIDGE_TOKEN",
	"DMBOT_DATA_DIR", "DMBOT_SESSION_PATH", "DMBOT_JOURNAL_PATH", "DMBOT_POLL_INTERVAL",
}

// EnvSummary reports which known env vars are set, masking secrets.
func EnvSummary() map[string]string {
	out := make(map[string]string, len(envKeys))
	for _, k := range envKeys {
		v := os.Getenv(k)
		if v == "" {
			continue
		}
		if strings.HasSuffix(k, "_PASSWORD") || strings.HasSuffix(k, "_TOKEN") {
			v = Mask(v)
		}
		out[k] = v
	}
	return out
}
