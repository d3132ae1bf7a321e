package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable the overlay reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"USERNAME", "PASSWORD", "DMBOT_USERNAME", "DMBOT_PASSWORD",
		"DMBOT_DATA_DIR", "DMBOT_TIMEZONE", "DMBOT_SESSION_PATH", "DMBOT_JOURNAL_PATH",
		"DMBOT_BRIDGE_URL", "DMBOT_BRIDGE_TOKEN", "DMBOT_BRIDGE_TIMEOUT",
		"DMBOT_POLL_INTERVAL", "DMBOT_THREAD_LIMIT", "DMBOT_MESSAGE_LIMIT",
		"DMBOT_CONCURRENCY", "DMBOT_SEND_ACK", "DMBOT_INFO_URL", "DMBOT_VISTS_URL",
		"DMBOT_LOOKUP_TIMEOUT", "DMBOT_TELEMETRY_ENABLED",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Inbox.ThreadLimit != 10 || cfg.Inbox.MessageLimit != 5 || !cfg.Inbox.SendAck {
		t.Errorf("inbox defaults = %+v", cfg.Inbox)
	}
	if cfg.Inbox.Interval() != time.Second {
		t.Errorf("Interval = %v", cfg.Inbox.Interval())
	}
	if cfg.Lookup.RequestTimeout() != 30*time.Second || cfg.Bridge.RequestTimeout() != 30*time.Second {
		t.Error("timeouts should default to 30s")
	}
	if !errors.Is(cfg.Validate(), ErrMissingCredentials) {
		t.Errorf("Validate = %v, want ErrMissingCredentials", cfg.Validate())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		// json5 comments are allowed
		data_dir: "/srv/dmbot",
		inbox: { thread_limit: 3, send_ack: false, poll_interval: "5s" },
		lookup: { info_url: "http://file/info?uid=" },
	}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DMBOT_USERNAME", "botuser")
	t.Setenv("DMBOT_PASSWORD", "s3cret")
	t.Setenv("DMBOT_INFO_URL", "http://env/info?uid=")
	t.Setenv("DMBOT_POLL_INTERVAL", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Inbox.ThreadLimit != 3 || cfg.Inbox.SendAck {
		t.Errorf("file values not applied: %+v", cfg.Inbox)
	}
	if cfg.Inbox.MessageLimit != 5 {
		t.Errorf("unset file values should keep defaults, MessageLimit = %d", cfg.Inbox.MessageLimit)
	}
	if cfg.Lookup.InfoURL != "http://env/info?uid=" {
		t.Errorf("env should win over file: %q", cfg.Lookup.InfoURL)
	}
	if cfg.Inbox.Interval() != 2*time.Second {
		t.Errorf("bare seconds: Interval = %v", cfg.Inbox.Interval())
	}
	if got := cfg.SessionPath(); got != filepath.Join("/srv/dmbot", "session.json") {
		t.Errorf("SessionPath = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_LegacyCredentialNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("USERNAME", "legacy")
	t.Setenv("PASSWORD", "pw")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Username != "legacy" || cfg.Password != "pw" {
		t.Errorf("credentials = %q/%q", cfg.Username, cfg.Password)
	}

	t.Setenv("DMBOT_USERNAME", "preferred")
	cfg, _ = Load(filepath.Join(t.TempDir(), "none.json"))
	if cfg.Username != "preferred" {
		t.Errorf("DMBOT_USERNAME should take precedence, got %q", cfg.Username)
	}
}

func TestLoad_IgnoresOSUsernameWithoutLegacyPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("USERNAME", "osuser")
	t.Setenv("DMBOT_PASSWORD", "pw")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Username != "" {
		t.Errorf("username = %q, want empty", cfg.Username)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Validate = %v, want ErrMissingCredentials", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{ not json"), 0600)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"ok", func(c *Config) {}, nil},
		{"no username", func(c *Config) { c.Username = "  " }, ErrMissingCredentials},
		{"no password", func(c *Config) { c.Password = "" }, ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Username, cfg.Password = "u", "p"
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}

	cfg := Default()
	cfg.Username, cfg.Password = "u", "p"
	cfg.Timezone = "Mars/Olympus_Mons"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown timezone should fail validation")
	}
}

func TestEnvFileRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OTHER_KEY=keep\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := WriteEnvFile(path, map[string]string{"DMBOT_USERNAME": "me", "DMBOT_PASSWORD": "p w"}); err != nil {
		t.Fatalf("WriteEnvFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v", info.Mode().Perm())
	}

	// godotenv never overrides a variable that exists, even if empty
	for _, k := range []string{"OTHER_KEY", "DMBOT_USERNAME", "DMBOT_PASSWORD"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	found, err := LoadEnvFile(path)
	if err != nil || !found {
		t.Fatalf("LoadEnvFile = %v, %v", found, err)
	}
	if os.Getenv("DMBOT_PASSWORD") != "p w" || os.Getenv("OTHER_KEY") != "keep" {
		t.Errorf("env not loaded: %q %q", os.Getenv("DMBOT_PASSWORD"), os.Getenv("OTHER_KEY"))
	}

	found, err = LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil || found {
		t.Errorf("missing env file: found=%v err=%v", found, err)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/x"); got != home+"/x" {
		t.Errorf("ExpandHome(~/x) = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
}
