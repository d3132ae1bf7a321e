package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/dmbot/internal/config"
)

func TestRunBot_RejectsInvalidConfigBeforeConnecting(t *testing.T) {
	dir := t.TempDir()
	oldCfg, oldEnv := cfgFile, envFile
	cfgFile = filepath.Join(dir, "config.json")
	envFile = filepath.Join(dir, ".env")
	t.Cleanup(func() { cfgFile, envFile = oldCfg, oldEnv })

	t.Setenv("DMBOT_USERNAME", "bot")
	t.Setenv("DMBOT_PASSWORD", "pw")
	t.Setenv("DMBOT_BRIDGE_URL", "http://127.0.0.1:1")

	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("DMBOT_TIMEZONE", "Not/AZone")
		if err := runBot(true); err == nil {
			t.Fatal("runBot should fail on an unknown timezone")
		}
	})

	t.Run("missing password", func(t *testing.T) {
		t.Setenv("DMBOT_PASSWORD", "")
		t.Setenv("PASSWORD", "")
		if err := runBot(true); !errors.Is(err, config.ErrMissingCredentials) {
			t.Fatalf("runBot = %v, want ErrMissingCredentials", err)
		}
	})
}
