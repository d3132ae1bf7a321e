package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/config"
	"github.com/nextlevelbuilder/dmbot/internal/journal"
	"github.com/nextlevelbuilder/dmbot/internal/session"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, credentials, session and journal health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("dmbot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}
	fmt.Printf("  Env file: %s", envFile)
	if _, err := os.Stat(envFile); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Credentials:")
	fmt.Printf("    %-12s %s\n", "Username:", presence(cfg.Username))
	fmt.Printf("    %-12s %s\n", "Password:", presence(cfg.Password))
	if err := cfg.Validate(); err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", err)
	} else {
		fmt.Printf("    %-12s OK\n", "Status:")
	}

	fmt.Println()
	fmt.Println("  Bridge:")
	fmt.Printf("    %-12s %s\n", "URL:", cfg.Bridge.URL)
	fmt.Printf("    %-12s %s\n", "Token:", presence(cfg.Bridge.Token))
	fmt.Printf("    %-12s %s\n", "Reachable:", checkReachable(cfg.Bridge.URL))

	fmt.Println()
	fmt.Println("  Session:")
	store := session.NewFileStore(cfg.SessionPath())
	fmt.Printf("    %-12s %s\n", "Path:", store.Path())
	fmt.Printf("    %-12s %s\n", "Status:", sessionStatus(store))

	fmt.Println()
	fmt.Println("  Journal:")
	if p := cfg.JournalPath(); p == "" {
		fmt.Printf("    %-12s disabled (set DMBOT_JOURNAL_PATH)\n", "Status:")
	} else {
		fmt.Printf("    %-12s %s\n", "Path:", p)
		fmt.Printf("    %-12s %s\n", "Status:", journalStatus(p))
	}

	fmt.Println()
	fmt.Println("  Inbox:")
	fmt.Printf("    %-12s %d threads x %d messages every %s\n", "Poll:", cfg.Inbox.ThreadLimit, cfg.Inbox.MessageLimit, cfg.Inbox.Interval())
	fmt.Printf("    %-12s %v\n", "Ack:", cfg.Inbox.SendAck)
	fmt.Printf("    %-12s %s\n", "Info API:", cfg.Lookup.InfoURL)
	fmt.Printf("    %-12s %s\n", "Vists API:", cfg.Lookup.VistsURL)

	if env := config.EnvSummary(); len(env) > 0 {
		fmt.Println()
		fmt.Println("  Environment:")
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s=%s\n", k, env[k])
		}
	}
}

func presence(s string) string {
	if s == "" {
		return "NOT SET"
	}
	return "set"
}

func sessionStatus(store *session.FileStore) string {
	if _, err := os.Stat(store.Path()); errors.Is(err, os.ErrNotExist) {
		return "none (fresh login on next run)"
	}
	// Load also deletes empty or credential-less files, as the bot itself would.
	sess, err := store.Load()
	switch {
	case err != nil:
		return fmt.Sprintf("CORRUPT (%s)", err)
	case sess == nil:
		return "invalid file removed (fresh login on next run)"
	case sess.LastLogin > 0:
		return fmt.Sprintf("OK (last login %s)", sess.LastLoginTime().Format(time.RFC3339))
	default:
		return "OK"
	}
}

func journalStatus(path string) string {
	j, err := journal.Open(path)
	if err != nil {
		return fmt.Sprintf("OPEN FAILED (%s)", err)
	}
	defer j.Close()
	counts, err := j.Counts(context.Background())
	if err != nil {
		return fmt.Sprintf("QUERY FAILED (%s)", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return fmt.Sprintf("OK (%d entries, %d replied, %d send failures)", total, counts[journal.OutcomeReplied], counts[journal.OutcomeSendFailed])
}

func checkReachable(baseURL string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return fmt.Sprintf("BAD URL (%s)", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Sprintf("UNREACHABLE (%s)", err)
	}
	resp.Body.Close()
	return fmt.Sprintf("OK (HTTP %d)", resp.StatusCode)
}
