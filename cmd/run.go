package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/auth"
	"github.com/nextlevelbuilder/dmbot/internal/bot"
	"github.com/nextlevelbuilder/dmbot/internal/config"
	"github.com/nextlevelbuilder/dmbot/internal/format"
	"github.com/nextlevelbuilder/dmbot/internal/inbox"
	"github.com/nextlevelbuilder/dmbot/internal/journal"
	"github.com/nextlevelbuilder/dmbot/internal/lookup"
	"github.com/nextlevelbuilder/dmbot/internal/platform/bridge"
	"github.com/nextlevelbuilder/dmbot/internal/session"
	"github.com/nextlevelbuilder/dmbot/internal/tracing"
)

func runCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in and answer direct-message commands until stopped",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runBot(once); err != nil {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single poll cycle and exit")
	return cmd
}

func runBot(once bool) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			slog.Error("missing platform credentials; set DMBOT_USERNAME and DMBOT_PASSWORD (or run: dmbot onboard)")
		} else {
			slog.Error("invalid config", "error", err)
		}
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("graceful shutdown initiated", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	client, err := bridge.New(bridge.Config{
		BaseURL:   cfg.Bridge.URL,
		Token:     cfg.Bridge.Token,
		Timeout:   cfg.Bridge.RequestTimeout(),
		UserAgent: cfg.Bridge.UserAgent,
	})
	if err != nil {
		slog.Error("failed to create bridge client", "error", err)
		return err
	}

	b := bot.NewBotContext(bot.Deps{
		Client:    client,
		Sessions:  session.NewFileStore(cfg.SessionPath()),
		Lookup:    newLookupGateway(cfg),
		Formatter: format.New(loc),
		Inbox: inbox.Config{
			ThreadLimit:    cfg.Inbox.ThreadLimit,
			MessageLimit:   cfg.Inbox.MessageLimit,
			SendAck:        cfg.Inbox.SendAck,
			Concurrency:    cfg.Inbox.Concurrency,
			MaxReplyLength: cfg.Inbox.MaxReplyLength,
			WelcomeText:    cfg.Inbox.WelcomeText,
		},
		Username: cfg.Username,
		Password: cfg.Password,
		Journal:  openJournal(cfg),
	})
	defer b.Close()

	drv := &bot.Driver{Bot: b, Interval: cfg.Inbox.Interval()}
	if once {
		drv.MaxCycles = 1
	}

	slog.Info("dmbot starting", "version", Version, "bridge", cfg.Bridge.URL, "session", cfg.SessionPath())
	if err := drv.Run(ctx); err != nil {
		switch {
		case errors.Is(err, auth.ErrChallengeBlocked):
			slog.Error("login blocked by a platform challenge; complete it in the official app, then retry", "error", err)
		case errors.Is(err, session.ErrCorrupt):
			slog.Error("saved session is unreadable; inspect it or run: dmbot session clear", "path", cfg.SessionPath(), "error", err)
		default:
			slog.Error("login failed", "error", err)
		}
		return err
	}
	slog.Info("dmbot stopped")
	return nil
}

func newLookupGateway(cfg *config.Config) *lookup.Gateway {
	return lookup.New(lookup.Config{
		InfoURL:       cfg.Lookup.InfoURL,
		VistsURL:      cfg.Lookup.VistsURL,
		Timeout:       cfg.Lookup.RequestTimeout(),
		RatePerSecond: cfg.Lookup.RatePerSecond,
		Burst:         cfg.Lookup.Burst,
	}, nil)
}

// openJournal returns nil when the journal is disabled or cannot be opened;
// the bot runs without it.
func openJournal(cfg *config.Config) *journal.Journal {
	path := cfg.JournalPath()
	if path == "" {
		return nil
	}
	j, err := journal.Open(path)
	if err != nil {
		slog.Warn("journal disabled", "path", path, "error", err)
		return nil
	}
	slog.Info("journal enabled", "path", path)
	return j
}
