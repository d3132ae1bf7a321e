// Package bot wires the components into one BotContext and runs the poll loop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/dmbot/internal/auth"
	"github.com/nextlevelbuilder/dmbot/internal/dedup"
	"github.com/nextlevelbuilder/dmbot/internal/format"
	"github.com/nextlevelbuilder/dmbot/internal/inbox"
	"github.com/nextlevelbuilder/dmbot/internal/journal"
	"github.com/nextlevelbuilder/dmbot/internal/platform"
	"github.com/nextlevelbuilder/dmbot/internal/session"
)

const (
	DefaultInterval     = time.Second
	DefaultErrorBackoff = 5 * time.Second
)

// BotContext owns every piece of per-process state. Nothing is global.
type BotContext struct {
	Client     platform.Client
	Sessions   session.Store
	Tracker    *dedup.Tracker
	Auth       *auth.Manager
	Dispatcher *inbox.Dispatcher
	Journal    *journal.Journal // nil when disabled
}

// Deps are the collaborators NewBotContext assembles.
type Deps struct {
	Client   platform.Client
	Sessions session.Store
	Lookup   inbox.Lookup
	Inbox    inbox.Config
	Username string
	Password string

	Formatter *format.Formatter
	Journal   *journal.Journal
}

// NewBotContext builds the auth manager, tracker and dispatcher around deps.
func NewBotContext(deps Deps) *BotContext {
	tracker := dedup.New()
	d := inbox.New(deps.Client, tracker, deps.Lookup, deps.Formatter, deps.Inbox)
	if deps.Journal != nil {
		d.SetRecorder(deps.Journal)
	}
	return &BotContext{
		Client:     deps.Client,
		Sessions:   deps.Sessions,
		Tracker:    tracker,
		Auth:       auth.NewManager(deps.Client, deps.Sessions, deps.Username, deps.Password),
		Dispatcher: d,
		Journal:    deps.Journal,
	}
}

// Close releases resources held by the context.
func (b *BotContext) Close() error {
	if b.Journal != nil {
		return b.Journal.Close()
	}
	return nil
}

// Driver runs poll cycles one after another until stopped.
type Driver struct {
	Bot          *BotContext
	Interval     time.Duration // delay between cycles
	ErrorBackoff time.Duration // delay after a failed cycle

	// Sleep waits for d or until ctx is done. Defaults to a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnCycle, if set, is called after every cycle.
	OnCycle func(cycle int, rep inbox.Report, err error)

	// MaxCycles stops the loop after that many cycles; 0 means run until ctx is done.
	MaxCycles int
}

// Run authenticates, then polls until ctx is cancelled or MaxCycles is reached.
// It returns a non-nil error only when authentication does not succeed; polling
// never terminates the process. Cancellation stops new cycles, while a cycle
// already running completes.
func (d *Driver) Run(ctx context.Context) error {
	state, err := d.Bot.Auth.Authenticate(ctx)
	if err != nil {
		return err
	}
	if state != auth.Authenticated {
		return fmt.Errorf("bot: authentication ended in state %s", state)
	}

	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	backoff := d.ErrorBackoff
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	slog.Info("bot: polling started", "interval", interval, "user_id", d.Bot.Client.SelfID())
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			slog.Info("bot: polling stopped (context)", "cycles", cycle-1)
			return nil
		}

		rep, err := d.pollOnce(context.WithoutCancel(ctx))
		if err != nil {
			slog.Warn("bot: poll cycle failed", "cycle", cycle, "error", err)
		} else {
			slog.Debug("bot: poll cycle done",
				"cycle", cycle,
				"threads", rep.Threads,
				"messages", rep.Messages,
				"skipped", rep.Skipped,
				"welcomed", rep.Welcomed,
				"dispatched", rep.Dispatched,
				"failures", rep.Failures,
			)
		}
		if d.OnCycle != nil {
			d.OnCycle(cycle, rep, err)
		}

		if d.MaxCycles > 0 && cycle >= d.MaxCycles {
			slog.Info("bot: polling finished", "cycles", cycle)
			return nil
		}

		wait := interval
		if err != nil {
			wait = backoff
		}
		if err := sleep(ctx, wait); err != nil {
			slog.Info("bot: polling stopped (context)", "cycles", cycle)
			return nil
		}
	}
}

// pollOnce runs one cycle and turns a panic into a cycle error.
func (d *Driver) pollOnce(ctx context.Context) (rep inbox.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bot: poll cycle panicked: %v", r)
		}
	}()
	return d.Bot.Dispatcher.PollOnce(ctx)
}

// SleepContext sleeps for d, returning ctx.Err() early if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsFatal reports whether err is one of the terminal startup conditions.
func IsFatal(err error) bool {
	return errors.Is(err, auth.ErrChallengeBlocked) ||
		errors.Is(err, auth.ErrLoginFailed) ||
		errors.Is(err, session.ErrCorrupt)
}
