// Package inbox runs one poll cycle over the bot's direct-message threads:
// dedup by message id, welcome unknown senders once, and answer lookup commands.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/dmbot/internal/command"
	"github.com/nextlevelbuilder/dmbot/internal/dedup"
	"github.com/nextlevelbuilder/dmbot/internal/format"
	"github.com/nextlevelbuilder/dmbot/internal/journal"
	"github.com/nextlevelbuilder/dmbot/internal/lookup"
	"github.com/nextlevelbuilder/dmbot/internal/platform"
)

const (
	DefaultThreadLimit  = 10
	DefaultMessageLimit = 5

	InfoAckText  = "⏳ Please wait while I fetch the data..."
	VistsAckText = "⏳ Fetching VISTS data, please wait..."

	previewWidth = 60
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/dmbot/internal/inbox")

// Lookup is the subset of the lookup gateway the dispatcher calls.
type Lookup interface {
	FetchAccountInfo(ctx context.Context, uid string) lookup.Result
	FetchVisitStats(ctx context.Context, uid string) lookup.Result
}

// Recorder receives one entry per handled message. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Config tunes a poll cycle.
type Config struct {
	ThreadLimit    int
	MessageLimit   int
	SendAck        bool
	Concurrency    int // concurrent lookups per cycle; <= 1 is sequential
	MaxReplyLength int // bytes per sent message; 0 uses format.DefaultMaxLength
	WelcomeText    string
}

// Report summarizes one poll cycle.
type Report struct {
	Threads    int // threads listed
	Messages   int // messages seen
	Skipped    int // already processed or authored by the bot
	Welcomed   int
	Dispatched int // lookup commands handled
	Failures   int // per-thread or per-message failures
}

// Dispatcher runs poll cycles. It is safe to call PollOnce from one goroutine at a time.
type Dispatcher struct {
	client    platform.Client
	tracker   *dedup.Tracker
	lookup    Lookup
	formatter *format.Formatter
	recorder  Recorder
	cfg       Config
}

// New creates a dispatcher. Zero config fields take their defaults.
func New(client platform.Client, tracker *dedup.Tracker, lk Lookup, f *format.Formatter, cfg Config) *Dispatcher {
	if cfg.ThreadLimit <= 0 {
		cfg.ThreadLimit = DefaultThreadLimit
	}
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = DefaultMessageLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.WelcomeText == "" {
		cfg.WelcomeText = command.Usage()
	}
	if f == nil {
		f = format.New(nil)
	}
	return &Dispatcher{
		client:    client,
		tracker:   tracker,
		lookup:    lk,
		formatter: f,
		cfg:       cfg,
	}
}

// SetRecorder attaches a journal. Nil disables recording.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// PollOnce runs a single cycle. The returned error is only for a failed thread
// listing; everything below that is logged, counted in the report and contained.
func (d *Dispatcher) PollOnce(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "inbox.poll")
	defer span.End()

	var rep Report
	threads, err := d.client.ListThreads(ctx, d.cfg.ThreadLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list threads")
		return rep, fmt.Errorf("list threads: %w", err)
	}
	rep.Threads = len(threads)

	var mu sync.Mutex // guards rep once lookups run concurrently
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)

	self := d.client.SelfID()
	for _, th := range threads {
		d.pollThread(ctx, th, self, &rep, &mu, &g)
	}
	g.Wait()

	span.SetAttributes(
		attribute.Int("inbox.threads", rep.Threads),
		attribute.Int("inbox.messages", rep.Messages),
		attribute.Int("inbox.dispatched", rep.Dispatched),
		attribute.Int("inbox.failures", rep.Failures),
	)
	return rep, nil
}

// pollThread handles one thread's page. A panic anywhere in it is logged and
// counted as a failure so the remaining threads are still served.
func (d *Dispatcher) pollThread(ctx context.Context, th platform.Thread, self string, rep *Report, mu *sync.Mutex, g *errgroup.Group) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("inbox: thread handling panicked", "thread_id", th.ID, "panic", r)
			mu.Lock()
			rep.Failures++
			mu.Unlock()
		}
	}()

	msgs, err := d.client.ListMessages(ctx, th.ID, d.cfg.MessageLimit)
	if err != nil {
		slog.Warn("inbox: list messages failed", "thread_id", th.ID, "error", err)
		mu.Lock()
		rep.Failures++
		mu.Unlock()
		return
	}
	// pages come newest first
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })

	for _, m := range msgs {
		if m.ThreadID == "" {
			m.ThreadID = th.ID
		}
		mu.Lock()
		rep.Messages++
		mu.Unlock()

		// mark before handling: a failed or slow reply is never retried
		if !d.tracker.TryMarkProcessed(m.ID) {
			mu.Lock()
			rep.Skipped++
			mu.Unlock()
			continue
		}
		if self != "" && m.UserID == self {
			mu.Lock()
			rep.Skipped++
			mu.Unlock()
			continue
		}

		cmd := command.Parse(m.Text)
		if !cmd.Recognized() {
			welcomed, ok := d.safeWelcome(ctx, m)
			mu.Lock()
			if welcomed {
				rep.Welcomed++
			}
			if !ok {
				rep.Failures++
			}
			mu.Unlock()
			continue
		}

		slog.Info("inbox: command received",
			"thread_id", m.ThreadID,
			"message_id", m.ID,
			"sender_id", m.UserID,
			"command", cmd.Kind.String(),
			"uid", cmd.UID,
		)
		msg := m
		run := func() error {
			ok := d.safeDispatch(ctx, msg, cmd)
			mu.Lock()
			rep.Dispatched++
			if !ok {
				rep.Failures++
			}
			mu.Unlock()
			return nil
		}
		if d.cfg.Concurrency <= 1 {
			run()
		} else {
			g.Go(run)
		}
	}
}

// safeWelcome sends the welcome text if the sender has not had it yet.
// ok is false when sending failed or handling panicked.
func (d *Dispatcher) safeWelcome(ctx context.Context, m platform.Message) (welcomed, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("inbox: panic handling message", "message_id", m.ID, "panic", r)
			ok = false
		}
	}()

	if !d.tracker.TryMarkWelcomed(m.UserID) {
		slog.Debug("inbox: ignoring unrecognized message",
			"message_id", m.ID, "sender_id", m.UserID, "text", format.Preview(m.Text, previewWidth))
		return false, true
	}

	entry := journal.Entry{MessageID: m.ID, ThreadID: m.ThreadID, SenderID: m.UserID, Outcome: journal.OutcomeWelcome}
	if err := d.send(ctx, m.ThreadID, d.cfg.WelcomeText); err != nil {
		slog.Warn("inbox: welcome send failed", "thread_id", m.ThreadID, "sender_id", m.UserID, "error", err)
		entry.Outcome = journal.OutcomeSendFailed
		entry.Detail = err.Error()
		d.record(ctx, entry)
		return true, false
	}
	slog.Info("inbox: welcomed sender", "thread_id", m.ThreadID, "sender_id", m.UserID)
	d.record(ctx, entry)
	return true, true
}

// safeDispatch answers one lookup command. It returns false when the reply
// could not be sent or handling panicked.
func (d *Dispatcher) safeDispatch(ctx context.Context, m platform.Message, cmd command.Command) (ok bool) {
	ctx, span := tracer.Start(ctx, "inbox.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("inbox.command", cmd.Kind.String()),
		attribute.String("inbox.message_id", m.ID),
	)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("inbox: panic handling message", "message_id", m.ID, "panic", r)
			span.SetStatus(codes.Error, "panic")
			ok = false
		}
	}()

	if d.cfg.SendAck {
		ack := InfoAckText
		if cmd.Kind == command.Vists {
			ack = VistsAckText
		}
		if err := d.send(ctx, m.ThreadID, ack); err != nil {
			slog.Warn("inbox: ack send failed", "thread_id", m.ThreadID, "message_id", m.ID, "error", err)
		}
	}

	var res lookup.Result
	var reply string
	switch cmd.Kind {
	case command.Info:
		res = d.lookup.FetchAccountInfo(ctx, cmd.UID)
		reply = d.formatter.Info(res)
	case command.Vists:
		res = d.lookup.FetchVisitStats(ctx, cmd.UID)
		reply = d.formatter.Vists(res)
	default:
		return true
	}

	entry := journal.Entry{
		MessageID: m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.UserID,
		Command:   cmd.Kind.String(),
		UID:       cmd.UID,
		Outcome:   outcomeOf(res),
	}
	switch res.Kind {
	case lookup.APIError:
		entry.Detail = fmt.Sprintf("status %d", res.Status)
		slog.Warn("inbox: lookup api error", "uid", cmd.UID, "command", cmd.Kind.String(), "status", res.Status)
	case lookup.TransportError:
		if res.Err != nil {
			entry.Detail = res.Err.Error()
		}
		slog.Warn("inbox: lookup failed", "uid", cmd.UID, "command", cmd.Kind.String(), "error", res.Err)
	}

	ok = true
	if err := d.send(ctx, m.ThreadID, reply); err != nil {
		// marks stay: the message is not retried
		slog.Warn("inbox: reply send failed", "thread_id", m.ThreadID, "message_id", m.ID, "error", err)
		span.RecordError(err)
		entry.Outcome = journal.OutcomeSendFailed
		entry.Detail = err.Error()
		ok = false
	} else {
		slog.Info("inbox: replied", "thread_id", m.ThreadID, "message_id", m.ID, "result", res.Kind.String())
	}
	d.record(ctx, entry)
	return ok
}

// send delivers text to one thread, split to the platform's length limit.
func (d *Dispatcher) send(ctx context.Context, threadID, text string) error {
	for _, chunk := range format.Chunk(text, d.cfg.MaxReplyLength) {
		if err := d.client.SendText(ctx, []string{threadID}, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) record(ctx context.Context, e journal.Entry) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(ctx, e); err != nil {
		slog.Warn("inbox: journal record failed", "message_id", e.MessageID, "error", err)
	}
}

func outcomeOf(res lookup.Result) journal.Outcome {
	switch res.Kind {
	case lookup.APIError:
		return journal.OutcomeAPIError
	case lookup.TransportError:
		return journal.OutcomeTransportError
	default:
		return journal.OutcomeReplied
	}
}
