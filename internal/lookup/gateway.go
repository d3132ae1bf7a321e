// Package lookup calls the external account-info and visit-stats APIs.
//
// Calls never return Go errors: every outcome is a typed Result so the inbox
// dispatcher can always render a reply.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	DefaultInfoURL  = "https://glob-info.vercel.app/info?uid="
	DefaultVistsURL = "https://vists-api.vercel.app/ind/"
	DefaultTimeout  = 30 * time.Second

	maxBodyBytes = 1 << 20
	uidToken     = "{uid}"
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/dmbot/internal/lookup")

// Doer is the HTTP capability the gateway needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the gateway endpoints and limits.
// URLs either contain "{uid}" or have the uid appended.
type Config struct {
	InfoURL       string
	VistsURL      string
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables rate limiting
	Burst         int
}

// Gateway issues one outbound request per lookup, with no retries.
type Gateway struct {
	infoURL  string
	vistsURL string
	timeout  time.Duration
	client   Doer
	limiter  *rate.Limiter
}

// New creates a gateway. A nil client uses an http.Client with the configured timeout.
func New(cfg Config, client Doer) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	infoURL := cfg.InfoURL
	if infoURL == "" {
		infoURL = DefaultInfoURL
	}
	vistsURL := cfg.VistsURL
	if vistsURL == "" {
		vistsURL = DefaultVistsURL
	}

	g := &Gateway{
		infoURL:  infoURL,
		vistsURL: vistsURL,
		timeout:  timeout,
		client:   client,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return g
}

// FetchAccountInfo looks up account info for a digits-only uid.
func (g *Gateway) FetchAccountInfo(ctx context.Context, uid string) Result {
	var info AccountInfo
	res := g.fetch(ctx, "lookup.info", buildURL(g.infoURL, uid), uid, &info)
	if res.Kind == Success {
		res.Info = &info
	}
	return res
}

// FetchVisitStats looks up visit stats for a digits-only uid.
func (g *Gateway) FetchVisitStats(ctx context.Context, uid string) Result {
	var stats VisitStats
	res := g.fetch(ctx, "lookup.vists", buildURL(g.vistsURL, uid), uid, &stats)
	if res.Kind == Success {
		res.Visit = &stats
	}
	return res
}

// buildURL injects the uid without escaping (it is pre-validated as digits).
func buildURL(base, uid string) string {
	if strings.Contains(base, uidToken) {
		return strings.ReplaceAll(base, uidToken, uid)
	}
	return base + uid
}

func (g *Gateway) fetch(ctx context.Context, spanName, url, uid string, out any) (res Result) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("lookup.uid", uid))
	defer func() {
		span.SetAttributes(attribute.String("lookup.result", res.Kind.String()))
		if res.Kind != Success {
			span.SetStatus(codes.Error, res.Kind.String())
		}
	}()

	res.UID = uid
	transportErr := func(err error) Result {
		span.RecordError(err)
		return Result{Kind: TransportError, UID: uid, Err: err}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return transportErr(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return transportErr(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return transportErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Result{Kind: APIError, UID: uid, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportErr(fmt.Errorf("read response: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transportErr(fmt.Errorf("parse response: %w", err))
	}
	return Result{Kind: Success, UID: uid}
}
