// Package bridge implements platform.Client against a sidecar HTTP bridge that
// speaks the messaging platform's private protocol on the bot's behalf.
//
// Every response uses the envelope {"ok", "result", "error_code", "description"}.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/dmbot/internal/platform"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "dmbot/1.0 (bridge)"
	maxResponseBytes = 4 << 20

	// codeChallenge is the bridge error code for an interactive challenge.
	codeChallenge = 428
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/dmbot/internal/platform/bridge")

// Config configures the bridge client.
type Config struct {
	BaseURL   string
	Token     string // bearer token for the bridge itself (optional)
	Timeout   time.Duration
	UserAgent string
}

// Client is the HTTP bridge messaging client. Safe for concurrent use.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client

	mu      sync.RWMutex
	device  platform.DeviceIdentity
	session *platform.Session
}

// New creates a bridge client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("bridge: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("bridge: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: ua,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) SetDevice(dev platform.DeviceIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = dev
}

func (c *Client) Device() platform.DeviceIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device
}

// RestoreSession adopts saved cookies and authorization. The bound device
// identity is kept; the saved one is only informational.
func (c *Client) RestoreSession(sess *platform.Session) error {
	if !sess.IsValid() {
		return fmt.Errorf("bridge: session has no credentials")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *sess
	c.session = &cp
	return nil
}

func (c *Client) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.UserID
}

// --- wire types ---

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type loginRequest struct {
	Username string                  `json:"username"`
	Password string                  `json:"password"`
	Device   platform.DeviceIdentity `json:"device"`
	Settings *platform.Session       `json:"settings,omitempty"`
}

type loginResult struct {
	UserID        string            `json:"user_id"`
	Cookies       map[string]string `json:"cookies"`
	Authorization string            `json:"authorization"`
	UserAgent     string            `json:"user_agent"`
}

type wireThread struct {
	ID    string   `json:"id"`
	Title string   `json:"thread_title"`
	Users []string `json:"users"`
}

type wireMessage struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix microseconds
}

type sendRequest struct {
	ThreadIDs []string `json:"thread_ids"`
	Text      string   `json:"text"`
}

// APIError is a non-ok bridge response.
type APIError struct {
	Method      string
	Status      int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge %s: error %d (http %d): %s", e.Method, e.Code, e.Status, e.Description)
}

// --- capability methods ---

// Login confirms credentials with the bridge. When a session was restored, its
// settings are forwarded so the bridge can resume instead of starting over.
func (c *Client) Login(ctx context.Context, username, password string) (*platform.Session, error) {
	c.mu.RLock()
	dev := c.device
	restored := c.session
	c.mu.RUnlock()

	if dev.IsZero() {
		return nil, fmt.Errorf("bridge: device identity not bound")
	}

	body := loginRequest{Username: username, Password: password, Device: dev, Settings: restored}
	raw, err := c.callAPI(ctx, http.MethodPost, "/auth/login", nil, body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isChallenge(apiErr) {
			return nil, fmt.Errorf("%w: %s", platform.ErrChallengeRequired, apiErr.Description)
		}
		return nil, err
	}

	var res loginResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal login result: %w", err)
	}

	sess := &platform.Session{
		Device:        dev,
		UserID:        res.UserID,
		Cookies:       res.Cookies,
		Authorization: res.Authorization,
		UserAgent:     res.UserAgent,
		LastLogin:     time.Now().Unix(),
	}
	if sess.UserAgent == "" {
		sess.UserAgent = c.userAgent
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	cp := *sess
	return &cp, nil
}

func isChallenge(e *APIError) bool {
	return e.Code == codeChallenge || strings.Contains(strings.ToLower(e.Description), "challenge_required")
}

func (c *Client) ListThreads(ctx context.Context, limit int) ([]platform.Thread, error) {
	q := url.Values{"amount": {strconv.Itoa(limit)}}
	raw, err := c.callAPI(ctx, http.MethodGet, "/direct/threads", q, nil)
	if err != nil {
		return nil, err
	}
	var wire []wireThread
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal threads: %w", err)
	}
	threads := make([]platform.Thread, 0, len(wire))
	for _, t := range wire {
		threads = append(threads, platform.Thread{ID: t.ID, Title: t.Title, UserIDs: t.Users})
	}
	return threads, nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]platform.Message, error) {
	q := url.Values{"amount": {strconv.Itoa(limit)}}
	raw, err := c.callAPI(ctx, http.MethodGet, "/direct/threads/"+url.PathEscape(threadID)+"/messages", q, nil)
	if err != nil {
		return nil, err
	}
	var wire []wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("bridge: unmarshal messages: %w", err)
	}
	msgs := make([]platform.Message, 0, len(wire))
	for _, m := range wire {
		tid := m.ThreadID
		if tid == "" {
			tid = threadID
		}
		msgs = append(msgs, platform.Message{
			ID:        m.ID,
			ThreadID:  tid,
			UserID:    m.UserID,
			Text:      m.Text,
			Timestamp: time.UnixMicro(m.Timestamp),
		})
	}
	return msgs, nil
}

func (c *Client) SendText(ctx context.Context, threadIDs []string, text string) error {
	if text == "" {
		return fmt.Errorf("bridge: message text cannot be empty")
	}
	if len(threadIDs) == 0 {
		return fmt.Errorf("bridge: no thread ids")
	}
	_, err := c.callAPI(ctx, http.MethodPost, "/direct/send", nil, sendRequest{ThreadIDs: threadIDs, Text: text})
	return err
}

// --- transport ---

func (c *Client) callAPI(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "bridge"+path)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method))

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, reqBody != nil)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("bridge %s: %w", path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respData, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respData, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Method: path, Status: resp.StatusCode, Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if !apiResp.OK {
		code := apiResp.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		apiErr := &APIError{Method: path, Status: resp.StatusCode, Code: code, Description: apiResp.Description}
		span.SetStatus(codes.Error, apiErr.Description)
		return nil, apiErr
	}

	return apiResp.Result, nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Bridge-Token", c.token)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.device.IsZero() {
		req.Header.Set("X-Device-ID", c.device.DeviceID)
	}
	if c.session == nil {
		return
	}
	if c.session.Authorization != "" {
		req.Header.Set("Authorization", c.session.Authorization)
	}
	if len(c.session.Cookies) > 0 {
		req.Header.Set("Cookie", cookieHeader(c.session.Cookies))
	}
}

// cookieHeader renders cookies in a stable order.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for k := range cookies {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+cookies[k])
	}
	return strings.Join(parts, "; ")
}

var _ platform.Client = (*Client)(nil)
