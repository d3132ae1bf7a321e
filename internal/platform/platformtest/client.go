// Package platformtest provides a scripted in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/dmbot/internal/platform"
)

// Sent records one SendText call.
type Sent struct {
	ThreadIDs []string
	Text      string
}

// Client is a fake messaging client. Zero value is usable; fields may be set
// before use to script login and inbox behaviour.
type Client struct {
	mu sync.Mutex

	// LoginErr is returned by Login when non-nil.
	LoginErr error
	// LoginSession is returned by Login on success (a default one is built if nil).
	LoginSession *platform.Session
	// RestoreErr is returned by RestoreSession.
	RestoreErr error
	// ListThreadsErr fails ListThreads.
	ListThreadsErr error
	// ListMessagesErr fails ListMessages for the given thread ids.
	ListMessagesErr map[string]error
	// SendErr fails SendText when the text equals a key ("*" matches everything).
	SendErr map[string]error
	// Self is the authenticated user id.
	Self string

	threads  []platform.Thread
	messages map[string][]platform.Message

	device      platform.DeviceIdentity
	deviceBinds int
	restored    *platform.Session
	logins      []string
	sent        []Sent
	loggedIn    bool
}

// AddThread registers a thread with its participants.
func (c *Client) AddThread(id string, users ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads = append(c.threads, platform.Thread{ID: id, UserIDs: users})
}

// SetMessages replaces the message page returned for a thread.
func (c *Client) SetMessages(threadID string, msgs ...platform.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages == nil {
		c.messages = make(map[string][]platform.Message)
	}
	for i := range msgs {
		msgs[i].ThreadID = threadID
	}
	c.messages[threadID] = msgs
}

func (c *Client) SetDevice(dev platform.DeviceIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = dev
	c.deviceBinds++
}

func (c *Client) Device() platform.DeviceIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *Client) RestoreSession(sess *platform.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RestoreErr != nil {
		return c.RestoreErr
	}
	c.restored = sess
	return nil
}

func (c *Client) Login(_ context.Context, username, password string) (*platform.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins = append(c.logins, username)
	if c.device.IsZero() {
		return nil, fmt.Errorf("platformtest: login before device bound")
	}
	if c.LoginErr != nil {
		return nil, c.LoginErr
	}
	c.loggedIn = true
	if c.LoginSession != nil {
		return c.LoginSession, nil
	}
	return &platform.Session{
		Device:        c.device,
		UserID:        c.Self,
		Authorization: "Bearer test-" + username,
	}, nil
}

func (c *Client) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Self
}

func (c *Client) ListThreads(_ context.Context, limit int) ([]platform.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListThreadsErr != nil {
		return nil, c.ListThreadsErr
	}
	out := c.threads
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]platform.Thread(nil), out...), nil
}

func (c *Client) ListMessages(_ context.Context, threadID string, limit int) ([]platform.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ListMessagesErr[threadID]; err != nil {
		return nil, err
	}
	out := c.messages[threadID]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]platform.Message(nil), out...), nil
}

func (c *Client) SendText(_ context.Context, threadIDs []string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.SendErr[text]; ok {
		return err
	}
	if err, ok := c.SendErr["*"]; ok {
		return err
	}
	c.sent = append(c.sent, Sent{ThreadIDs: append([]string(nil), threadIDs...), Text: text})
	return nil
}

// Sent returns a copy of every successful SendText call.
func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Restored returns the session passed to RestoreSession.
func (c *Client) Restored() *platform.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// Logins returns the usernames Login was called with.
func (c *Client) Logins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.logins...)
}

// DeviceBinds counts SetDevice calls.
func (c *Client) DeviceBinds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceBinds
}

var _ platform.Client = (*Client)(nil)
