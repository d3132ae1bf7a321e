// Package platform defines the messaging-platform capability the bot talks to.
// The platform's wire protocol is opaque here: concrete clients (see bridge)
// implement Client and the rest of the bot only depends on this package.
package platform

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrChallengeRequired is returned by Login when the platform demands an
// interactive identity verification the bot cannot complete on its own.
var ErrChallengeRequired = errors.New("platform: challenge required")

// Client is the messaging capability used by the auth manager and the inbox dispatcher.
type Client interface {
	// SetDevice binds the device identifiers used for every subsequent call.
	SetDevice(dev DeviceIdentity)

	// Device returns the bound device identity (zero value if none).
	Device() DeviceIdentity

	// RestoreSession loads previously persisted authentication state.
	RestoreSession(sess *Session) error

	// Login confirms credentials and returns the resulting session state.
	// Returns ErrChallengeRequired (possibly wrapped) when a challenge is demanded.
	Login(ctx context.Context, username, password string) (*Session, error)

	// SelfID returns the authenticated account's user id ("" before login).
	SelfID() string

	// ListThreads returns up to limit most-recent threads.
	ListThreads(ctx context.Context, limit int) ([]Thread, error)

	// ListMessages returns up to limit most-recent messages of a thread.
	ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error)

	// SendText posts text into the given threads.
	SendText(ctx context.Context, threadIDs []string, text string) error
}

// DeviceIdentity is the set of stable identifiers presented to the platform.
// Generated once per process and never regenerated mid-run.
type DeviceIdentity struct {
	UUID            string `json:"uuid"`
	PhoneID         string `json:"phone_id"`
	ClientSessionID string `json:"client_session_id"`
	AdvertisingID   string `json:"advertising_id"`
	DeviceID        string `json:"device_id"`
}

// NewDeviceIdentity generates a fresh random identity.
func NewDeviceIdentity() DeviceIdentity {
	return DeviceIdentity{
		UUID:            uuid.NewString(),
		PhoneID:         uuid.NewString(),
		ClientSessionID: uuid.NewString(),
		AdvertisingID:   uuid.NewString(),
		DeviceID:        "android-" + randomHex(8),
	}
}

// IsZero reports whether no identifiers are set.
func (d DeviceIdentity) IsZero() bool { return d == DeviceIdentity{} }

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Session is the serializable authentication state (settings blob).
type Session struct {
	Device        DeviceIdentity    `json:"uuids"`
	UserID        string            `json:"user_id,omitempty"`
	Cookies       map[string]string `json:"cookies,omitempty"`
	Authorization string            `json:"authorization,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	LastLogin     int64             `json:"last_login,omitempty"`
}

// IsValid checks the session carries something the platform can authenticate with.
func (s *Session) IsValid() bool {
	if s == nil {
		return false
	}
	return len(s.Cookies) > 0 || s.Authorization != ""
}

// LastLoginTime returns LastLogin as a time (zero if unset).
func (s *Session) LastLoginTime() time.Time {
	if s == nil || s.LastLogin == 0 {
		return time.Time{}
	}
	return time.Unix(s.LastLogin, 0)
}

// Thread is a conversation with its participants.
type Thread struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	UserIDs []string `json:"users"`
}

// Message is a single immutable message observed in a thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasText reports whether the message carries a non-blank text body.
func (m Message) HasText() bool {
	return strings.TrimSpace(m.Text) != ""
}
