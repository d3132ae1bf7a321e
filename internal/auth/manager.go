// Package auth owns the bot's login lifecycle against the messaging platform.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/dmbot/internal/platform"
	"github.com/nextlevelbuilder/dmbot/internal/session"
)

// State is a login state machine state.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	ChallengeBlocked // terminal: manual verification required
	LoginFailed      // terminal
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case ChallengeBlocked:
		return "challenge_blocked"
	case LoginFailed:
		return "login_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further login attempt is made from this state.
func (s State) Terminal() bool { return s == ChallengeBlocked || s == LoginFailed }

var (
	ErrChallengeBlocked = errors.New("auth: challenge required, log in from a browser or the app first")
	ErrLoginFailed      = errors.New("auth: login failed")
)

// Manager drives Unauthenticated -> Authenticated | ChallengeBlocked | LoginFailed.
type Manager struct {
	client   platform.Client
	store    session.Store
	username string
	password string

	mu    sync.Mutex
	state State
	err   error
	bound bool
}

// NewManager creates an auth manager.
func NewManager(client platform.Client, store session.Store, username, password string) *Manager {
	return &Manager{
		client:   client,
		store:    store,
		username: username,
		password: password,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether polling may start.
func (m *Manager) Ready() bool { return m.State() == Authenticated }

// Authenticate runs the login state machine once. Calling it again after a
// terminal state returns the same error without touching the network.
func (m *Manager) Authenticate(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state == Authenticated:
		return m.state, nil
	case m.state.Terminal():
		return m.state, m.err
	}

	// Device identity is bound exactly once, before any network call.
	if !m.bound {
		m.client.SetDevice(platform.NewDeviceIdentity())
		m.bound = true
	}

	saved, err := m.store.Load()
	if err != nil {
		return m.fail(LoginFailed, fmt.Errorf("%w: %w", ErrLoginFailed, err))
	}

	if saved != nil {
		if err := m.client.RestoreSession(saved); err != nil {
			slog.Warn("auth: saved session rejected, clearing it", "path", m.store.Path(), "error", err)
			if clearErr := m.store.Clear(); clearErr != nil {
				slog.Warn("auth: failed to clear session", "error", clearErr)
			}
			saved = nil
		}
	}

	if saved != nil {
		slog.Info("auth: logging in with saved session", "path", m.store.Path())
		if _, err := m.client.Login(ctx, m.username, m.password); err != nil {
			return m.loginError(err)
		}
		m.state = Authenticated
		slog.Info("auth: logged in using saved session", "user_id", m.client.SelfID())
		return m.state, nil
	}

	slog.Info("auth: no saved session, performing fresh login")
	sess, err := m.client.Login(ctx, m.username, m.password)
	if err != nil {
		return m.loginError(err)
	}
	if err := m.store.Save(sess); err != nil {
		slog.Warn("auth: failed to save session", "path", m.store.Path(), "error", err)
	} else {
		slog.Info("auth: session saved", "path", m.store.Path())
	}
	m.state = Authenticated
	slog.Info("auth: fresh login success", "user_id", m.client.SelfID())
	return m.state, nil
}

func (m *Manager) loginError(err error) (State, error) {
	if errors.Is(err, platform.ErrChallengeRequired) {
		return m.fail(ChallengeBlocked, fmt.Errorf("%w: %w", ErrChallengeBlocked, err))
	}
	return m.fail(LoginFailed, fmt.Errorf("%w: %w", ErrLoginFailed, err))
}

func (m *Manager) fail(st State, err error) (State, error) {
	m.state = st
	m.err = err
	return st, err
}
