package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/dmbot/internal/platform"
	"github.com/nextlevelbuilder/dmbot/internal/platform/platformtest"
	"github.com/nextlevelbuilder/dmbot/internal/session"
)

func newStore(t *testing.T) *session.FileStore {
	t.Helper()
	return session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
}

func TestAuthenticate_FreshLoginSavesSession(t *testing.T) {
	client := &platformtest.Client{Self: "bot-1"}
	store := newStore(t)
	m := NewManager(client, store, "bot", "pw")

	st, err := m.Authenticate(context.Background())
	if err != nil || st != Authenticated {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
	if !m.Ready() {
		t.Error("Ready should be true")
	}
	if client.DeviceBinds() != 1 {
		t.Errorf("device bound %d times, want 1", client.DeviceBinds())
	}

	saved, err := store.Load()
	if err != nil || saved == nil {
		t.Fatalf("session should be persisted, got %v, %v", saved, err)
	}
	if saved.Device != client.Device() {
		t.Error("persisted session should carry the bound device")
	}
}

func TestAuthenticate_SavedSessionReusedNotResaved(t *testing.T) {
	client := &platformtest.Client{}
	store := newStore(t)
	saved := &platform.Session{Authorization: "Bearer saved", UserID: "bot-1"}
	if err := store.Save(saved); err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(store.Path())

	m := NewManager(client, store, "bot", "pw")
	st, err := m.Authenticate(context.Background())
	if err != nil || st != Authenticated {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
	if r := client.Restored(); r == nil || r.Authorization != "Bearer saved" {
		t.Errorf("saved session not restored: %+v", r)
	}
	if got := client.Logins(); len(got) != 1 || got[0] != "bot" {
		t.Errorf("credentials must still be confirmed, logins = %v", got)
	}

	after, _ := os.Stat(store.Path())
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("restored session must not be re-saved")
	}
	reloaded, _ := store.Load()
	if reloaded.Authorization != "Bearer saved" {
		t.Errorf("session content changed: %+v", reloaded)
	}
}

func TestAuthenticate_EmptySessionFallsBackToFreshLogin(t *testing.T) {
	client := &platformtest.Client{}
	store := newStore(t)
	os.WriteFile(store.Path(), []byte("  \n"), 0600)

	m := NewManager(client, store, "bot", "pw")
	if st, err := m.Authenticate(context.Background()); st != Authenticated || err != nil {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
	if client.Restored() != nil {
		t.Error("empty session must not be restored")
	}
	if sess, _ := store.Load(); sess == nil {
		t.Error("fresh login should have written a new session")
	}
}

func TestAuthenticate_CorruptSessionIsFatal(t *testing.T) {
	client := &platformtest.Client{}
	store := newStore(t)
	os.WriteFile(store.Path(), []byte("{broken"), 0600)

	m := NewManager(client, store, "bot", "pw")
	st, err := m.Authenticate(context.Background())
	if st != LoginFailed {
		t.Errorf("state = %v, want login_failed", st)
	}
	if !errors.Is(err, session.ErrCorrupt) || !errors.Is(err, ErrLoginFailed) {
		t.Errorf("error should wrap ErrCorrupt and ErrLoginFailed: %v", err)
	}
	if len(client.Logins()) != 0 {
		t.Error("no login must be attempted after a parse failure")
	}
}

func TestAuthenticate_RejectedRestoreClearsSession(t *testing.T) {
	client := &platformtest.Client{RestoreErr: errors.New("bad settings")}
	store := newStore(t)
	store.Save(&platform.Session{Authorization: "old"})

	m := NewManager(client, store, "bot", "pw")
	if st, err := m.Authenticate(context.Background()); st != Authenticated || err != nil {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
	sess, _ := store.Load()
	if sess == nil || sess.Authorization == "old" {
		t.Errorf("stale session should be replaced by the fresh one, got %+v", sess)
	}
}

func TestAuthenticate_Challenge(t *testing.T) {
	client := &platformtest.Client{LoginErr: platform.ErrChallengeRequired}
	m := NewManager(client, newStore(t), "bot", "pw")

	st, err := m.Authenticate(context.Background())
	if st != ChallengeBlocked || !errors.Is(err, ErrChallengeBlocked) {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
	if m.Ready() {
		t.Error("must not be ready after a challenge")
	}

	// Terminal: a second call must not retry.
	st2, err2 := m.Authenticate(context.Background())
	if st2 != ChallengeBlocked || !errors.Is(err2, ErrChallengeBlocked) {
		t.Errorf("second Authenticate = %v, %v", st2, err2)
	}
	if n := len(client.Logins()); n != 1 {
		t.Errorf("logins = %d, want 1 (no retry)", n)
	}
	if client.DeviceBinds() != 1 {
		t.Errorf("device must not be regenerated, binds = %d", client.DeviceBinds())
	}
}

func TestAuthenticate_ChallengeWithSavedSession(t *testing.T) {
	client := &platformtest.Client{LoginErr: platform.ErrChallengeRequired}
	store := newStore(t)
	store.Save(&platform.Session{Authorization: "saved"})

	st, _ := NewManager(client, store, "bot", "pw").Authenticate(context.Background())
	if st != ChallengeBlocked {
		t.Errorf("state = %v, want challenge_blocked", st)
	}
}

func TestAuthenticate_LoginFailed(t *testing.T) {
	client := &platformtest.Client{LoginErr: errors.New("bad password")}
	store := newStore(t)
	m := NewManager(client, store, "bot", "pw")

	st, err := m.Authenticate(context.Background())
	if st != LoginFailed || !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
	if sess, _ := store.Load(); sess != nil {
		t.Error("nothing should be persisted on failure")
	}
}

type failingStore struct{ session.Store }

func (failingStore) Load() (*platform.Session, error) { return nil, nil }
func (failingStore) Save(*platform.Session) error     { return errors.New("disk full") }
func (failingStore) Path() string                     { return "/dev/null/session.json" }

func TestAuthenticate_SaveFailureStillAuthenticated(t *testing.T) {
	m := NewManager(&platformtest.Client{}, failingStore{}, "bot", "pw")
	if st, err := m.Authenticate(context.Background()); st != Authenticated || err != nil {
		t.Fatalf("Authenticate = %v, %v", st, err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		st   State
		want string
	}{
		{Unauthenticated, "unauthenticated"},
		{Authenticated, "authenticated"},
		{ChallengeBlocked, "challenge_blocked"},
		{LoginFailed, "login_failed"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if Authenticated.Terminal() || !LoginFailed.Terminal() || !ChallengeBlocked.Terminal() {
		t.Error("Terminal() mismatch")
	}
}
