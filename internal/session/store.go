// Package session persists the bot's platform authentication state between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/dmbot/internal/platform"
)

// ErrCorrupt is returned by Load when the stored blob exists but cannot be parsed.
var ErrCorrupt = errors.New("session: corrupt session file")

// Store loads, saves and clears a persisted session.
type Store interface {
	// Load returns (nil, nil) when no usable session exists.
	Load() (*platform.Session, error)
	Save(sess *platform.Session) error
	Clear() error
	Path() string
}

// FileStore keeps the session as a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load reads the session file. An empty or credential-less file is deleted and
// reported as absent; a file that is not valid JSON yields ErrCorrupt.
func (s *FileStore) Load() (*platform.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove empty session: %w", err)
		}
		slog.Warn("session: empty session file deleted", "path", s.path)
		return nil, nil
	}

	var sess platform.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	if !sess.IsValid() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove invalid session: %w", err)
		}
		slog.Warn("session: session without credentials deleted", "path", s.path)
		return nil, nil
	}

	return &sess, nil
}

// Save writes the session atomically: temp file in the same directory, fsync,
// then rename over the previous file.
func (s *FileStore) Save(sess *platform.Session) error {
	if sess == nil {
		return fmt.Errorf("session: nil session")
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
