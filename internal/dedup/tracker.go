// Package dedup tracks which messages were handled and which users were
// welcomed during the current process lifetime.
//
// Both sets grow without bound and are never persisted: a restart starts
// empty, so messages still on the first inbox page are seen again.
package dedup

import "sync"

// Tracker holds the processed-message and welcomed-user sets behind one mutex.
// Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	processed map[string]struct{}
	welcomed  map[string]struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		processed: make(map[string]struct{}),
		welcomed:  make(map[string]struct{}),
	}
}

func (t *Tracker) AlreadyProcessed(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.processed[messageID]
	return ok
}

func (t *Tracker) MarkProcessed(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed[messageID] = struct{}{}
}

// TryMarkProcessed marks the message and reports whether this call was the
// first to do so. Check and insert happen under the same lock.
func (t *Tracker) TryMarkProcessed(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.processed[messageID]; ok {
		return false
	}
	t.processed[messageID] = struct{}{}
	return true
}

func (t *Tracker) HasWelcomed(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.welcomed[userID]
	return ok
}

func (t *Tracker) MarkWelcomed(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.welcomed[userID] = struct{}{}
}

// TryMarkWelcomed marks the user and reports whether this call was the first.
func (t *Tracker) TryMarkWelcomed(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.welcomed[userID]; ok {
		return false
	}
	t.welcomed[userID] = struct{}{}
	return true
}

// Stats returns the current set sizes.
func (t *Tracker) Stats() (processed, welcomed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.processed), len(t.welcomed)
}
