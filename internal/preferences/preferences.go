// Package preferences keeps the anonymous installation identity, the user's
// stated preferences and the queue of preference-learning events.
package preferences

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/kvstore"

	"github.com/google/uuid"
)

const anonPrefix = "anon_"

// Well-known preference keys. Any other key is stored as given.
const (
	KeyTone   = "tone"
	KeyLength = "length"
	KeyFormat = "format"
)

// Event types recorded while drafting.
const (
	EventSuggestionAccepted = "suggestion_accepted"
	EventSuggestionDeclined = "suggestion_declined"
	EventManualEdit         = "manual_edit"
)

// Event is one preference-learning signal waiting to be shared with the
// engine.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	ThreadID  string            `json:"threadId"`
	Subject   string            `json:"subject,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Store reads and writes preference data. Like the session stores, it never
// fails: storage problems are logged and the in-memory value is used.
type Store struct {
	mu     sync.Mutex
	kv     kvstore.Store
	logger *errors.Logger
	now    func() time.Time
	anonID string
}

func New(kv kvstore.Store, logger *errors.Logger) *Store {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Store{kv: kv, logger: logger, now: time.Now}
}

// AnonymousID returns the persisted installation id, creating it on first
// use. A stored value that is not a valid id is replaced.
func (s *Store) AnonymousID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.anonID != "" {
		return s.anonID
	}

	raw, found, err := s.kv.Get(kvstore.KeyAnonymousID)
	if err != nil {
		s.logger.LogError(err, "Failed to read anonymous id")
	}
	if found && isValidAnonID(string(raw)) {
		s.anonID = string(raw)
		return s.anonID
	}

	s.anonID = anonPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.kv.Set(kvstore.KeyAnonymousID, []byte(s.anonID)); err != nil {
		s.logger.LogError(err, "Failed to persist anonymous id")
	}
	return s.anonID
}

func isValidAnonID(id string) bool {
	rest, ok := strings.CutPrefix(id, anonPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// Preferences returns a copy of the stored preferences.
func (s *Store) Preferences() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPrefs()
}

// Set stores one preference. An empty value removes it.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := s.readPrefs()
	if value == "" {
		delete(prefs, key)
	} else {
		prefs[key] = value
	}
	s.write(kvstore.KeyPreferences, prefs)
}

// Record appends ev to the pending queue, assigning an id and timestamp.
func (s *Store) Record(ev Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	events := append(s.readEvents(), ev)
	s.write(kvstore.KeyPendingEvents, events)
	return ev
}

// Pending returns the queued events, oldest first.
func (s *Store) Pending() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEvents()
}

// Drain returns the queued events and empties the queue.
func (s *Store) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.readEvents()
	if err := s.kv.Delete(kvstore.KeyPendingEvents); err != nil {
		s.logger.LogError(err, "Failed to clear pending preference events")
	}
	return events
}

func (s *Store) readPrefs() map[string]string {
	prefs := map[string]string{}
	s.read(kvstore.KeyPreferences, &prefs)
	if prefs == nil {
		prefs = map[string]string{}
	}
	return prefs
}

func (s *Store) readEvents() []Event {
	var events []Event
	s.read(kvstore.KeyPendingEvents, &events)
	return events
}

func (s *Store) read(key string, out any) {
	raw, found, err := s.kv.Get(key)
	if err != nil {
		s.logger.LogError(err, "Failed to read preference data", "key", key)
		return
	}
	if !found || len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.LogError(
			errors.NewStorageError(errors.ErrCodeStorageCorrupt, "stored preference data is not decodable", err),
			"Ignoring corrupt preference data", "key", key)
	}
}

func (s *Store) write(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.LogError(err, "Failed to encode preference data", "key", key)
		return
	}
	if err := s.kv.Set(key, raw); err != nil {
		s.logger.LogError(err, "Failed to write preference data", "key", key)
	}
}
