// Package session persists per-stage workflow sessions (discovery, drafting,
// export) in a key-value store, one record per thread id.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/kvstore"
)

// Option configures a stage store.
type Option func(*options)

type options struct {
	now          func() time.Time
	logger       *errors.Logger
	minExchanges int
}

func defaultOptions() options {
	return options{
		now:          time.Now,
		logger:       errors.NewNopLogger(),
		minExchanges: 3,
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger storage failures are reported to.
func WithLogger(logger *errors.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMinExchanges sets the number of user answers required before discovery
// can be confirmed.
func WithMinExchanges(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minExchanges = n
		}
	}
}

// recordHooks adapts a stage record type to the generic store.
type recordHooks[S any] struct {
	threadID  func(*S) string
	resumable func(*S) bool
	touch     func(*S, time.Time)
}

// Store holds the active session of one stage and its durable copy.
//
// Reads and writes never fail from the caller's point of view: a storage
// error or an undecodable document is logged and treated as "no sessions".
// Every mutation replaces the active record with an updated copy, so values
// returned earlier are never modified afterwards.
type Store[S any] struct {
	mu       sync.Mutex
	kv       kvstore.Store
	key      string
	hooks    recordHooks[S]
	active   *S
	existing *S
	now      func() time.Time
	logger   *errors.Logger
}

func newStore[S any](kv kvstore.Store, key string, hooks recordHooks[S], o options) *Store[S] {
	return &Store[S]{
		kv:     kv,
		key:    key,
		hooks:  hooks,
		now:    o.now,
		logger: o.logger.With("storage_key", key),
	}
}

// CheckExisting returns the stored session for threadID when it can be
// resumed, and stages it for a recovery prompt. It returns nil otherwise.
func (s *Store[S]) CheckExisting(threadID string) *S {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.existing = nil
	rec, ok := s.readAll()[threadID]
	if !ok || !s.hooks.resumable(&rec) {
		return nil
	}
	s.existing = &rec
	return ptrCopy(s.existing)
}

// Existing returns the session staged by CheckExisting, or nil.
func (s *Store[S]) Existing() *S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptrCopy(s.existing)
}

// Lookup returns the stored session for threadID whether or not it can be
// resumed. Nothing is staged.
func (s *Store[S]) Lookup(threadID string) *S {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.readAll()[threadID]
	if !ok {
		return nil
	}
	return &rec
}

// Active returns the in-memory session, or nil when none is active.
func (s *Store[S]) Active() *S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptrCopy(s.active)
}

// Resume adopts rec as the active session without touching storage.
func (s *Store[S]) Resume(rec S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = &rec
	s.existing = nil
}

// ClearSession removes the record for threadID and drops any in-memory
// session for it.
func (s *Store[S]) ClearSession(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.readAll()
	if _, ok := all[threadID]; ok {
		delete(all, threadID)
		s.writeAll(all)
	}
	if s.active != nil && s.hooks.threadID(s.active) == threadID {
		s.active = nil
	}
	if s.existing != nil && s.hooks.threadID(s.existing) == threadID {
		s.existing = nil
	}
}

// Reload re-reads the active session from storage, picking up writes made
// by other processes. It reports whether the active session changed.
func (s *Store[S]) Reload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return false
	}
	rec, ok := s.readAll()[s.hooks.threadID(s.active)]
	if !ok {
		return false
	}
	s.active = &rec
	return true
}

// start writes rec over any stored record for its thread and makes it active.
func (s *Store[S]) start(rec S) S {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.readAll()
	all[s.hooks.threadID(&rec)] = rec
	s.writeAll(all)
	s.active = &rec
	s.existing = nil
	return rec
}

// update applies fn to a copy of the active session, stamps it, persists it
// and makes it active. It is a no-op when no session is active.
func (s *Store[S]) update(fn func(*S)) {
	s.updateThread("", fn)
}

// updateThread is update restricted to the session of threadID. An empty
// threadID matches any active session. A mismatch leaves both the session
// and storage untouched.
func (s *Store[S]) updateThread(threadID string, fn func(*S)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		s.logger.Debug("Ignoring session update without an active session")
		return
	}
	if active := s.hooks.threadID(s.active); threadID != "" && threadID != active {
		s.logger.Debug("Ignoring snapshot for another thread", "thread_id", threadID, "active_thread_id", active)
		return
	}

	next := *s.active
	fn(&next)
	s.hooks.touch(&next, s.now())

	all := s.readAll()
	all[s.hooks.threadID(&next)] = next
	s.writeAll(all)
	s.active = &next
}

// view runs fn against the active session under the lock.
func (s *Store[S]) view(fn func(*S)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.active)
}

func (s *Store[S]) readAll() map[string]S {
	all := map[string]S{}

	raw, found, err := s.kv.Get(s.key)
	if err != nil {
		s.logger.LogError(err, "Failed to read sessions, continuing without them")
		return all
	}
	if !found || len(raw) == 0 {
		return all
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		s.logger.LogError(
			errors.NewStorageError(errors.ErrCodeStorageCorrupt, "stored sessions are not decodable", err),
			"Ignoring corrupt session storage")
		return map[string]S{}
	}
	if all == nil {
		// A stored "null" decodes to a nil map.
		return map[string]S{}
	}
	return all
}

func (s *Store[S]) writeAll(all map[string]S) {
	raw, err := json.Marshal(all)
	if err != nil {
		s.logger.LogError(err, "Failed to encode sessions")
		return
	}
	if err := s.kv.Set(s.key, raw); err != nil {
		s.logger.LogError(err, "Failed to write sessions, keeping in-memory state only")
	}
}

func ptrCopy[S any](p *S) *S {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
