// Package kvstore provides the small string-keyed byte store that session
// state, preferences and the anonymous identity persist through.
package kvstore

import (
	"context"
	"fmt"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"
)

// Storage keys shared by every backend. They are persisted on disk, so they
// must never change.
const (
	KeyDiscoverySessions = "resume_agent_discovery_session"
	KeyDraftingSessions  = "resume_agent_drafting_session"
	KeyExportSessions    = "resume_agent_export_session"
	KeyPreferences       = "resume_agent_preferences"
	KeyPendingEvents     = "resume_agent_pending_preference_events"
	KeyAnonymousID       = "resume_agent_anonymous_id"
)

// Store is a synchronous key-value store.
// Get reports found=false with a nil error for a missing key.
type Store interface {
	Get(key string) (value []byte, found bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Watcher is implemented by stores that can report writes made by other
// processes.
type Watcher interface {
	// Watch calls fn after the underlying data changes. It blocks until ctx
	// is done.
	Watch(ctx context.Context, fn func()) error
}

// AsWatcher returns the Watcher behind s, looking through decorators.
func AsWatcher(s Store) (Watcher, bool) {
	for s != nil {
		if w, ok := s.(Watcher); ok {
			return w, true
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return nil, false
		}
		s = u.Unwrap()
	}
	return nil, false
}

// Open creates the backend selected by cfg.
func Open(cfg config.StorageConfig, logger *errors.Logger) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		return NewFileStore(cfg.Path, cfg.WatchDebounce, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown storage backend %q", cfg.Backend), nil)
	}
}
