package session

import (
	"slices"
	"time"

	"resumeflow/internal/kvstore"
	"resumeflow/internal/types"
)

// DiscoverySeed carries the data a fresh discovery session starts with.
type DiscoverySeed struct {
	Prompts []types.DiscoveryPrompt
}

// DiscoveryStore persists the discovery interview.
type DiscoveryStore struct {
	*Store[types.DiscoverySession]
	minExchanges int
}

func NewDiscoveryStore(kv kvstore.Store, opts ...Option) *DiscoveryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	hooks := recordHooks[types.DiscoverySession]{
		threadID: func(s *types.DiscoverySession) string { return s.ThreadID },
		resumable: func(s *types.DiscoverySession) bool {
			return !s.Confirmed && (len(s.Messages) > 0 || len(s.Experiences) > 0)
		},
		touch: func(s *types.DiscoverySession, t time.Time) { s.UpdatedAt = t },
	}

	return &DiscoveryStore{
		Store:        newStore(kv, kvstore.KeyDiscoverySessions, hooks, o),
		minExchanges: o.minExchanges,
	}
}

// MinExchanges returns the confirmation threshold.
func (d *DiscoveryStore) MinExchanges() int { return d.minExchanges }

// StartSession replaces any stored session for threadID with an empty one.
func (d *DiscoveryStore) StartSession(threadID string, seed DiscoverySeed) types.DiscoverySession {
	now := d.now()
	return d.start(types.DiscoverySession{
		ThreadID:    threadID,
		Messages:    []types.Message{},
		Experiences: []types.DiscoveredExperience{},
		Prompts:     append([]types.DiscoveryPrompt{}, seed.Prompts...),
		StartedAt:   now,
		UpdatedAt:   now,
	})
}

// AddMessage appends msg; user messages count as exchanges.
func (d *DiscoveryStore) AddMessage(msg types.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = d.now()
	}
	d.update(func(s *types.DiscoverySession) {
		s.Messages = append(slices.Clip(s.Messages), msg)
		if msg.Role == types.RoleUser {
			s.Exchanges++
		}
	})
}

func (d *DiscoveryStore) AddExperience(exp types.DiscoveredExperience) {
	if exp.DiscoveredAt.IsZero() {
		exp.DiscoveredAt = d.now()
	}
	d.update(func(s *types.DiscoverySession) {
		s.Experiences = append(slices.Clip(s.Experiences), exp)
	})
}

func (d *DiscoveryStore) RecordError(msg string) {
	d.update(func(s *types.DiscoverySession) { s.LastError = &msg })
}

func (d *DiscoveryStore) DismissError() {
	d.update(func(s *types.DiscoverySession) { s.LastError = nil })
}

// SyncFromBackend overwrites the conversation with the engine's snapshot.
// Snapshots for another thread are ignored.
func (d *DiscoveryStore) SyncFromBackend(state types.WorkflowState) {
	d.updateThread(state.ThreadID, func(s *types.DiscoverySession) {
		s.Messages = orEmpty(state.DiscoveryMessages)
		s.Experiences = orEmpty(state.DiscoveredExperiences)
		s.Prompts = orEmpty(state.DiscoveryPrompts)
		s.Confirmed = state.DiscoveryConfirmed
		s.Exchanges = state.DiscoveryExchanges
	})
}

func (d *DiscoveryStore) ConfirmDiscovery() {
	d.update(func(s *types.DiscoverySession) { s.Confirmed = true })
}

// CanConfirm reports whether the active session has enough exchanges.
func (d *DiscoveryStore) CanConfirm() bool {
	ok := false
	d.view(func(s *types.DiscoverySession) {
		ok = s != nil && s.Exchanges >= d.minExchanges
	})
	return ok
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return slices.Clone(in)
}
