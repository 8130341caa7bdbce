package session

import (
	"slices"
	"time"

	"resumeflow/internal/kvstore"
	"resumeflow/internal/types"
)

// DraftingSeed carries the draft a fresh drafting session starts with.
type DraftingSeed struct {
	HTMLContent    string
	Suggestions    []types.Suggestion
	Versions       []types.DraftVersion
	CurrentVersion string
}

// DraftingStore persists the drafting editor state.
type DraftingStore struct {
	*Store[types.DraftingSession]
}

func NewDraftingStore(kv kvstore.Store, opts ...Option) *DraftingStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	hooks := recordHooks[types.DraftingSession]{
		threadID: func(s *types.DraftingSession) string { return s.ThreadID },
		resumable: func(s *types.DraftingSession) bool {
			return !s.Approved && (len(s.Suggestions) > 0 || len(s.Versions) > 0)
		},
		touch: func(s *types.DraftingSession, t time.Time) { s.UpdatedAt = t },
	}
	return &DraftingStore{Store: newStore(kv, kvstore.KeyDraftingSessions, hooks, o)}
}

func (d *DraftingStore) StartSession(threadID string, seed DraftingSeed) types.DraftingSession {
	now := d.now()
	return d.start(types.DraftingSession{
		ThreadID:       threadID,
		HTMLContent:    seed.HTMLContent,
		Suggestions:    orEmpty(seed.Suggestions),
		Versions:       orEmpty(seed.Versions),
		CurrentVersion: seed.CurrentVersion,
		StartedAt:      now,
		UpdatedAt:      now,
	})
}

// AcceptSuggestion marks the suggestion with id accepted.
func (d *DraftingStore) AcceptSuggestion(id string) {
	d.resolve(id, types.SuggestionAccepted)
}

// DeclineSuggestion marks the suggestion with id declined.
func (d *DraftingStore) DeclineSuggestion(id string) {
	d.resolve(id, types.SuggestionDeclined)
}

func (d *DraftingStore) resolve(id string, status types.SuggestionStatus) {
	now := d.now()
	d.update(func(s *types.DraftingSession) {
		i := slices.IndexFunc(s.Suggestions, func(sg types.Suggestion) bool { return sg.ID == id })
		if i < 0 {
			return
		}
		s.Suggestions = slices.Clone(s.Suggestions)
		s.Suggestions[i].Status = status
		s.Suggestions[i].ResolvedAt = &now
	})
}

func (d *DraftingStore) AddVersion(v types.DraftVersion) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = d.now()
	}
	d.update(func(s *types.DraftingSession) {
		s.Versions = append(slices.Clip(s.Versions), v)
	})
}

func (d *DraftingStore) UpdateContent(html string) {
	d.update(func(s *types.DraftingSession) { s.HTMLContent = html })
}

// SetCurrentVersion is reserved for the restore path.
func (d *DraftingStore) SetCurrentVersion(version string) {
	d.update(func(s *types.DraftingSession) { s.CurrentVersion = version })
}

func (d *DraftingStore) RecordError(msg string) {
	d.update(func(s *types.DraftingSession) { s.LastError = &msg })
}

func (d *DraftingStore) DismissError() {
	d.update(func(s *types.DraftingSession) { s.LastError = nil })
}

func (d *DraftingStore) MarkApproved() {
	d.update(func(s *types.DraftingSession) { s.Approved = true })
}

// SyncFromBackend overwrites the editor state with the engine's copy.
func (d *DraftingStore) SyncFromBackend(state types.DraftingState) {
	d.updateThread(state.ThreadID, func(s *types.DraftingSession) {
		s.HTMLContent = state.HTMLContent
		s.Suggestions = orEmpty(state.Suggestions)
		s.Versions = orEmpty(state.Versions)
		s.CurrentVersion = state.CurrentVersion
		s.Approved = state.Approved
	})
}

// PendingCount returns the number of unresolved suggestions.
func (d *DraftingStore) PendingCount() int {
	n := 0
	d.view(func(s *types.DraftingSession) {
		if s == nil {
			return
		}
		for _, sg := range s.Suggestions {
			if sg.Status == types.SuggestionPending {
				n++
			}
		}
	})
	return n
}

// CanApprove reports whether a session is active with nothing pending.
func (d *DraftingStore) CanApprove() bool {
	return d.Active() != nil && d.PendingCount() == 0
}
