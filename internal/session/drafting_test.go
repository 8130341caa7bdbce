package session

import (
	"testing"

	"resumeflow/internal/kvstore"
	"resumeflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftSeed() DraftingSeed {
	return DraftingSeed{
		HTMLContent: "<p>Draft</p>",
		Suggestions: []types.Suggestion{
			{ID: "s1", Status: types.SuggestionPending, ProposedText: "Led a team of 6"},
			{ID: "s2", Status: types.SuggestionPending, ProposedText: "Reduced costs 20%"},
		},
		Versions:       []types.DraftVersion{{Version: "1.0", Trigger: types.TriggerInitial}},
		CurrentVersion: "1.0",
	}
}

func TestDraftingSuggestionResolution(t *testing.T) {
	clock := newClock()
	store := NewDraftingStore(kvstore.NewMemoryStore(), WithClock(clock.Now))
	store.StartSession("t", draftSeed())
	before := store.Active()

	assert.Equal(t, 2, store.PendingCount())
	assert.False(t, store.CanApprove())

	store.AcceptSuggestion("s1")
	assert.Equal(t, 1, store.PendingCount())

	store.DeclineSuggestion("s2")
	assert.Equal(t, 0, store.PendingCount())
	assert.True(t, store.CanApprove())

	after := store.Active()
	assert.Equal(t, types.SuggestionAccepted, after.Suggestions[0].Status)
	assert.Equal(t, types.SuggestionDeclined, after.Suggestions[1].Status)
	require.NotNil(t, after.Suggestions[0].ResolvedAt)

	assert.Equal(t, types.SuggestionPending, before.Suggestions[0].Status, "earlier copies are not mutated")
	assert.Nil(t, before.Suggestions[0].ResolvedAt)

	store.AcceptSuggestion("unknown")
	assert.Equal(t, 0, store.PendingCount())
}

func TestDraftingVersionsAndApproval(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewDraftingStore(kv)
	store.StartSession("t", draftSeed())

	store.AddVersion(types.DraftVersion{Version: "1.1", Trigger: types.TriggerEdit, HTMLContent: "<p>v2</p>"})
	store.UpdateContent("<p>v2</p>")
	store.SetCurrentVersion("1.1")

	active := store.Active()
	assert.Len(t, active.Versions, 2)
	assert.Equal(t, "1.1", active.CurrentVersion)
	assert.False(t, active.Versions[1].CreatedAt.IsZero())

	assert.NotNil(t, NewDraftingStore(kv).CheckExisting("t"), "unapproved draft with versions is resumable")

	store.MarkApproved()
	assert.Nil(t, NewDraftingStore(kv).CheckExisting("t"))
}

func TestDraftingSyncFromBackend(t *testing.T) {
	store := NewDraftingStore(kvstore.NewMemoryStore())
	store.StartSession("t", draftSeed())

	store.SyncFromBackend(types.DraftingState{
		ThreadID:       "t",
		HTMLContent:    "<p>server</p>",
		CurrentVersion: "2.0",
		Approved:       true,
	})

	active := store.Active()
	assert.Equal(t, "<p>server</p>", active.HTMLContent)
	assert.Equal(t, "2.0", active.CurrentVersion)
	assert.True(t, active.Approved)
	assert.NotNil(t, active.Suggestions)
	assert.Empty(t, active.Suggestions)
}

func TestDraftingNoActiveSession(t *testing.T) {
	store := NewDraftingStore(kvstore.NewMemoryStore())
	store.AcceptSuggestion("s1")
	store.MarkApproved()
	assert.Zero(t, store.PendingCount())
	assert.False(t, store.CanApprove())
	assert.Nil(t, store.Active())
}
