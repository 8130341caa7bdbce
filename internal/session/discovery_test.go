package session

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/kvstore"
	"resumeflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func userMsg(text string) types.Message  { return types.Message{Role: types.RoleUser, Content: text} }
func agentMsg(text string) types.Message { return types.Message{Role: types.RoleAgent, Content: text} }

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("storage unavailable")
}
func (failingStore) Set(string, []byte) error { return fmt.Errorf("quota exceeded") }
func (failingStore) Delete(string) error      { return fmt.Errorf("storage unavailable") }
func (failingStore) Close() error             { return nil }

// countingStore counts writes to the wrapped store.
type countingStore struct {
	kvstore.Store
	sets int
}

func (c *countingStore) Set(key string, value []byte) error {
	c.sets++
	return c.Store.Set(key, value)
}

func TestExchangesCountUserMessages(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for run := range 25 {
		t.Run(fmt.Sprintf("sequence_%d", run), func(t *testing.T) {
			store := NewDiscoveryStore(kvstore.NewMemoryStore())
			store.StartSession("thread-1", DiscoverySeed{})

			users := 0
			for i := range rng.IntN(20) {
				if rng.IntN(2) == 0 {
					store.AddMessage(userMsg(fmt.Sprintf("answer %d", i)))
					users++
				} else {
					store.AddMessage(agentMsg(fmt.Sprintf("question %d", i)))
				}
			}

			active := store.Active()
			require.NotNil(t, active)
			assert.Equal(t, users, active.Exchanges)

			counted := 0
			for _, m := range active.Messages {
				if m.Role == types.RoleUser {
					counted++
				}
			}
			assert.Equal(t, counted, active.Exchanges)
		})
	}
}

func TestCanConfirmThreshold(t *testing.T) {
	tests := []struct {
		exchanges int
		want      bool
	}{
		{0, false},
		{1, false},
		{2, false},
		{3, true},
		{4, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("exchanges_%d", tt.exchanges), func(t *testing.T) {
			store := NewDiscoveryStore(kvstore.NewMemoryStore())
			store.StartSession("t", DiscoverySeed{})
			for range tt.exchanges {
				store.AddMessage(userMsg("yes"))
			}
			assert.Equal(t, tt.want, store.CanConfirm())
		})
	}

	t.Run("no active session", func(t *testing.T) {
		assert.False(t, NewDiscoveryStore(kvstore.NewMemoryStore()).CanConfirm())
	})

	t.Run("configured threshold", func(t *testing.T) {
		store := NewDiscoveryStore(kvstore.NewMemoryStore(), WithMinExchanges(5))
		store.StartSession("t", DiscoverySeed{})
		for range 4 {
			store.AddMessage(userMsg("a"))
		}
		assert.False(t, store.CanConfirm())
		store.AddMessage(userMsg("a"))
		assert.True(t, store.CanConfirm())
	})
}

func TestCheckExistingSession(t *testing.T) {
	kv := kvstore.NewMemoryStore()

	writer := NewDiscoveryStore(kv)
	assert.Nil(t, writer.CheckExisting("thread-1"), "no entry")

	writer.StartSession("thread-1", DiscoverySeed{})
	writer.AddMessage(agentMsg("Tell me about a project you led."))

	reader := NewDiscoveryStore(kv)
	existing := reader.CheckExisting("thread-1")
	require.NotNil(t, existing)
	assert.Equal(t, "thread-1", existing.ThreadID)
	assert.Len(t, existing.Messages, 1)
	assert.Equal(t, existing, reader.Existing())
	assert.Nil(t, reader.Active(), "checking must not activate the session")

	writer.ConfirmDiscovery()
	assert.Nil(t, NewDiscoveryStore(kv).CheckExisting("thread-1"), "confirmed entry")
	assert.Nil(t, reader.CheckExisting("other-thread"))
}

func TestClearSessionThenCheck(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewDiscoveryStore(kv)
	store.StartSession("a", DiscoverySeed{})
	store.AddMessage(userMsg("first"))

	other := NewDiscoveryStore(kv)
	other.StartSession("b", DiscoverySeed{})
	other.AddMessage(userMsg("kept"))

	store.ClearSession("a")
	assert.Nil(t, store.Active())
	assert.Nil(t, store.CheckExisting("a"))
	assert.NotNil(t, store.CheckExisting("b"), "other threads are untouched")
}

func TestRoundTripAcrossInstances(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	clock := newClock()

	first := NewDiscoveryStore(kv, WithClock(clock.Now))
	first.StartSession("thread-rt", DiscoverySeed{})
	first.AddMessage(userMsg("I migrated our billing system."))
	first.AddMessage(agentMsg("What was the impact?"))
	first.AddMessage(userMsg("Cut invoice errors by 40%."))
	want := first.Active()

	reloaded := NewDiscoveryStore(kv, WithClock(clock.Now))
	existing := reloaded.CheckExisting("thread-rt")
	require.NotNil(t, existing)
	reloaded.Resume(*existing)

	got := reloaded.Active()
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Exchanges)
	require.Len(t, got.Messages, 3)
	for i := range want.Messages {
		assert.Equal(t, want.Messages[i].Role, got.Messages[i].Role)
		assert.Equal(t, want.Messages[i].Content, got.Messages[i].Content)
		assert.True(t, want.Messages[i].Timestamp.Equal(got.Messages[i].Timestamp))
	}
}

func TestCorruptStorageDegradesToNoSession(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(kvstore.KeyDiscoverySessions, []byte("{definitely not json")))

	var logs bytes.Buffer
	store := NewDiscoveryStore(kv, WithLogger(errors.NewLoggerTo(&logs, 0)))
	assert.Nil(t, store.CheckExisting("thread-1"))
	assert.Contains(t, logs.String(), errors.ErrCodeStorageCorrupt)

	store.StartSession("thread-1", DiscoverySeed{})
	store.AddMessage(userMsg("hello"))
	assert.NotNil(t, NewDiscoveryStore(kv).CheckExisting("thread-1"), "a fresh write replaces the corrupt blob")
}

func TestNullStorageDegradesToNoSession(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(kvstore.KeyDiscoverySessions, []byte("null")))

	store := NewDiscoveryStore(kv)
	assert.Nil(t, store.CheckExisting("thread-1"))

	assert.NotPanics(t, func() {
		store.StartSession("thread-1", DiscoverySeed{})
		store.AddMessage(userMsg("hello"))
		store.ClearSession("thread-2")
	})
	assert.NotNil(t, NewDiscoveryStore(kv).CheckExisting("thread-1"))
}

func TestUnavailableStorageKeepsWorkingInMemory(t *testing.T) {
	store := NewDiscoveryStore(failingStore{})

	assert.Nil(t, store.CheckExisting("thread-1"))
	store.StartSession("thread-1", DiscoverySeed{})
	store.AddMessage(userMsg("one"))
	store.RecordError("network down")

	active := store.Active()
	require.NotNil(t, active)
	assert.Equal(t, 1, active.Exchanges)
	require.NotNil(t, active.LastError)
	assert.Equal(t, "network down", *active.LastError)
}

func TestMutatorsNoOpWithoutActiveSession(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewDiscoveryStore(kv)

	store.AddMessage(userMsg("ignored"))
	store.AddExperience(types.DiscoveredExperience{ID: "e1"})
	store.RecordError("ignored")
	store.ConfirmDiscovery()
	store.SyncFromBackend(types.WorkflowState{DiscoveryExchanges: 9})

	assert.Nil(t, store.Active())
	_, found, err := kv.Get(kvstore.KeyDiscoverySessions)
	require.NoError(t, err)
	assert.False(t, found, "nothing may be written without an active session")
}

func TestMutationsProduceCopies(t *testing.T) {
	clock := newClock()
	store := NewDiscoveryStore(kvstore.NewMemoryStore(), WithClock(clock.Now))
	store.StartSession("t", DiscoverySeed{})
	store.AddMessage(agentMsg("q1"))

	before := store.Active()
	require.NotNil(t, before)
	beforeUpdated := before.UpdatedAt

	store.AddMessage(userMsg("a1"))
	store.AddExperience(types.DiscoveredExperience{ID: "exp-1", Description: "Led migration"})

	assert.Len(t, before.Messages, 1)
	assert.Zero(t, before.Exchanges)
	assert.Empty(t, before.Experiences)
	assert.Equal(t, beforeUpdated, before.UpdatedAt)

	after := store.Active()
	assert.Len(t, after.Messages, 2)
	assert.Len(t, after.Experiences, 1)
	assert.True(t, after.UpdatedAt.After(beforeUpdated))
}

func TestStartSessionOverwrites(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewDiscoveryStore(kv)
	store.StartSession("t", DiscoverySeed{})
	store.AddMessage(userMsg("old"))

	fresh := store.StartSession("t", DiscoverySeed{Prompts: []types.DiscoveryPrompt{{ID: "p1", Question: "Q?"}}})
	assert.Empty(t, fresh.Messages)
	assert.Zero(t, fresh.Exchanges)
	assert.False(t, fresh.Confirmed)
	assert.Len(t, fresh.Prompts, 1)

	raw, _, err := kv.Get(kvstore.KeyDiscoverySessions)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "old")
}

func TestSyncFromBackendOverwrites(t *testing.T) {
	store := NewDiscoveryStore(kvstore.NewMemoryStore())
	store.StartSession("t", DiscoverySeed{})
	store.AddMessage(userMsg("local only"))

	store.SyncFromBackend(types.WorkflowState{
		ThreadID:           "t",
		DiscoveryMessages:  []types.Message{agentMsg("q"), userMsg("a"), agentMsg("q2"), userMsg("a2")},
		DiscoveryConfirmed: false,
		DiscoveryExchanges: 2,
	})

	active := store.Active()
	require.NotNil(t, active)
	assert.Len(t, active.Messages, 4)
	assert.Equal(t, 2, active.Exchanges)
	assert.NotNil(t, active.Experiences, "absent arrays default to empty")
	assert.NotNil(t, active.Prompts)

	store.SyncFromBackend(types.WorkflowState{ThreadID: "another", DiscoveryExchanges: 7})
	assert.Equal(t, 2, store.Active().Exchanges, "snapshots for other threads are ignored")
}

func TestReloadPicksUpOtherWriters(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	a := NewDiscoveryStore(kv)
	a.StartSession("t", DiscoverySeed{})

	b := NewDiscoveryStore(kv)
	b.Resume(*a.Active())
	b.AddMessage(userMsg("from another process"))

	assert.True(t, a.Reload())
	assert.Equal(t, 1, a.Active().Exchanges)
	assert.False(t, NewDiscoveryStore(kv).Reload(), "nothing to reload without an active session")
}

func TestLookupIgnoresResumability(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := NewDiscoveryStore(kv)
	s.StartSession("t", DiscoverySeed{})
	s.ConfirmDiscovery()

	other := NewDiscoveryStore(kv)
	assert.Nil(t, other.CheckExisting("t"))
	rec := other.Lookup("t")
	require.NotNil(t, rec)
	assert.True(t, rec.Confirmed)
	assert.Nil(t, other.Existing(), "lookup does not stage")
	assert.Nil(t, other.Lookup("missing"))
}

func TestSyncForAnotherThreadLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name string
		// run starts a session for "t", syncs a snapshot of another thread
		// and returns the session's UpdatedAt before and after the sync.
		run func(kv kvstore.Store, clock *fakeClock) (before, after time.Time)
	}{
		{
			name: "discovery",
			run: func(kv kvstore.Store, clock *fakeClock) (time.Time, time.Time) {
				store := NewDiscoveryStore(kv, WithClock(clock.Now))
				before := store.StartSession("t", DiscoverySeed{}).UpdatedAt
				store.SyncFromBackend(types.WorkflowState{ThreadID: "another", DiscoveryExchanges: 7})
				return before, store.Active().UpdatedAt
			},
		},
		{
			name: "drafting",
			run: func(kv kvstore.Store, clock *fakeClock) (time.Time, time.Time) {
				store := NewDraftingStore(kv, WithClock(clock.Now))
				before := store.StartSession("t", draftSeed()).UpdatedAt
				store.SyncFromBackend(types.DraftingState{ThreadID: "another", HTMLContent: "<p>other</p>"})
				return before, store.Active().UpdatedAt
			},
		},
		{
			name: "export",
			run: func(kv kvstore.Store, clock *fakeClock) (time.Time, time.Time) {
				store := NewExportStore(kv, WithClock(clock.Now))
				before := store.StartSession("t", types.ReportArtifacts{}).UpdatedAt
				store.SyncFromBackend(types.WorkflowState{ThreadID: "another", ExportCompleted: true})
				return before, store.Active().UpdatedAt
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := &countingStore{Store: kvstore.NewMemoryStore()}
			before, after := tt.run(kv, newClock())
			assert.Equal(t, 1, kv.sets, "only the session start is written")
			assert.Equal(t, before, after)
		})
	}
}
