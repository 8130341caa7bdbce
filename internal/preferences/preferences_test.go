package preferences

import (
	"testing"

	"resumeflow/internal/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymousIDIsStable(t *testing.T) {
	kv := kvstore.NewMemoryStore()

	id := New(kv, nil).AnonymousID()
	assert.True(t, isValidAnonID(id), id)
	assert.Equal(t, id, New(kv, nil).AnonymousID(), "reused across instances")

	raw, found, err := kv.Get(kvstore.KeyAnonymousID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, string(raw))
}

func TestAnonymousIDReplacesInvalidValue(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(kvstore.KeyAnonymousID, []byte("not-an-id")))

	id := New(kv, nil).AnonymousID()
	assert.NotEqual(t, "not-an-id", id)
	assert.True(t, isValidAnonID(id))
}

func TestPreferences(t *testing.T) {
	s := New(kvstore.NewMemoryStore(), nil)
	s.Set(KeyTone, "confident")
	s.Set(KeyLength, "one-page")
	s.Set(KeyLength, "")

	assert.Equal(t, map[string]string{KeyTone: "confident"}, s.Preferences())

	prefs := s.Preferences()
	prefs[KeyTone] = "casual"
	assert.Equal(t, "confident", s.Preferences()[KeyTone], "returned map is a copy")
}

func TestEventsQueue(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := New(kv, nil)

	first := s.Record(Event{Type: EventSuggestionAccepted, ThreadID: "t", Subject: "s1"})
	s.Record(Event{Type: EventSuggestionDeclined, ThreadID: "t", Subject: "s2"})
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	pending := New(kv, nil).Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "s1", pending[0].Subject)

	drained := s.Drain()
	assert.Len(t, drained, 2)
	assert.Empty(t, s.Pending())
}

func TestCorruptDataDegrades(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(kvstore.KeyPreferences, []byte("{")))
	require.NoError(t, kv.Set(kvstore.KeyPendingEvents, []byte("[")))

	s := New(kv, nil)
	assert.Empty(t, s.Preferences())
	assert.Empty(t, s.Pending())

	s.Record(Event{Type: EventManualEdit})
	assert.Len(t, s.Pending(), 1)
}
