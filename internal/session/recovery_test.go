package session

import (
	"testing"

	"resumeflow/internal/errors"
	"resumeflow/internal/kvstore"
	"resumeflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededDiscovery(kv kvstore.Store, threadID string) {
	s := NewDiscoveryStore(kv)
	s.StartSession(threadID, DiscoverySeed{})
	s.AddMessage(agentMsg("What did you build?"))
	s.AddMessage(userMsg("A search engine."))
}

func TestRecoveryWithoutPriorSession(t *testing.T) {
	store := NewDiscoveryStore(kvstore.NewMemoryStore())
	r := NewRecovery[types.DiscoverySession](store)

	assert.Equal(t, PhaseActive, r.Evaluate("t"))
	_, err := r.Resume()
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoSession))
}

func TestRecoveryResume(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	seededDiscovery(kv, "t")

	store := NewDiscoveryStore(kv)
	r := NewRecovery[types.DiscoverySession](store)
	require.Equal(t, PhasePrompting, r.Evaluate("t"))

	resumed, err := r.Resume()
	require.NoError(t, err)
	assert.Len(t, resumed.Messages, 2)
	assert.Equal(t, PhaseActive, r.Phase())
	assert.Equal(t, 1, store.Active().Exchanges)
}

func TestRecoveryStartFresh(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	seededDiscovery(kv, "t")

	store := NewDiscoveryStore(kv)
	r := NewRecovery[types.DiscoverySession](store)
	require.Equal(t, PhasePrompting, r.Evaluate("t"))

	require.NoError(t, r.StartFresh(func(threadID string) {
		store.StartSession(threadID, DiscoverySeed{})
	}))
	assert.Equal(t, PhaseActive, r.Phase())
	assert.Empty(t, store.Active().Messages)
	assert.Nil(t, NewDiscoveryStore(kv).CheckExisting("t"))
}

func TestRecoveryEvaluatesOncePerThread(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	seededDiscovery(kv, "t")

	store := NewDiscoveryStore(kv)
	r := NewRecovery[types.DiscoverySession](store)
	require.Equal(t, PhasePrompting, r.Evaluate("t"))

	_, err := r.Resume()
	require.NoError(t, err)

	// Re-evaluating the same thread keeps the decision.
	assert.Equal(t, PhaseActive, r.Evaluate("t"))

	// A different thread is evaluated, but an active session suppresses the prompt.
	seededDiscovery(kv, "u")
	assert.Equal(t, PhaseActive, r.Evaluate("u"))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "prompting", PhasePrompting.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
