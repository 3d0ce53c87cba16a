package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_StoreAssignsDefaults(t *testing.T) {
	t.Parallel()
	s := NewStore(NewInMemoryBackend(), NewLRUCache(10), NewBruteForceBackend(), nil, nil)

	e, err := s.Store(context.Background(), Entry{AgentID: "a1", Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, Episodic, e.Type)
	assert.Equal(t, SourceConversation, e.Source)
	assert.Equal(t, 1.0, e.DecayFactor)
	assert.Greater(t, e.Importance, 0.0)
	assert.False(t, e.Timestamp.IsZero())
}

func TestStore_StorePreservesExplicitFields(t *testing.T) {
	t.Parallel()
	s := NewStore(NewInMemoryBackend(), NewLRUCache(10), NewBruteForceBackend(), nil, nil)

	e, err := s.Store(context.Background(), Entry{
		AgentID:    "a1",
		Content:    "important fact",
		Type:       Semantic,
		Source:     SourceKnowledge,
		Importance: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, Semantic, e.Type)
	assert.Equal(t, SourceKnowledge, e.Source)
	assert.Equal(t, 0.9, e.Importance)
}

func TestStore_ConsolidateDeletesExpiredEntries(t *testing.T) {
	t.Parallel()
	s := NewStore(NewInMemoryBackend(), nil, nil, nil, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := s.Store(ctx, Entry{AgentID: "a1", Content: "stale", ExpiresAt: &past})
	require.NoError(t, err)

	result, err := s.Consolidate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	entries, err := s.backend.List(ctx, "a1", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ConsolidatePromotesOldLowImportanceEpisodicToSemantic(t *testing.T) {
	t.Parallel()
	s := NewStore(NewInMemoryBackend(), nil, nil, nil, nil)
	ctx := context.Background()

	old := time.Now().Add(-8 * 24 * time.Hour)
	e, err := s.Store(ctx, Entry{
		AgentID:    "a1",
		Content:    "old low-importance note",
		Type:       Episodic,
		Importance: 0.1,
		Timestamp:  old,
	})
	require.NoError(t, err)

	result, err := s.Consolidate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Consolidated)

	got, ok, err := s.backend.Get(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Semantic, got.Type)
	assert.Greater(t, got.Importance, 0.1)
}

func TestStore_ConsolidateLeavesRecentOrImportantEntriesAlone(t *testing.T) {
	t.Parallel()
	s := NewStore(NewInMemoryBackend(), nil, nil, nil, nil)
	ctx := context.Background()

	e, err := s.Store(ctx, Entry{AgentID: "a1", Content: "fresh", Type: Episodic, Importance: 0.1})
	require.NoError(t, err)
	important, err := s.Store(ctx, Entry{
		AgentID:    "a1",
		Content:    "old but important note",
		Type:       Episodic,
		Importance: 0.9,
		Timestamp:  time.Now().Add(-8 * 24 * time.Hour),
	})
	require.NoError(t, err)

	result, err := s.Consolidate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Consolidated)
	assert.Equal(t, 0, result.Deleted)

	got, ok, err := s.backend.Get(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Episodic, got.Type)

	got, ok, err = s.backend.Get(ctx, important.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Episodic, got.Type)
}

func TestStore_GetRecentMemoriesSortsByRequestedField(t *testing.T) {
	t.Parallel()
	s := NewStore(NewInMemoryBackend(), nil, nil, nil, nil)
	ctx := context.Background()

	low, err := s.Store(ctx, Entry{AgentID: "a1", Content: "low", Importance: 0.2})
	require.NoError(t, err)
	high, err := s.Store(ctx, Entry{AgentID: "a1", Content: "high", Importance: 0.9})
	require.NoError(t, err)

	byImportance, err := s.GetRecentMemories(ctx, "a1", 10, false, SortByImportance)
	require.NoError(t, err)
	require.Len(t, byImportance, 2)
	assert.Equal(t, high.ID, byImportance[0].ID)
	assert.Equal(t, low.ID, byImportance[1].ID)

	byTimestamp, err := s.GetRecentMemories(ctx, "a1", 10, false, SortByTimestamp)
	require.NoError(t, err)
	require.Len(t, byTimestamp, 2)
	assert.Equal(t, high.ID, byTimestamp[0].ID) // stored after low, so newest-first
}
