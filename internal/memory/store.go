package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/embedding"
	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

// Store is the MemoryStore component: typed, time-decayed memories with
// lexical, semantic, and hybrid retrieval.
type Store struct {
	backend  Backend
	cache    Cache
	vector   VectorBackend
	embedder embedding.Provider
	bus      *eventbus.Bus
	weights  RankingWeights

	defaultThreshold float64
	defaultLimit     int
}

// NewStore wires the memory component's collaborators.
func NewStore(backend Backend, cache Cache, vector VectorBackend, embedder embedding.Provider, bus *eventbus.Bus) *Store {
	return &Store{
		backend:          backend,
		cache:            cache,
		vector:           vector,
		embedder:         embedder,
		bus:              bus,
		weights:          DefaultRankingWeights(),
		defaultThreshold: 0.7,
		defaultLimit:     10,
	}
}

// SetRankingWeights overrides the default Search ranking weights.
func (s *Store) SetRankingWeights(w RankingWeights) { s.weights = w }

func (s *Store) emit(typ eventbus.Type, agentID, sessionID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(eventbus.Event{
		Type: typ, Timestamp: time.Now().UnixMilli(), Payload: payload,
		Meta: eventbus.Metadata{AgentID: agentID, SessionID: sessionID},
	})
}

// Store assigns an id and timestamps if absent, computes an embedding and
// importance when absent, persists the row, invalidates caches, and emits
// memory.stored.
func (s *Store) Store(ctx context.Context, partial Entry) (Entry, error) {
	e := partial
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.LastAccessedAt.IsZero() {
		e.LastAccessedAt = e.Timestamp
	}
	if e.DecayFactor == 0 {
		e.DecayFactor = 1.0
	}
	if e.Type == "" {
		e.Type = Episodic
	}
	if e.Source == "" {
		e.Source = SourceConversation
	}
	if len(e.Embedding) == 0 && s.embedder != nil && strings.TrimSpace(e.Content) != "" {
		vecs, err := s.embedder.Embed(ctx, []string{e.Content})
		if err == nil && len(vecs) == 1 {
			e.Embedding = vecs[0]
			e.EmbeddingModel = "default"
		}
	}
	if e.Importance == 0 {
		e.Importance = computeImportance(e)
	}

	if err := s.backend.Insert(ctx, e); err != nil {
		return Entry{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "store memory", err)
	}
	if len(e.Embedding) > 0 && s.vector != nil {
		_ = s.vector.Upsert(ctx, e.AgentID, e.ID, e.Embedding)
	}
	if s.cache != nil {
		s.cache.InvalidateAgent(e.AgentID)
		if e.SessionID != "" {
			s.cache.InvalidateSession(e.AgentID, e.SessionID)
		}
	}
	s.emit(eventbus.MemoryStored, e.AgentID, e.SessionID, e.ID)
	return e, nil
}

// computeImportance applies the default importance heuristic.
func computeImportance(e Entry) float64 {
	v := 0.5
	if e.Type == Semantic {
		v += 0.2
	}
	if e.Source == SourceUser {
		v += 0.1
	}
	if tags, ok := e.Metadata["tags"]; ok {
		if arr, ok := tags.([]string); ok && len(arr) > 0 {
			v += 0.1
		} else if arr, ok := tags.([]any); ok && len(arr) > 0 {
			v += 0.1
		}
	}
	if len(e.Content) > 500 {
		v += 0.1
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// StoreBatch stores each entry in order, short-circuiting with no side
// effects on empty input.
func (s *Store) StoreBatch(ctx context.Context, partials []Entry) ([]Entry, error) {
	if len(partials) == 0 {
		return nil, nil
	}
	out := make([]Entry, 0, len(partials))
	for _, p := range partials {
		e, err := s.Store(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Retrieve looks up a memory by id, bumping its access bookkeeping.
func (s *Store) Retrieve(ctx context.Context, id string) (Entry, error) {
	if s.cache != nil {
		if e, ok := s.cache.Get(id); ok {
			e.AccessCount++
			e.LastAccessedAt = time.Now()
			_ = s.backend.Update(ctx, e)
			s.cache.Put(e)
			s.emit(eventbus.MemoryRetrieved, e.AgentID, e.SessionID, e.ID)
			return e, nil
		}
	}
	e, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return Entry{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "retrieve memory", err)
	}
	if !ok {
		return Entry{}, runtimeerr.New(runtimeerr.NotFound, "memory not found: "+id)
	}
	e.AccessCount++
	e.LastAccessedAt = time.Now()
	if err := s.backend.Update(ctx, e); err != nil {
		return Entry{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "update access bookkeeping", err)
	}
	if s.cache != nil {
		s.cache.Put(e)
	}
	s.emit(eventbus.MemoryRetrieved, e.AgentID, e.SessionID, e.ID)
	return e, nil
}

func isExpired(e Entry, now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// Delete removes a memory and its vector row.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "lookup before delete", err)
	}
	if !ok {
		return nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "delete memory", err)
	}
	if s.vector != nil {
		_ = s.vector.Delete(ctx, e.AgentID, id)
	}
	if s.cache != nil {
		s.cache.InvalidateAgent(e.AgentID)
	}
	s.emit(eventbus.MemoryDeleted, e.AgentID, e.SessionID, id)
	return nil
}

func (s *Store) DeleteBySession(ctx context.Context, agentID, sessionID string) (int, error) {
	var ids []string
	if s.vector != nil {
		if entries, err := s.backend.List(ctx, agentID, sessionID); err == nil {
			for _, e := range entries {
				ids = append(ids, e.ID)
			}
		}
	}
	n, err := s.backend.DeleteBySession(ctx, agentID, sessionID)
	if err != nil {
		return 0, runtimeerr.Wrap(runtimeerr.MemoryBackend, "delete by session", err)
	}
	for _, id := range ids {
		_ = s.vector.Delete(ctx, agentID, id)
	}
	if s.cache != nil {
		s.cache.InvalidateSession(agentID, sessionID)
	}
	s.emit(eventbus.MemoryDeleted, agentID, sessionID, fmt.Sprintf("%d entries", n))
	return n, nil
}

func (s *Store) Clear(ctx context.Context, agentID, sessionID string) (int, error) {
	var ids []string
	if s.vector != nil {
		if entries, err := s.backend.List(ctx, agentID, sessionID); err == nil {
			for _, e := range entries {
				ids = append(ids, e.ID)
			}
		}
	}
	n, err := s.backend.Clear(ctx, agentID, sessionID)
	if err != nil {
		return 0, runtimeerr.Wrap(runtimeerr.MemoryBackend, "clear memories", err)
	}
	for _, id := range ids {
		_ = s.vector.Delete(ctx, agentID, id)
	}
	if s.cache != nil {
		if sessionID != "" {
			s.cache.InvalidateSession(agentID, sessionID)
		} else {
			s.cache.InvalidateAgent(agentID)
		}
	}
	s.emit(eventbus.MemoryDeleted, agentID, sessionID, fmt.Sprintf("%d entries", n))
	return n, nil
}

func (s *Store) Count(ctx context.Context, agentID string) (int, error) {
	n, err := s.backend.Count(ctx, agentID)
	if err != nil {
		return 0, runtimeerr.Wrap(runtimeerr.MemoryBackend, "count memories", err)
	}
	return n, nil
}

func (s *Store) GetStats(ctx context.Context, agentID string) (StatsResult, error) {
	res, err := s.backend.Stats(ctx, agentID)
	if err != nil {
		return StatsResult{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "memory stats", err)
	}
	return res, nil
}

// UpdateImportance overwrites a memory's importance score.
func (s *Store) UpdateImportance(ctx context.Context, id string, value float64) error {
	e, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "lookup before importance update", err)
	}
	if !ok {
		return runtimeerr.New(runtimeerr.NotFound, "memory not found: "+id)
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	e.Importance = value
	if err := s.backend.Update(ctx, e); err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "update importance", err)
	}
	if s.cache != nil {
		s.cache.Put(e)
	}
	return nil
}

// StoreMessage is a convenience wrapper producing an episodic conversation
// memory from a chat turn.
func (s *Store) StoreMessage(ctx context.Context, agentID, sessionID, role, content, userID string) (Entry, error) {
	return s.Store(ctx, Entry{
		AgentID:   agentID,
		SessionID: sessionID,
		UserID:    userID,
		Content:   content,
		Type:      Episodic,
		Source:    SourceConversation,
		Metadata:  map[string]any{"role": role},
	})
}

// RecentSortBy selects the ordering GetRecentMemories applies before
// truncating to limit.
type RecentSortBy string

const (
	SortByTimestamp   RecentSortBy = "timestamp"
	SortByImportance  RecentSortBy = "importance"
	SortByAccessCount RecentSortBy = "accessCount"
)

// GetRecentMemories returns up to limit memories ordered by sortBy
// (defaulting to newest-first by timestamp), hiding expired entries by
// default.
func (s *Store) GetRecentMemories(ctx context.Context, agentID string, limit int, includeExpired bool, sortBy RecentSortBy) ([]Entry, error) {
	all, err := s.backend.List(ctx, agentID, "")
	if err != nil {
		return nil, runtimeerr.Wrap(runtimeerr.MemoryBackend, "list memories", err)
	}
	now := time.Now()
	filtered := make([]Entry, 0, len(all))
	for _, e := range all {
		if !includeExpired && isExpired(e, now) {
			continue
		}
		filtered = append(filtered, e)
	}

	switch sortBy {
	case SortByImportance:
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Importance > filtered[j].Importance })
	case SortByAccessCount:
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].AccessCount > filtered[j].AccessCount })
	default:
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.After(filtered[j].Timestamp) })
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}
