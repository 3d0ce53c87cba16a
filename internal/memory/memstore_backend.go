package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// inMemoryBackend is a concurrency-safe map-based Backend, used for tests
// and for small single-node deployments without a configured database.
type inMemoryBackend struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	summaries map[string]Summary // keyed by agentID+"|"+sessionID
}

func NewInMemoryBackend() Backend {
	return &inMemoryBackend{
		entries:   make(map[string]Entry),
		summaries: make(map[string]Summary),
	}
}

func (b *inMemoryBackend) Insert(_ context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.ID] = e
	return nil
}

func (b *inMemoryBackend) Get(_ context.Context, id string) (Entry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	return e, ok, nil
}

func (b *inMemoryBackend) Update(_ context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.ID] = e
	return nil
}

func (b *inMemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

func (b *inMemoryBackend) DeleteBySession(_ context.Context, agentID, sessionID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, e := range b.entries {
		if e.AgentID == agentID && e.SessionID == sessionID {
			delete(b.entries, id)
			n++
		}
	}
	return n, nil
}

func (b *inMemoryBackend) Clear(_ context.Context, agentID, sessionID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, e := range b.entries {
		if e.AgentID != agentID {
			continue
		}
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		delete(b.entries, id)
		n++
	}
	return n, nil
}

func (b *inMemoryBackend) List(_ context.Context, agentID, sessionID string) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range b.entries {
		if e.AgentID != agentID {
			continue
		}
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (b *inMemoryBackend) Count(_ context.Context, agentID string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, e := range b.entries {
		if e.AgentID == agentID {
			n++
		}
	}
	return n, nil
}

func (b *inMemoryBackend) Stats(_ context.Context, agentID string) (StatsResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := StatsResult{ByType: map[Type]int{}, BySource: map[Source]int{}}
	var sumImportance, sumAccess float64
	for _, e := range b.entries {
		if e.AgentID != agentID {
			continue
		}
		res.Total++
		res.ByType[e.Type]++
		res.BySource[e.Source]++
		sumImportance += e.Importance
		sumAccess += float64(e.AccessCount)
		if res.OldestAt == nil || e.Timestamp.Before(*res.OldestAt) {
			t := e.Timestamp
			res.OldestAt = &t
		}
		if res.NewestAt == nil || e.Timestamp.After(*res.NewestAt) {
			t := e.Timestamp
			res.NewestAt = &t
		}
	}
	if res.Total > 0 {
		res.AvgImportance = sumImportance / float64(res.Total)
		res.AvgAccessCount = sumAccess / float64(res.Total)
	}
	return res, nil
}

func (b *inMemoryBackend) UpsertSummary(_ context.Context, s Summary) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	b.summaries[s.AgentID+"|"+s.SessionID] = s
	return nil
}

func (b *inMemoryBackend) LatestSummary(_ context.Context, agentID, sessionID string) (Summary, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.summaries[agentID+"|"+sessionID]
	return s, ok, nil
}
