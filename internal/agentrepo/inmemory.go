package agentrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

// InMemory is a concurrency-safe fake Repository, used for tests and
// single-node deployments without a configured database.
type InMemory struct {
	mu       sync.RWMutex
	agents   map[string]Agent
	sessions map[string]Session
	messages map[string][]Message // by session id, append order
}

func NewInMemory() *InMemory {
	return &InMemory{
		agents:   make(map[string]Agent),
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
	}
}

func (r *InMemory) CreateAgent(_ context.Context, a Agent) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Status == "" {
		a.Status = StatusIdle
	}
	r.agents[a.ID] = a
	return a, nil
}

func (r *InMemory) UpdateAgent(_ context.Context, a Agent) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.agents[a.ID]
	if !ok || existing.Deleted {
		return Agent{}, runtimeerr.New(runtimeerr.NotFound, "agent not found: "+a.ID)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	r.agents[a.ID] = a
	return a, nil
}

func (r *InMemory) SoftDeleteAgent(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return runtimeerr.New(runtimeerr.NotFound, "agent not found: "+id)
	}
	a.Deleted = true
	a.UpdatedAt = time.Now()
	r.agents[id] = a
	return nil
}

func (r *InMemory) GetAgent(_ context.Context, id string) (Agent, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok || a.Deleted {
		return Agent{}, false, nil
	}
	return a, true, nil
}

func (r *InMemory) ListAgentsByOwner(_ context.Context, ownerID string) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for _, a := range r.agents {
		if a.OwnerID == ownerID && !a.Deleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemory) ListPublicAgents(_ context.Context) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for _, a := range r.agents {
		if a.Public && !a.Deleted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *InMemory) CreateSession(_ context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now()
	s.LastActiveAt = s.CreatedAt
	r.sessions[s.ID] = s
	return s, nil
}

func (r *InMemory) GetSession(_ context.Context, id string) (Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok, nil
}

func (r *InMemory) ListSessionsByAgent(_ context.Context, agentID string) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Session
	for _, s := range r.sessions {
		if s.AgentID == agentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	return out, nil
}

func (r *InMemory) TouchSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return runtimeerr.New(runtimeerr.NotFound, "session not found: "+id)
	}
	s.LastActiveAt = time.Now()
	r.sessions[id] = s
	return nil
}

func (r *InMemory) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.messages, id)
	return nil
}

func (r *InMemory) AppendMessage(_ context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	r.messages[m.SessionID] = append(r.messages[m.SessionID], m)
	return m, nil
}

func (r *InMemory) ListMessages(_ context.Context, sessionID string, limit, offset int) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.messages[sessionID]
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Message, end-offset)
	copy(out, all[offset:end])
	return out, nil
}
