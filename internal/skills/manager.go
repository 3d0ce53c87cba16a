package skills

import (
	"context"
	"sync"
	"time"
)

// manager caches registered skills by id and dispatches executions,
// following the same RWMutex caching idiom used elsewhere in the platform
// for registries that are mutated rarely and read often.
type manager struct {
	mu     sync.RWMutex
	byID   map[string]Skill
}

// NewRegistry returns a basic in-memory skill registry.
func NewRegistry() Registry {
	return &manager{byID: make(map[string]Skill)}
}

func (m *manager) Register(s Skill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.Metadata().ID] = s
}

func (m *manager) Get(id string) (Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

func (m *manager) List() []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Metadata, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s.Metadata())
	}
	return out
}

func (m *manager) Execute(ctx context.Context, ec ExecContext, id string, input map[string]any) Result {
	start := time.Now()
	meta := ResultMeta{ExecutionID: ec.ExecutionID, SkillID: id, StartTime: start}

	s, ok := m.Get(id)
	if !ok {
		meta.EndTime = time.Now()
		meta.Duration = meta.EndTime.Sub(start)
		return Result{Success: false, Error: "skill not found: " + id, Meta: meta}
	}
	meta.SkillName = s.Metadata().Name

	out, err := s.Execute(ctx, ec, input)
	meta.EndTime = time.Now()
	meta.Duration = meta.EndTime.Sub(start)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Meta: meta}
	}
	return Result{Success: true, Output: out, Meta: meta}
}
