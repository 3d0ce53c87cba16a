package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/memory"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

// Config tunes the manager's concurrency and lifecycle behavior.
type Config struct {
	IdleTTL         time.Duration
	SweepInterval   time.Duration
	LockTimeout     time.Duration
	MaxIterations   int
	ToolConcurrency int
}

func DefaultConfig() Config {
	return Config{
		IdleTTL:         30 * time.Minute,
		SweepInterval:   60 * time.Second,
		LockTimeout:     60 * time.Second,
		MaxIterations:   10,
		ToolConcurrency: 4,
	}
}

// Manager owns all live Runtime instances and is the single entry point
// for Chat, ChatStream, and ExecuteSkill.
type Manager struct {
	mu       sync.RWMutex
	runtimes map[string]*Runtime

	cfg        Config
	llmFactory *llm.Factory
	memory     *memory.Store
	baseTools  tools.Registry
	baseSkills skills.Registry
	bus        *eventbus.Bus

	stopSweep chan struct{}
}

func NewManager(cfg Config, llmFactory *llm.Factory, mem *memory.Store, baseTools tools.Registry, baseSkills skills.Registry, bus *eventbus.Bus) *Manager {
	return &Manager{
		runtimes:   make(map[string]*Runtime),
		cfg:        cfg,
		llmFactory: llmFactory,
		memory:     mem,
		baseTools:  baseTools,
		baseSkills: baseSkills,
		bus:        bus,
		stopSweep:  make(chan struct{}),
	}
}

// StartSweeper launches the idle-eviction background loop.
func (m *Manager) StartSweeper(ctx context.Context) {
	go m.sweepLoop(ctx)
}

func (m *Manager) StopSweeper() { close(m.stopSweep) }

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	now := time.Now()
	m.mu.RLock()
	candidates := make([]*Runtime, 0, len(m.runtimes))
	for _, r := range m.runtimes {
		if now.Sub(r.LastUsedAt()) > m.cfg.IdleTTL {
			candidates = append(candidates, r)
		}
	}
	m.mu.RUnlock()

	for _, r := range candidates {
		if !r.lock.TryAcquire() {
			continue // busy; leave it for the next sweep
		}
		m.destroyLocked(r)
		r.lock.Release()
	}
}

func (m *Manager) destroyLocked(r *Runtime) {
	m.mu.Lock()
	delete(m.runtimes, r.ID)
	m.mu.Unlock()
	m.emit(eventbus.AgentDestroyed, r.Agent.ID, "", r.ID)
}

// InitializeRuntime builds a fresh Runtime for agent, loading the tools and
// skills its configuration names.
func (m *Manager) InitializeRuntime(ctx context.Context, agent agentrepo.Agent) (*Runtime, error) {
	r := &Runtime{
		ID:        uuid.NewString(),
		Agent:     agent,
		state:     StateInitializing,
		lock:      newFlightLock(),
		createdAt: time.Now(),
	}
	r.touch()

	r.tools = m.resolveTools(agent.Config.EnabledTools)
	r.skills = m.resolveSkills(agent.Config.EnabledSkills)

	r.setState(StateReady)
	m.mu.Lock()
	m.runtimes[r.ID] = r
	m.mu.Unlock()

	m.emit(eventbus.AgentInitialized, agent.ID, "", r.ID)
	return r, nil
}

func (m *Manager) resolveTools(names []string) tools.Registry {
	reg := tools.NewRegistry()
	if m.baseTools == nil {
		return reg
	}
	for _, name := range names {
		if t, ok := m.baseTools.Get(name); ok {
			reg.Register(t)
		}
	}
	return reg
}

func (m *Manager) resolveSkills(ids []string) skills.Registry {
	reg := skills.NewRegistry()
	if m.baseSkills == nil {
		return reg
	}
	for _, id := range ids {
		if s, ok := m.baseSkills.Get(id); ok {
			reg.Register(s)
		}
	}
	return reg
}

// DestroyRuntime removes a runtime immediately, regardless of idle time.
func (m *Manager) DestroyRuntime(ctx context.Context, runtimeID string) error {
	m.mu.Lock()
	r, ok := m.runtimes[runtimeID]
	if ok {
		delete(m.runtimes, runtimeID)
	}
	m.mu.Unlock()
	if !ok {
		return runtimeerr.New(runtimeerr.NotFound, "runtime not found: "+runtimeID)
	}
	m.emit(eventbus.AgentDestroyed, r.Agent.ID, "", r.ID)
	return nil
}

// Get returns a live runtime by id.
func (m *Manager) Get(runtimeID string) (*Runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runtimes[runtimeID]
	return r, ok
}

// FindByAgent returns the most recently used live runtime for an agent, if any.
func (m *Manager) FindByAgent(agentID string) (*Runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Runtime
	for _, r := range m.runtimes {
		if r.Agent.ID != agentID {
			continue
		}
		if best == nil || r.LastUsedAt().After(best.LastUsedAt()) {
			best = r
		}
	}
	return best, best != nil
}

func (m *Manager) emit(typ eventbus.Type, agentID, sessionID string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(eventbus.Event{
		Type: typ, Timestamp: time.Now().UnixMilli(), Payload: payload,
		Meta: eventbus.Metadata{AgentID: agentID, SessionID: sessionID},
	})
}
