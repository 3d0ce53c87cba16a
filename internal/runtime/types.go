// Package runtime implements the AgentRuntime and RuntimeManager: per-agent
// execution contexts with single-flight serialization, a bounded agentic
// loop, and idle-TTL eviction.
package runtime

import (
	"sync"
	"time"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

// State is a closed enumeration of runtime lifecycle states.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateExecuting    State = "executing"
	StateError        State = "error"
)

// Runtime is an in-memory execution context bound to one Agent snapshot.
type Runtime struct {
	ID    string
	Agent agentrepo.Agent

	mu    sync.RWMutex
	state State

	tools  tools.Registry
	skills skills.Registry

	lock        *flightLock
	lastUsedAt  time.Time
	createdAt   time.Time
}

func (r *Runtime) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runtime) touch() {
	r.mu.Lock()
	r.lastUsedAt = time.Now()
	r.mu.Unlock()
}

func (r *Runtime) LastUsedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUsedAt
}

// Tools exposes the runtime's resolved tool registry (read-only view).
func (r *Runtime) Tools() tools.Registry { return r.tools }

// Skills exposes the runtime's resolved skill registry.
func (r *Runtime) Skills() skills.Registry { return r.skills }
