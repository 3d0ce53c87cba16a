package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/memory"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

func testAgent(id string, enabledTools, enabledSkills []string) agentrepo.Agent {
	return agentrepo.Agent{
		ID:   id,
		Name: "test-agent",
		Config: agentrepo.Config{
			Model:         "gpt-4o",
			EnabledTools:  enabledTools,
			EnabledSkills: enabledSkills,
			LLM:           agentrepo.LLMBinding{Provider: "openai"},
		},
	}
}

func newTestManager(t *testing.T, cfg Config) (*Manager, tools.Registry, skills.Registry) {
	t.Helper()
	baseTools := tools.NewRegistry()
	tools.RegisterBuiltins(baseTools)
	baseSkills := skills.NewRegistry()
	skills.RegisterBuiltins(baseSkills)
	bus := eventbus.New(100)
	memStore := memory.NewStore(memory.NewInMemoryBackend(), memory.NewLRUCache(100), memory.NewBruteForceBackend(), nil, bus)
	return NewManager(cfg, llm.NewFactory(), memStore, baseTools, baseSkills, bus), baseTools, baseSkills
}

func TestManager_InitializeRuntime_ResolvesEnabledToolsAndSkills(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, DefaultConfig())
	agent := testAgent("agent-1", []string{"calculator"}, []string{"summarize"})

	rt, err := m.InitializeRuntime(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, StateReady, rt.State())

	_, ok := rt.Tools().Get("calculator")
	assert.True(t, ok)
	_, ok = rt.Tools().Get("web_search")
	assert.False(t, ok, "tools not named in EnabledTools must not be resolved onto the runtime")

	_, ok = rt.Skills().Get("summarize")
	assert.True(t, ok)
	_, ok = rt.Skills().Get("translate")
	assert.False(t, ok)
}

func TestManager_GetAndDestroyRuntime(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, DefaultConfig())
	agent := testAgent("agent-2", nil, nil)

	rt, err := m.InitializeRuntime(context.Background(), agent)
	require.NoError(t, err)

	found, ok := m.Get(rt.ID)
	assert.True(t, ok)
	assert.Equal(t, rt.ID, found.ID)

	require.NoError(t, m.DestroyRuntime(context.Background(), rt.ID))

	_, ok = m.Get(rt.ID)
	assert.False(t, ok)

	err = m.DestroyRuntime(context.Background(), rt.ID)
	assert.Error(t, err)
}

func TestManager_FindByAgent(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, DefaultConfig())
	agent := testAgent("agent-3", nil, nil)

	rt, err := m.InitializeRuntime(context.Background(), agent)
	require.NoError(t, err)

	found, ok := m.FindByAgent("agent-3")
	require.True(t, ok)
	assert.Equal(t, rt.ID, found.ID)

	_, ok = m.FindByAgent("no-such-agent")
	assert.False(t, ok)
}

func TestManager_SweepEvictsOnlyIdlePastTTL(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.IdleTTL = 20 * time.Millisecond
	m, _, _ := newTestManager(t, cfg)

	stale := testAgent("agent-stale", nil, nil)
	fresh := testAgent("agent-fresh", nil, nil)

	staleRT, err := m.InitializeRuntime(context.Background(), stale)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	freshRT, err := m.InitializeRuntime(context.Background(), fresh)
	require.NoError(t, err)

	m.sweepOnce()

	_, ok := m.Get(staleRT.ID)
	assert.False(t, ok, "runtime idle past TTL should be evicted")

	_, ok = m.Get(freshRT.ID)
	assert.True(t, ok, "recently touched runtime should survive the sweep")
}

func TestManager_SweepSkipsLockedRuntime(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.IdleTTL = 1 * time.Millisecond
	m, _, _ := newTestManager(t, cfg)

	agent := testAgent("agent-locked", nil, nil)
	rt, err := m.InitializeRuntime(context.Background(), agent)
	require.NoError(t, err)

	require.True(t, rt.lock.Acquire(context.Background(), time.Second))
	defer rt.lock.Release()

	time.Sleep(5 * time.Millisecond)
	m.sweepOnce()

	_, ok := m.Get(rt.ID)
	assert.True(t, ok, "a locked runtime must survive the sweep even past its idle TTL")
}
