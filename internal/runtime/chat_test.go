package runtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/memory"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

// countingTool records how many calls are in flight at once and always
// succeeds, so tests can assert dispatchToolCalls' concurrency bound.
type countingTool struct {
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (c *countingTool) Name() string        { return "counting" }
func (c *countingTool) Description() string { return "test tool" }
func (c *countingTool) JSONSchema() map[string]any {
	return map[string]any{"type": "object"}
}

func (c *countingTool) Execute(ctx context.Context, _ tools.Context, _ json.RawMessage) tools.Result {
	n := atomic.AddInt32(&c.inFlight, 1)
	for {
		cur := atomic.LoadInt32(&c.maxSeen)
		if n <= cur || atomic.CompareAndSwapInt32(&c.maxSeen, cur, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	atomic.AddInt32(&c.inFlight, -1)
	return tools.Result{Success: true, Output: "ok"}
}

func newChatTestManager(t *testing.T, cfg Config, provider llm.Provider) (*Manager, *Runtime) {
	t.Helper()
	bus := eventbus.New(100)
	memStore := memory.NewStore(memory.NewInMemoryBackend(), memory.NewLRUCache(100), memory.NewBruteForceBackend(), nil, bus)

	factory := llm.NewFactory()
	factory.Register(provider)

	baseSkills := skills.NewRegistry()
	skills.RegisterBuiltins(baseSkills)

	m := NewManager(cfg, factory, memStore, tools.NewRegistry(), baseSkills, bus)
	agent := testAgent("agent-chat", nil, nil)
	rt, err := m.InitializeRuntime(context.Background(), agent)
	require.NoError(t, err)
	return m, rt
}

// toolCallProvider returns FinishToolCalls with fixedCalls for the first
// toolRounds Chat() calls, then FinishStop with finalText.
type toolCallProvider struct {
	toolRounds int
	fixedCalls []llm.ToolCall
	finalText  string
	calls      int32
}

func (p *toolCallProvider) Name() string { return "openai" }

func (p *toolCallProvider) Chat(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if int(n) <= p.toolRounds {
		return llm.ChatResponse{Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, ToolCalls: p.fixedCalls},
			FinishReason: llm.FinishToolCalls,
		}}}, nil
	}
	return llm.ChatResponse{Choices: []llm.Choice{{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: p.finalText},
		FinishReason: llm.FinishStop,
	}}}, nil
}

func (p *toolCallProvider) ChatStream(_ context.Context, _ llm.ChatRequest, _ llm.StreamHandler) error {
	return nil
}

func TestDispatchToolCalls_BoundedByConfiguredConcurrency(t *testing.T) {
	t.Parallel()
	tool := &countingTool{delay: 20 * time.Millisecond}
	reg := tools.NewRegistry()
	reg.Register(tool)

	m, rt := newChatTestManager(t, Config{ToolConcurrency: 2}, &toolCallProvider{})
	rt.tools = reg

	calls := make([]llm.ToolCall, 6)
	for i := range calls {
		calls[i] = llm.ToolCall{ID: itoaIndex(i), Name: "counting", Arguments: "{}"}
	}

	tc := m.toolContext(rt, "sess-1")
	results := m.dispatchToolCalls(context.Background(), rt, tc, calls)

	require.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&tool.maxSeen), int32(2), "dispatch must never exceed the configured concurrency")
	for i, msg := range results {
		assert.Equal(t, llm.RoleTool, msg.Role)
		assert.Equal(t, itoaIndex(i), msg.ToolCallID)
	}
}

func TestDispatchToolCalls_PreservesRequestOrderInResults(t *testing.T) {
	t.Parallel()
	reg := tools.NewRegistry()
	reg.Register(&countingTool{})

	m, rt := newChatTestManager(t, DefaultConfig(), &toolCallProvider{})
	rt.tools = reg

	calls := []llm.ToolCall{
		{ID: "a", Name: "counting", Arguments: "{}"},
		{ID: "b", Name: "missing-tool", Arguments: "{}"},
		{ID: "c", Name: "counting", Arguments: "{}"},
	}
	tc := m.toolContext(rt, "sess-1")
	results := m.dispatchToolCalls(context.Background(), rt, tc, calls)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ToolCallID)
	assert.Equal(t, "b", results[1].ToolCallID)
	assert.Equal(t, "c", results[2].ToolCallID)
	assert.Contains(t, results[1].Content, "tool not found")
}

func TestChat_RunsToolCallRoundThenReturnsFinalMessage(t *testing.T) {
	t.Parallel()
	reg := tools.NewRegistry()
	reg.Register(&countingTool{})

	provider := &toolCallProvider{
		toolRounds: 1,
		fixedCalls: []llm.ToolCall{{ID: "call-1", Name: "counting", Arguments: "{}"}},
		finalText:  "42",
	}
	m, rt := newChatTestManager(t, DefaultConfig(), provider)
	rt.tools = reg

	result, err := m.Chat(context.Background(), rt.ID, ChatRequest{SessionID: "s1", UserID: "u1", Content: "what is the answer?"})
	require.NoError(t, err)
	assert.Equal(t, "42", result.Message.Content)
	assert.Equal(t, 2, result.Iterations, "one tool-call round plus the final answer round")
	assert.Equal(t, llm.FinishStop, result.FinishReason)
	assert.Equal(t, StateReady, rt.State(), "runtime must return to ready after a completed turn")
}

func TestChat_ExceedingMaxIterationsReturnsTruncatedResult(t *testing.T) {
	t.Parallel()
	reg := tools.NewRegistry()
	reg.Register(&countingTool{})

	provider := &toolCallProvider{
		toolRounds: 100, // always wants another tool-call round
		fixedCalls: []llm.ToolCall{{ID: "call-1", Name: "counting", Arguments: "{}"}},
	}
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	m, rt := newChatTestManager(t, cfg, provider)
	rt.tools = reg

	result, err := m.Chat(context.Background(), rt.ID, ChatRequest{SessionID: "s1", UserID: "u1", Content: "loop forever"})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, cfg.MaxIterations, result.Iterations)
}

func TestChat_UnknownRuntimeReturnsNotFound(t *testing.T) {
	t.Parallel()
	m, _ := newChatTestManager(t, DefaultConfig(), &toolCallProvider{finalText: "hi"})
	_, err := m.Chat(context.Background(), "no-such-runtime", ChatRequest{SessionID: "s1", Content: "hi"})
	assert.Error(t, err)
}

func TestChat_BusyRuntimeReturnsRuntimeBusy(t *testing.T) {
	t.Parallel()
	m, rt := newChatTestManager(t, DefaultConfig(), &toolCallProvider{finalText: "hi"})
	require.True(t, rt.lock.Acquire(context.Background(), time.Second))
	defer rt.lock.Release()

	cfgCopy := m.cfg
	cfgCopy.LockTimeout = 10 * time.Millisecond
	m.cfg = cfgCopy

	_, err := m.Chat(context.Background(), rt.ID, ChatRequest{SessionID: "s1", Content: "hi"})
	assert.Error(t, err)
}

// streamToolCallProvider streams two delta chunks for one tool call (testing
// id-based merge), then a final stop chunk on the next round.
type streamToolCallProvider struct {
	round int32
}

func (p *streamToolCallProvider) Name() string { return "openai" }

func (p *streamToolCallProvider) Chat(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{}, nil
}

func (p *streamToolCallProvider) ChatStream(_ context.Context, _ llm.ChatRequest, h llm.StreamHandler) error {
	n := atomic.AddInt32(&p.round, 1)
	if n == 1 {
		h.OnChunk(llm.ChatStreamChunk{Delta: llm.Message{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "counting", Arguments: `{"x":`}}}})
		h.OnChunk(llm.ChatStreamChunk{Delta: llm.Message{ToolCalls: []llm.ToolCall{{ID: "call-1", Arguments: `1}`}}}, FinishReason: llm.FinishToolCalls})
		return nil
	}
	h.OnChunk(llm.ChatStreamChunk{Delta: llm.Message{Content: "done"}, FinishReason: llm.FinishStop})
	return nil
}

// loopingStreamProvider always streams a tool-call round, never reaching a
// stop finish reason, so the loop exhausts maxIterations.
type loopingStreamProvider struct{}

func (p *loopingStreamProvider) Name() string { return "openai" }

func (p *loopingStreamProvider) Chat(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{}, nil
}

func (p *loopingStreamProvider) ChatStream(_ context.Context, _ llm.ChatRequest, h llm.StreamHandler) error {
	h.OnChunk(llm.ChatStreamChunk{
		Delta:        llm.Message{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "counting", Arguments: "{}"}}},
		FinishReason: llm.FinishToolCalls,
	})
	return nil
}

func TestChatStream_ExceedingMaxIterationsEmitsTruncationChunkNotError(t *testing.T) {
	t.Parallel()
	reg := tools.NewRegistry()
	reg.Register(&countingTool{})

	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	m, rt := newChatTestManager(t, cfg, &loopingStreamProvider{})
	rt.tools = reg

	var truncated bool
	handler := llm.StreamHandlerFunc(func(c llm.ChatStreamChunk) {
		if c.FinishReason == llm.FinishLength {
			truncated = true
		}
	})

	err := m.ChatStream(context.Background(), rt.ID, ChatRequest{SessionID: "s1", UserID: "u1", Content: "loop forever"}, handler)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, StateReady, rt.State())
}

func TestChatStream_MergesToolCallDeltasByIDAcrossChunks(t *testing.T) {
	t.Parallel()
	reg := tools.NewRegistry()
	reg.Register(&countingTool{})

	m, rt := newChatTestManager(t, DefaultConfig(), &streamToolCallProvider{})
	rt.tools = reg

	var received []string
	handler := llm.StreamHandlerFunc(func(c llm.ChatStreamChunk) {
		if c.Delta.Content != "" {
			received = append(received, c.Delta.Content)
		}
	})

	err := m.ChatStream(context.Background(), rt.ID, ChatRequest{SessionID: "s1", UserID: "u1", Content: "hi"}, handler)
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, received)
	assert.Equal(t, StateReady, rt.State())
}
