package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterGetAndSchemas(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	RegisterBuiltins(reg)

	_, ok := reg.Get("calculator")
	assert.True(t, ok)
	_, ok = reg.Get("no-such-tool")
	assert.False(t, ok)

	schemas := reg.Schemas()
	names := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		names[s.Name] = true
	}
	assert.True(t, names["calculator"])
	assert.True(t, names["file_operations"])
	assert.Len(t, schemas, 10)
}

func TestRegistry_DispatchUnknownToolReturnsFailure(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	res := reg.Dispatch(context.Background(), Context{}, "nope", json.RawMessage(`{}`))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tool not found")
}

func TestRecordingRegistry_InvokesCallbackOnDispatch(t *testing.T) {
	t.Parallel()
	base := NewRegistry()
	RegisterBuiltins(base)

	var events []DispatchEvent
	rec := NewRecordingRegistry(base, func(e DispatchEvent) { events = append(events, e) })

	res := rec.Dispatch(context.Background(), Context{}, "calculator", json.RawMessage(`{"expression":"1+1"}`))
	require.True(t, res.Success)
	require.Len(t, events, 1)
	assert.Equal(t, "calculator", events[0].Name)
	assert.True(t, events[0].Result.Success)
}

func TestRecordingRegistry_NilBaseDefaultsToPlainRegistry(t *testing.T) {
	t.Parallel()
	rec := NewRecordingRegistry(nil, nil)
	rec.Register(calculatorTool{})
	_, ok := rec.Get("calculator")
	assert.True(t, ok)
}

func calcResult(t *testing.T, expr string) Result {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"expression": expr})
	require.NoError(t, err)
	return calculatorTool{}.Execute(context.Background(), Context{}, raw)
}

func TestCalculator_EvaluatesOperatorPrecedenceAndParens(t *testing.T) {
	t.Parallel()
	res := calcResult(t, "2 + 3 * (4 - 1)")
	require.True(t, res.Success)
	out := res.Output.(map[string]any)
	assert.Equal(t, 11.0, out["result"])
}

func TestCalculator_DivisionByZeroFails(t *testing.T) {
	t.Parallel()
	res := calcResult(t, "1/0")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "division by zero")
}

func TestCalculator_RejectsDisallowedCharacters(t *testing.T) {
	t.Parallel()
	res := calcResult(t, "system('rm -rf /')")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "disallowed character")
}

func TestCalculator_RejectsMalformedExpression(t *testing.T) {
	t.Parallel()
	res := calcResult(t, "1 + ")
	assert.False(t, res.Success)
}

func TestFileOperations_WriteThenReadRoundTrips(t *testing.T) {
	t.Parallel()
	tool := fileOperationsTool{}
	tc := Context{AgentID: "agent-sandbox-test"}

	writeRaw, _ := json.Marshal(map[string]string{"operation": "write", "path": "notes/a.txt", "content": "hello"})
	res := tool.Execute(context.Background(), tc, writeRaw)
	require.True(t, res.Success)

	readRaw, _ := json.Marshal(map[string]string{"operation": "read", "path": "notes/a.txt"})
	res = tool.Execute(context.Background(), tc, readRaw)
	require.True(t, res.Success)
	out := res.Output.(map[string]any)
	assert.Equal(t, "hello", out["content"])
}

func TestFileOperations_PathTraversalIsRejected(t *testing.T) {
	t.Parallel()
	tool := fileOperationsTool{}
	tc := Context{AgentID: "agent-sandbox-traversal"}

	raw, _ := json.Marshal(map[string]string{"operation": "read", "path": "../../../../etc/passwd"})
	res := tool.Execute(context.Background(), tc, raw)
	assert.False(t, res.Success)
}

func TestFileOperations_UnsupportedOperationFails(t *testing.T) {
	t.Parallel()
	tool := fileOperationsTool{}
	raw, _ := json.Marshal(map[string]string{"operation": "delete", "path": "a.txt"})
	res := tool.Execute(context.Background(), Context{AgentID: "agent-x"}, raw)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unsupported operation")
}

func TestKnowledgeSearch_RequiresSearchCollaborator(t *testing.T) {
	t.Parallel()
	tool := knowledgeSearchTool{}
	raw, _ := json.Marshal(map[string]string{"query": "q"})
	res := tool.Execute(context.Background(), Context{}, raw)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
}

func TestKnowledgeSearch_DelegatesToInjectedSearchFunc(t *testing.T) {
	t.Parallel()
	tool := knowledgeSearchTool{}
	tc := Context{
		AgentID: "agent-1",
		Search: func(_ context.Context, agentID, query string, limit int) ([]SearchHit, error) {
			assert.Equal(t, "agent-1", agentID)
			assert.Equal(t, "widgets", query)
			assert.Equal(t, 5, limit)
			return []SearchHit{{Content: "a widget fact", Relevance: 0.9}}, nil
		},
	}
	raw, _ := json.Marshal(map[string]string{"query": "widgets"})
	res := tool.Execute(context.Background(), tc, raw)
	require.True(t, res.Success)
	out := res.Output.(map[string]any)
	hits := out["hits"].([]SearchHit)
	require.Len(t, hits, 1)
	assert.Equal(t, "a widget fact", hits[0].Content)
}

func TestWebSearch_RejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	raw, _ := json.Marshal(map[string]string{"query": "  "})
	res := webSearchTool{}.Execute(context.Background(), Context{}, raw)
	assert.False(t, res.Success)
}

func TestSendMessage_EchoesSessionAndContent(t *testing.T) {
	t.Parallel()
	raw, _ := json.Marshal(map[string]string{"content": "hi there"})
	res := sendMessageTool{}.Execute(context.Background(), Context{SessionID: "sess-9"}, raw)
	require.True(t, res.Success)
	out := res.Output.(map[string]any)
	assert.Equal(t, "sess-9", out["session_id"])
	assert.Equal(t, true, out["delivered"])
}
