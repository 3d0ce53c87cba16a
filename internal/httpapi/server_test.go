package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/memory"
	"github.com/intelligencedev/agentruntime/internal/runtime"
	"github.com/intelligencedev/agentruntime/internal/service"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

type echoProvider struct{ reply string }

func (p echoProvider) Name() string { return "openai" }

func (p echoProvider) Chat(_ context.Context, _ llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Choices: []llm.Choice{{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: p.reply},
		FinishReason: llm.FinishStop,
	}}}, nil
}

func (p echoProvider) ChatStream(_ context.Context, _ llm.ChatRequest, h llm.StreamHandler) error {
	h.OnChunk(llm.ChatStreamChunk{Delta: llm.Message{Content: p.reply}, FinishReason: llm.FinishStop})
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := agentrepo.NewInMemory()

	baseTools := tools.NewRegistry()
	tools.RegisterBuiltins(baseTools)
	baseSkills := skills.NewRegistry()
	skills.RegisterBuiltins(baseSkills)

	bus := eventbus.New(100)
	memStore := memory.NewStore(memory.NewInMemoryBackend(), memory.NewLRUCache(100), memory.NewBruteForceBackend(), nil, bus)

	factory := llm.NewFactory()
	factory.Register(echoProvider{reply: "hello there"})

	runtimes := runtime.NewManager(runtime.DefaultConfig(), factory, memStore, baseTools, baseSkills, bus)
	svc := service.New(repo, runtimes)

	srv := NewServer(svc, nil, baseTools, baseSkills)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandlers_CreateAndGetAgent(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{Name: "bot"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created agentrepo.Agent
	decodeJSON(t, resp, &created)
	assert.NotEmpty(t, created.ID)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got agentrepo.Agent
	decodeJSON(t, resp, &got)
	assert.Equal(t, "bot", got.Name)
}

func TestHandlers_GetUnknownAgentReturns404(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/agents/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_CreateAgentWithMalformedBodyReturns400(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/agents", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_ListAgentsFiltersByOwnerOrPublic(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{Name: "mine", OwnerID: "owner-1"})
	doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{Name: "public-one", Public: true})

	resp := doJSON(t, http.MethodGet, ts.URL+"/agents?owner_id=owner-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Agents []agentrepo.Agent `json:"agents"`
	}
	decodeJSON(t, resp, &body)
	require.Len(t, body.Agents, 1)
	assert.Equal(t, "mine", body.Agents[0].Name)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pub struct {
		Agents []agentrepo.Agent `json:"agents"`
	}
	decodeJSON(t, resp, &pub)
	require.Len(t, pub.Agents, 1)
	assert.Equal(t, "public-one", pub.Agents[0].Name)
}

func TestHandlers_SendMessageFullFlow(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{
		Name:   "chat-bot",
		Config: agentrepo.Config{Model: "gpt-4o", LLM: agentrepo.LLMBinding{Provider: "openai"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var agent agentrepo.Agent
	decodeJSON(t, resp, &agent)

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/"+agent.ID+"/sessions", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sess agentrepo.Session
	decodeJSON(t, resp, &sess)

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/sessions/"+sess.ID+"/messages", map[string]string{"content": "hi", "user_id": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msg agentrepo.Message
	decodeJSON(t, resp, &msg)
	assert.Equal(t, "hello there", msg.Content)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents/sessions/"+sess.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Messages []agentrepo.Message `json:"messages"`
	}
	decodeJSON(t, resp, &list)
	assert.Len(t, list.Messages, 2)
}

func TestHandlers_SendMessageOnUnknownSessionReturns404(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/agents/sessions/no-such-session/messages", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_AgentToolsAndSkillsLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{Name: "bot"})
	var agent agentrepo.Agent
	decodeJSON(t, resp, &agent)

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/"+agent.ID+"/tools", map[string]string{"name": "calculator"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents/"+agent.ID+"/tools", nil)
	var tl struct {
		Tools []string `json:"tools"`
	}
	decodeJSON(t, resp, &tl)
	assert.Equal(t, []string{"calculator"}, tl.Tools)

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/"+agent.ID+"/skills", map[string]string{"id": "summarize"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents/"+agent.ID+"/skills", nil)
	var sk struct {
		Skills []string `json:"skills"`
	}
	decodeJSON(t, resp, &sk)
	assert.Equal(t, []string{"summarize"}, sk.Skills)
}

func TestHandlers_AvailableToolsAndSkillsDiscovery(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/agents/tools/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tl struct {
		Tools []tools.Schema `json:"tools"`
	}
	decodeJSON(t, resp, &tl)
	assert.NotEmpty(t, tl.Tools)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents/skills/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sk struct {
		Skills []skills.Metadata `json:"skills"`
	}
	decodeJSON(t, resp, &sk)
	assert.NotEmpty(t, sk.Skills)
}

func TestHandlers_StartStopResetAgentRuntime(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{Name: "bot"})
	var agent agentrepo.Agent
	decodeJSON(t, resp, &agent)

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/"+agent.ID+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started map[string]any
	decodeJSON(t, resp, &started)
	assert.NotEmpty(t, started["runtime_id"])

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/"+agent.ID+"/stop", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/agents/"+agent.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reset map[string]any
	decodeJSON(t, resp, &reset)
	assert.NotEqual(t, started["runtime_id"], reset["runtime_id"])
}

func TestHandlers_DeleteAgentThenGetReturns404(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agents", agentrepo.Agent{Name: "bot"})
	var agent agentrepo.Agent
	decodeJSON(t, resp, &agent)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/agents/"+agent.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/agents/"+agent.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
