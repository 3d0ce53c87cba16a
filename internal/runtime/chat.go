package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

// ChatRequest carries one turn of user input into the agentic loop.
type ChatRequest struct {
	SessionID string
	UserID    string
	Content   string
}

// ChatResult is the outcome of a completed (non-streaming) Chat call.
type ChatResult struct {
	Message      agentrepo.Message
	ToolCalls    []agentrepo.ToolCallRef
	Iterations   int
	FinishReason llm.FinishReason
	// Truncated is set when the agentic loop hit maxIterations while still
	// awaiting a tool-call round. Message carries the last assistant
	// response produced before the bound was hit, not an error.
	Truncated bool
}

// Chat runs one full agentic-loop turn to completion and returns the final
// assistant message.
func (m *Manager) Chat(ctx context.Context, runtimeID string, req ChatRequest) (ChatResult, error) {
	r, ok := m.Get(runtimeID)
	if !ok {
		return ChatResult{}, runtimeerr.New(runtimeerr.NotFound, "runtime not found: "+runtimeID)
	}

	if !r.lock.Acquire(ctx, m.cfg.LockTimeout) {
		return ChatResult{}, runtimeerr.New(runtimeerr.RuntimeBusy, "runtime busy: "+runtimeID)
	}
	defer r.lock.Release()

	if st := r.State(); st != StateReady {
		return ChatResult{}, runtimeerr.New(runtimeerr.RuntimeNotReady, "runtime not ready: "+string(st))
	}

	r.setState(StateExecuting)
	defer func() {
		r.touch()
		r.setState(StateReady)
	}()

	m.emit(eventbus.ChatStarted, r.Agent.ID, req.SessionID, req.Content)

	msgs, err := m.buildMessages(ctx, r, req)
	if err != nil {
		m.emit(eventbus.ChatError, r.Agent.ID, req.SessionID, err.Error())
		return ChatResult{}, err
	}

	provider, ok := m.llmFactory.Get(r.Agent.Config.LLM.Provider)
	if !ok {
		err := runtimeerr.New(runtimeerr.LLMUpstream, "no LLM provider configured")
		m.emit(eventbus.ChatError, r.Agent.ID, req.SessionID, err.Error())
		return ChatResult{}, err
	}

	chatReq := m.baseChatRequest(r, msgs)

	toolCtx := m.toolContext(r, req.SessionID)
	maxIter := m.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	var final llm.ChatResponse
	truncated := false
	iterations := 0
	for iterations = 1; iterations <= maxIter; iterations++ {
		resp, err := provider.Chat(ctx, chatReq)
		if err != nil {
			m.emit(eventbus.ChatError, r.Agent.ID, req.SessionID, err.Error())
			return ChatResult{}, err
		}
		final = resp
		if len(resp.Choices) == 0 {
			break
		}
		choice := resp.Choices[0]
		chatReq.Messages = append(chatReq.Messages, choice.Message)

		if choice.FinishReason != llm.FinishToolCalls || len(choice.Message.ToolCalls) == 0 {
			break
		}

		results := m.dispatchToolCalls(ctx, r, toolCtx, choice.Message.ToolCalls)
		for _, tr := range results {
			chatReq.Messages = append(chatReq.Messages, tr)
		}

		if iterations == maxIter {
			// Still awaiting a tool-call round when the bound hit: surface the
			// last assistant response with a marker rather than an error.
			truncated = true
			break
		}
	}

	assistantText := ""
	var finishReason llm.FinishReason
	if len(final.Choices) > 0 {
		assistantText = final.Choices[0].Message.Content
		finishReason = final.Choices[0].FinishReason
	}

	out := agentrepo.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      agentrepo.RoleAssistant,
		Content:   assistantText,
		CreatedAt: time.Now(),
	}

	if m.memory != nil {
		_, _ = m.memory.StoreMessage(ctx, r.Agent.ID, req.SessionID, "user", req.Content, req.UserID)
		_, _ = m.memory.StoreMessage(ctx, r.Agent.ID, req.SessionID, "assistant", assistantText, req.UserID)
	}

	m.emit(eventbus.ChatCompleted, r.Agent.ID, req.SessionID, assistantText)

	return ChatResult{Message: out, Iterations: iterations, FinishReason: finishReason, Truncated: truncated}, nil
}

// ChatStream runs the agentic loop, delivering incremental content deltas
// through h as they arrive from the provider, and driving tool-call rounds
// the same way Chat does between streamed turns.
func (m *Manager) ChatStream(ctx context.Context, runtimeID string, req ChatRequest, h llm.StreamHandler) error {
	r, ok := m.Get(runtimeID)
	if !ok {
		return runtimeerr.New(runtimeerr.NotFound, "runtime not found: "+runtimeID)
	}

	if !r.lock.Acquire(ctx, m.cfg.LockTimeout) {
		return runtimeerr.New(runtimeerr.RuntimeBusy, "runtime busy: "+runtimeID)
	}
	defer r.lock.Release()

	if st := r.State(); st != StateReady {
		return runtimeerr.New(runtimeerr.RuntimeNotReady, "runtime not ready: "+string(st))
	}

	r.setState(StateExecuting)
	defer func() {
		r.touch()
		r.setState(StateReady)
	}()

	m.emit(eventbus.ChatStarted, r.Agent.ID, req.SessionID, req.Content)

	msgs, err := m.buildMessages(ctx, r, req)
	if err != nil {
		m.emit(eventbus.ChatError, r.Agent.ID, req.SessionID, err.Error())
		return err
	}

	provider, ok := m.llmFactory.Get(r.Agent.Config.LLM.Provider)
	if !ok {
		err := runtimeerr.New(runtimeerr.LLMUpstream, "no LLM provider configured")
		m.emit(eventbus.ChatError, r.Agent.ID, req.SessionID, err.Error())
		return err
	}

	chatReq := m.baseChatRequest(r, msgs)
	toolCtx := m.toolContext(r, req.SessionID)
	maxIter := m.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	var assistantText string
	for iterations := 1; iterations <= maxIter; iterations++ {
		acc := llm.NewToolCallAccumulator()
		var turnText string
		var finishReason llm.FinishReason

		err := provider.ChatStream(ctx, chatReq, llm.StreamHandlerFunc(func(c llm.ChatStreamChunk) {
			if c.Delta.Content != "" {
				turnText += c.Delta.Content
				m.emit(eventbus.ChatStream, r.Agent.ID, req.SessionID, c.Delta.Content)
				h.OnChunk(c)
			}
			for i, tc := range c.Delta.ToolCalls {
				key := tc.ID
				if key == "" {
					key = itoaIndex(i)
				}
				acc.Merge(key, tc.ID, tc.Name, tc.Arguments)
			}
			if c.FinishReason != "" {
				finishReason = c.FinishReason
			}
		}))
		if err != nil {
			m.emit(eventbus.ChatError, r.Agent.ID, req.SessionID, err.Error())
			return err
		}

		assistantText = turnText
		assistantMsg := llm.Message{Role: llm.RoleAssistant, Content: turnText}
		if !acc.Empty() {
			assistantMsg.ToolCalls = acc.Calls()
		}
		chatReq.Messages = append(chatReq.Messages, assistantMsg)

		if finishReason != llm.FinishToolCalls || acc.Empty() {
			break
		}

		results := m.dispatchToolCalls(ctx, r, toolCtx, acc.Calls())
		for _, tr := range results {
			chatReq.Messages = append(chatReq.Messages, tr)
		}

		if iterations == maxIter {
			// Still awaiting a tool-call round when the bound hit: surface the
			// truncation as a final chunk rather than a fatal error, mirroring
			// Chat's non-fatal ChatResult.Truncated marker.
			h.OnChunk(llm.ChatStreamChunk{FinishReason: llm.FinishLength})
		}
	}

	if m.memory != nil {
		_, _ = m.memory.StoreMessage(ctx, r.Agent.ID, req.SessionID, "user", req.Content, req.UserID)
		_, _ = m.memory.StoreMessage(ctx, r.Agent.ID, req.SessionID, "assistant", assistantText, req.UserID)
	}

	m.emit(eventbus.ChatCompleted, r.Agent.ID, req.SessionID, assistantText)
	return nil
}

// summarizeWithLLM asks the agent's bound provider for a short summary,
// used by the summarize skill in place of its heuristic fallback.
func (m *Manager) summarizeWithLLM(ctx context.Context, r *Runtime, text string, maxSentences int) (string, error) {
	provider, ok := m.llmFactory.Get(r.Agent.Config.LLM.Provider)
	if !ok {
		return "", runtimeerr.New(runtimeerr.LLMUpstream, "no LLM provider configured")
	}
	prompt := "Summarize the following text in at most " + itoaIndex(maxSentences) + " sentences:\n\n" + text
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model:    r.Agent.Config.Model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", runtimeerr.New(runtimeerr.LLMUpstream, "empty summarize response")
	}
	return resp.Choices[0].Message.Content, nil
}

func itoaIndex(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	n := i
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (m *Manager) baseChatRequest(r *Runtime, msgs []llm.Message) llm.ChatRequest {
	var temp *float64
	if r.Agent.Config.Temperature != 0 {
		t := r.Agent.Config.Temperature
		temp = &t
	}
	var maxTok *int
	if r.Agent.Config.MaxTokens != 0 {
		n := r.Agent.Config.MaxTokens
		maxTok = &n
	}
	return llm.ChatRequest{
		Model:       r.Agent.Config.Model,
		Messages:    msgs,
		Tools:       schemasToToolSchemas(r.Tools().Schemas()),
		ToolChoice:  llm.ToolChoice{Mode: "auto"},
		Temperature: temp,
		MaxTokens:   maxTok,
	}
}

func schemasToToolSchemas(schemas []tools.Schema) []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, llm.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return out
}

// buildMessages assembles system prompt, relevant memories, and the new
// user turn into the request sent to the provider.
func (m *Manager) buildMessages(ctx context.Context, r *Runtime, req ChatRequest) ([]llm.Message, error) {
	var msgs []llm.Message
	if r.Agent.Config.SystemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: r.Agent.Config.SystemPrompt})
	}

	if m.memory != nil {
		maxTokens := r.Agent.Config.Memory.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 8000
		}
		hist, err := m.memory.GetConversationHistory(ctx, r.Agent.ID, req.SessionID, maxTokens)
		if err == nil {
			if hist.Summary != nil {
				msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "Earlier conversation summary: " + hist.Summary.Summary})
			}
			for _, e := range hist.Messages {
				role, _ := e.Metadata["role"].(string)
				switch role {
				case "assistant":
					msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: e.Content})
				default:
					msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: e.Content})
				}
			}
		}
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Content})
	return msgs, nil
}

func (m *Manager) toolContext(r *Runtime, sessionID string) tools.Context {
	return tools.Context{
		AgentID:   r.Agent.ID,
		SessionID: sessionID,
		Search: func(ctx context.Context, agentID, query string, limit int) ([]tools.SearchHit, error) {
			if m.memory == nil {
				return nil, nil
			}
			entries, err := m.memory.HybridSearch(ctx, query, agentID, limit)
			if err != nil {
				return nil, err
			}
			out := make([]tools.SearchHit, 0, len(entries))
			for _, e := range entries {
				out = append(out, tools.SearchHit{Content: e.Content, Relevance: e.Importance, SourceID: e.ID})
			}
			return out, nil
		},
	}
}

// dispatchToolCalls runs each requested tool call concurrently, bounded by
// the manager's configured tool concurrency, and returns the resulting
// tool-role messages in the same order the calls were requested.
func (m *Manager) dispatchToolCalls(ctx context.Context, r *Runtime, tc tools.Context, calls []llm.ToolCall) []llm.Message {
	out := make([]llm.Message, len(calls))
	concurrency := m.cfg.ToolConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			m.emit(eventbus.ToolInvoking, r.Agent.ID, tc.SessionID, call.Name)
			res := r.Tools().Dispatch(gctx, tc, call.Name, json.RawMessage(call.Arguments))
			if res.Success {
				m.emit(eventbus.ToolCompleted, r.Agent.ID, tc.SessionID, call.Name)
			} else {
				m.emit(eventbus.ToolFailed, r.Agent.ID, tc.SessionID, res.Error)
			}

			body, _ := json.Marshal(res)
			out[i] = llm.Message{Role: llm.RoleTool, Content: string(body), ToolCallID: call.ID}
			return nil // a failed tool call is reported in res, not a loop-aborting error
		})
	}
	_ = g.Wait()
	return out
}
