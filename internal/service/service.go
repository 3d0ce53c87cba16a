// Package service implements AgentService, the thin orchestrator that sits
// between the HTTP transport and the repository/runtime/memory components.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/runtime"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
	"github.com/intelligencedev/agentruntime/internal/skills"
)

// Service is the AgentService component.
type Service struct {
	repo     agentrepo.Repository
	runtimes *runtime.Manager
}

func New(repo agentrepo.Repository, runtimes *runtime.Manager) *Service {
	return &Service{repo: repo, runtimes: runtimes}
}

func (s *Service) CreateAgent(ctx context.Context, a agentrepo.Agent) (agentrepo.Agent, error) {
	if strings.TrimSpace(a.Name) == "" {
		return agentrepo.Agent{}, runtimeerr.New(runtimeerr.BadRequest, "agent name is required")
	}
	return s.repo.CreateAgent(ctx, a)
}

func (s *Service) UpdateAgent(ctx context.Context, a agentrepo.Agent) (agentrepo.Agent, error) {
	return s.repo.UpdateAgent(ctx, a)
}

func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	if rt, ok := s.runtimes.FindByAgent(id); ok {
		_ = s.runtimes.DestroyRuntime(ctx, rt.ID)
	}
	return s.repo.SoftDeleteAgent(ctx, id)
}

func (s *Service) GetAgentByID(ctx context.Context, id string) (agentrepo.Agent, error) {
	a, ok, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return agentrepo.Agent{}, err
	}
	if !ok {
		return agentrepo.Agent{}, runtimeerr.New(runtimeerr.NotFound, "agent not found: "+id)
	}
	return a, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]agentrepo.Agent, error) {
	return s.repo.ListAgentsByOwner(ctx, ownerID)
}

func (s *Service) ListPublic(ctx context.Context) ([]agentrepo.Agent, error) {
	return s.repo.ListPublicAgents(ctx)
}

func (s *Service) CreateSession(ctx context.Context, agentID, userID, title string) (agentrepo.Session, error) {
	if _, err := s.GetAgentByID(ctx, agentID); err != nil {
		return agentrepo.Session{}, err
	}
	return s.repo.CreateSession(ctx, agentrepo.Session{AgentID: agentID, UserID: userID, Title: title})
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (agentrepo.Session, error) {
	sess, ok, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return agentrepo.Session{}, err
	}
	if !ok {
		return agentrepo.Session{}, runtimeerr.New(runtimeerr.NotFound, "session not found: "+sessionID)
	}
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context, agentID string) ([]agentrepo.Session, error) {
	return s.repo.ListSessionsByAgent(ctx, agentID)
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

func (s *Service) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]agentrepo.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.repo.ListMessages(ctx, sessionID, limit, offset)
}

// AddTool appends a tool name to the agent's enabled-tools configuration.
func (s *Service) AddTool(ctx context.Context, agentID, toolName string) (agentrepo.Agent, error) {
	a, err := s.GetAgentByID(ctx, agentID)
	if err != nil {
		return agentrepo.Agent{}, err
	}
	for _, t := range a.Config.EnabledTools {
		if t == toolName {
			return a, nil
		}
	}
	a.Config.EnabledTools = append(a.Config.EnabledTools, toolName)
	return s.repo.UpdateAgent(ctx, a)
}

// AddSkill appends a skill id to the agent's enabled-skills configuration.
func (s *Service) AddSkill(ctx context.Context, agentID, skillID string) (agentrepo.Agent, error) {
	a, err := s.GetAgentByID(ctx, agentID)
	if err != nil {
		return agentrepo.Agent{}, err
	}
	for _, sk := range a.Config.EnabledSkills {
		if sk == skillID {
			return a, nil
		}
	}
	a.Config.EnabledSkills = append(a.Config.EnabledSkills, skillID)
	return s.repo.UpdateAgent(ctx, a)
}

// ensureRuntime finds a live runtime for the agent or initializes a fresh
// one from its current persisted configuration.
func (s *Service) ensureRuntime(ctx context.Context, agentID string) (*runtime.Runtime, error) {
	if rt, ok := s.runtimes.FindByAgent(agentID); ok {
		return rt, nil
	}
	a, err := s.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return s.runtimes.InitializeRuntime(ctx, a)
}

// StartRuntime explicitly initializes a runtime for an agent (the "start"
// lifecycle operation).
func (s *Service) StartRuntime(ctx context.Context, agentID string) (*runtime.Runtime, error) {
	return s.ensureRuntime(ctx, agentID)
}

// StopRuntime tears down the agent's live runtime, if any.
func (s *Service) StopRuntime(ctx context.Context, agentID string) error {
	rt, ok := s.runtimes.FindByAgent(agentID)
	if !ok {
		return nil
	}
	return s.runtimes.DestroyRuntime(ctx, rt.ID)
}

// ResetRuntime destroys and reinitializes the agent's runtime.
func (s *Service) ResetRuntime(ctx context.Context, agentID string) (*runtime.Runtime, error) {
	if err := s.StopRuntime(ctx, agentID); err != nil {
		return nil, err
	}
	return s.StartRuntime(ctx, agentID)
}

// SendMessage appends the user's message, drives one full agentic-loop turn,
// and appends + returns the resulting assistant message.
func (s *Service) SendMessage(ctx context.Context, sessionID, content, userID string) (agentrepo.Message, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return agentrepo.Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return agentrepo.Message{}, runtimeerr.New(runtimeerr.BadRequest, "message content is required")
	}

	if _, err := s.repo.AppendMessage(ctx, agentrepo.Message{
		SessionID: sessionID, Role: agentrepo.RoleUser, Content: content,
	}); err != nil {
		return agentrepo.Message{}, err
	}
	_ = s.repo.TouchSession(ctx, sessionID)

	rt, err := s.ensureRuntime(ctx, sess.AgentID)
	if err != nil {
		return agentrepo.Message{}, err
	}

	result, err := s.runtimes.Chat(ctx, rt.ID, runtime.ChatRequest{
		SessionID: sessionID, UserID: userID, Content: content,
	})
	if err != nil {
		return agentrepo.Message{}, err
	}

	assistant := agentrepo.Message{
		SessionID: sessionID,
		Role:      agentrepo.RoleAssistant,
		Content:   result.Message.Content,
		Metadata: map[string]any{
			"model":      rt.Agent.Config.Model,
			"iterations": result.Iterations,
		},
	}
	return s.repo.AppendMessage(ctx, assistant)
}

// StreamEnvelope is the transport-agnostic unit StreamMessage emits.
type StreamEnvelope struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// StreamMessage is SendMessage's streaming counterpart: each content delta
// is delivered through onChunk as a StreamEnvelope, terminated by one with
// Done set.
func (s *Service) StreamMessage(ctx context.Context, sessionID, content, userID string, onChunk func(StreamEnvelope)) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return runtimeerr.New(runtimeerr.BadRequest, "message content is required")
	}

	if _, err := s.repo.AppendMessage(ctx, agentrepo.Message{
		SessionID: sessionID, Role: agentrepo.RoleUser, Content: content,
	}); err != nil {
		return err
	}
	_ = s.repo.TouchSession(ctx, sessionID)

	rt, err := s.ensureRuntime(ctx, sess.AgentID)
	if err != nil {
		return err
	}

	streamID := uuid.NewString()
	var full strings.Builder

	err = s.runtimes.ChatStream(ctx, rt.ID, runtime.ChatRequest{
		SessionID: sessionID, UserID: userID, Content: content,
	}, llm.StreamHandlerFunc(func(c llm.ChatStreamChunk) {
		if c.Delta.Content == "" {
			return
		}
		full.WriteString(c.Delta.Content)
		onChunk(StreamEnvelope{ID: streamID, Content: c.Delta.Content, Done: false})
	}))
	if err != nil {
		return err
	}

	onChunk(StreamEnvelope{ID: streamID, Content: "", Done: true})

	_, appendErr := s.repo.AppendMessage(ctx, agentrepo.Message{
		SessionID: sessionID, Role: agentrepo.RoleAssistant, Content: full.String(),
		Metadata: map[string]any{"model": rt.Agent.Config.Model},
	})
	return appendErr
}

// ExecuteSkill runs a named skill against the agent's live runtime.
func (s *Service) ExecuteSkill(ctx context.Context, agentID, skillID string, input map[string]any) (skills.Result, error) {
	rt, err := s.ensureRuntime(ctx, agentID)
	if err != nil {
		return skills.Result{}, err
	}
	return s.runtimes.ExecuteSkill(ctx, rt.ID, skillID, input)
}
