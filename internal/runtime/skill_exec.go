package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
	"github.com/intelligencedev/agentruntime/internal/skills"
)

// ExecuteSkill runs a single named skill against the runtime's resolved
// skill registry, serialized behind the same single-flight lock as Chat.
func (m *Manager) ExecuteSkill(ctx context.Context, runtimeID, skillID string, input map[string]any) (skills.Result, error) {
	r, ok := m.Get(runtimeID)
	if !ok {
		return skills.Result{}, runtimeerr.New(runtimeerr.NotFound, "runtime not found: "+runtimeID)
	}

	if !r.lock.Acquire(ctx, m.cfg.LockTimeout) {
		return skills.Result{}, runtimeerr.New(runtimeerr.RuntimeBusy, "runtime busy: "+runtimeID)
	}
	defer r.lock.Release()

	if st := r.State(); st != StateReady {
		return skills.Result{}, runtimeerr.New(runtimeerr.RuntimeNotReady, "runtime not ready: "+string(st))
	}

	r.setState(StateExecuting)
	defer func() {
		r.touch()
		r.setState(StateReady)
	}()

	logger := log.With().Str("agent_id", r.Agent.ID).Str("skill_id", skillID).Logger()
	ec := skills.ExecContext{
		ExecutionID: uuid.NewString(),
		AgentID:     r.Agent.ID,
		Logger:      &logger,
		StartedAt:   time.Now(),
	}
	if m.llmFactory != nil {
		ec.Summarize = func(ctx context.Context, text string, maxSentences int) (string, error) {
			return m.summarizeWithLLM(ctx, r, text, maxSentences)
		}
	}

	m.emit(eventbus.SkillInvoking, r.Agent.ID, "", skillID)
	res := r.Skills().Execute(ctx, ec, skillID, input)
	if res.Success {
		m.emit(eventbus.SkillCompleted, r.Agent.ID, "", skillID)
	} else {
		m.emit(eventbus.SkillFailed, r.Agent.ID, "", res.Error)
	}
	return res, nil
}
