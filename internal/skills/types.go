// Package skills implements the registry of higher-level, composable
// capabilities the runtime can execute on an agent's behalf, plus the
// required built-in skills.
package skills

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExecContext carries per-invocation collaborators and correlation data.
type ExecContext struct {
	ExecutionID string
	AgentID     string
	SessionID   string
	Logger      *zerolog.Logger
	StartedAt   time.Time
	// Summarize, when set, lets the summarize skill delegate to an
	// LLMProvider for higher quality output instead of its heuristic
	// fallback. Kept as a function to avoid an import cycle on llm.
	Summarize func(ctx context.Context, text string, maxSentences int) (string, error)
}

// Metadata describes a skill for discovery and prompt-surfacing.
type Metadata struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	InputSchema map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema"`
}

// ResultMeta is attached to every skill Result.
type ResultMeta struct {
	ExecutionID string    `json:"execution_id"`
	SkillID     string    `json:"skill_id"`
	SkillName   string    `json:"skill_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    time.Duration `json:"duration"`
}

// Result is the outcome of a skill invocation.
type Result struct {
	Success bool       `json:"success"`
	Output  any        `json:"output,omitempty"`
	Error   string     `json:"error,omitempty"`
	Meta    ResultMeta `json:"meta"`
}

// Skill is an executable, typed-I/O capability.
type Skill interface {
	Metadata() Metadata
	Execute(ctx context.Context, ec ExecContext, input map[string]any) (any, error)
}

// Registry keeps track of skills and dispatches calls by id.
type Registry interface {
	Register(s Skill)
	Get(id string) (Skill, bool)
	List() []Metadata
	Execute(ctx context.Context, ec ExecContext, id string, input map[string]any) Result
}
