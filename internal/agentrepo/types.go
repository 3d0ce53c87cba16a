// Package agentrepo defines the Agent/Session/Message data model and the
// CRUD contract used by the service and runtime layers, following the same
// Store-interface-plus-CRUD-backend shape used elsewhere in the platform.
package agentrepo

import "time"

// AgentType is a closed enumeration of agent classifications.
type AgentType string

const (
	TypeChat       AgentType = "chat"
	TypeTask       AgentType = "task"
	TypeKnowledge  AgentType = "knowledge"
	TypeAssistant  AgentType = "assistant"
	TypeCustom     AgentType = "custom"
)

// Status is a closed enumeration of agent lifecycle states.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusChatting     Status = "chatting"
	StatusExecuting    Status = "executing"
	StatusError        Status = "error"
	StatusDisabled     Status = "disabled"
	StatusMaintenance  Status = "maintenance"
)

// MemoryPolicy configures how a runtime builds conversational context.
type MemoryPolicy struct {
	MaxTokens    int    `json:"max_tokens"`
	RecentLimit  int    `json:"recent_limit"`
	MemoryType   string `json:"memory_type"`
}

// LLMBinding configures which provider/model backs an agent.
type LLMBinding struct {
	Provider string  `json:"provider"`
	APIKey   string  `json:"api_key,omitempty"`
	BaseURL  string  `json:"base_url,omitempty"`
}

// Config is an agent's nested behavioral configuration.
type Config struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	SystemPrompt   string            `json:"system_prompt"`
	WelcomeMessage string            `json:"welcome_message"`
	EnabledTools   []string          `json:"enabled_tools"`
	EnabledSkills  []string          `json:"enabled_skills"`
	Memory         MemoryPolicy      `json:"memory"`
	LLM            LLMBinding        `json:"llm"`
	Settings       map[string]any    `json:"settings,omitempty"`
}

// Agent is the persisted agent identity and configuration.
type Agent struct {
	ID          string
	OwnerID     string
	Public      bool
	Name        string
	Description string
	Avatar      string
	Type        AgentType
	Status      Status
	Config      Config
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session belongs to one agent and one user.
type Session struct {
	ID           string
	AgentID      string
	UserID       string
	Title        string
	LastActiveAt time.Time
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Role is a closed enumeration of message roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCallRef mirrors llm.ToolCall for persistence without importing llm.
type ToolCallRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one append-only turn in a session.
type Message struct {
	ID         string
	SessionID  string
	Role       Role
	Content    string
	ToolCalls  []ToolCallRef
	ToolCallID string
	Tokens     int
	Metadata   map[string]any
	CreatedAt  time.Time
}
