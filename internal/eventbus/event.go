// Package eventbus provides an in-process publish/subscribe bus with a
// bounded replay history, used for audit, SSE transport, and testing
// assertions about event ordering.
package eventbus

// Type is a closed enumeration of lifecycle event kinds.
type Type string

const (
	AgentInitialized Type = "agent.initialized"
	AgentDestroyed   Type = "agent.destroyed"
	ChatStarted      Type = "chat.started"
	ChatStream       Type = "chat.stream"
	ChatCompleted    Type = "chat.completed"
	ChatError        Type = "chat.error"
	ToolInvoking     Type = "tool.invoking"
	ToolCompleted    Type = "tool.completed"
	ToolFailed       Type = "tool.failed"
	SkillInvoking    Type = "skill.invoking"
	SkillCompleted   Type = "skill.completed"
	SkillFailed      Type = "skill.failed"
	MemoryStored     Type = "memory.stored"
	MemoryRetrieved  Type = "memory.retrieved"
	MemoryDeleted    Type = "memory.deleted"
	MemorySummarized Type = "memory.summarized"
)

// Metadata carries the correlation keys most consumers filter on.
type Metadata struct {
	AgentID     string
	SessionID   string
	ExecutionID string
	UserID      string
}

// Event is an immutable value published once and replayed to subscribers.
type Event struct {
	Type      Type
	Timestamp int64 // unix millis
	Payload   any
	Meta      Metadata
}
