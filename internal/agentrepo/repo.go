package agentrepo

import "context"

// Repository is the CRUD contract for agents, sessions, and messages.
type Repository interface {
	CreateAgent(ctx context.Context, a Agent) (Agent, error)
	UpdateAgent(ctx context.Context, a Agent) (Agent, error)
	SoftDeleteAgent(ctx context.Context, id string) error
	GetAgent(ctx context.Context, id string) (Agent, bool, error)
	ListAgentsByOwner(ctx context.Context, ownerID string) ([]Agent, error)
	ListPublicAgents(ctx context.Context) ([]Agent, error)

	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, bool, error)
	ListSessionsByAgent(ctx context.Context, agentID string) ([]Session, error)
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]Message, error)
}
