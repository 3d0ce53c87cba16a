package memory

import "context"

// Backend persists memory entries and summaries. The in-memory
// implementation backs tests; the Postgres implementation backs
// production deployments.
type Backend interface {
	Insert(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, bool, error)
	Update(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id string) error
	DeleteBySession(ctx context.Context, agentID, sessionID string) (int, error)
	Clear(ctx context.Context, agentID, sessionID string) (int, error)

	// List returns all entries for agentID matching the optional session,
	// newest first, for in-process filtering/ranking by the Store.
	List(ctx context.Context, agentID, sessionID string) ([]Entry, error)

	Count(ctx context.Context, agentID string) (int, error)
	Stats(ctx context.Context, agentID string) (StatsResult, error)

	UpsertSummary(ctx context.Context, s Summary) error
	LatestSummary(ctx context.Context, agentID, sessionID string) (Summary, bool, error)
}
