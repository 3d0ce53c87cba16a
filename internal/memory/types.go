// Package memory implements the typed, time-decayed memory store: lexical,
// semantic, and hybrid retrieval, rolling session summaries, and
// importance/decay-driven consolidation.
package memory

import "time"

// Type is a closed enumeration of memory kinds.
type Type string

const (
	Episodic   Type = "episodic"
	Semantic   Type = "semantic"
	Procedural Type = "procedural"
	Working    Type = "working"
)

// Source is a closed enumeration of where a memory originated.
type Source string

const (
	SourceConversation Source = "conversation"
	SourceDocument     Source = "document"
	SourceSystem       Source = "system"
	SourceUser         Source = "user"
	SourceKnowledge    Source = "knowledge"
)

// Entry is one stored memory.
type Entry struct {
	ID             string
	AgentID        string
	SessionID      string
	UserID         string
	Content        string
	Type           Type
	Source         Source
	Embedding      []float32
	EmbeddingModel string
	Importance     float64
	DecayFactor    float64
	AccessCount    int
	LastAccessedAt time.Time
	Timestamp      time.Time
	ExpiresAt      *time.Time
	Metadata       map[string]any
}

// Summary is the most recent rolling summary for one (agent, session).
type Summary struct {
	ID             string
	AgentID        string
	SessionID      string
	Summary        string
	MessageCount   int
	KeyPoints      []string
	Entities       []string
	Topics         []string
	CreatedAt      time.Time
}

// StatsResult is aggregated memory usage for one agent.
type StatsResult struct {
	Total        int
	ByType       map[Type]int
	BySource     map[Source]int
	AvgImportance float64
	AvgAccessCount float64
	OldestAt     *time.Time
	NewestAt     *time.Time
}

// RankingWeights configures the weighted-combination ranking formula used
// by Search. Defaults match the documented formula verbatim.
type RankingWeights struct {
	SemanticWeight   float64
	ImportanceBase   float64
	ImportanceScale  float64
	DecayBase        float64
	DecayImportance  float64
}

func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		SemanticWeight:  1.0,
		ImportanceBase:  0.5,
		ImportanceScale: 0.5,
		DecayBase:       0.7,
		DecayImportance: 0.3,
	}
}

// Query filters and ranks a Search call.
type Query struct {
	AgentID       string
	Content       string
	Type          *Type
	Source        *Source
	SessionID     string
	Category      string
	MinImportance float64
	Since         *time.Time
	Until         *time.Time
	Threshold     float64
	Limit         int
}

// ConversationHistory is the result of GetConversationHistory.
type ConversationHistory struct {
	Messages   []Entry
	TotalTokens int
	Truncated  bool
	Summary    *Summary
}

// ConsolidationResult summarizes one Consolidate run.
type ConsolidationResult struct {
	Consolidated int
	Archived     int
	Deleted      int
	Errors       []string
}

// EstimateTokens approximates token count the way the rest of the platform
// does: roughly one token per four characters.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if len(s)%4 != 0 {
		n++
	}
	return n
}
