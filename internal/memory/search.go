package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

type rankedEntry struct {
	entry     Entry
	relevance float64
}

// Search performs filtered, ranked retrieval. Ranking is a weighted
// combination of semantic similarity to query.Content (when available),
// an importance term, and a decay-adjusted importance term.
func (s *Store) Search(ctx context.Context, q Query) ([]Entry, error) {
	all, err := s.backend.List(ctx, q.AgentID, q.SessionID)
	if err != nil {
		return nil, runtimeerr.Wrap(runtimeerr.MemoryBackend, "search memories", err)
	}

	threshold := q.Threshold
	if threshold == 0 {
		threshold = s.defaultThreshold
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	var queryVec []float32
	if q.Content != "" && s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, []string{q.Content})
		if err == nil && len(vecs) == 1 {
			queryVec = vecs[0]
		}
	}

	now := time.Now()
	var ranked []rankedEntry
	for _, e := range all {
		if isExpired(e, now) {
			continue
		}
		if q.Type != nil && e.Type != *q.Type {
			continue
		}
		if q.Source != nil && e.Source != *q.Source {
			continue
		}
		if q.MinImportance > 0 && e.Importance < q.MinImportance {
			continue
		}
		if q.Category != "" {
			if cat, _ := e.Metadata["category"].(string); cat != q.Category {
				continue
			}
		}
		if q.Since != nil && e.Timestamp.Before(*q.Since) {
			continue
		}
		if q.Until != nil && e.Timestamp.After(*q.Until) {
			continue
		}

		importanceTerm := s.weights.ImportanceBase + s.weights.ImportanceScale*e.Importance
		decayTerm := s.weights.DecayBase + s.weights.DecayImportance*e.Importance*e.DecayFactor

		var relevance float64
		if len(queryVec) > 0 && len(e.Embedding) > 0 {
			semantic := s.weights.SemanticWeight * CosineSimilarity(queryVec, e.Embedding)
			relevance = (semantic + importanceTerm + decayTerm) / (s.weights.SemanticWeight + 2)
		} else {
			relevance = (importanceTerm + decayTerm) / 2
		}
		if relevance < threshold {
			continue
		}
		ranked = append(ranked, rankedEntry{entry: e, relevance: relevance})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].relevance > ranked[j].relevance })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Entry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out, nil
}

// SemanticSearch embeds the query and returns the top-limit nearest
// memories for the agent via the configured VectorBackend.
func (s *Store) SemanticSearch(ctx context.Context, query, agentID string, limit int) ([]Entry, error) {
	entries, _, err := s.semanticSearchScored(ctx, query, agentID, limit)
	return entries, err
}

// semanticSearchScored is SemanticSearch plus the VectorBackend's similarity
// score for each hit, keyed by entry id, so callers combining it with other
// signals (HybridSearch) rank on actual magnitudes, not result position.
func (s *Store) semanticSearchScored(ctx context.Context, query, agentID string, limit int) ([]Entry, map[string]float64, error) {
	if s.embedder == nil || s.vector == nil {
		return nil, nil, runtimeerr.New(runtimeerr.MemoryBackend, "semantic search requires an embedder and vector backend")
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil, nil, runtimeerr.Wrap(runtimeerr.MemoryBackend, "embed query", err)
	}
	hits, err := s.vector.Search(ctx, agentID, vecs[0], limit)
	if err != nil {
		return nil, nil, runtimeerr.Wrap(runtimeerr.MemoryBackend, "vector search", err)
	}
	out := make([]Entry, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		e, ok, err := s.backend.Get(ctx, h.ID)
		if err != nil || !ok {
			continue
		}
		out = append(out, e)
		scores[e.ID] = h.Similarity
	}
	return out, scores, nil
}

// FullTextSearch performs a case-insensitive substring match, newest first.
func (s *Store) FullTextSearch(ctx context.Context, query, agentID string, limit int) ([]Entry, error) {
	entries, _, err := s.fullTextSearchScored(ctx, query, agentID, limit)
	return entries, err
}

// fullTextSearchScored is FullTextSearch plus a lexical relevance score per
// entry: the fraction of the query's distinct words found in the entry's
// content, so HybridSearch combines it with semantic similarity as an actual
// magnitude rather than a match-order proxy.
func (s *Store) fullTextSearchScored(ctx context.Context, query, agentID string, limit int) ([]Entry, map[string]float64, error) {
	all, err := s.backend.List(ctx, agentID, "")
	if err != nil {
		return nil, nil, runtimeerr.Wrap(runtimeerr.MemoryBackend, "full text search", err)
	}
	queryWords := strings.Fields(strings.ToLower(query))
	var out []Entry
	scores := make(map[string]float64)
	for _, e := range all {
		content := strings.ToLower(e.Content)
		if !strings.Contains(content, strings.ToLower(query)) {
			continue
		}
		out = append(out, e)
		scores[e.ID] = lexicalRelevance(queryWords, content)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, scores, nil
}

// lexicalRelevance is the fraction of queryWords present in content,
// clamped to [0,1].
func lexicalRelevance(queryWords []string, content string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	matched := 0
	for _, w := range queryWords {
		if strings.Contains(content, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

// HybridSearch unions semantic and full-text results, ranking by
// relevance = semantic*0.7 + lexical*0.3 over each source's actual
// similarity/overlap magnitude.
func (s *Store) HybridSearch(ctx context.Context, query, agentID string, limit int) ([]Entry, error) {
	semantic, semanticScores, _ := s.semanticSearchScored(ctx, query, agentID, limit*2)
	lexical, lexicalScores, _ := s.fullTextSearchScored(ctx, query, agentID, limit*2)

	scores := make(map[string]float64)
	byID := make(map[string]Entry)
	for _, e := range semantic {
		byID[e.ID] = e
		scores[e.ID] += 0.7 * semanticScores[e.ID]
	}
	for _, e := range lexical {
		byID[e.ID] = e
		scores[e.ID] += 0.3 * lexicalScores[e.ID]
	}

	type kv struct {
		id    string
		score float64
	}
	kvs := make([]kv, 0, len(scores))
	for id, sc := range scores {
		kvs = append(kvs, kv{id, sc})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].score > kvs[j].score })
	if limit > 0 && len(kvs) > limit {
		kvs = kvs[:limit]
	}
	out := make([]Entry, 0, len(kvs))
	for _, k := range kvs {
		out = append(out, byID[k.id])
	}
	return out, nil
}

// GetConversationHistory walks episodic memories for (agentID, sessionID)
// backward from the most recent, accumulating estimated tokens until
// maxTokens would be exceeded.
func (s *Store) GetConversationHistory(ctx context.Context, agentID, sessionID string, maxTokens int) (ConversationHistory, error) {
	all, err := s.backend.List(ctx, agentID, sessionID)
	if err != nil {
		return ConversationHistory{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "conversation history", err)
	}
	episodic := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Type == Episodic {
			episodic = append(episodic, e)
		}
	}
	// all is newest-first; walk it to accumulate from the most recent
	// backward, then reverse to restore chronological order.
	var picked []Entry
	total := 0
	truncated := false
	for _, e := range episodic {
		tok := EstimateTokens(e.Content)
		if total+tok > maxTokens {
			truncated = true
			break
		}
		picked = append(picked, e)
		total += tok
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}

	result := ConversationHistory{Messages: picked, TotalTokens: total, Truncated: truncated}
	if truncated {
		if summary, ok, _ := s.backend.LatestSummary(ctx, agentID, sessionID); ok {
			result.Summary = &summary
		}
	}
	return result, nil
}

// SummarizeSession materializes the session's messages, extracts key
// points/entities/topics, and persists a new rolling Summary.
func (s *Store) SummarizeSession(ctx context.Context, agentID, sessionID string) (Summary, error) {
	all, err := s.backend.List(ctx, agentID, sessionID)
	if err != nil {
		return Summary{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "summarize session", err)
	}
	var builder strings.Builder
	for i := len(all) - 1; i >= 0; i-- {
		builder.WriteString(all[i].Content)
		builder.WriteString(" ")
	}
	text := builder.String()

	sum := Summary{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		SessionID:    sessionID,
		Summary:      heuristicSummarize(text, 3),
		MessageCount: len(all),
		KeyPoints:    extractKeyPoints(text),
		Entities:     extractEntities(text),
		Topics:       extractTopics(text),
		CreatedAt:    time.Now(),
	}
	if err := s.backend.UpsertSummary(ctx, sum); err != nil {
		return Summary{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "persist summary", err)
	}
	s.emit(eventbus.MemorySummarized, agentID, sessionID, sum.ID)
	return sum, nil
}
