package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgBackend persists memory entries and summaries in Postgres via pgx,
// following the column layout named in the platform's table catalogue
// (agent_memories, agent_memory_summaries).
type pgBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(ctx context.Context, dsn string) (Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &pgBackend{pool: pool}, nil
}

func (p *pgBackend) Insert(ctx context.Context, e Entry) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	embJSON, err := json.Marshal(e.Embedding)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO agent_memories
			(id, agent_id, session_id, user_id, content, type, source, embedding,
			 embedding_model, importance, decay_factor, access_count,
			 last_accessed_at, created_at, expires_at, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			content=$5, importance=$10, decay_factor=$11, access_count=$12,
			last_accessed_at=$13, expires_at=$15, metadata=$16
	`, e.ID, e.AgentID, nullableStr(e.SessionID), nullableStr(e.UserID), e.Content,
		string(e.Type), string(e.Source), embJSON, e.EmbeddingModel, e.Importance,
		e.DecayFactor, e.AccessCount, e.LastAccessedAt, e.Timestamp, e.ExpiresAt, metaJSON)
	return err
}

func (p *pgBackend) Update(ctx context.Context, e Entry) error {
	return p.Insert(ctx, e)
}

func (p *pgBackend) Get(ctx context.Context, id string) (Entry, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, agent_id, session_id, user_id, content, type, source, embedding,
		       embedding_model, importance, decay_factor, access_count,
		       last_accessed_at, created_at, expires_at, metadata
		FROM agent_memories WHERE id=$1
	`, id)
	e, err := scanEntry(row)
	if err == pgx.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (p *pgBackend) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM agent_memories WHERE id=$1`, id)
	return err
}

func (p *pgBackend) DeleteBySession(ctx context.Context, agentID, sessionID string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM agent_memories WHERE agent_id=$1 AND session_id=$2`, agentID, sessionID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *pgBackend) Clear(ctx context.Context, agentID, sessionID string) (int, error) {
	var tag interface{ RowsAffected() int64 }
	var err error
	if sessionID == "" {
		t, e := p.pool.Exec(ctx, `DELETE FROM agent_memories WHERE agent_id=$1`, agentID)
		tag, err = t, e
	} else {
		t, e := p.pool.Exec(ctx, `DELETE FROM agent_memories WHERE agent_id=$1 AND session_id=$2`, agentID, sessionID)
		tag, err = t, e
	}
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *pgBackend) List(ctx context.Context, agentID, sessionID string) ([]Entry, error) {
	var rows pgx.Rows
	var err error
	if sessionID == "" {
		rows, err = p.pool.Query(ctx, `
			SELECT id, agent_id, session_id, user_id, content, type, source, embedding,
			       embedding_model, importance, decay_factor, access_count,
			       last_accessed_at, created_at, expires_at, metadata
			FROM agent_memories WHERE agent_id=$1 ORDER BY created_at DESC
		`, agentID)
	} else {
		rows, err = p.pool.Query(ctx, `
			SELECT id, agent_id, session_id, user_id, content, type, source, embedding,
			       embedding_model, importance, decay_factor, access_count,
			       last_accessed_at, created_at, expires_at, metadata
			FROM agent_memories WHERE agent_id=$1 AND session_id=$2 ORDER BY created_at DESC
		`, agentID, sessionID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *pgBackend) Count(ctx context.Context, agentID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agent_memories WHERE agent_id=$1`, agentID).Scan(&n)
	return n, err
}

func (p *pgBackend) Stats(ctx context.Context, agentID string) (StatsResult, error) {
	res := StatsResult{ByType: map[Type]int{}, BySource: map[Source]int{}}

	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(importance),0), COALESCE(AVG(access_count),0),
		       MIN(created_at), MAX(created_at)
		FROM agent_memories WHERE agent_id=$1
	`, agentID).Scan(&res.Total, &res.AvgImportance, &res.AvgAccessCount, &res.OldestAt, &res.NewestAt)
	if err != nil {
		return res, err
	}

	typeRows, err := p.pool.Query(ctx, `SELECT type, COUNT(*) FROM agent_memories WHERE agent_id=$1 GROUP BY type`, agentID)
	if err != nil {
		return res, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var t string
		var c int
		if err := typeRows.Scan(&t, &c); err != nil {
			return res, err
		}
		res.ByType[Type(t)] = c
	}

	srcRows, err := p.pool.Query(ctx, `SELECT source, COUNT(*) FROM agent_memories WHERE agent_id=$1 GROUP BY source`, agentID)
	if err != nil {
		return res, err
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var s string
		var c int
		if err := srcRows.Scan(&s, &c); err != nil {
			return res, err
		}
		res.BySource[Source(s)] = c
	}
	return res, nil
}

func (p *pgBackend) UpsertSummary(ctx context.Context, s Summary) error {
	keyPoints, _ := json.Marshal(s.KeyPoints)
	entities, _ := json.Marshal(s.Entities)
	topics, _ := json.Marshal(s.Topics)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO agent_memory_summaries
			(id, agent_id, session_id, summary, message_count, key_points, entities, topics, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (agent_id, session_id) DO UPDATE SET
			summary=$4, message_count=$5, key_points=$6, entities=$7, topics=$8, created_at=$9
	`, s.ID, s.AgentID, s.SessionID, s.Summary, s.MessageCount, keyPoints, entities, topics, s.CreatedAt)
	return err
}

func (p *pgBackend) LatestSummary(ctx context.Context, agentID, sessionID string) (Summary, bool, error) {
	var s Summary
	var keyPoints, entities, topics []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, agent_id, session_id, summary, message_count, key_points, entities, topics, created_at
		FROM agent_memory_summaries WHERE agent_id=$1 AND session_id=$2
	`, agentID, sessionID).Scan(&s.ID, &s.AgentID, &s.SessionID, &s.Summary, &s.MessageCount, &keyPoints, &entities, &topics, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}
	_ = json.Unmarshal(keyPoints, &s.KeyPoints)
	_ = json.Unmarshal(entities, &s.Entities)
	_ = json.Unmarshal(topics, &s.Topics)
	return s, true, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (Entry, error) {
	var e Entry
	var sessionID, userID *string
	var typeStr, sourceStr string
	var embJSON, metaJSON []byte
	err := row.Scan(&e.ID, &e.AgentID, &sessionID, &userID, &e.Content, &typeStr, &sourceStr,
		&embJSON, &e.EmbeddingModel, &e.Importance, &e.DecayFactor, &e.AccessCount,
		&e.LastAccessedAt, &e.Timestamp, &e.ExpiresAt, &metaJSON)
	if err != nil {
		return Entry{}, err
	}
	e.Type = Type(typeStr)
	e.Source = Source(sourceStr)
	if sessionID != nil {
		e.SessionID = *sessionID
	}
	if userID != nil {
		e.UserID = *userID
	}
	_ = json.Unmarshal(embJSON, &e.Embedding)
	_ = json.Unmarshal(metaJSON, &e.Metadata)
	return e, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
