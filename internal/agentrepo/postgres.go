package agentrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

// Postgres is the production Repository implementation, following the
// platform's pgx-based CRUD-store convention.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) CreateAgent(ctx context.Context, a Agent) (Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusIdle
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	cfgJSON, err := json.Marshal(a.Config)
	if err != nil {
		return Agent{}, err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO agents (id, owner_id, public, name, description, avatar, type, status, config, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.OwnerID, a.Public, a.Name, a.Description, a.Avatar, string(a.Type), string(a.Status), cfgJSON, a.Deleted, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Agent{}, runtimeerr.Wrap(runtimeerr.Conflict, "create agent", err)
	}
	return a, nil
}

func (p *Postgres) UpdateAgent(ctx context.Context, a Agent) (Agent, error) {
	a.UpdatedAt = time.Now()
	cfgJSON, err := json.Marshal(a.Config)
	if err != nil {
		return Agent{}, err
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE agents SET name=$2, description=$3, avatar=$4, type=$5, status=$6, config=$7, public=$8, updated_at=$9
		WHERE id=$1 AND NOT deleted
	`, a.ID, a.Name, a.Description, a.Avatar, string(a.Type), string(a.Status), cfgJSON, a.Public, a.UpdatedAt)
	if err != nil {
		return Agent{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "update agent", err)
	}
	if tag.RowsAffected() == 0 {
		return Agent{}, runtimeerr.New(runtimeerr.NotFound, "agent not found: "+a.ID)
	}
	return a, nil
}

func (p *Postgres) SoftDeleteAgent(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE agents SET deleted=true, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "soft delete agent", err)
	}
	if tag.RowsAffected() == 0 {
		return runtimeerr.New(runtimeerr.NotFound, "agent not found: "+id)
	}
	return nil
}

func (p *Postgres) GetAgent(ctx context.Context, id string) (Agent, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, owner_id, public, name, description, avatar, type, status, config, deleted, created_at, updated_at
		FROM agents WHERE id=$1 AND NOT deleted
	`, id)
	a, err := scanAgent(row)
	if err == pgx.ErrNoRows {
		return Agent{}, false, nil
	}
	if err != nil {
		return Agent{}, false, err
	}
	return a, true, nil
}

func (p *Postgres) ListAgentsByOwner(ctx context.Context, ownerID string) ([]Agent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, owner_id, public, name, description, avatar, type, status, config, deleted, created_at, updated_at
		FROM agents WHERE owner_id=$1 AND NOT deleted ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) ListPublicAgents(ctx context.Context) ([]Agent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, owner_id, public, name, description, avatar, type, status, config, deleted, created_at, updated_at
		FROM agents WHERE public AND NOT deleted ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now()
	s.LastActiveAt = s.CreatedAt
	metaJSON, _ := json.Marshal(s.Metadata)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO agent_sessions (id, agent_id, user_id, title, last_active_at, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, s.ID, s.AgentID, s.UserID, s.Title, s.LastActiveAt, metaJSON, s.CreatedAt)
	if err != nil {
		return Session{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "create session", err)
	}
	return s, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (Session, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, agent_id, user_id, title, last_active_at, metadata, created_at
		FROM agent_sessions WHERE id=$1
	`, id)
	s, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

func (p *Postgres) ListSessionsByAgent(ctx context.Context, agentID string) ([]Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, agent_id, user_id, title, last_active_at, metadata, created_at
		FROM agent_sessions WHERE agent_id=$1 ORDER BY last_active_at DESC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) TouchSession(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE agent_sessions SET last_active_at=now() WHERE id=$1`, id)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "touch session", err)
	}
	if tag.RowsAffected() == 0 {
		return runtimeerr.New(runtimeerr.NotFound, "session not found: "+id)
	}
	return nil
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM agent_sessions WHERE id=$1`, id)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.MemoryBackend, "delete session", err)
	}
	return nil
}

func (p *Postgres) AppendMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	toolCallsJSON, _ := json.Marshal(m.ToolCalls)
	metaJSON, _ := json.Marshal(m.Metadata)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO agent_messages (id, session_id, role, content, tool_calls, tool_call_id, tokens, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.SessionID, string(m.Role), m.Content, toolCallsJSON, nullableStr(m.ToolCallID), m.Tokens, metaJSON, m.CreatedAt)
	if err != nil {
		return Message{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "append message", err)
	}
	return m, nil
}

func (p *Postgres) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, role, content, tool_calls, tool_call_id, tokens, metadata, created_at
		FROM agent_messages WHERE session_id=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scannable interface{ Scan(dest ...any) error }

func scanAgent(row scannable) (Agent, error) {
	var a Agent
	var typeStr, statusStr string
	var cfgJSON []byte
	err := row.Scan(&a.ID, &a.OwnerID, &a.Public, &a.Name, &a.Description, &a.Avatar,
		&typeStr, &statusStr, &cfgJSON, &a.Deleted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Agent{}, err
	}
	a.Type = AgentType(typeStr)
	a.Status = Status(statusStr)
	_ = json.Unmarshal(cfgJSON, &a.Config)
	return a, nil
}

func scanSession(row scannable) (Session, error) {
	var s Session
	var metaJSON []byte
	err := row.Scan(&s.ID, &s.AgentID, &s.UserID, &s.Title, &s.LastActiveAt, &metaJSON, &s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	_ = json.Unmarshal(metaJSON, &s.Metadata)
	return s, nil
}

func scanMessage(row scannable) (Message, error) {
	var m Message
	var roleStr string
	var toolCallsJSON, metaJSON []byte
	var toolCallID *string
	err := row.Scan(&m.ID, &m.SessionID, &roleStr, &m.Content, &toolCallsJSON, &toolCallID, &m.Tokens, &metaJSON, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.Role = Role(roleStr)
	if toolCallID != nil {
		m.ToolCallID = *toolCallID
	}
	_ = json.Unmarshal(toolCallsJSON, &m.ToolCalls)
	_ = json.Unmarshal(metaJSON, &m.Metadata)
	return m, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
