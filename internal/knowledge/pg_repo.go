package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

// Postgres is the production Repository implementation.
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

func (p *Postgres) FindByHash(ctx context.Context, agentID, hash string) (Document, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, agent_id, source_url, title, content_hash, raw_object_key, chunk_count, created_at
		FROM agent_knowledge_documents WHERE agent_id=$1 AND content_hash=$2
	`, agentID, hash)
	d, err := scanDocument(row)
	if err == pgx.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return d, true, nil
}

func (p *Postgres) InsertDocument(ctx context.Context, d Document) (Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO agent_knowledge_documents (id, agent_id, source_url, title, content_hash, raw_object_key, chunk_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
	`, d.ID, d.AgentID, nullableStr(d.SourceURL), d.Title, d.ContentHash, nullableStr(d.RawObjectKey), d.ChunkCount)
	if err != nil {
		return Document{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "insert knowledge document", err)
	}
	return d, nil
}

func (p *Postgres) InsertChunks(ctx context.Context, chunks []Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		embJSON, _ := json.Marshal(c.Embedding)
		batch.Queue(`
			INSERT INTO agent_knowledge_chunks (id, document_id, agent_id, chunk_index, start_offset, end_offset, content, hash, embedding, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
		`, id, c.DocumentID, c.AgentID, c.ChunkIndex, c.StartOffset, c.EndOffset, c.Content, c.Hash, embJSON)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return runtimeerr.Wrap(runtimeerr.MemoryBackend, "insert knowledge chunk", err)
		}
	}
	return nil
}

func (p *Postgres) ListDocuments(ctx context.Context, agentID string) ([]Document, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, agent_id, source_url, title, content_hash, raw_object_key, chunk_count, created_at
		FROM agent_knowledge_documents WHERE agent_id=$1 ORDER BY created_at DESC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, agent_id, chunk_index, start_offset, end_offset, content, hash, created_at
		FROM agent_knowledge_chunks WHERE document_id=$1 ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.AgentID, &c.ChunkIndex, &c.StartOffset, &c.EndOffset, &c.Content, &c.Hash, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scannable interface{ Scan(dest ...any) error }

func scanDocument(row scannable) (Document, error) {
	var d Document
	var sourceURL, rawObjectKey *string
	err := row.Scan(&d.ID, &d.AgentID, &sourceURL, &d.Title, &d.ContentHash, &rawObjectKey, &d.ChunkCount, &d.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	if sourceURL != nil {
		d.SourceURL = *sourceURL
	}
	if rawObjectKey != nil {
		d.RawObjectKey = *rawObjectKey
	}
	return d, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
