package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory is a concurrency-safe Repository backed by process memory, used
// for tests and single-node deployments without a configured database.
type InMemory struct {
	mu        sync.RWMutex
	documents map[string]Document
	chunks    map[string][]Chunk // by document id
}

func NewInMemory() *InMemory {
	return &InMemory{documents: make(map[string]Document), chunks: make(map[string][]Chunk)}
}

func (r *InMemory) FindByHash(_ context.Context, agentID, hash string) (Document, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.documents {
		if d.AgentID == agentID && d.ContentHash == hash {
			return d, true, nil
		}
	}
	return Document{}, false, nil
}

func (r *InMemory) InsertDocument(_ context.Context, d Document) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now()
	r.documents[d.ID] = d
	return d, nil
}

func (r *InMemory) InsertChunks(_ context.Context, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CreatedAt = time.Now()
		r.chunks[c.DocumentID] = append(r.chunks[c.DocumentID], c)
	}
	return nil
}

func (r *InMemory) ListDocuments(_ context.Context, agentID string) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Document
	for _, d := range r.documents {
		if d.AgentID == agentID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *InMemory) ListChunks(_ context.Context, documentID string) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chunk, len(r.chunks[documentID]))
	copy(out, r.chunks[documentID])
	return out, nil
}
