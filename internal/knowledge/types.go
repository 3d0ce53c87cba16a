// Package knowledge implements the KnowledgeIngestor component: fetching,
// cleaning, chunking, and embedding external documents for an agent.
package knowledge

import (
	"context"
	"time"
)

// Document is a fetched and cleaned external source owned by one agent.
type Document struct {
	ID           string
	AgentID      string
	SourceURL    string
	Title        string
	ContentHash  string
	RawObjectKey string
	ChunkCount   int
	CreatedAt    time.Time
}

// Chunk is one token-bounded slice of a Document's cleaned Markdown.
type Chunk struct {
	ID         string
	DocumentID string
	AgentID    string
	ChunkIndex int
	StartOffset int
	EndOffset  int
	Content    string
	Hash       string
	Embedding  []float32
	CreatedAt  time.Time
}

// Repository persists documents and chunks.
type Repository interface {
	FindByHash(ctx context.Context, agentID, hash string) (Document, bool, error)
	InsertDocument(ctx context.Context, d Document) (Document, error)
	InsertChunks(ctx context.Context, chunks []Chunk) error
	ListDocuments(ctx context.Context, agentID string) ([]Document, error)
	ListChunks(ctx context.Context, documentID string) ([]Chunk, error)
}
