package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentruntime/internal/embedding"
	"github.com/intelligencedev/agentruntime/internal/memory"
	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

const defaultChunkTokens = 500

// Ingestor is the KnowledgeIngestor component: it fetches a URL, cleans it
// to Markdown, uploads the raw payload, chunks and embeds the Markdown, and
// persists the result as a Document/Chunk pair plus knowledge-sourced
// memories searchable by the knowledge_search tool.
type Ingestor struct {
	repo     Repository
	objects  ObjectStore
	embedder embedding.Provider
	mem      *memory.Store
	chunkTok int
}

func NewIngestor(repo Repository, objects ObjectStore, embedder embedding.Provider, mem *memory.Store) *Ingestor {
	return &Ingestor{repo: repo, objects: objects, embedder: embedder, mem: mem, chunkTok: defaultChunkTokens}
}

// IngestResult reports the outcome of one Ingest call.
type IngestResult struct {
	Document   Document
	Chunks     int
	Deduplicated bool
}

// Ingest fetches sourceURL, extracts and cleans its content, uploads the raw
// payload, and persists the document, its chunks, and searchable memories.
// Re-ingesting an unchanged source is a no-op beyond returning the existing
// document.
func (ing *Ingestor) Ingest(ctx context.Context, agentID, sourceURL string) (IngestResult, error) {
	fetched, err := fetchDocument(ctx, sourceURL)
	if err != nil {
		return IngestResult{}, runtimeerr.Wrap(runtimeerr.BadRequest, "fetch source", err)
	}

	hash := contentHash(fetched.Raw)
	if existing, ok, err := ing.repo.FindByHash(ctx, agentID, hash); err == nil && ok {
		return IngestResult{Document: existing, Chunks: existing.ChunkCount, Deduplicated: true}, nil
	}

	objectKey := fmt.Sprintf("knowledge/%s/%s", agentID, hash)
	if err := ing.objects.Put(ctx, objectKey, fetched.Raw, "application/octet-stream"); err != nil {
		return IngestResult{}, runtimeerr.Wrap(runtimeerr.MemoryBackend, "upload raw document", err)
	}

	pieces := chunkMarkdown(fetched.Markdown, ing.chunkTok)

	doc, err := ing.repo.InsertDocument(ctx, Document{
		AgentID:      agentID,
		SourceURL:    sourceURL,
		Title:        fetched.Title,
		ContentHash:  hash,
		RawObjectKey: objectKey,
		ChunkCount:   len(pieces),
	})
	if err != nil {
		return IngestResult{}, err
	}

	chunks := make([]Chunk, 0, len(pieces))
	texts := make([]string, 0, len(pieces))
	for i, p := range pieces {
		texts = append(texts, p.text)
		chunks = append(chunks, Chunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			AgentID:     agentID,
			ChunkIndex:  i,
			StartOffset: p.start,
			EndOffset:   p.end,
			Content:     p.text,
			Hash:        contentHash([]byte(p.text)),
		})
	}

	if ing.embedder != nil && len(texts) > 0 {
		vecs, err := ing.embedder.Embed(ctx, texts)
		if err == nil && len(vecs) == len(chunks) {
			for i := range chunks {
				chunks[i].Embedding = vecs[i]
			}
		}
	}

	if err := ing.repo.InsertChunks(ctx, chunks); err != nil {
		return IngestResult{}, err
	}

	if ing.mem != nil {
		for _, c := range chunks {
			_, _ = ing.mem.Store(ctx, memory.Entry{
				AgentID:   agentID,
				Content:   c.Content,
				Type:      memory.Semantic,
				Source:    memory.SourceKnowledge,
				Embedding: c.Embedding,
				Metadata: map[string]any{
					"document_id": doc.ID,
					"chunk_index": c.ChunkIndex,
					"source_url":  sourceURL,
				},
			})
		}
	}

	return IngestResult{Document: doc, Chunks: len(chunks)}, nil
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type chunkSpan struct {
	text       string
	start, end int
}

// chunkMarkdown packs consecutive paragraphs (split on blank lines) into
// spans of at most maxTokens estimated tokens. A single paragraph larger
// than maxTokens becomes a span of its own and is not split further.
func chunkMarkdown(text string, maxTokens int) []chunkSpan {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	paragraphs := strings.Split(text, "\n\n")
	var spans []chunkSpan
	var builder strings.Builder
	start := 0
	offset := 0

	flush := func(end int) {
		if builder.Len() == 0 {
			return
		}
		spans = append(spans, chunkSpan{text: strings.TrimSpace(builder.String()), start: start, end: end})
		builder.Reset()
	}

	for _, para := range paragraphs {
		paraTokens := memory.EstimateTokens(para)
		curTokens := memory.EstimateTokens(builder.String())
		if curTokens > 0 && curTokens+paraTokens > maxTokens {
			flush(offset)
			start = offset
		}
		builder.WriteString(para)
		builder.WriteString("\n\n")
		offset += len(para) + 2
	}
	flush(offset)
	return spans
}
