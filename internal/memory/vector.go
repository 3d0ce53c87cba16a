package memory

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

const bruteForceScanCap = 10000

// VectorHit is one nearest-neighbor result.
type VectorHit struct {
	ID         string
	Similarity float64
}

// VectorBackend abstracts "given an agent id and a query vector, return the
// top-k nearest memory ids with similarity scores."
type VectorBackend interface {
	Upsert(ctx context.Context, agentID, id string, vec []float32) error
	Delete(ctx context.Context, agentID, id string) error
	Search(ctx context.Context, agentID string, query []float32, limit int) ([]VectorHit, error)
}

// CosineSimilarity returns 0 when either vector is zero or the lengths
// mismatch, and is symmetric and 1.0 for sim(v, v) with a non-zero v.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// bruteForceBackend is the documented in-process fallback: it loads up to
// bruteForceScanCap vectors for the agent and scans them linearly.
type bruteForceBackend struct {
	mu      sync.RWMutex
	byAgent map[string]map[string][]float32
}

func NewBruteForceBackend() VectorBackend {
	return &bruteForceBackend{byAgent: make(map[string]map[string][]float32)}
}

func (b *bruteForceBackend) Upsert(_ context.Context, agentID, id string, vec []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.byAgent[agentID] == nil {
		b.byAgent[agentID] = make(map[string][]float32)
	}
	b.byAgent[agentID][id] = vec
	return nil
}

func (b *bruteForceBackend) Delete(_ context.Context, agentID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byAgent[agentID], id)
	return nil
}

func (b *bruteForceBackend) Search(_ context.Context, agentID string, query []float32, limit int) ([]VectorHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	vectors := b.byAgent[agentID]
	if len(vectors) > bruteForceScanCap {
		log.Warn().Str("agent_id", agentID).Int("count", len(vectors)).
			Msg("memory: brute-force vector scan exceeds cap, results may be incomplete")
	}
	hits := make([]VectorHit, 0, len(vectors))
	scanned := 0
	for id, vec := range vectors {
		if scanned >= bruteForceScanCap {
			break
		}
		hits = append(hits, VectorHit{ID: id, Similarity: CosineSimilarity(query, vec)})
		scanned++
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// qdrantBackend is the production VectorBackend, backing one shared
// collection with the agent id stored as a payload filter field.
type qdrantBackend struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

const payloadAgentField = "agent_id"
const payloadOriginalIDField = "_original_id"

// NewQdrantBackend connects to a Qdrant instance over its gRPC API (default
// port 6334) and ensures the target collection exists with the given
// dimension and cosine distance.
func NewQdrantBackend(dsn, collection string, dimension int) (VectorBackend, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	backend := &qdrantBackend{client: client, collection: collection, dimension: dimension}
	if err := backend.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return backend, nil
}

func (q *qdrantBackend) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimension > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// pointID derives a deterministic UUID from (agentID, id), since Qdrant
// point ids must be UUIDs or positive integers; the original memory id is
// kept in the payload for retrieval.
func pointID(agentID, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(agentID+":"+id)).String()
}

func (q *qdrantBackend) Upsert(ctx context.Context, agentID, id string, vec []float32) error {
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(pointID(agentID, id)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadAgentField:      agentID,
				payloadOriginalIDField: id,
			}),
		}},
	})
	return err
}

func (q *qdrantBackend) Delete(ctx context.Context, agentID, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorIDs([]*qdrant.PointId{qdrant.NewID(pointID(agentID, id))}),
	})
	return err
}

func (q *qdrantBackend) Search(ctx context.Context, agentID string, query []float32, limit int) ([]VectorHit, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadAgentField, agentID),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	hits := make([]VectorHit, 0, len(res))
	for _, p := range res {
		id := p.Id.GetUuid()
		if v, ok := p.Payload[payloadOriginalIDField]; ok {
			id = v.GetStringValue()
		}
		hits = append(hits, VectorHit{ID: id, Similarity: float64(p.Score)})
	}
	return hits, nil
}
