// Package embedding computes vector embeddings for memory and knowledge
// content, backed by the OpenAI embeddings endpoint with a deterministic
// local fallback for offline/test use.
package embedding

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"
)

const maxConcurrentEmbeddings = 5

// Provider computes embeddings for a batch of text chunks.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// openAIProvider calls the OpenAI embeddings endpoint, bounding concurrency
// the way the platform bounds every other fan-out call.
type openAIProvider struct {
	sdk   openai.Client
	model string
	dim   int
}

func NewOpenAI(apiKey, baseURL, model string, dim int) Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAIProvider{sdk: openai.NewClient(opts...), model: model, dim: dim}
}

func (p *openAIProvider) Dimension() int { return p.dim }

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentEmbeddings)

	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if len(strings.TrimSpace(text)) < 3 {
				log.Warn().Int("index", i).Msg("embedding: text too short, using zero vector")
				results[i] = make([]float32, p.dim)
				return
			}

			resp, err := p.sdk.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
				Model: openai.EmbeddingModel(p.model),
			})
			if err != nil || len(resp.Data) == 0 {
				log.Warn().Err(err).Int("index", i).Msg("embedding: request failed, using zero vector")
				results[i] = make([]float32, p.dim)
				return
			}
			vec := make([]float32, len(resp.Data[0].Embedding))
			for j, f := range resp.Data[0].Embedding {
				vec[j] = float32(f)
			}
			results[i] = vec
		}(i, text)
	}
	wg.Wait()
	return results, nil
}

// Deterministic is a hash-based fallback provider for tests and offline use:
// same text always yields the same vector, without any network dependency.
type Deterministic struct {
	dim int
}

func NewDeterministic(dim int) *Deterministic {
	if dim <= 0 {
		dim = 64
	}
	return &Deterministic{dim: dim}
}

func (d *Deterministic) Dimension() int { return d.dim }

func (d *Deterministic) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, d.dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		b := sum[i%len(sum)]
		vec[i] = (float32(b)/255.0)*2 - 1
	}
	return vec
}
