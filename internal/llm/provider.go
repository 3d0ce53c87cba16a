package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/intelligencedev/agentruntime/internal/runtimeerr"
)

// StreamHandler receives incremental chunks during ChatStream.
type StreamHandler interface {
	OnChunk(ChatStreamChunk)
}

// StreamHandlerFunc adapts a function to StreamHandler.
type StreamHandlerFunc func(ChatStreamChunk)

func (f StreamHandlerFunc) OnChunk(c ChatStreamChunk) { f(c) }

// Provider is the uniform contract every vendor adapter implements.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest, h StreamHandler) error
}

// UpstreamError wraps a non-2xx or transport failure from a provider.
func UpstreamError(provider string, status int, body string, cause error) error {
	msg := fmt.Sprintf("provider %s", provider)
	if status != 0 {
		msg = fmt.Sprintf("%s: status %d: %s", msg, status, body)
	}
	return runtimeerr.Wrap(runtimeerr.LLMUpstream, msg, cause)
}

// Factory owns named provider instances, built once at startup and looked
// up by name thereafter. Lookup of an unknown name falls back to a default.
type Factory struct {
	mu       sync.RWMutex
	byName   map[string]Provider
	defaultP string
}

func NewFactory() *Factory {
	return &Factory{byName: make(map[string]Provider)}
}

// Register adds a provider, marking it default if none is set yet.
func (f *Factory) Register(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[p.Name()] = p
	if f.defaultP == "" {
		f.defaultP = p.Name()
	}
}

// SetDefault designates the provider returned for unknown names.
func (f *Factory) SetDefault(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[name]; ok {
		f.defaultP = name
	}
}

// Get resolves a provider by name. An empty or unknown name falls back to
// the default provider (the one named by SetDefault, else the first one
// registered), then to any registered provider; an unknown non-empty name
// logs a warning. The bool is false only when no provider is registered.
func (f *Factory) Get(name string) (Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if name != "" {
		if p, ok := f.byName[name]; ok {
			return p, true
		}
		log.Warn().Str("provider", name).Str("fallback", f.defaultP).Msg("unknown llm provider requested, falling back to default")
	}
	if p, ok := f.byName[f.defaultP]; ok {
		return p, true
	}
	for _, p := range f.byName {
		return p, true
	}
	return nil, false
}
