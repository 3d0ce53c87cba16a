package tools

import (
	"context"
	"encoding/json"
	"sync"
)

type defaultRegistry struct {
	mu     sync.RWMutex
	byName map[string]Tool
}

// NewRegistry returns a basic in-memory registry, safe for concurrent
// registration and dispatch.
func NewRegistry() Registry {
	return &defaultRegistry{byName: make(map[string]Tool)}
}

func (r *defaultRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[t.Name()] = t
}

func (r *defaultRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

func (r *defaultRegistry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, Schema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.JSONSchema(),
		})
	}
	return out
}

func (r *defaultRegistry) Dispatch(ctx context.Context, tc Context, name string, raw json.RawMessage) Result {
	t, ok := r.Get(name)
	if !ok {
		return Result{Success: false, Error: "tool not found: " + name}
	}
	return t.Execute(ctx, tc, raw)
}

// DispatchEvent captures a single tool dispatch invocation and result, for
// audit wiring via NewRecordingRegistry.
type DispatchEvent struct {
	Name   string
	Args   json.RawMessage
	Result Result
}

type recordingRegistry struct {
	base Registry
	on   func(DispatchEvent)
}

// NewRecordingRegistry wraps base and calls on for every Dispatch.
func NewRecordingRegistry(base Registry, on func(DispatchEvent)) Registry {
	if base == nil {
		base = NewRegistry()
	}
	return &recordingRegistry{base: base, on: on}
}

func (r *recordingRegistry) Register(t Tool)          { r.base.Register(t) }
func (r *recordingRegistry) Get(name string) (Tool, bool) { return r.base.Get(name) }
func (r *recordingRegistry) Schemas() []Schema        { return r.base.Schemas() }

func (r *recordingRegistry) Dispatch(ctx context.Context, tc Context, name string, raw json.RawMessage) Result {
	res := r.base.Dispatch(ctx, tc, name, raw)
	if r.on != nil {
		r.on(DispatchEvent{Name: name, Args: raw, Result: res})
	}
	return res
}
