package eventbus

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle identifies a subscription for later Unsubscribe calls.
type Handle uint64

// Filter narrows a subscription to events matching a specific agent and/or
// session. A zero-value Filter matches everything.
type Filter struct {
	AgentID   string
	SessionID string
}

func (f Filter) matches(e Event) bool {
	if f.AgentID != "" && f.AgentID != e.Meta.AgentID {
		return false
	}
	if f.SessionID != "" && f.SessionID != e.Meta.SessionID {
		return false
	}
	return true
}

const subscriberBuffer = 64

type subscriber struct {
	handle Handle
	filter Filter
	ch     chan Event
}

// Bus is an in-process, non-blocking publish/subscribe hub with a bounded
// FIFO replay history.
type Bus struct {
	mu          sync.RWMutex
	subs        map[Handle]*subscriber
	nextHandle  Handle
	history     []Event
	historyCap  int
}

// New returns a Bus with the given history capacity (0 uses the default of 1000).
func New(historyCap int) *Bus {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Bus{
		subs:       make(map[Handle]*subscriber),
		historyCap: historyCap,
	}
}

// Emit publishes an event. Publish never blocks on a slow subscriber: each
// subscriber is fed through its own bounded channel, and a full channel
// drops the event for that subscriber only.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter.matches(e) {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].handle < subs[j].handle })
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- e:
		default:
			log.Warn().Str("event", string(e.Type)).Msg("eventbus: subscriber channel full, dropping event")
		}
	}
}

// Subscribe registers callback for all events, invoked in its own goroutine.
func (b *Bus) Subscribe(callback func(Event)) Handle {
	return b.SubscribeFiltered(Filter{}, callback)
}

// SubscribeFiltered registers callback for events matching filter.
func (b *Bus) SubscribeFiltered(filter Filter, callback func(Event)) Handle {
	b.mu.Lock()
	b.nextHandle++
	h := b.nextHandle
	s := &subscriber{handle: h, filter: filter, ch: make(chan Event, subscriberBuffer)}
	b.subs[h] = s
	b.mu.Unlock()

	go func() {
		for e := range s.ch {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("recover", r).Msg("eventbus: subscriber panicked")
					}
				}()
				callback(e)
			}()
		}
	}()
	return h
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	s, ok := b.subs[h]
	if ok {
		delete(b.subs, h)
	}
	b.mu.Unlock()
	if ok {
		close(s.ch)
	}
}

// History returns up to limit most-recent events matching filter, oldest first.
func (b *Bus) History(filter Filter, limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.history {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ClearHistory drops all buffered history without affecting live subscribers.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}
