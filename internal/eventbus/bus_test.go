package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeReceivesMatchingEvents(t *testing.T) {
	t.Parallel()
	b := New(10)

	var mu sync.Mutex
	var received []Event
	b.SubscribeFiltered(Filter{AgentID: "a1"}, func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	b.Emit(Event{Type: ChatStarted, Meta: Metadata{AgentID: "a1"}})
	b.Emit(Event{Type: ChatStarted, Meta: Metadata{AgentID: "a2"}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a1", received[0].Meta.AgentID)
}

func TestBus_HistoryRespectsCapAndFilter(t *testing.T) {
	t.Parallel()
	b := New(2)

	b.Emit(Event{Type: ChatStarted, Meta: Metadata{AgentID: "a1"}})
	b.Emit(Event{Type: ChatCompleted, Meta: Metadata{AgentID: "a1"}})
	b.Emit(Event{Type: ChatError, Meta: Metadata{AgentID: "a1"}})

	all := b.History(Filter{}, 0)
	assert.Len(t, all, 2, "history must be bounded to historyCap")
	assert.Equal(t, ChatCompleted, all[0].Type)
	assert.Equal(t, ChatError, all[1].Type)

	assert.Empty(t, b.History(Filter{AgentID: "a2"}, 0), "filter must exclude other agents' events")
	last := b.History(Filter{AgentID: "a1"}, 1)
	require.Len(t, last, 1)
	assert.Equal(t, ChatError, last[0].Type)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := New(10)

	var mu sync.Mutex
	count := 0
	h := b.SubscribeFiltered(Filter{}, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Emit(Event{Type: ChatStarted})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	b.Unsubscribe(h)
	b.Emit(Event{Type: ChatStarted})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no further events should be delivered after Unsubscribe")
}

func TestFilter_ZeroValueMatchesEverything(t *testing.T) {
	t.Parallel()
	var f Filter
	assert.True(t, f.matches(Event{Meta: Metadata{AgentID: "x", SessionID: "y"}}))
}
