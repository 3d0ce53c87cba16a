package memory

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache layers memory lookups keyed by entry id, with explicit invalidation
// by agent and by session so writers can drop stale answers.
type Cache interface {
	Get(id string) (Entry, bool)
	Put(e Entry)
	InvalidateAgent(agentID string)
	InvalidateSession(agentID, sessionID string)
}

// lruCache is the default, always-available in-process cache.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	id    string
	entry Entry
}

func NewLRUCache(capacity int) Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lruCache{capacity: capacity, ll: list.New(), items: make(map[string]*list.Element)}
}

func (c *lruCache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*lruEntry).entry, true
	}
	return Entry{}, false
}

func (c *lruCache) Put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[e.ID]; ok {
		el.Value.(*lruEntry).entry = e
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{id: e.ID, entry: e})
	c.items[e.ID] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).id)
		}
	}
}

func (c *lruCache) InvalidateAgent(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, el := range c.items {
		if el.Value.(*lruEntry).entry.AgentID == agentID {
			c.ll.Remove(el)
			delete(c.items, id)
		}
	}
}

func (c *lruCache) InvalidateSession(agentID, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, el := range c.items {
		en := el.Value.(*lruEntry).entry
		if en.AgentID == agentID && en.SessionID == sessionID {
			c.ll.Remove(el)
			delete(c.items, id)
		}
	}
}

// redisCache is the production cache backend, used when MEMORY_ENABLE_CACHE
// is true and REDIS_URL is set. Agent/session invalidation is implemented with a
// secondary index set per scope, since Redis has no native "delete by field."
type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(dsn string, ttl time.Duration) (Cache, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisCache{rdb: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *redisCache) key(id string) string          { return "mem:entry:" + id }
func (c *redisCache) agentIndex(a string) string     { return "mem:idx:agent:" + a }
func (c *redisCache) sessionIndex(a, s string) string { return "mem:idx:session:" + a + ":" + s }

func (c *redisCache) Get(id string) (Entry, bool) {
	ctx := context.Background()
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func (c *redisCache) Put(e Entry) {
	ctx := context.Background()
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, c.key(e.ID), raw, c.ttl)
	pipe.SAdd(ctx, c.agentIndex(e.AgentID), e.ID)
	pipe.Expire(ctx, c.agentIndex(e.AgentID), c.ttl)
	if e.SessionID != "" {
		pipe.SAdd(ctx, c.sessionIndex(e.AgentID, e.SessionID), e.ID)
		pipe.Expire(ctx, c.sessionIndex(e.AgentID, e.SessionID), c.ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (c *redisCache) InvalidateAgent(agentID string) {
	ctx := context.Background()
	ids, err := c.rdb.SMembers(ctx, c.agentIndex(agentID)).Result()
	if err != nil {
		return
	}
	pipe := c.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, c.key(id))
	}
	pipe.Del(ctx, c.agentIndex(agentID))
	_, _ = pipe.Exec(ctx)
}

func (c *redisCache) InvalidateSession(agentID, sessionID string) {
	ctx := context.Background()
	ids, err := c.rdb.SMembers(ctx, c.sessionIndex(agentID, sessionID)).Result()
	if err != nil {
		return
	}
	pipe := c.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, c.key(id))
	}
	pipe.Del(ctx, c.sessionIndex(agentID, sessionID))
	_, _ = pipe.Exec(ctx)
}
