package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/storage"
)

// CacheKey is the storage key of the persisted response cache
const CacheKey = "llm-cache.json"

// CacheOption configures a CachedClient
type CacheOption func(*CachedClient)

// WithCacheBackend persists entries under CacheKey so they outlive the
// process
func WithCacheBackend(backend storage.Backend) CacheOption {
	return func(c *CachedClient) { c.backend = backend }
}

// WithCacheFilter sets which replies are worth keeping. Rejected replies are
// returned to the caller but not cached.
func WithCacheFilter(keep func(ChatRequest, *ChatResponse) bool) CacheOption {
	return func(c *CachedClient) { c.keep = keep }
}

// WithCacheLogger sets the logger used for persistence failures
func WithCacheLogger(logger *loggy.Logger) CacheOption {
	return func(c *CachedClient) { c.logger = logger }
}

// cacheEntry is the persisted form of a go-cache item
type cacheEntry struct {
	Response   ChatResponse `json:"response"`
	Expiration int64        `json:"expiration"`
}

// CachedClient memoizes non-streaming replies. Streaming requests always go
// to the wrapped client.
type CachedClient struct {
	next    Client
	cache   *cache.Cache
	ttl     time.Duration
	backend storage.Backend
	keep    func(ChatRequest, *ChatResponse) bool
	logger  *loggy.Logger
	mu      sync.Mutex // serializes writes of the persisted document
}

// NewCachedClient wraps next with a cache whose entries expire after ttl.
// With a backend, unexpired entries are loaded from it first.
func NewCachedClient(next Client, ttl time.Duration, opts ...CacheOption) *CachedClient {
	c := &CachedClient{next: next, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = loggy.GetGlobalLogger()
	}
	c.cache = cache.NewFrom(ttl, ttl*2, c.load(context.Background()))
	return c
}

func cacheKey(req ChatRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateChat implements Client
func (c *CachedClient) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	key := cacheKey(req)
	if cached, found := c.cache.Get(key); found {
		resp := cached.(ChatResponse)
		return &resp, nil
	}

	resp, err := c.next.GenerateChat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" || (c.keep != nil && !c.keep(req, resp)) {
		return resp, nil
	}
	c.cache.Set(key, *resp, cache.DefaultExpiration)
	c.persist(context.WithoutCancel(ctx))
	return resp, nil
}

// GenerateChatStream implements Client
func (c *CachedClient) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error) {
	return c.next.GenerateChatStream(ctx, req)
}

// Len reports the number of live entries
func (c *CachedClient) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every entry, including the persisted ones
func (c *CachedClient) Flush() {
	c.cache.Flush()
	if c.backend == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.Delete(context.Background(), CacheKey); err != nil {
		c.logger.Warn("failed to delete response cache", "error", err)
	}
}

func (c *CachedClient) load(ctx context.Context) map[string]cache.Item {
	items := map[string]cache.Item{}
	if c.backend == nil {
		return items
	}

	var stored map[string]cacheEntry
	if _, err := storage.LoadJSON(ctx, c.backend, CacheKey, &stored); err != nil {
		c.logger.Warn("ignoring unreadable response cache", "error", err)
		return items
	}
	now := time.Now().UnixNano()
	for key, e := range stored {
		if e.Expiration > 0 && e.Expiration <= now {
			continue
		}
		items[key] = cache.Item{Object: e.Response, Expiration: e.Expiration}
	}
	return items
}

// persist rewrites the stored document from the live entries
func (c *CachedClient) persist(ctx context.Context) {
	if c.backend == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.cache.Items()
	stored := make(map[string]cacheEntry, len(items))
	for key, item := range items {
		resp, ok := item.Object.(ChatResponse)
		if !ok {
			continue
		}
		stored[key] = cacheEntry{Response: resp, Expiration: item.Expiration}
	}
	if err := storage.SaveJSON(ctx, c.backend, CacheKey, stored); err != nil {
		c.logger.Warn("failed to persist response cache", "error", err)
	}
}
