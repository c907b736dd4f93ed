package preview

import (
	"container/list"
	"net/url"
	"strings"
	"sync"

	"github.com/gregjones/httpcache"
)

// presignedCache drops the SigV4 query parameters from cache keys. Every
// presign produces a new URL for the same object, which would otherwise
// never hit.
type presignedCache struct {
	httpcache.Cache
}

func (c presignedCache) Get(key string) ([]byte, bool) { return c.Cache.Get(cacheKey(key)) }

func (c presignedCache) Set(key string, data []byte) { c.Cache.Set(cacheKey(key), data) }

func (c presignedCache) Delete(key string) { c.Cache.Delete(cacheKey(key)) }

// cacheKey strips X-Amz-* query parameters from a URL. Other parameters,
// such as versionId, stay part of the key.
func cacheKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	for name := range q {
		if strings.HasPrefix(strings.ToLower(name), "x-amz-") {
			q.Del(name)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// memoryCache is an httpcache.Cache holding at most maxBytes of responses,
// evicting the least recently used first.
type memoryCache struct {
	mu       sync.Mutex
	maxBytes int64
	size     int64
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key  string
	data []byte
}

func newMemoryCache(maxBytes int64) *memoryCache {
	return &memoryCache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  map[string]*list.Element{},
	}
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

func (c *memoryCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)
	// a response larger than the whole cache is not worth evicting for
	if int64(len(data)) > c.maxBytes {
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
	c.size += int64(len(data))

	for c.size > c.maxBytes {
		c.remove(c.order.Back().Value.(*cacheEntry).key)
	}
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

func (c *memoryCache) remove(key string) {
	el, ok := c.entries[key]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.entries, key)
	c.size -= int64(len(el.Value.(*cacheEntry).data))
}

// Len returns the number of cached responses.
func (c *memoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
