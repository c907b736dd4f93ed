package preview

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultCacheBytes bounds the in-memory preview cache when no size is given.
const DefaultCacheBytes = 64 << 20

// NewHTTPClient creates the client used to fetch preview bodies. Responses
// are cached in cacheDir, or in memory up to cacheBytes when cacheDir is
// empty, honouring the backend's cache headers. Entries are keyed by the
// object URL without its presigned query, so a fresh signature for the same
// object revalidates the cached body by ETag instead of missing.
func NewHTTPClient(cacheDir string, cacheBytes int64, timeout time.Duration) *http.Client {
	var cache httpcache.Cache
	if cacheDir == "" {
		if cacheBytes <= 0 {
			cacheBytes = DefaultCacheBytes
		}
		cache = newMemoryCache(cacheBytes)
	} else {
		cache = diskcache.New(cacheDir)
	}

	transport := httpcache.NewTransport(presignedCache{cache})
	transport.Transport = otelhttp.NewTransport(http.DefaultTransport)

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
