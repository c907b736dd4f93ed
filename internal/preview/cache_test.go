package preview

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{
			url:  "http://s3.local/b/a.txt?X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Credential=x&X-Amz-Date=20260101T000000Z&X-Amz-Expires=900&X-Amz-SignedHeaders=host&X-Amz-Signature=abc",
			want: "http://s3.local/b/a.txt",
		},
		{
			url:  "http://s3.local/b/a.txt?versionId=3&x-amz-signature=abc",
			want: "http://s3.local/b/a.txt?versionId=3",
		},
		{url: "http://s3.local/b/a%20b.txt", want: "http://s3.local/b/a%20b.txt"},
		{url: "::not a url", want: "::not a url"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, cacheKey(tt.url), tt.url)
	}
}

func TestMemoryCache_evictsLeastRecentlyUsed(t *testing.T) {
	c := newMemoryCache(10)

	c.Set("a", []byte("aaaa"))
	c.Set("b", []byte("bbbb"))
	_, ok := c.Get("a")
	require.True(t, ok)

	// b is now the oldest
	c.Set("c", []byte("cccc"))
	_, ok = c.Get("b")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, c.Len())

	// replacing an entry frees its old size
	c.Set("a", []byte("a"))
	c.Set("d", []byte("ddddd"))
	require.Equal(t, 3, c.Len())

	c.Set("huge", make([]byte, 11))
	_, ok = c.Get("huge")
	require.False(t, ok)

	c.Delete("d")
	_, ok = c.Get("d")
	require.False(t, ok)
	require.Equal(t, 2, c.Len())
}

func TestLoader_revalidatesPresignedURLs(t *testing.T) {
	var full, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"etag-1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"etag-1"`)
		_, _ = w.Write([]byte("signed body"))
	}))
	t.Cleanup(srv.Close)

	loader := NewLoader(LoaderConfig{Client: NewHTTPClient("", 0, 5*time.Second)})
	for i := range 3 {
		url := fmt.Sprintf("%s/b/notes.txt?X-Amz-Expires=900&X-Amz-Signature=%04d", srv.URL, i)
		doc, err := loader.Load(context.Background(), Request{URL: url, Name: "notes.txt"})
		require.NoError(t, err)
		require.Equal(t, "signed body", doc.Text)
	}

	require.Equal(t, int32(1), full.Load())
	require.Equal(t, int32(2), notModified.Load())
}
