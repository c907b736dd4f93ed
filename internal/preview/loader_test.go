package preview

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil)
}

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	doc := []byte(`{"hello":"world"}`)
	gz := gzipBytes(t, doc)
	zs := zstdBytes(t, doc)

	mux := http.NewServeMux()
	mux.HandleFunc("/plain.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
	mux.HandleFunc("/gzip.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gz)
	})
	mux.HandleFunc("/zstd.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write(zs)
	})
	mux.HandleFunc("/big.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 64)))
	})
	mux.HandleFunc("/cached.txt", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte("cached body"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_Load(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	loader := NewLoader(LoaderConfig{MaxBytes: 32})

	tests := []struct {
		name string
		path string
	}{
		{name: "identity", path: "/plain.json"},
		{name: "gzip", path: "/gzip.json"},
		{name: "zstd", path: "/zstd.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := loader.Load(context.Background(), Request{
				URL:         srv.URL + tt.path,
				ContentType: "application/json",
				Name:        "data.json",
			})
			require.NoError(t, err)
			require.Equal(t, KindJSON, doc.Kind)
			require.Equal(t, "hello", doc.Tree.Children[0].Key)
			require.Equal(t, "world", doc.Tree.Children[0].Value)
		})
	}
}

func TestLoader_truncates(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	loader := NewLoader(LoaderConfig{MaxBytes: 32})

	doc, err := loader.Load(context.Background(), Request{URL: srv.URL + "/big.txt", Name: "big.txt"})
	require.NoError(t, err)
	require.Equal(t, KindText, doc.Kind)
	require.True(t, doc.Truncated)
	require.Len(t, doc.Text, 32)
}

func TestLoader_mediaIsNotFetched(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	loader := NewLoader(LoaderConfig{})

	doc, err := loader.Load(context.Background(), Request{
		URL:         srv.URL + "/plain.json",
		ContentType: "image/png",
		Name:        "cat.png",
		EmbedURL:    "/raw/s3/bucket?key=cat.png",
	})
	require.NoError(t, err)
	require.Equal(t, KindImage, doc.Kind)
	require.Equal(t, "/raw/s3/bucket?key=cat.png", doc.URL)
	require.Zero(t, hits.Load())
}

func TestLoader_non2xx(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	loader := NewLoader(LoaderConfig{})

	_, err := loader.Load(context.Background(), Request{URL: srv.URL + "/missing", Name: "missing.txt"})
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestLoader_cachesResponses(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	loader := NewLoader(LoaderConfig{Client: NewHTTPClient("", 0, 5*time.Second)})

	for range 2 {
		doc, err := loader.Load(context.Background(), Request{URL: srv.URL + "/cached.txt", Name: "cached.txt"})
		require.NoError(t, err)
		require.Equal(t, "cached body", doc.Text)
	}
	require.Equal(t, int32(1), hits.Load())
}

func TestDecodeBody_unsupported(t *testing.T) {
	_, _, err := decodeBody(strings.NewReader("x"), "br")
	require.ErrorContains(t, err, "unsupported content encoding")
}
