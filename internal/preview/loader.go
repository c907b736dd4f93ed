package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/awsui/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultMaxBytes = 1 << 20

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Client fetches bodies. NewHTTPClient is used when nil.
	Client *http.Client
	// MaxBytes bounds the decoded body read for a preview.
	MaxBytes int64
	Options  Options
}

// Loader runs the fetch and render lifecycle for object URLs.
type Loader struct {
	client    *http.Client
	maxBytes  int64
	renderers map[Kind]Renderer
}

func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient("", 0, 30*time.Second)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &Loader{
		client:    cfg.Client,
		maxBytes:  cfg.MaxBytes,
		renderers: Renderers(cfg.Options),
	}
}

// Request names the object to preview.
type Request struct {
	// URL serves the object body, usually a presigned GET.
	URL         string
	ContentType string
	Name        string
	// EmbedURL replaces URL in media and frame documents when set, so the
	// browser can load them through the console.
	EmbedURL string
}

// Load classifies the request, fetches the body when the renderer needs it
// and returns the rendered document.
func (l *Loader) Load(ctx context.Context, req Request) (*Document, error) {
	embed := req.EmbedURL
	if embed == "" {
		embed = req.URL
	}
	src := NewSource(req.Name, req.ContentType, embed, func(ctx context.Context) (*Body, error) {
		return l.fetch(ctx, req.URL)
	})

	r, ok := l.renderers[src.Kind]
	if !ok {
		return nil, fmt.Errorf("no renderer for kind %q", src.Kind)
	}

	doc, err := r.Render(ctx, src)
	if err != nil {
		return nil, err
	}

	telemetry.GetMetrics().PreviewRendersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(doc.Kind)),
		attribute.Bool("fallback", doc.FallbackReason != ""),
	))
	zerolog.Ctx(ctx).Debug().
		Str("name", req.Name).
		Str("kind", string(doc.Kind)).
		Bool("fetched", src.Fetched()).
		Bool("truncated", doc.Truncated).
		Str("fallback", doc.FallbackReason).
		Msg("preview rendered")

	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (*Body, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview request: %w", err)
	}
	// decoded here so the byte limit applies to the decoded body
	req.Header.Set("Accept-Encoding", "gzip, zstd")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preview body: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	reader, closeFn, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	data, err := io.ReadAll(io.LimitReader(reader, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read preview body: %w", err)
	}

	body := &Body{Data: data}
	if int64(len(data)) > l.maxBytes {
		body.Data = data[:l.maxBytes]
		body.Truncated = true
	}

	m := telemetry.GetMetrics()
	m.PreviewFetchDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	m.PreviewFetchBytes.Add(ctx, int64(len(body.Data)))

	return body, nil
}

// decodeBody unwraps gzip and zstd content encodings.
func decodeBody(r io.Reader, encoding string) (io.Reader, func(), error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, func() {}, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zstd body: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// FetchError is returned when the object URL answers with a non 2xx status.
type FetchError struct {
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return "preview fetch failed: " + e.Status
}
