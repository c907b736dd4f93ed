package preview

import (
	"context"
	"errors"
	"fmt"
)

// Body is a fetched object body, bounded by the loader's byte limit.
type Body struct {
	Data []byte
	// Truncated is set when the object is larger than the limit.
	Truncated bool
}

// FetchFunc reads an object body.
type FetchFunc func(ctx context.Context) (*Body, error)

// Source is the object handed to a renderer. The body is fetched on first
// use and kept for later calls.
type Source struct {
	Name        string
	ContentType string
	URL         string
	Kind        Kind

	fetch FetchFunc
	body  *Body
	err   error
	done  bool
}

// NewSource builds a source whose body is read through fetch.
func NewSource(name, contentType, url string, fetch FetchFunc) *Source {
	return &Source{
		Name:        name,
		ContentType: contentType,
		URL:         url,
		Kind:        Classify(contentType, name),
		fetch:       fetch,
	}
}

// StaticSource builds a source over an in-memory body.
func StaticSource(name, contentType string, data []byte) *Source {
	return NewSource(name, contentType, "", func(context.Context) (*Body, error) {
		return &Body{Data: data}, nil
	})
}

// Body returns the object body, fetching it on the first call.
func (s *Source) Body(ctx context.Context) (*Body, error) {
	if s.done {
		return s.body, s.err
	}
	if s.fetch == nil {
		return nil, fmt.Errorf("no body available for %s", s.Name)
	}
	s.body, s.err = s.fetch(ctx)
	s.done = true
	return s.body, s.err
}

// Fetched reports whether the body has been read.
func (s *Source) Fetched() bool {
	return s.done
}

func (s *Source) document() *Document {
	return &Document{Kind: s.Kind, Name: s.Name, ContentType: s.ContentType}
}

// Renderer turns a source into a document.
type Renderer interface {
	Render(ctx context.Context, src *Source) (*Document, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, src *Source) (*Document, error)

func (f RendererFunc) Render(ctx context.Context, src *Source) (*Document, error) {
	return f(ctx, src)
}

// Options tune the body based renderers.
type Options struct {
	// MaxRows caps the rows of a CSV table.
	MaxRows int
	// MaxNodes caps the nodes of a JSON or YAML tree.
	MaxNodes int
}

const (
	defaultMaxRows  = 500
	defaultMaxNodes = 5000
)

// Renderers returns the renderer for every kind.
func Renderers(opts Options) map[Kind]Renderer {
	if opts.MaxRows <= 0 {
		opts.MaxRows = defaultMaxRows
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = defaultMaxNodes
	}
	return map[Kind]Renderer{
		KindImage: mediaRenderer{},
		KindVideo: mediaRenderer{},
		KindAudio: mediaRenderer{},
		KindFrame: mediaRenderer{},
		KindText:  textRenderer{},
		KindCSV:   structured(csvRenderer{maxRows: opts.MaxRows}),
		KindJSON:  structured(jsonRenderer{maxNodes: opts.MaxNodes}),
		KindYAML:  structured(yamlRenderer{maxNodes: opts.MaxNodes}),
	}
}

// Render classifies src and runs the matching renderer with default options.
func Render(ctx context.Context, src *Source) (*Document, error) {
	r, ok := Renderers(Options{})[src.Kind]
	if !ok {
		return nil, fmt.Errorf("no renderer for kind %q", src.Kind)
	}
	return r.Render(ctx, src)
}

// mediaRenderer embeds the object by URL without reading it.
type mediaRenderer struct{}

func (mediaRenderer) Render(_ context.Context, src *Source) (*Document, error) {
	doc := src.document()
	doc.URL = src.URL
	return doc, nil
}

// parseError marks a body that a structured renderer could not parse.
type parseError struct {
	reason string
}

func (e *parseError) Error() string {
	return e.reason
}

func unparseable(format string, args ...any) error {
	return &parseError{reason: fmt.Sprintf(format, args...)}
}

// structured degrades a parse failure of r to a text document carrying the
// reason. Fetch errors are returned as is.
func structured(r Renderer) Renderer {
	return RendererFunc(func(ctx context.Context, src *Source) (*Document, error) {
		doc, err := r.Render(ctx, src)
		if err == nil {
			return doc, nil
		}
		var perr *parseError
		if !errors.As(err, &perr) {
			return nil, err
		}

		doc, err = textRenderer{}.Render(ctx, src)
		if err != nil {
			return nil, err
		}
		doc.FallbackReason = perr.reason
		return doc, nil
	})
}
