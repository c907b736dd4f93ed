package assets

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"maps"
	"path"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

const (
	layoutFile    = "layout.html"
	layoutName    = "layout"
	partialPrefix = "_"
)

// Pipeline manages the asset build process, script loading and page templates.
type Pipeline struct {
	config   Config
	metadata *BuildMetadata
	pages    map[string]*template.Template
	mu       sync.RWMutex
}

// Page is the data every template receives.
type Page struct {
	Title string
	// Entry is the script entry point, e.g. "ui/pages/browser.ts". Empty for
	// pages without client code.
	Entry   string
	Context any
}

// New parses the templates in dir of templates. layout.html and the partials
// (files starting with "_") are shared, every other file is a page defining
// the "content" block and is rendered by its base name without extension.
func New(config Config, templates fs.FS, dir string, customFuncs template.FuncMap) (*Pipeline, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
		"dict": dict,
	}
	maps.Copy(funcs, customFuncs)

	entries, err := fs.ReadDir(templates, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	shared := []string{path.Join(dir, layoutFile)}
	var pageFiles []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir(), !strings.HasSuffix(name, ".html"), name == layoutFile:
		case strings.HasPrefix(name, partialPrefix):
			shared = append(shared, path.Join(dir, name))
		default:
			pageFiles = append(pageFiles, path.Join(dir, name))
		}
	}

	base, err := template.New(layoutFile).Funcs(funcs).ParseFS(templates, shared...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	p := &Pipeline{config: config, pages: map[string]*template.Template{}}
	for _, file := range pageFiles {
		tmpl, err := template.Must(base.Clone()).ParseFS(templates, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		p.pages[strings.TrimSuffix(path.Base(file), ".html")] = tmpl
	}

	return p, nil
}

// Has reports whether a page template exists.
func (p *Pipeline) Has(name string) bool {
	_, ok := p.pages[name]
	return ok
}

// Render executes the named page into w. Output is buffered so a failing
// template never leaves a half written response.
func (p *Pipeline) Render(w io.Writer, name string, page Page) error {
	tmpl, ok := p.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var scripts []string
	if page.Entry != "" {
		var err error
		scripts, _, err = p.LoadScripts(page.Entry)
		if err != nil {
			return err
		}
	}

	data := map[string]any{
		"Title":   page.Title,
		"Scripts": scripts,
		"Context": page.Context,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutName, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func marshal(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("context can only be json serializable: %w", err)
	}
	return string(data), nil
}

// dict builds a map from alternating keys and values for passing several
// values to a partial.
func dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict needs an even number of arguments")
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings, got %T", values[i])
		}
		m[key] = values[i+1]
	}
	return m, nil
}
