package assets

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

const testMetafile = `{
  "outputs": {
    "public/app.js": {"entryPoint": "ui/pages/app.ts", "imports": [{"path": "public/chunk-A.js"}]},
    "public/browser.js": {"entryPoint": "ui/pages/browser.ts", "imports": [{"path": "public/chunk-A.js"}, {"path": "public/chunk-B.js"}]},
    "public/chunk-A.js": {"imports": []},
    "public/chunk-B.js": {"imports": [{"path": "public/chunk-A.js"}]}
  }
}`

func testTemplates() fstest.MapFS {
	return fstest.MapFS{
		"templates/layout.html": {Data: []byte(`{{define "layout"}}<title>{{.Title}}</title>{{range .Scripts}}<script src="{{.}}"></script>{{end}}<main>{{template "content" .Context}}</main>{{end}}`)},
		"templates/_badge.html": {Data: []byte(`{{define "badge"}}<b>{{.label}}={{.value}}</b>{{end}}`)},
		"templates/home.html":   {Data: []byte(`{{define "content"}}<p>{{shout .Name}}</p>{{template "badge" (dict "label" "n" "value" .Count)}}<div data-ctx="{{marshal .}}"></div>{{end}}`)},
		"templates/plain.html":  {Data: []byte(`{{define "content"}}plain {{.}}{{end}}`)},
		"templates/notes.txt":   {Data: []byte(`ignored`)},
	}
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(DefaultConfig(), testTemplates(), "templates", template.FuncMap{"shout": strings.ToUpper})
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	p := testPipeline(t)
	require.True(t, p.Has("home"))
	require.True(t, p.Has("plain"))
	require.False(t, p.Has("layout"))
	require.False(t, p.Has("_badge"))
	require.False(t, p.Has("notes"))
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(DefaultConfig(), testTemplates(), "missing", nil)
	require.Error(t, err)
}

func TestNewUnknownFunc(t *testing.T) {
	_, err := New(DefaultConfig(), testTemplates(), "templates", nil)
	require.ErrorContains(t, err, "shout")
}

func TestLoadScripts(t *testing.T) {
	p := testPipeline(t)

	_, _, err := p.LoadScripts("ui/pages/app.ts")
	require.ErrorIs(t, err, ErrNotBuilt)

	require.NoError(t, p.SetMetafile([]byte(testMetafile)))

	scripts, entry, err := p.LoadScripts("ui/pages/browser.ts")
	require.NoError(t, err)
	require.Equal(t, "/public/browser.js", entry)
	require.Equal(t, []string{"/public/browser.js", "/public/chunk-A.js", "/public/chunk-B.js"}, scripts)

	_, _, err = p.LoadScripts("ui/pages/missing.ts")
	require.ErrorContains(t, err, "not found")
}

func TestSetMetafileInvalid(t *testing.T) {
	p := testPipeline(t)
	require.Error(t, p.SetMetafile([]byte("{")))
}

func TestLoadMetafile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.MetafilePath = filepath.Join(dir, "meta.json")

	p, err := New(cfg, testTemplates(), "templates", template.FuncMap{"shout": strings.ToUpper})
	require.NoError(t, err)
	require.Error(t, p.LoadMetafile())

	require.NoError(t, os.WriteFile(cfg.MetafilePath, []byte(testMetafile), 0o600))
	require.NoError(t, p.LoadMetafile())

	_, entry, err := p.LoadScripts("ui/pages/app.ts")
	require.NoError(t, err)
	require.Equal(t, "/public/app.js", entry)
}

func TestRender(t *testing.T) {
	p := testPipeline(t)
	require.NoError(t, p.SetMetafile([]byte(testMetafile)))

	var buf bytes.Buffer
	err := p.Render(&buf, "home", Page{
		Title:   "Home",
		Entry:   "ui/pages/app.ts",
		Context: map[string]any{"Name": "bucket", "Count": 3},
	})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "<title>Home</title>")
	require.Contains(t, out, `<script src="/public/app.js"></script><script src="/public/chunk-A.js"></script>`)
	require.Contains(t, out, "<p>BUCKET</p>")
	require.Contains(t, out, "<b>n=3</b>")
	require.Contains(t, out, `data-ctx="{&#34;Count&#34;:3,&#34;Name&#34;:&#34;bucket&#34;}"`)
}

func TestRenderWithoutEntry(t *testing.T) {
	// no metafile is needed when the page has no script
	p := testPipeline(t)

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf, "plain", Page{Title: "Plain", Context: "<x>"}))
	require.Equal(t, "<title>Plain</title><main>plain &lt;x&gt;</main>", buf.String())
}

func TestRenderErrors(t *testing.T) {
	p := testPipeline(t)

	var buf bytes.Buffer
	require.ErrorContains(t, p.Render(&buf, "missing", Page{}), "not found")
	require.ErrorIs(t, p.Render(&buf, "home", Page{Entry: "ui/pages/app.ts"}), ErrNotBuilt)

	// execution failures leave the writer untouched
	require.NoError(t, p.SetMetafile([]byte(testMetafile)))
	err := p.Render(&buf, "home", Page{Context: map[string]any{"Name": 42}})
	require.Error(t, err)
	require.Zero(t, buf.Len())
}

func TestDict(t *testing.T) {
	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1, "b": "two"}, m)

	_, err = dict("a")
	require.Error(t, err)

	_, err = dict(1, 2)
	require.Error(t, err)
}
