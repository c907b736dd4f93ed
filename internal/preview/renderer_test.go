package preview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func render(t *testing.T, name, contentType string, data []byte) *Document {
	t.Helper()
	doc, err := Render(context.Background(), StaticSource(name, contentType, data))
	require.NoError(t, err)
	return doc
}

func TestMediaRenderer_doesNotFetch(t *testing.T) {
	fetched := false
	src := NewSource("cat.png", "image/png", "http://example/cat.png", func(context.Context) (*Body, error) {
		fetched = true
		return nil, errors.New("should not fetch")
	})

	doc, err := Render(context.Background(), src)
	require.NoError(t, err)
	require.False(t, fetched)
	require.False(t, src.Fetched())
	require.Equal(t, KindImage, doc.Kind)
	require.Equal(t, "http://example/cat.png", doc.URL)
}

func TestFrameRenderer(t *testing.T) {
	src := NewSource("doc.pdf", "application/pdf", "http://example/doc.pdf", nil)
	doc, err := Render(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, KindFrame, doc.Kind)
	require.Equal(t, "http://example/doc.pdf", doc.URL)
}

func TestTextRenderer(t *testing.T) {
	doc := render(t, "main.go", "text/plain", []byte("package main\n\nfunc main() {}\n"))
	require.Equal(t, KindText, doc.Kind)
	require.Equal(t, 3, doc.Lines)
	require.Equal(t, "go", doc.Language)
	require.Equal(t, encodingUTF8, doc.Encoding)
}

func TestTextRenderer_encodings(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		encoding string
	}{
		{name: "utf8 bom", data: []byte("\xEF\xBB\xBFhello"), encoding: encodingUTF8BOM},
		{name: "utf16le", data: []byte{0xFF, 0xFE, 'h', 0, 'e', 0, 'l', 0, 'l', 0, 'o', 0}, encoding: encodingUTF16LE},
		{name: "utf16be", data: []byte{0xFE, 0xFF, 0, 'h', 0, 'e', 0, 'l', 0, 'l', 0, 'o'}, encoding: encodingUTF16BE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := render(t, "greeting.txt", "text/plain", tt.data)
			require.Equal(t, "hello", doc.Text)
			require.Equal(t, tt.encoding, doc.Encoding)
		})
	}
}

func TestDecodeText_truncatedRune(t *testing.T) {
	// "é" is 0xC3 0xA9, cut after the first byte
	text, _ := decodeText([]byte("caf\xC3"), true)
	require.Equal(t, "caf", text)

	text, _ = decodeText([]byte("bad\xFFbyte"), false)
	require.Equal(t, "bad�byte", text)
}

func TestCSVRenderer(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		data      string
		delimiter string
		header    []string
		rows      [][]string
	}{
		{
			name:      "comma",
			file:      "a.csv",
			data:      "id,name\n1,alpha\n2,beta\n",
			delimiter: ",",
			header:    []string{"id", "name"},
			rows:      [][]string{{"1", "alpha"}, {"2", "beta"}},
		},
		{
			name:      "semicolon with quoted comma",
			file:      "a.csv",
			data:      "id;label\n1;\"a, b\"\n2;c\n",
			delimiter: ";",
			header:    []string{"id", "label"},
			rows:      [][]string{{"1", "a, b"}, {"2", "c"}},
		},
		{
			name:      "pipe",
			file:      "a.csv",
			data:      "a|b|c\n1|2|3\n",
			delimiter: "|",
			header:    []string{"a", "b", "c"},
			rows:      [][]string{{"1", "2", "3"}},
		},
		{
			name:      "tsv by name",
			file:      "a.tsv",
			data:      "a\tb\n1\t2\n",
			delimiter: "\t",
			header:    []string{"a", "b"},
			rows:      [][]string{{"1", "2"}},
		},
		{
			name:      "ragged rows padded",
			file:      "a.csv",
			data:      "a,b\n1\n2,3,4\n",
			delimiter: ",",
			header:    []string{"a", "b", "column 3"},
			rows:      [][]string{{"1", "", ""}, {"2", "3", "4"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := render(t, tt.file, "", []byte(tt.data))
			require.Equal(t, KindCSV, doc.Kind)
			require.Empty(t, doc.FallbackReason)
			require.NotNil(t, doc.Table)
			require.Equal(t, tt.delimiter, doc.Table.Delimiter)
			require.Equal(t, tt.header, doc.Table.Header)
			require.Equal(t, tt.rows, doc.Table.Rows)
		})
	}
}

func TestCSVRenderer_rowLimit(t *testing.T) {
	r := Renderers(Options{MaxRows: 2})[KindCSV]
	doc, err := r.Render(context.Background(), StaticSource("a.csv", "text/csv", []byte("h\n1\n2\n3\n4\n")))
	require.NoError(t, err)
	require.Len(t, doc.Table.Rows, 2)
	require.True(t, doc.Table.Truncated)
}

func TestCSVRenderer_truncatedBodyDropsPartialLine(t *testing.T) {
	src := NewSource("a.csv", "text/csv", "", func(context.Context) (*Body, error) {
		return &Body{Data: []byte("a,b\n1,2\n3,"), Truncated: true}, nil
	})
	doc, err := Render(context.Background(), src)
	require.NoError(t, err)
	require.True(t, doc.Truncated)
	require.Equal(t, [][]string{{"1", "2"}}, doc.Table.Rows)
}

func TestJSONRenderer_ordered(t *testing.T) {
	doc := render(t, "data.json", "application/json", []byte(`{"zeta":1,"alpha":{"list":[true,null,"x"]},"odd key":2.5}`))
	require.Equal(t, KindJSON, doc.Kind)

	root := doc.Tree
	require.Equal(t, NodeObject, root.Type)
	require.Equal(t, "$", root.Path)
	require.Equal(t, 3, root.Len())

	require.Equal(t, "zeta", root.Children[0].Key)
	require.Equal(t, NodeNumber, root.Children[0].Type)
	require.Equal(t, "1", root.Children[0].Value)

	alpha := root.Children[1]
	require.Equal(t, "alpha", alpha.Key)
	list := alpha.Children[0]
	require.Equal(t, "$.alpha.list", list.Path)
	require.Equal(t, NodeArray, list.Type)
	require.Equal(t, NodeBool, list.Children[0].Type)
	require.Equal(t, NodeNull, list.Children[1].Type)
	require.Equal(t, "$.alpha.list[2]", list.Children[2].Path)
	require.Equal(t, "x", list.Children[2].Value)

	require.Equal(t, `$["odd key"]`, root.Children[2].Path)
}

func TestJSONRenderer_fallback(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{name: "invalid", data: `{"a":`, reason: "invalid JSON"},
		{name: "trailing data", data: `{"a":1} {"b":2}`, reason: "unexpected data"},
		{name: "empty", data: "  ", reason: "empty document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := render(t, "data.json", "application/json", []byte(tt.data))
			require.Equal(t, KindText, doc.Kind)
			require.Contains(t, doc.FallbackReason, tt.reason)
			require.Equal(t, tt.data, doc.Text)
		})
	}
}

func TestJSONRenderer_truncatedFallsBack(t *testing.T) {
	src := NewSource("big.json", "application/json", "", func(context.Context) (*Body, error) {
		return &Body{Data: []byte(`{"a": [1, 2`), Truncated: true}, nil
	})
	doc, err := Render(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, KindText, doc.Kind)
	require.True(t, doc.Truncated)
	require.Contains(t, doc.FallbackReason, "truncated")
}

func TestJSONRenderer_nodeLimit(t *testing.T) {
	r := Renderers(Options{MaxNodes: 3})[KindJSON]
	doc, err := r.Render(context.Background(), StaticSource("a.json", "application/json", []byte(`[1,2,3,4]`)))
	require.NoError(t, err)
	require.Equal(t, KindText, doc.Kind)
	require.Contains(t, doc.FallbackReason, "node limit")
}

func TestYAMLRenderer(t *testing.T) {
	data := []byte("name: demo\ncount: 3\nenabled: true\nnothing: ~\ntags:\n  - a\n  - b\n")
	doc := render(t, "config.yaml", "application/yaml", data)
	require.Equal(t, KindYAML, doc.Kind)

	root := doc.Tree
	require.Equal(t, NodeObject, root.Type)
	keys := make([]string, 0, root.Len())
	for _, c := range root.Children {
		keys = append(keys, c.Key)
	}
	require.Equal(t, []string{"name", "count", "enabled", "nothing", "tags"}, keys)
	require.Equal(t, NodeString, root.Children[0].Type)
	require.Equal(t, NodeNumber, root.Children[1].Type)
	require.Equal(t, NodeBool, root.Children[2].Type)
	require.Equal(t, NodeNull, root.Children[3].Type)
	require.Equal(t, "$.tags[1]", root.Children[4].Children[1].Path)
}

func TestYAMLRenderer_multiDocumentAndAlias(t *testing.T) {
	data := []byte("base: &b\n  x: 1\nref: *b\n---\nsecond: true\n")
	doc := render(t, "multi.yml", "", data)
	require.Equal(t, KindYAML, doc.Kind)
	require.Equal(t, NodeArray, doc.Tree.Type)
	require.Equal(t, 2, doc.Tree.Len())

	first := doc.Tree.Children[0]
	ref := first.Children[1]
	require.Equal(t, "ref", ref.Key)
	require.Equal(t, NodeObject, ref.Type)
	require.Equal(t, "$[0].ref.x", ref.Children[0].Path)
}

func TestYAMLRenderer_invalidFallsBack(t *testing.T) {
	doc := render(t, "bad.yaml", "", []byte("a: [1, 2\n"))
	require.Equal(t, KindText, doc.Kind)
	require.Contains(t, doc.FallbackReason, "invalid YAML")
}

func TestStructured_fetchErrorIsReturned(t *testing.T) {
	src := NewSource("a.json", "application/json", "", func(context.Context) (*Body, error) {
		return nil, errors.New("boom")
	})
	_, err := Render(context.Background(), src)
	require.EqualError(t, err, "boom")
}
