package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

var errTooManyNodes = errors.New("too many nodes")

// treeBuilder assigns paths and enforces the node limit.
type treeBuilder struct {
	maxNodes int
	count    int
}

func (b *treeBuilder) node(key, path string, typ NodeType, value string) (*Node, error) {
	b.count++
	if b.count > b.maxNodes {
		return nil, errTooManyNodes
	}
	return &Node{Key: key, Path: path, Type: typ, Value: value}, nil
}

func memberPath(parent, key string) string {
	if isIdentifier(key) {
		return parent + "." + key
	}
	return parent + "[" + strconv.Quote(key) + "]"
}

func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func bodyForTree(ctx context.Context, src *Source) ([]byte, int, error) {
	body, err := src.Body(ctx)
	if err != nil {
		return nil, 0, err
	}
	if body.Truncated {
		return nil, 0, unparseable("structured preview unavailable: content truncated at %d bytes", len(body.Data))
	}

	text, enc := decodeText(body.Data, false)
	if enc == encodingUTF16LE || enc == encodingUTF16BE || enc == encodingUTF8BOM {
		// parsers expect plain UTF-8
		return []byte(text), len(body.Data), nil
	}
	return body.Data, len(body.Data), nil
}

type jsonRenderer struct {
	maxNodes int
}

func (r jsonRenderer) Render(ctx context.Context, src *Source) (*Document, error) {
	data, size, err := bodyForTree(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, unparseable("invalid JSON: empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	b := &treeBuilder{maxNodes: r.maxNodes}
	root, err := b.jsonValue(dec, "", "$")
	if err != nil {
		return nil, treeError("JSON", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, unparseable("invalid JSON: unexpected data after top-level value")
	}

	doc := src.document()
	doc.Kind = KindJSON
	doc.Size = size
	doc.Tree = root
	return doc, nil
}

func treeError(format string, err error) error {
	if errors.Is(err, errTooManyNodes) {
		return unparseable("structured preview unavailable: more than the node limit")
	}
	return unparseable("invalid %s: %v", format, err)
}

func (b *treeBuilder) jsonValue(dec *json.Decoder, key, path string) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n, err := b.node(key, path, NodeObject, "")
			if err != nil {
				return nil, err
			}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				name, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				child, err := b.jsonValue(dec, name, memberPath(path, name))
				if err != nil {
					return nil, err
				}
				n.Children = append(n.Children, child)
			}
			_, err = dec.Token()
			return n, err
		case '[':
			n, err := b.node(key, path, NodeArray, "")
			if err != nil {
				return nil, err
			}
			for i := 0; dec.More(); i++ {
				child, err := b.jsonValue(dec, strconv.Itoa(i), indexPath(path, i))
				if err != nil {
					return nil, err
				}
				n.Children = append(n.Children, child)
			}
			_, err = dec.Token()
			return n, err
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", v)
		}
	case string:
		return b.node(key, path, NodeString, v)
	case json.Number:
		return b.node(key, path, NodeNumber, v.String())
	case float64:
		return b.node(key, path, NodeNumber, strconv.FormatFloat(v, 'g', -1, 64))
	case bool:
		return b.node(key, path, NodeBool, strconv.FormatBool(v))
	case nil:
		return b.node(key, path, NodeNull, "null")
	default:
		return nil, fmt.Errorf("unexpected token %T", tok)
	}
}

type yamlRenderer struct {
	maxNodes int
}

func (r yamlRenderer) Render(ctx context.Context, src *Source) (*Document, error) {
	data, size, err := bodyForTree(ctx, src)
	if err != nil {
		return nil, err
	}

	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, unparseable("invalid YAML: %v", err)
		}
		docs = append(docs, &n)
	}
	if len(docs) == 0 {
		return nil, unparseable("invalid YAML: empty document")
	}

	b := &treeBuilder{maxNodes: r.maxNodes}
	var root *Node
	if len(docs) == 1 {
		root, err = b.yamlValue(docs[0], "", "$", 0)
	} else {
		// a multi document stream renders as an array of documents
		root, err = b.node("", "$", NodeArray, "")
		for i := 0; err == nil && i < len(docs); i++ {
			var child *Node
			child, err = b.yamlValue(docs[i], strconv.Itoa(i), indexPath("$", i), 0)
			if err == nil {
				root.Children = append(root.Children, child)
			}
		}
	}
	if err != nil {
		return nil, treeError("YAML", err)
	}

	doc := src.document()
	doc.Kind = KindYAML
	doc.Size = size
	doc.Tree = root
	return doc, nil
}

// aliases deeper than this are assumed to be a cycle
const maxAliasDepth = 32

func (b *treeBuilder) yamlValue(n *yaml.Node, key, path string, aliasDepth int) (*Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return b.node(key, path, NodeNull, "null")
		}
		return b.yamlValue(n.Content[0], key, path, aliasDepth)
	case yaml.AliasNode:
		if aliasDepth >= maxAliasDepth {
			return nil, fmt.Errorf("alias nesting exceeds %d", maxAliasDepth)
		}
		return b.yamlValue(n.Alias, key, path, aliasDepth+1)
	case yaml.MappingNode:
		out, err := b.node(key, path, NodeObject, "")
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			name := n.Content[i].Value
			child, err := b.yamlValue(n.Content[i+1], name, memberPath(path, name), aliasDepth)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, child)
		}
		return out, nil
	case yaml.SequenceNode:
		out, err := b.node(key, path, NodeArray, "")
		if err != nil {
			return nil, err
		}
		for i, item := range n.Content {
			child, err := b.yamlValue(item, strconv.Itoa(i), indexPath(path, i), aliasDepth)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, child)
		}
		return out, nil
	case yaml.ScalarNode:
		typ := scalarType(n)
		if typ == NodeNull {
			return b.node(key, path, typ, "null")
		}
		return b.node(key, path, typ, n.Value)
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
}

func scalarType(n *yaml.Node) NodeType {
	switch strings.TrimPrefix(n.ShortTag(), "!!") {
	case "int", "float":
		return NodeNumber
	case "bool":
		return NodeBool
	case "null":
		return NodeNull
	default:
		return NodeString
	}
}
