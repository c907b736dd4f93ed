package preview

// Document is the display ready result of a preview.
type Document struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	// URL is the embed or frame source for media and frame documents.
	URL string `json:"url,omitempty"`

	// Size is the number of body bytes read, after content decoding.
	Size      int  `json:"size,omitempty"`
	Truncated bool `json:"truncated,omitempty"`

	Text     string `json:"text,omitempty"`
	Lines    int    `json:"lines,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Language string `json:"language,omitempty"`

	Table *Table `json:"table,omitempty"`
	Tree  *Node  `json:"tree,omitempty"`

	// FallbackReason is set when a structured renderer could not parse the
	// body and the document degraded to text.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Table is a parsed delimited file.
type Table struct {
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	Delimiter string     `json:"delimiter"`
	// Truncated is set when rows were dropped because of the row limit.
	Truncated bool `json:"truncated,omitempty"`
}

// NodeType is the JSON type of a tree node.
type NodeType string

const (
	NodeObject NodeType = "object"
	NodeArray  NodeType = "array"
	NodeString NodeType = "string"
	NodeNumber NodeType = "number"
	NodeBool   NodeType = "bool"
	NodeNull   NodeType = "null"
)

// Node is one value of a JSON or YAML document. Object members keep their
// source order.
type Node struct {
	// Key is the member name, or the element index for array items.
	Key string `json:"key"`
	// Path addresses the node from the root, for example $.items[2].name.
	Path     string   `json:"path"`
	Type     NodeType `json:"type"`
	Value    string   `json:"value,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

// Len returns the number of children of a container node.
func (n *Node) Len() int {
	return len(n.Children)
}

// IsContainer reports whether the node is an object or an array.
func (n *Node) IsContainer() bool {
	return n.Type == NodeObject || n.Type == NodeArray
}
