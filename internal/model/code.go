package model

// NodeType classifies an extracted code node.
type NodeType string

const (
	NodeModule    NodeType = "module"
	NodeClass     NodeType = "class"
	NodeInterface NodeType = "interface"
	NodeFunction  NodeType = "function"
	NodeMethod    NodeType = "method"
	NodeVariable  NodeType = "variable"
	NodeProperty  NodeType = "property"
	NodeEnum      NodeType = "enum"
	NodeTypeDef   NodeType = "type"
	NodeNamespace NodeType = "namespace"
	NodeFile      NodeType = "file"
)

// Location is a line span within a source file.
type Location struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// CodeNode is a structural element extracted from a source file. Children are
// owned; all other cross-references between entities go by ID.
type CodeNode struct {
	ID          string            `json:"id"`
	Type        NodeType          `json:"type"`
	Name        string            `json:"name"`
	Path        string            `json:"path"` // file the node was extracted from
	Location    Location          `json:"location"`
	Content     string            `json:"content,omitempty"` // declaration text, not the full body
	Children    []*CodeNode       `json:"children,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ContentHash string            `json:"contentHash,omitempty"`
}

// Span returns the number of lines the node covers, at least 1.
func (n *CodeNode) Span() int {
	span := n.Location.EndLine - n.Location.StartLine + 1
	if span < 1 {
		return 1
	}
	return span
}

// Descendants visits the node and everything below it.
func (n *CodeNode) Descendants(fn func(*CodeNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Descendants(fn)
	}
}

// RelationshipType classifies an edge between two code nodes.
type RelationshipType string

const (
	RelImports    RelationshipType = "imports"
	RelExports    RelationshipType = "exports"
	RelCalls      RelationshipType = "calls"
	RelExtends    RelationshipType = "extends"
	RelImplements RelationshipType = "implements"
	RelReferences RelationshipType = "references"
	RelUses       RelationshipType = "uses"
	RelContains   RelationshipType = "contains"
	RelDependsOn  RelationshipType = "depends_on"
	RelFlowsTo    RelationshipType = "flows_to"
)

// Relationship is a typed, weighted edge between two entities, referenced by
// ID. Relationships never own their endpoints.
type Relationship struct {
	ID          string            `json:"id"`
	Type        RelationshipType  `json:"type"`
	SourceID    string            `json:"sourceId"`
	TargetID    string            `json:"targetId"`
	Weight      float64           `json:"weight"`
	Confidence  float64           `json:"confidence"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ContentHash string            `json:"contentHash,omitempty"`
}
