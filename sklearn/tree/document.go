package tree

import (
	"io"

	"github.com/goccy/go-json"

	scigoErrors "github.com/YuminosukeSato/sktree/pkg/errors"
)

// Node types written to the "type" field.
const (
	NodeTypeSplit = "split"
	NodeTypeLeaf  = "leaf"
)

// ExportedNode is one object of a document written by ExportJSON.
type ExportedNode struct {
	Error    float64         `json:"error"`
	Samples  int             `json:"samples"`
	Value    []float64       `json:"value"`
	Label    string          `json:"label"`
	Type     string          `json:"type"`
	Children []*ExportedNode `json:"children,omitempty"`
}

// DocumentStats counts the objects of an exported document.
type DocumentStats struct {
	Nodes  int
	Leaves int
	Splits int
	Depth  int
}

// ReadExported parses a document produced by ExportJSON.
func ReadExported(r io.Reader) (*ExportedNode, error) {
	var root ExportedNode
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, scigoErrors.NewModelError("ReadExported", "decode document", err)
	}
	return &root, nil
}

// IsLeaf reports whether the node was exported as a leaf.
func (n *ExportedNode) IsLeaf() bool {
	return n.Type == NodeTypeLeaf
}

// Stats walks the document and counts node objects by type.
func (n *ExportedNode) Stats() DocumentStats {
	var s DocumentStats
	n.collect(&s, 0)
	return s
}

func (n *ExportedNode) collect(s *DocumentStats, depth int) {
	s.Nodes++
	if depth > s.Depth {
		s.Depth = depth
	}
	if n.Type == NodeTypeSplit {
		s.Splits++
	} else {
		s.Leaves++
	}
	for _, child := range n.Children {
		child.collect(s, depth+1)
	}
}
