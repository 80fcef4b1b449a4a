// Package catalog defines the hierarchical document catalog.
//
// A catalog is a tree of titled nodes. Nodes with children exist only for
// grouping; leaf nodes are the generation and translation targets and map
// 1:1 to documents by path. The path is the stable identity used for joins
// against the document store.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCatalog indicates a catalog with no nodes.
	ErrEmptyCatalog = errors.New("catalog has no nodes")

	// ErrDuplicatePath indicates two nodes sharing the same path.
	ErrDuplicatePath = errors.New("duplicate catalog path")

	// ErrInvalidNode indicates a node with a missing path or title.
	ErrInvalidNode = errors.New("invalid catalog node")
)

// Node is one entry in the catalog tree.
//
// The zero-path root node returned by stores is a synthetic container and is
// never a generation target itself.
type Node struct {
	Path     string  `json:"path"`
	Title    string  `json:"title"`
	Children []*Node `json:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Path: n.Path, Title: n.Title}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Walk visits every node in the subtree in depth-first order, parents before
// children. The synthetic root (empty path) is skipped.
func Walk(root *Node, visit func(*Node)) {
	if root == nil {
		return
	}
	if root.Path != "" {
		visit(root)
	}
	for _, child := range root.Children {
		Walk(child, visit)
	}
}

// Leaves returns the generation targets: every node with zero children,
// regardless of nesting depth. Parent nodes are grouping-only and are never
// included. The synthetic root is excluded even when the tree is empty.
func Leaves(root *Node) []*Node {
	var leaves []*Node
	Walk(root, func(n *Node) {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
	})
	return leaves
}

// Flatten returns every node in the tree, parents included. Used by title
// translation, where titles at every depth need translating.
func Flatten(root *Node) []*Node {
	var nodes []*Node
	Walk(root, func(n *Node) {
		nodes = append(nodes, n)
	})
	return nodes
}

// FindByPath returns the node with the given path, or nil.
func FindByPath(root *Node, path string) *Node {
	var found *Node
	Walk(root, func(n *Node) {
		if found == nil && n.Path == path {
			found = n
		}
	})
	return found
}

// Validate checks structural invariants: every node has a path and a title,
// and paths are unique within the tree.
func Validate(root *Node) error {
	nodes := Flatten(root)
	if len(nodes) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if strings.TrimSpace(n.Path) == "" || strings.TrimSpace(n.Title) == "" {
			return fmt.Errorf("%w: path=%q title=%q", ErrInvalidNode, n.Path, n.Title)
		}
		if seen[n.Path] {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, n.Path)
		}
		seen[n.Path] = true
	}
	return nil
}

// Parse decodes a catalog tree from JSON and validates it.
//
// Accepts either a single root object or a top-level array of nodes; an
// array is wrapped in a synthetic root so stores always hold one tree.
func Parse(data []byte) (*Node, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrEmptyCatalog
	}

	var root Node
	if strings.HasPrefix(trimmed, "[") {
		var children []*Node
		if err := json.Unmarshal(data, &children); err != nil {
			return nil, fmt.Errorf("parsing catalog array: %w", err)
		}
		root.Children = children
	} else {
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parsing catalog object: %w", err)
		}
		// A root carrying its own path is a regular node; wrap it so the
		// stored tree always has a synthetic container on top.
		if root.Path != "" {
			node := root
			root = Node{Children: []*Node{&node}}
		}
	}

	if err := Validate(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// Marshal encodes the tree as indented JSON. The synthetic root is encoded
// as its children only, matching the format Parse accepts.
func Marshal(root *Node) ([]byte, error) {
	if root == nil {
		return nil, ErrEmptyCatalog
	}
	if root.Path == "" {
		return json.MarshalIndent(root.Children, "", "  ")
	}
	return json.MarshalIndent(root, "", "  ")
}
