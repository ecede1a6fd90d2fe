// Package classify turns a scene snapshot into the tree of nodes an export
// run serializes, resolving visibility and mesh instancing on the way.
package classify

import (
	"github.com/go-gl/mathgl/mgl64"

	mxs "github.com/flywave/go-mxs"
	"github.com/flywave/go-mxs/names"
	"github.com/flywave/go-mxs/scene"
)

// Node is one entry of the resolved scene graph. It lives for one run.
type Node struct {
	ID   names.ID
	Name string
	Type mxs.ExportType
	// Export is the computed eligibility.
	Export bool
	// Visible is the raw render visibility of the source object.
	Visible  bool
	Promoted bool

	Parent   *Node
	Children []*Node

	// Object is the source object. Synthetic nodes point at their owner,
	// dupli instances at the duplicated object.
	Object *scene.Object
	// Matrix is the world matrix.
	Matrix mgl64.Mat4
	// Mesh is the evaluated geometry of MESH and BASE_INSTANCE nodes.
	Mesh *scene.EvaluatedMesh
	// Data names the geometry data-block shared by instances.
	Data string
	// Base is the instance source of an INSTANCE node.
	Base *Node

	Dupli          bool
	ActiveCamera   bool
	Modifier       *scene.Modifier
	ParticleSystem *scene.ParticleSystem
}

// Synthetic reports whether the node has no source object of its own.
func (n *Node) Synthetic() bool {
	return n.Dupli || n.Modifier != nil || n.ParticleSystem != nil || n.Type == mxs.WIREFRAME
}

// ExportParent returns the closest exported ancestor, or nil for roots and
// for types that are always exported without a parent.
func (n *Node) ExportParent() *Node {
	if n.Type.Flat() {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Export {
			return p
		}
	}
	return nil
}

// Walk visits n and its descendants in order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// hasDescendant reports whether a strict descendant of n satisfies fn.
func (n *Node) hasDescendant(fn func(*Node) bool) bool {
	for _, c := range n.Children {
		if fn(c) || c.hasDescendant(fn) {
			return true
		}
	}
	return false
}

func (n *Node) addChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Result is the output of Classify.
type Result struct {
	Roots []*Node
	// All lists every node in walk order.
	All []*Node
	// Nodes lists the exported nodes in walk order.
	Nodes []*Node
}

// ByType returns the exported nodes of type t in walk order.
func (r *Result) ByType(t mxs.ExportType) []*Node {
	var out []*Node
	for _, n := range r.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the node named name.
func (r *Result) Find(name string) *Node {
	for _, n := range r.All {
		if n.Name == name {
			return n
		}
	}
	return nil
}

func (r *Result) index() {
	r.All = r.All[:0]
	r.Nodes = r.Nodes[:0]
	for _, root := range r.Roots {
		root.Walk(func(n *Node) {
			r.All = append(r.All, n)
			if n.Export {
				r.Nodes = append(r.Nodes, n)
			}
		})
	}
}
