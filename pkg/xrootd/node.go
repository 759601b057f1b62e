package xrootd

import (
	"time"

	"github.com/wrenchsim/wrench/internal/simcore"
	"github.com/wrenchsim/wrench/pkg/storage"
)

// Node is one point in an XRootD-style federation tree. A node with a
// nil Leaf is a pure supervisor; a node with a Leaf is a leaf and may
// also have children of its own (a storage supervisor). Every node carries its own search cache, since a cache hit at
// an intermediate supervisor is what makes broadcast search cheap in
// practice.
type Node struct {
	ID       string
	Parent   *Node
	Children []*Node
	Leaf     *storage.SimpleStorageService
	cache    *Cache
}

// NewNode creates a supervisor node (no attached storage service).
func NewNode(id string, cacheLifetime time.Duration) *Node {
	return &Node{ID: id, cache: NewCache(cacheLifetime)}
}

// NewLeaf creates a leaf node fronting a concrete storage service.
func NewLeaf(id string, svc *storage.SimpleStorageService, cacheLifetime time.Duration) *Node {
	return &Node{ID: id, Leaf: svc, cache: NewCache(cacheLifetime)}
}

// IsSupervisor reports whether this node has no attached storage service.
func (n *Node) IsSupervisor() bool { return n.Leaf == nil }

// AddChild attaches child as a child of n, setting child's Parent.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Host returns the host backing this node's leaf storage, or nil for a
// pure supervisor (no search or cache-update overhead is charged at
// such a node — see Deployment.Read).
func (n *Node) Host() *simcore.Host {
	if n.Leaf == nil {
		return nil
	}
	return n.Leaf.Host()
}

// leaves returns every leaf node in the subtree rooted at n, depth-first.
func (n *Node) leaves() []*Node {
	var out []*Node
	if n.Leaf != nil {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, c.leaves()...)
	}
	return out
}
