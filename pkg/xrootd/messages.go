package xrootd

import "github.com/wrenchsim/wrench/pkg/datamodel"

// SearchStack records the path a search has traveled so far, root-first,
// so that UpdateCache knows exactly which nodes to populate on the way
// back down to the requester.
type SearchStack struct {
	Path []*Node
}

// ContinueSearch is the broadcast query a node forwards to its children
// (or, for a leaf, resolves directly) while looking for fileID.
type ContinueSearch struct {
	FileID string
	Stack  SearchStack
	TTL    int
}

// UpdateCache is what a node that found (or helped locate) a file sends
// back up the stack it traveled, so every supervisor on the path learns
// the file's location for next time.
type UpdateCache struct {
	FileID   string
	Location *datamodel.FileLocation
	Stack    SearchStack
}
