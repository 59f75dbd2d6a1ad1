package ingest

import (
	"time"
)

// BatchID identifies an ingestion session.
type BatchID string

// DiscoveryMode tells how the batch was discovered.
type DiscoveryMode string

const (
	// ModeFolder is used when at least one dropped entry is a directory.
	ModeFolder DiscoveryMode = "folder"
	// ModeFlat is used when only individual files were dropped.
	ModeFlat DiscoveryMode = "flat"
)

// Batch owns every node of one ingestion session.
// Parent links are lookups into the index; children are derived on demand.
type Batch struct {
	ID        BatchID
	ProjectID string
	UserID    string
	Mode      DiscoveryMode
	CreatedAt time.Time

	index map[TempID]*Node
	order []TempID // discovery order
}

// NewBatch creates an empty batch.
func NewBatch(id BatchID, projectID, userID string, mode DiscoveryMode) *Batch {
	return &Batch{
		ID:        id,
		ProjectID: projectID,
		UserID:    userID,
		Mode:      mode,
		CreatedAt: time.Now(),
		index:     make(map[TempID]*Node),
	}
}

// Insert appends a node in discovery order. It returns false if the TempID is taken.
// Structural checks on the parent are the tree builder's job.
func (b *Batch) Insert(n *Node) bool {
	if _, exists := b.index[n.TempID]; exists {
		return false
	}
	b.index[n.TempID] = n
	b.order = append(b.order, n.TempID)
	return true
}

// Get returns the node with the given id.
func (b *Batch) Get(id TempID) (*Node, bool) {
	n, ok := b.index[id]
	return n, ok
}

// Len returns the number of nodes.
func (b *Batch) Len() int { return len(b.order) }

// Nodes returns all nodes in discovery order.
func (b *Batch) Nodes() []*Node {
	nodes := make([]*Node, 0, len(b.order))
	for _, id := range b.order {
		nodes = append(nodes, b.index[id])
	}
	return nodes
}

// DiscoveryIndex returns each node's position in discovery order.
func (b *Batch) DiscoveryIndex() map[TempID]int {
	idx := make(map[TempID]int, len(b.order))
	for i, id := range b.order {
		idx[id] = i
	}
	return idx
}

// Parent returns the node's parent, if any.
func (b *Batch) Parent(n *Node) (*Node, bool) {
	if n.ParentTempID == nil {
		return nil, false
	}
	return b.Get(*n.ParentTempID)
}

// Children derives the direct children of id in discovery order.
// A nil id returns the batch roots.
func (b *Batch) Children(id *TempID) []*Node {
	var children []*Node
	for _, childID := range b.order {
		n := b.index[childID]
		switch {
		case id == nil && n.ParentTempID == nil:
			children = append(children, n)
		case id != nil && n.ParentTempID != nil && *n.ParentTempID == *id:
			children = append(children, n)
		}
	}
	return children
}

// Descendants returns every node below id, walking with an explicit stack.
// Each node is visited at most once, so a corrupted parent graph cannot loop.
func (b *Batch) Descendants(id TempID) []*Node {
	childrenOf := make(map[TempID][]TempID)
	for _, childID := range b.order {
		n := b.index[childID]
		if n.ParentTempID != nil {
			childrenOf[*n.ParentTempID] = append(childrenOf[*n.ParentTempID], childID)
		}
	}

	visited := map[TempID]bool{id: true}
	var result []*Node
	stack := append([]TempID(nil), childrenOf[id]...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		result = append(result, b.index[current])
		stack = append(stack, childrenOf[current]...)
	}
	return result
}

// Remove deletes a node and all of its descendants and returns them.
// Payloads are not released here; callers own that step.
func (b *Batch) Remove(id TempID) []*Node {
	n, ok := b.index[id]
	if !ok {
		return nil
	}
	removed := append([]*Node{n}, b.Descendants(id)...)
	gone := make(map[TempID]bool, len(removed))
	for _, r := range removed {
		gone[r.TempID] = true
		delete(b.index, r.TempID)
	}
	kept := b.order[:0]
	for _, oid := range b.order {
		if !gone[oid] {
			kept = append(kept, oid)
		}
	}
	b.order = kept
	return removed
}

// Files returns the file nodes in discovery order.
func (b *Batch) Files() []*Node {
	var files []*Node
	for _, n := range b.Nodes() {
		if n.IsFile() {
			files = append(files, n)
		}
	}
	return files
}

// Pending returns the nodes that have not been persisted yet.
func (b *Batch) Pending() []*Node {
	var pending []*Node
	for _, n := range b.Nodes() {
		if !n.Persisted() {
			pending = append(pending, n)
		}
	}
	return pending
}
