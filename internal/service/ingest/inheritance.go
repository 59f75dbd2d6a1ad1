package ingest

import (
	"fmt"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
)

// InheritanceResolver looks up inheritable attributes along parent links.
type InheritanceResolver struct {
	maxDepth int
}

// NewInheritanceResolver caps ancestor walks at maxDepth hops.
func NewInheritanceResolver(maxDepth int) *InheritanceResolver {
	return &InheritanceResolver{maxDepth: maxDepth}
}

// Resolve returns the node's own value for attr, or the nearest ancestor's.
// It never mutates the batch. Reaching the root, a missing parent, or the
// depth cap (a corrupted cycle) all resolve to the empty value.
func (r *InheritanceResolver) Resolve(batch *models.Batch, id models.TempID, attr models.Attribute) string {
	current, ok := batch.Get(id)
	for hops := 0; ok && hops <= r.maxDepth; hops++ {
		if v := current.Attribute(attr); v != "" {
			return v
		}
		current, ok = batch.Parent(current)
	}
	return ""
}

// AssignAssociation writes ref onto the node and, for a folder, onto every
// descendant. Existing values on descendants are overwritten.
// It returns the nodes that were written.
func (r *InheritanceResolver) AssignAssociation(batch *models.Batch, id models.TempID, ref string) ([]*models.Node, error) {
	n, ok := batch.Get(id)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("node %s not found in batch", id)}
	}

	targets := []*models.Node{n}
	if n.IsFolder() {
		targets = append(targets, batch.Descendants(id)...)
	}
	for _, t := range targets {
		t.AssociationRef = ref
	}
	return targets, nil
}
