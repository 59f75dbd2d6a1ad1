package ingest

import (
	"fmt"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
)

// TreeBuilder assigns temporary ids and wires parent links as nodes are discovered.
// It is purely structural: no validation happens here.
type TreeBuilder struct {
	batch *models.Batch
	ids   IDGenerator
}

// NewTreeBuilder creates a builder that appends to batch.
func NewTreeBuilder(batch *models.Batch, ids IDGenerator) *TreeBuilder {
	return &TreeBuilder{batch: batch, ids: ids}
}

// Batch returns the forest under construction.
func (b *TreeBuilder) Batch() *models.Batch {
	return b.batch
}

// AddFolder creates a folder node under parent (nil = root).
func (b *TreeBuilder) AddFolder(name string, parent *models.TempID) (*models.Node, error) {
	return b.add(&models.Node{
		Name: name,
		Kind: models.KindFolder,
	}, parent)
}

// AddFile creates a file node under parent (nil = root).
func (b *TreeBuilder) AddFile(n *models.Node, parent *models.TempID) (*models.Node, error) {
	n.Kind = models.KindFile
	return b.add(n, parent)
}

func (b *TreeBuilder) add(n *models.Node, parent *models.TempID) (*models.Node, error) {
	if parent != nil {
		p, ok := b.batch.Get(*parent)
		if !ok {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("parent folder %s not found in batch", *parent)}
		}
		if !p.IsFolder() {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("parent %s is a file; files cannot have children", *parent)}
		}
		pid := *parent
		n.ParentTempID = &pid
	}

	// Insert refuses a taken id; draw again rather than overwrite.
	for attempt := 0; attempt < 3; attempt++ {
		n.TempID = b.ids.NewTempID()
		if b.batch.Insert(n) {
			return n, nil
		}
	}
	return nil, fmt.Errorf("allocate temp id: %w", domain.ErrConflict)
}
