package ingest

import (
	"fmt"
	"time"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
)

// Remapper turns ordered nodes into persistable records with final ids.
type Remapper struct {
	ids      IDGenerator
	resolver *InheritanceResolver
	now      func() time.Time
}

// NewRemapper creates a remapper. Inheritable attributes are resolved into the records.
func NewRemapper(ids IDGenerator, resolver *InheritanceResolver) *Remapper {
	return &Remapper{
		ids:      ids,
		resolver: resolver,
		now:      time.Now,
	}
}

// RemapOptions tunes one remap pass.
type RemapOptions struct {
	ProjectID string
	UserID    string

	// Existing records of the project; new records continue their per-parent positions.
	Existing []models.AssetRecord

	// Include filters which unpersisted nodes become records. Nil includes all.
	Include func(*models.Node) bool
}

// RemapResult holds records in persistence order and the temp→final lookup.
type RemapResult struct {
	Records []models.AssetRecord
	Lookup  map[models.TempID]models.FinalID
}

// Remap walks ordered once. Nodes already persisted contribute their stored
// final id to the lookup; every other included node gets a fresh final id.
// Because parents precede children, a parent's final id is always known by
// the time its children are reached.
func (r *Remapper) Remap(batch *models.Batch, ordered []*models.Node, opts RemapOptions) (*RemapResult, error) {
	lookup := make(map[models.TempID]models.FinalID, len(ordered))
	positions := nextPositions(opts.Existing)
	now := r.now()

	records := make([]models.AssetRecord, 0, len(ordered))
	for _, n := range ordered {
		if n.Persisted() {
			lookup[n.TempID] = *n.FinalID
			continue
		}
		if opts.Include != nil && !opts.Include(n) {
			continue
		}

		var parentID *models.FinalID
		if n.ParentTempID != nil {
			pid, ok := lookup[*n.ParentTempID]
			if !ok {
				return nil, fmt.Errorf("%w: parent %s of %s was not remapped before its child", domain.ErrCorruptForest, *n.ParentTempID, n.TempID)
			}
			parentID = &pid
		}

		id := r.ids.NewFinalID()
		lookup[n.TempID] = id

		key := positionKey(parentID)
		record := models.AssetRecord{
			ID:             id,
			ProjectID:      opts.ProjectID,
			ParentID:       parentID,
			Kind:           n.Kind,
			Name:           n.Name,
			Link:           r.resolver.Resolve(batch, n.TempID, models.AttrLink),
			AssociationRef: optional(r.resolver.Resolve(batch, n.TempID, models.AttrAssociationRef)),
			Position:       positions[key],
			CreatedBy:      opts.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		positions[key]++

		if n.IsFile() {
			record.RemoteRef = optional(n.RemoteRef)
			record.ContentType = optional(n.ContentType)
			record.Size = n.Size
		}
		records = append(records, record)
	}

	return &RemapResult{Records: records, Lookup: lookup}, nil
}

// nextPositions returns, per parent, the first free sibling position.
func nextPositions(existing []models.AssetRecord) map[string]int {
	positions := make(map[string]int)
	for _, rec := range existing {
		key := positionKey(rec.ParentID)
		if rec.Position+1 > positions[key] {
			positions[key] = rec.Position + 1
		}
	}
	return positions
}

func positionKey(parentID *models.FinalID) string {
	if parentID == nil {
		return ""
	}
	return string(*parentID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
