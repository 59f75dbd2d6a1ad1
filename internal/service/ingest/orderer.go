package ingest

import (
	"fmt"
	"sort"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
)

// Order returns the nodes so that every node comes after its parent.
// Nodes are grouped by depth; within a depth folders come before files and
// discovery order is kept otherwise.
//
// A dangling parent, a file used as a parent, or a cycle yields ErrCorruptForest.
func Order(batch *models.Batch) ([]*models.Node, error) {
	nodes := batch.Nodes()
	depths := make(map[models.TempID]int, len(nodes))

	for _, n := range nodes {
		if _, err := depthOf(batch, n, depths); err != nil {
			return nil, err
		}
	}

	discovery := batch.DiscoveryIndex()
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if depths[a.TempID] != depths[b.TempID] {
			return depths[a.TempID] < depths[b.TempID]
		}
		if a.Kind != b.Kind {
			return a.IsFolder()
		}
		return discovery[a.TempID] < discovery[b.TempID]
	})
	return nodes, nil
}

// depthOf walks up with an explicit path so cycles are detected instead of looping.
// Depths found along the way are memoised.
func depthOf(batch *models.Batch, n *models.Node, depths map[models.TempID]int) (int, error) {
	var path []*models.Node
	onPath := make(map[models.TempID]bool)
	base := 0

	current := n
	for {
		if d, ok := depths[current.TempID]; ok {
			base = d + 1
			break
		}
		if onPath[current.TempID] {
			return 0, fmt.Errorf("%w: cycle through %s", domain.ErrCorruptForest, current.TempID)
		}
		onPath[current.TempID] = true
		path = append(path, current)

		if current.ParentTempID == nil {
			break
		}
		parent, ok := batch.Get(*current.ParentTempID)
		if !ok {
			return 0, fmt.Errorf("%w: %s references missing parent %s", domain.ErrCorruptForest, current.TempID, *current.ParentTempID)
		}
		if !parent.IsFolder() {
			return 0, fmt.Errorf("%w: %s has file %s as parent", domain.ErrCorruptForest, current.TempID, parent.TempID)
		}
		current = parent
	}

	// path runs child → root; assign from the top down
	for i := len(path) - 1; i >= 0; i-- {
		depths[path[i].TempID] = base
		base++
	}
	return depths[n.TempID], nil
}
