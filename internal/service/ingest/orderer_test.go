package ingest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
)

// randomForest builds a forest of size nodes where each node picks a random
// earlier folder (or the root) as its parent.
func randomForest(t *testing.T, rng *rand.Rand, size int) *models.Batch {
	t.Helper()
	batch := models.NewBatch("b", "p", "u", models.ModeFolder)
	builder := NewTreeBuilder(batch, NewSequenceGenerator())

	var folders []models.TempID
	for i := 0; i < size; i++ {
		var parent *models.TempID
		if len(folders) > 0 && rng.Intn(4) > 0 {
			pid := folders[rng.Intn(len(folders))]
			parent = &pid
		}
		if rng.Intn(2) == 0 {
			f, err := builder.AddFolder("folder", parent)
			require.NoError(t, err)
			folders = append(folders, f.TempID)
		} else {
			_, err := builder.AddFile(&models.Node{Name: "file"}, parent)
			require.NoError(t, err)
		}
	}
	return batch
}

func TestOrder_ParentsPrecedeChildren(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		batch := randomForest(t, rng, 1+rng.Intn(40))

		ordered, err := Order(batch)
		require.NoError(t, err)
		require.Len(t, ordered, batch.Len())

		pos := make(map[models.TempID]int, len(ordered))
		for i, n := range ordered {
			pos[n.TempID] = i
		}
		for _, n := range ordered {
			if n.ParentTempID == nil {
				continue
			}
			parentPos, ok := pos[*n.ParentTempID]
			require.True(t, ok, "parent of %s missing from order", n.TempID)
			require.Less(t, parentPos, pos[n.TempID], "round %d: %s before its parent", round, n.TempID)
		}
	}
}

func TestOrder_DepthThenKindThenDiscovery(t *testing.T) {
	batch := models.NewBatch("b", "p", "u", models.ModeFolder)
	builder := NewTreeBuilder(batch, NewSequenceGenerator())

	f1, _ := builder.AddFile(&models.Node{Name: "f1"}, nil)
	a, _ := builder.AddFolder("A", nil)
	a1, _ := builder.AddFile(&models.Node{Name: "a1"}, &a.TempID)
	b, _ := builder.AddFolder("B", nil)
	ba, _ := builder.AddFolder("BA", &b.TempID)
	f2, _ := builder.AddFile(&models.Node{Name: "f2"}, nil)

	ordered, err := Order(batch)
	require.NoError(t, err)

	var got []string
	for _, n := range ordered {
		got = append(got, n.Name)
	}
	want := []string{a.Name, b.Name, f1.Name, f2.Name, ba.Name, a1.Name}
	assert.Equal(t, want, got)
}

func TestOrder_CorruptForest(t *testing.T) {
	x := models.TempID("x")
	y := models.TempID("y")
	ghost := models.TempID("ghost")

	tests := []struct {
		name  string
		nodes func() []*models.Node
	}{
		{
			name: "dangling parent",
			nodes: func() []*models.Node {
				return []*models.Node{{TempID: x, Name: "x", Kind: models.KindFile, ParentTempID: &ghost}}
			},
		},
		{
			name: "file as parent",
			nodes: func() []*models.Node {
				return []*models.Node{
					{TempID: x, Name: "x", Kind: models.KindFile},
					{TempID: y, Name: "y", Kind: models.KindFile, ParentTempID: &x},
				}
			},
		},
		{
			name: "cycle",
			nodes: func() []*models.Node {
				return []*models.Node{
					{TempID: x, Name: "x", Kind: models.KindFolder, ParentTempID: &y},
					{TempID: y, Name: "y", Kind: models.KindFolder, ParentTempID: &x},
				}
			},
		},
		{
			name: "self parent",
			nodes: func() []*models.Node {
				return []*models.Node{{TempID: x, Name: "x", Kind: models.KindFolder, ParentTempID: &x}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := models.NewBatch("b", "p", "u", models.ModeFolder)
			for _, n := range tt.nodes() {
				batch.Insert(n)
			}
			ordered, err := Order(batch)
			assert.Nil(t, ordered)
			assert.ErrorIs(t, err, domain.ErrCorruptForest)
		})
	}
}

func TestOrder_Empty(t *testing.T) {
	ordered, err := Order(models.NewBatch("b", "p", "u", models.ModeFlat))
	require.NoError(t, err)
	assert.Empty(t, ordered)
}
