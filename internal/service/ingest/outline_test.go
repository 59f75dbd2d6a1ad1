package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "assetdrop/internal/domain/models/ingest"
)

func TestRenderOutline(t *testing.T) {
	batch := models.NewBatch("b", "p", "u", models.ModeFolder)
	builder := NewTreeBuilder(batch, NewSequenceGenerator())

	shots, err := builder.AddFolder("Shots", nil)
	require.NoError(t, err)
	shots.SetError(models.FieldLink, models.ErrCodeRequired)
	_, err = builder.AddFile(&models.Node{Name: "hero", Size: 12 << 10}, &shots.TempID)
	require.NoError(t, err)
	raw, err := builder.AddFolder("Raw", &shots.TempID)
	require.NoError(t, err)
	one, err := builder.AddFile(&models.Node{Name: "one", Size: 100}, &raw.TempID)
	require.NoError(t, err)
	one.UploadError = "timeout"
	_, err = builder.AddFile(&models.Node{Name: "loose"}, nil)
	require.NoError(t, err)

	want := "Shots/ [link: required]\n" +
		"├── hero (12 KiB)\n" +
		"└── Raw/\n" +
		"    └── one (100 B) [upload failed]\n" +
		"loose"
	assert.Equal(t, want, RenderOutline(batch))
}

func TestRenderOutline_Continuation(t *testing.T) {
	batch := models.NewBatch("b", "p", "u", models.ModeFolder)
	builder := NewTreeBuilder(batch, NewSequenceGenerator())

	root, _ := builder.AddFolder("Root", nil)
	a, _ := builder.AddFolder("A", &root.TempID)
	_, _ = builder.AddFile(&models.Node{Name: "a1"}, &a.TempID)
	_, _ = builder.AddFile(&models.Node{Name: "b"}, &root.TempID)

	want := "Root/\n" +
		"├── A/\n" +
		"│   └── a1\n" +
		"└── b"
	assert.Equal(t, want, RenderOutline(batch))
}

func TestRenderOutline_Empty(t *testing.T) {
	assert.Empty(t, RenderOutline(models.NewBatch("b", "p", "u", models.ModeFlat)))
}
