package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdrop/internal/domain"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

var pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"

func spool(t *testing.T, s *Spooler, content string) *SpooledFile {
	t.Helper()
	f, err := s.Spool(strings.NewReader(content))
	require.NoError(t, err)
	return f
}

func TestSpooler(t *testing.T) {
	s, err := NewSpooler(filepath.Join(t.TempDir(), "spool"))
	require.NoError(t, err)

	f := spool(t, s, pngHeader)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, int64(len(pngHeader)), f.Size)

	r, err := f.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, pngHeader, string(data))

	require.NoError(t, f.Release())
	_, err = os.Stat(f.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoError(t, f.Release(), "second release is a no-op")
}

func TestNewUploadTree(t *testing.T) {
	s, err := NewSpooler(t.TempDir())
	require.NoError(t, err)

	tree, err := NewUploadTree([]UploadedFile{
		{RelPath: "Shots/Day1/a.png", File: spool(t, s, pngHeader)},
		{RelPath: "loose.png", File: spool(t, s, pngHeader)},
		{RelPath: "Shots/b.png", File: spool(t, s, pngHeader)},
		{RelPath: "Shots/Day1/c.png", File: spool(t, s, pngHeader)},
	})
	require.NoError(t, err)

	roots := tree.Entries()
	require.Len(t, roots, 2)
	assert.Equal(t, "Shots", roots[0].Name())
	assert.True(t, roots[0].IsDir())
	assert.Equal(t, "loose.png", roots[1].Name())
	assert.Equal(t, "image/png", roots[1].ContentType())

	shots, err := roots[0].List(context.Background())
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, "Shots/Day1", shots[0].Path())
	assert.Equal(t, "Shots/b.png", shots[1].Path())

	day1, err := shots[0].List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "c.png"}, names(day1))
}

func names(es []ingestSvc.Entry) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name())
	}
	return out
}

func TestNewUploadTree_RejectsBadPaths(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty", path: ""},
		{name: "absolute", path: "/etc/passwd"},
		{name: "climbs out", path: "../secret.png"},
		{name: "climbs out after clean", path: "a/../../secret.png"},
		{name: "windows climb", path: "..\\secret.png"},
		{name: "dot", path: "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUploadTree([]UploadedFile{{RelPath: tt.path, File: &SpooledFile{}}})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestUploadTree_PayloadClaimedOnce(t *testing.T) {
	s, err := NewSpooler(t.TempDir())
	require.NoError(t, err)
	claimed := spool(t, s, pngHeader)
	skipped := spool(t, s, "plain text")

	tree, err := NewUploadTree([]UploadedFile{
		{RelPath: "a.png", File: claimed},
		{RelPath: "notes.txt", File: skipped},
	})
	require.NoError(t, err)

	entry := tree.Entries()[0]
	p, err := entry.Payload()
	require.NoError(t, err)
	assert.Same(t, claimed, p)
	_, err = entry.Payload()
	assert.Error(t, err)

	require.NoError(t, tree.ReleaseUnclaimed())
	_, err = os.Stat(claimed.Path)
	assert.NoError(t, err, "claimed payload belongs to its node")
	_, err = os.Stat(skipped.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFSEntry(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Shots")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Raw"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.png"), []byte(pngHeader), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	entry, err := NewFSEntry(root)
	require.NoError(t, err)
	assert.True(t, entry.IsDir())
	assert.Equal(t, "Shots", entry.Path())
	assert.Zero(t, entry.Size())

	children, err := entry.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Raw", "a.txt", "b.png"}, names(children))

	png := children[2]
	assert.Equal(t, "Shots/b.png", png.Path())
	assert.Equal(t, "image/png", png.ContentType())
	assert.Equal(t, int64(len(pngHeader)), png.Size())
	assert.True(t, strings.HasPrefix(children[1].ContentType(), "text/plain"))

	payload, err := png.Payload()
	require.NoError(t, err)
	require.NoError(t, payload.Release())
	_, err = os.Stat(filepath.Join(root, "b.png"))
	assert.NoError(t, err, "source files are never deleted")

	_, err = children[0].Payload()
	assert.Error(t, err)
}

func TestNewFSEntry_Missing(t *testing.T) {
	_, err := NewFSEntry(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
