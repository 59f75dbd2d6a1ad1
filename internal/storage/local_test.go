package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingestSvc "assetdrop/internal/domain/services/ingest"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "objects"), "http://localhost:8080/objects/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestLocalStoreUpload(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Upload(context.Background(), "proj", ingestSvc.Object{
		Name:        "Shots/Hero.PNG",
		ContentType: "image/png",
		Size:        5,
		Body:        strings.NewReader("hello"),
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(ref, "http://localhost:8080/objects/projects/proj/"), ref)
	assert.True(t, strings.HasSuffix(ref, ".png"), ref)

	key := strings.TrimPrefix(ref, "http://localhost:8080/objects/")
	data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStoreUpload_FreshKeys(t *testing.T) {
	store := newTestStore(t)
	obj := func() ingestSvc.Object {
		return ingestSvc.Object{Name: "same.png", Body: strings.NewReader("x")}
	}

	first, err := store.Upload(context.Background(), "proj", obj())
	require.NoError(t, err)
	second, err := store.Upload(context.Background(), "proj", obj())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestLocalStoreUpload_Cancelled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Upload(ctx, "proj", ingestSvc.Object{Name: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(store.Dir(), "projects", "proj"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
	}{
		{name: "photo.JPG", wantExt: ".jpg"},
		{name: "noext", wantExt: ""},
		{name: "weird.extension-that-is-long", wantExt: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := objectKey("p1", tt.name)
			assert.True(t, strings.HasPrefix(key, "projects/p1/"))
			assert.Equal(t, tt.wantExt, filepath.Ext(key))
		})
	}
}
