package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// FSEntry is an entry backed by a path on the local file system.
// Symlinks are followed.
type FSEntry struct {
	path string // absolute or caller-relative OS path
	rel  string // slash-separated path shown to users
	info os.FileInfo

	typeOnce    sync.Once
	contentType string
}

// NewFSEntry stats path and wraps it. The entry's display path is its base name.
func NewFSEntry(path string) (*FSEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &FSEntry{path: path, rel: info.Name(), info: info}, nil
}

func (e *FSEntry) Name() string { return e.info.Name() }
func (e *FSEntry) Path() string { return e.rel }
func (e *FSEntry) IsDir() bool  { return e.info.IsDir() }

func (e *FSEntry) Size() int64 {
	if e.info.IsDir() {
		return 0
	}
	return e.info.Size()
}

// ContentType sniffs the file header. Unreadable files report an empty type.
func (e *FSEntry) ContentType() string {
	if e.info.IsDir() {
		return ""
	}
	e.typeOnce.Do(func() {
		mt, err := mimetype.DetectFile(e.path)
		if err == nil {
			e.contentType = mt.String()
		}
	})
	return e.contentType
}

// List returns the directory's children sorted by name.
func (e *FSEntry) List(ctx context.Context) ([]ingestSvc.Entry, error) {
	if !e.info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", e.rel)
	}
	dirEntries, err := os.ReadDir(e.path)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })

	children := make([]ingestSvc.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		childPath := filepath.Join(e.path, de.Name())
		info, err := os.Stat(childPath)
		if err != nil {
			// broken symlink or a race with deletion
			continue
		}
		children = append(children, &FSEntry{
			path: childPath,
			rel:  e.rel + "/" + de.Name(),
			info: info,
		})
	}
	return children, nil
}

// Payload hands out a reader over the file. The file itself is not owned,
// so Release leaves it in place.
func (e *FSEntry) Payload() (models.Payload, error) {
	if e.info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", e.rel)
	}
	f, err := os.Open(e.path)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return FilePayload{Path: e.path}, nil
}

// FilePayload reads an existing file.
type FilePayload struct {
	Path string
}

func (p FilePayload) Open() (io.ReadCloser, error) { return os.Open(p.Path) }
func (p FilePayload) Release() error              { return nil }
