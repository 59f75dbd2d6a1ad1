package ingest

import (
	"context"

	"assetdrop/internal/domain/models/ingest"
)

// Entry is one native file-system entry of a user selection.
// Directories list their children; files hand out a payload.
type Entry interface {
	// Name is the base name, extension included.
	Name() string

	// Path is the entry's path relative to the selection, used in messages.
	Path() string

	IsDir() bool

	// Size in bytes. Zero for directories.
	Size() int64

	// ContentType is the detected MIME type. Empty for directories.
	ContentType() string

	// List returns a directory's children.
	List(ctx context.Context) ([]Entry, error)

	// Payload returns a handle to a file's content. Ownership passes to the caller.
	Payload() (ingest.Payload, error)
}
