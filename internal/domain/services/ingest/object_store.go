package ingest

import (
	"context"
	"io"
)

// Object is one payload handed to the remote object store.
type Object struct {
	Name        string // original file name, used as a key hint
	ContentType string
	Size        int64
	Body        io.Reader
}

// ObjectStore accepts binary payloads and returns a stable reference (URL).
// Calling Upload once per node is safe; identical content is not de-duplicated.
type ObjectStore interface {
	Upload(ctx context.Context, projectID string, obj Object) (string, error)
}
