// Package storage holds the remote object store backends.
package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// objectKey returns a fresh key under the project prefix. The extension of
// name is kept so served objects carry a recognizable suffix.
func objectKey(projectID, name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, " /\\") {
		ext = ""
	}
	return "projects/" + projectID + "/" + uuid.NewString() + ext
}
