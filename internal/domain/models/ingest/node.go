package ingest

import (
	"io"
	"sync"
)

// TempID identifies a node inside one batch. It is never persisted.
type TempID string

// FinalID is the stable identifier of a persisted asset record.
// TempID and FinalID never mix. Only the remapper turns one into the other.
type FinalID string

// NodeKind distinguishes folders from files. It never changes after creation.
type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindFile   NodeKind = "file"
)

// Field names used as keys of Node.Errors
type Field string

const (
	FieldName Field = "name"
	FieldLink Field = "link"
)

// ErrorCode is a field-level validation error code.
type ErrorCode string

const (
	ErrCodeRequired     ErrorCode = "required"
	ErrCodeTooLong      ErrorCode = "too_long"
	ErrCodeInvalidChars ErrorCode = "invalid_characters"
)

// Attribute names an inheritable node attribute.
type Attribute string

const (
	AttrLink           Attribute = "link"
	AttrAssociationRef Attribute = "association_ref"
)

// Payload is an opaque handle to a file's binary content.
// A payload is owned by exactly one node until it is released.
type Payload interface {
	Open() (io.ReadCloser, error)
	Release() error
}

// Node is one file or folder of an ingestion batch.
type Node struct {
	TempID         TempID
	Name           string
	Kind           NodeKind
	ParentTempID   *TempID // nil = batch root
	Link           string
	AssociationRef string
	Expanded       bool // UI-only, never persisted
	Errors         map[Field]ErrorCode

	// File-only fields
	SourcePath  string
	Size        int64
	ContentType string
	RemoteRef   string // set iff the upload succeeded
	UploadError string // last upload failure, cleared on success
	Payload     Payload

	// FinalID is set once the project store accepted this node's record.
	FinalID *FinalID

	releaseOnce sync.Once
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Kind == KindFolder }

// IsFile reports whether the node is a file.
func (n *Node) IsFile() bool { return n.Kind == KindFile }

// Persisted reports whether the node already has a stored record.
func (n *Node) Persisted() bool { return n.FinalID != nil }

// SetError records a validation error for a field.
func (n *Node) SetError(field Field, code ErrorCode) {
	if n.Errors == nil {
		n.Errors = make(map[Field]ErrorCode)
	}
	n.Errors[field] = code
}

// ClearError removes a field's error. The map is dropped once empty.
func (n *Node) ClearError(field Field) {
	delete(n.Errors, field)
	if len(n.Errors) == 0 {
		n.Errors = nil
	}
}

// HasErrors reports whether the node has any validation error.
func (n *Node) HasErrors() bool { return len(n.Errors) > 0 }

// ReleasePayload gives up the node's payload handle. Only the first call releases;
// later calls are no-ops and return nil.
func (n *Node) ReleasePayload() error {
	var err error
	n.releaseOnce.Do(func() {
		if n.Payload != nil {
			err = n.Payload.Release()
			n.Payload = nil
		}
	})
	return err
}

// Attribute returns the node's own value for an inheritable attribute.
func (n *Node) Attribute(attr Attribute) string {
	switch attr {
	case AttrLink:
		return n.Link
	case AttrAssociationRef:
		return n.AssociationRef
	default:
		return ""
	}
}

// NodeView is a detached snapshot of a node, safe to serialise after the batch lock is released.
type NodeView struct {
	TempID         TempID              `json:"temp_id"`
	Name           string              `json:"name"`
	Kind           NodeKind            `json:"kind"`
	ParentTempID   *TempID             `json:"parent_temp_id"`
	Link           string              `json:"link"`
	AssociationRef string              `json:"association_ref,omitempty"`
	Expanded       bool                `json:"expanded,omitempty"`
	Errors         map[Field]ErrorCode `json:"errors,omitempty"`
	SourcePath     string              `json:"source_path,omitempty"`
	Size           int64               `json:"size,omitempty"`
	ContentType    string              `json:"content_type,omitempty"`
	RemoteRef      string              `json:"remote_ref,omitempty"`
	UploadError    string              `json:"upload_error,omitempty"`
	FinalID        *FinalID            `json:"final_id,omitempty"`
}

// View snapshots the node.
func (n *Node) View() NodeView {
	v := NodeView{
		TempID:         n.TempID,
		Name:           n.Name,
		Kind:           n.Kind,
		ParentTempID:   n.ParentTempID,
		Link:           n.Link,
		AssociationRef: n.AssociationRef,
		Expanded:       n.Expanded,
		SourcePath:     n.SourcePath,
		Size:           n.Size,
		ContentType:    n.ContentType,
		RemoteRef:      n.RemoteRef,
		UploadError:    n.UploadError,
		FinalID:        n.FinalID,
	}
	if len(n.Errors) > 0 {
		v.Errors = make(map[Field]ErrorCode, len(n.Errors))
		for f, c := range n.Errors {
			v.Errors[f] = c
		}
	}
	return v
}
