package ingest

import (
	"context"

	"assetdrop/internal/domain/models/ingest"
)

// IngestService runs the bulk ingestion pipeline over per-user batch sessions.
type IngestService interface {
	// CreateBatch scans entries into a new batch and validates it.
	CreateBatch(ctx context.Context, req *CreateBatchRequest) (*BatchView, error)

	// GetBatch returns the current state of a batch.
	GetBatch(ctx context.Context, userID string, batchID ingest.BatchID) (*BatchView, error)

	// AddFolder adds a folder to a batch, as a manual "add folder" action.
	AddFolder(ctx context.Context, userID string, batchID ingest.BatchID, req *AddFolderRequest) (*BatchView, error)

	// AddFiles scans entries under parentID (nil = root), as a manual "add files" action.
	AddFiles(ctx context.Context, userID string, batchID ingest.BatchID, parentID *ingest.TempID, entries []Entry) (*BatchView, error)

	// UpdateNode edits a node and re-validates only the edited fields.
	UpdateNode(ctx context.Context, userID string, batchID ingest.BatchID, nodeID ingest.TempID, req *UpdateNodeRequest) (*BatchView, error)

	// RemoveNode removes a node and its descendants.
	RemoveNode(ctx context.Context, userID string, batchID ingest.BatchID, nodeID ingest.TempID) (*BatchView, error)

	// AssignAssociation writes ref to a node and every descendant.
	AssignAssociation(ctx context.Context, userID string, batchID ingest.BatchID, nodeID ingest.TempID, ref string) (*BatchView, error)

	// Validate re-runs full validation.
	Validate(ctx context.Context, userID string, batchID ingest.BatchID) (*BatchView, error)

	// Submit uploads, remaps and persists the batch. onProgress may be nil.
	Submit(ctx context.Context, userID string, batchID ingest.BatchID, onProgress func(ingest.Progress)) (*ingest.CommitResult, error)

	// Discard abandons a batch and releases its payloads.
	Discard(ctx context.Context, userID string, batchID ingest.BatchID) error

	// ListCatalog returns the assignable association targets of a project.
	ListCatalog(ctx context.Context, userID, projectID string) ([]ingest.CatalogItem, error)
}

// AssetTreeService builds the nested view of a project's persisted records.
type AssetTreeService interface {
	GetAssetTree(ctx context.Context, userID, projectID string) (*ingest.AssetTree, error)
}

// CreateBatchRequest starts an ingestion session.
type CreateBatchRequest struct {
	ProjectID string  `json:"project_id"`
	UserID    string  `json:"-"`
	Entries   []Entry `json:"-"`
}

// AddFolderRequest is a manual folder creation.
type AddFolderRequest struct {
	Name     string         `json:"name"`
	ParentID *ingest.TempID `json:"parent_id"`
	Link     string         `json:"link"`
}

// UpdateNodeRequest edits a node. Nil fields are left unchanged.
type UpdateNodeRequest struct {
	Name           *string `json:"name"`
	Link           *string `json:"link"`
	AssociationRef *string `json:"association_ref"`
	Expanded       *bool   `json:"expanded"`
}

// BatchView is what clients see of a batch.
type BatchView struct {
	ID            ingest.BatchID       `json:"id"`
	ProjectID     string               `json:"project_id"`
	Mode          ingest.DiscoveryMode `json:"mode"`
	Ready         bool                 `json:"ready"` // no node has errors
	Nodes         []ingest.NodeView    `json:"nodes"`
	Notifications []Notification       `json:"notifications"`
}
