package ingest

import "time"

// AssetRecord is the persisted shape of a node, handed to the project store.
type AssetRecord struct {
	ID             FinalID   `json:"id" db:"id"`
	ProjectID      string    `json:"project_id" db:"project_id"`
	ParentID       *FinalID  `json:"parent_id" db:"parent_id"` // NULL = project root
	Kind           NodeKind  `json:"kind" db:"kind"`
	Name           string    `json:"name" db:"name"`
	Link           string    `json:"link" db:"link"`
	AssociationRef *string   `json:"association_ref,omitempty" db:"association_ref"`
	RemoteRef      *string   `json:"remote_ref,omitempty" db:"remote_ref"`
	ContentType    *string   `json:"content_type,omitempty" db:"content_type"`
	Size           int64     `json:"size" db:"size"`
	Position       int       `json:"position" db:"position"` // order among siblings
	CreatedBy      string    `json:"created_by" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// AssetTree is the nested view of a project's persisted records.
type AssetTree struct {
	Roots []*AssetTreeNode `json:"roots"`
}

// AssetTreeNode is one record with its nested children.
type AssetTreeNode struct {
	AssetRecord
	Children []*AssetTreeNode `json:"children"`
}
