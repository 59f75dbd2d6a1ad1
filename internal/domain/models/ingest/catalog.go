package ingest

// CatalogItem is an assignable association target ("actionable item").
type CatalogItem struct {
	ID    string `json:"id" db:"id"`
	Label string `json:"label" db:"label"`
}
