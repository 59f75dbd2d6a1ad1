package ingest

// Progress is reported after every upload settles, success or failure.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	TempID    TempID `json:"temp_id"`
	Name      string `json:"name"`
	Failed    bool   `json:"failed"`
}

// UploadOutcome is the settled result of one file upload.
type UploadOutcome struct {
	TempID    TempID `json:"temp_id"`
	Name      string `json:"name"`
	RemoteRef string `json:"remote_ref,omitempty"`
	Error     string `json:"error,omitempty"`
}

// UploadReport groups the settled uploads of one run.
type UploadReport struct {
	Succeeded []UploadOutcome `json:"succeeded"`
	Failed    []UploadOutcome `json:"failed"`
}

// Total returns the number of settled uploads.
func (r *UploadReport) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// CommitPolicy decides what happens when some uploads failed.
type CommitPolicy string

const (
	// CommitPartial persists folders and every successfully uploaded file.
	CommitPartial CommitPolicy = "partial"
	// CommitAllOrNothing persists nothing unless every upload succeeded.
	CommitAllOrNothing CommitPolicy = "all_or_nothing"
)

// CommitResult is the structured outcome of a submit.
type CommitResult struct {
	BatchID   BatchID         `json:"batch_id"`
	Committed bool            `json:"committed"` // true if records reached the project store
	Completed bool            `json:"completed"` // true if nothing is left to retry
	Records   []AssetRecord   `json:"records"`
	Uploaded  []UploadOutcome `json:"uploaded"`
	Failed    []UploadOutcome `json:"failed"` // flagged for retry
}
