package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"assetdrop/internal/config"
	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
	ingestRepo "assetdrop/internal/domain/repositories/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// ServiceConfig holds the collaborators of the ingest service.
type ServiceConfig struct {
	Limits      config.Limits
	Concurrency int
	Policy      models.CommitPolicy

	Assets   ingestRepo.AssetRepository
	Catalog  ingestRepo.CatalogRepository
	Projects ingestRepo.ProjectRepository
	Store    ingestSvc.ObjectStore
	Sessions *SessionStore
	IDs      IDGenerator // defaults to UUIDv7
}

// ingestService implements the IngestService interface
type ingestService struct {
	scanner   *Scanner
	validator *Validator
	resolver  *InheritanceResolver
	uploader  *Uploader
	remapper  *Remapper
	ids       IDGenerator

	assets   ingestRepo.AssetRepository
	catalog  ingestRepo.CatalogRepository
	projects ingestRepo.ProjectRepository
	sessions *SessionStore
	policy   models.CommitPolicy
	logger   *slog.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(cfg ServiceConfig, logger *slog.Logger) ingestSvc.IngestService {
	ids := cfg.IDs
	if ids == nil {
		ids = NewIDGenerator()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionStore(logger)
	}
	policy := cfg.Policy
	if policy == "" {
		policy = models.CommitPartial
	}
	resolver := NewInheritanceResolver(cfg.Limits.MaxDepth)

	return &ingestService{
		scanner:   NewScanner(cfg.Limits, ids, logger),
		validator: NewValidator(),
		resolver:  resolver,
		uploader:  NewUploader(cfg.Store, cfg.Concurrency, logger),
		remapper:  NewRemapper(ids, resolver),
		ids:       ids,
		assets:    cfg.Assets,
		catalog:   cfg.Catalog,
		projects:  cfg.Projects,
		sessions:  sessions,
		policy:    policy,
		logger:    logger,
	}
}

// CreateBatch scans the selection into a new batch session
func (s *ingestService) CreateBatch(ctx context.Context, req *ingestSvc.CreateBatchRequest) (*ingestSvc.BatchView, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.Entries, validation.Required.Error("no files were provided")),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, err := s.projects.GetByID(ctx, req.ProjectID, req.UserID); err != nil {
		return nil, err
	}

	notes := NewCollector()
	sink := MultiSink(NewLogSink(s.logger), notes)

	result, err := s.scanner.Scan(ctx, req.Entries, ScanOptions{}, sink)
	if err != nil {
		return nil, err
	}
	if len(result.Nodes) == 0 {
		return nil, &domain.ValidationError{Message: summarizeSkips(notes.Drain())}
	}

	batch := models.NewBatch(s.ids.NewBatchID(), req.ProjectID, req.UserID, result.Mode)
	for _, n := range result.Nodes {
		batch.Insert(n)
	}
	s.validator.ValidateBatch(batch)
	s.sessions.open(batch, notes)

	s.logger.Info("batch created",
		"batch_id", batch.ID,
		"project_id", req.ProjectID,
		"user_id", req.UserID,
		"mode", result.Mode,
		"files", result.Files,
		"folders", result.Folders,
		"skipped", result.Skipped,
	)

	return view(batch, notes), nil
}

// GetBatch returns the current state of a batch
func (s *ingestService) GetBatch(ctx context.Context, userID string, batchID models.BatchID) (*ingestSvc.BatchView, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	return view(sess.batch, sess.notes), nil
}

// AddFolder adds an empty folder under parent (nil = root)
func (s *ingestService) AddFolder(ctx context.Context, userID string, batchID models.BatchID, req *ingestSvc.AddFolderRequest) (*ingestSvc.BatchView, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	if err := s.checkDepth(sess.batch, req.ParentID); err != nil {
		return nil, err
	}

	builder := NewTreeBuilder(sess.batch, s.ids)
	folder, err := builder.AddFolder(strings.TrimSpace(req.Name), req.ParentID)
	if err != nil {
		return nil, err
	}
	folder.Link = strings.TrimSpace(req.Link)
	folder.Expanded = true
	s.validator.ValidateNode(folder)

	s.logger.Debug("folder added", "batch_id", batchID, "temp_id", folder.TempID)
	return view(sess.batch, sess.notes), nil
}

// AddFiles scans entries and merges them under parentID (nil = root).
// The file ceiling counts files already in the batch.
func (s *ingestService) AddFiles(ctx context.Context, userID string, batchID models.BatchID, parentID *models.TempID, entries []ingestSvc.Entry) (*ingestSvc.BatchView, error) {
	if len(entries) == 0 {
		return nil, &domain.ValidationError{Message: "no files were provided"}
	}

	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	batch := sess.batch
	if parentID != nil {
		parent, ok := batch.Get(*parentID)
		if !ok {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("node %s not found in batch", *parentID)}
		}
		if !parent.IsFolder() {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("node %s is not a folder", *parentID)}
		}
	}

	if err := s.checkDepth(batch, parentID); err != nil {
		return nil, err
	}

	sink := MultiSink(NewLogSink(s.logger), sess.notes)
	result, err := s.scanner.Scan(ctx, entries, ScanOptions{
		ExistingFiles: len(batch.Files()),
		ParentDepth:   parentDepth(batch, parentID, s.scanner.limits.MaxDepth),
	}, sink)
	if err != nil {
		return nil, err
	}

	for i, n := range result.Nodes {
		if n.ParentTempID == nil && parentID != nil {
			pid := *parentID
			n.ParentTempID = &pid
		}
		if !batch.Insert(n) {
			releaseAll(result.Nodes[i:], s.logger)
			return nil, fmt.Errorf("merge scanned node %s: temp id already in batch", n.TempID)
		}
		s.validator.ValidateNode(n)
	}
	if result.Mode == models.ModeFolder {
		batch.Mode = models.ModeFolder
	}

	s.logger.Debug("files added",
		"batch_id", batchID,
		"files", result.Files,
		"folders", result.Folders,
		"skipped", result.Skipped,
	)
	return view(batch, sess.notes), nil
}

// UpdateNode applies an edit and re-validates only the edited fields
func (s *ingestService) UpdateNode(ctx context.Context, userID string, batchID models.BatchID, nodeID models.TempID, req *ingestSvc.UpdateNodeRequest) (*ingestSvc.BatchView, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	n, ok := sess.batch.Get(nodeID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("node %s not found in batch", nodeID)}
	}
	if n.Persisted() {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("node %s has already been saved", nodeID),
			ResourceType: "node",
			ResourceID:   string(nodeID),
		}
	}
	if req.Expanded != nil && !n.IsFolder() {
		return nil, &domain.ValidationError{Message: "only folders can be expanded"}
	}
	if req.AssociationRef != nil && *req.AssociationRef != "" {
		if err := s.checkCatalogItem(ctx, sess.batch.ProjectID, *req.AssociationRef); err != nil {
			return nil, err
		}
	}

	if req.Name != nil {
		n.Name = strings.TrimSpace(*req.Name)
		s.validator.ValidateField(n, models.FieldName)
	}
	if req.Link != nil {
		n.Link = strings.TrimSpace(*req.Link)
		s.validator.ValidateField(n, models.FieldLink)
	}
	if req.AssociationRef != nil {
		n.AssociationRef = *req.AssociationRef
	}
	if req.Expanded != nil {
		n.Expanded = *req.Expanded
	}

	return view(sess.batch, sess.notes), nil
}

// RemoveNode removes a node with its descendants and releases their payloads
func (s *ingestService) RemoveNode(ctx context.Context, userID string, batchID models.BatchID, nodeID models.TempID) (*ingestSvc.BatchView, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	n, ok := sess.batch.Get(nodeID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("node %s not found in batch", nodeID)}
	}
	if err := ensureUnsaved(append([]*models.Node{n}, sess.batch.Descendants(nodeID)...)); err != nil {
		return nil, err
	}

	removed := sess.batch.Remove(nodeID)
	releaseAll(removed, s.logger)

	s.logger.Debug("node removed", "batch_id", batchID, "temp_id", nodeID, "removed", len(removed))
	return view(sess.batch, sess.notes), nil
}

// AssignAssociation assigns a catalog item to a node and all its descendants
func (s *ingestService) AssignAssociation(ctx context.Context, userID string, batchID models.BatchID, nodeID models.TempID, ref string) (*ingestSvc.BatchView, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	ref = strings.TrimSpace(ref)
	if ref != "" {
		if err := s.checkCatalogItem(ctx, sess.batch.ProjectID, ref); err != nil {
			return nil, err
		}
	}

	n, ok := sess.batch.Get(nodeID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("node %s not found in batch", nodeID)}
	}
	if err := ensureUnsaved(append([]*models.Node{n}, sess.batch.Descendants(nodeID)...)); err != nil {
		return nil, err
	}

	written, err := s.resolver.AssignAssociation(sess.batch, nodeID, ref)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("association assigned", "batch_id", batchID, "temp_id", nodeID, "nodes", len(written))
	return view(sess.batch, sess.notes), nil
}

// Validate re-runs full validation over the batch
func (s *ingestService) Validate(ctx context.Context, userID string, batchID models.BatchID) (*ingestSvc.BatchView, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	s.validator.ValidateBatch(sess.batch)
	return view(sess.batch, sess.notes), nil
}

// Submit validates, orders, uploads, remaps and persists the batch.
//
// Only files without a remote reference are uploaded and only nodes without a
// final id are persisted, so calling Submit again after a partial failure
// retries exactly what is left. Final ids are recorded on the nodes only after
// the project store accepted the records.
func (s *ingestService) Submit(ctx context.Context, userID string, batchID models.BatchID, onProgress func(models.Progress)) (*models.CommitResult, error) {
	sess, err := s.sessions.acquire(batchID, userID)
	if err != nil {
		return nil, err
	}
	defer s.sessions.release(sess)

	batch := sess.batch
	if !s.validator.ValidateBatch(batch) {
		commitsTotal.WithLabelValues("invalid").Inc()
		return nil, &domain.ValidationError{Message: fmt.Sprintf("batch has %d items with errors", countInvalid(batch))}
	}

	ordered, err := Order(batch)
	if err != nil {
		return nil, err
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.sessions.beginSubmit(sess, cancel)
	defer s.sessions.endSubmit(sess)

	sink := MultiSink(NewLogSink(s.logger), sess.notes)
	report, err := s.uploader.Upload(uploadCtx, batch.ProjectID, ordered, sink, onProgress)
	if err != nil {
		commitsTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}
	if s.sessions.isClosed(sess) {
		commitsTotal.WithLabelValues("cancelled").Inc()
		return nil, context.Canceled
	}

	result := &models.CommitResult{
		BatchID:  batch.ID,
		Records:  []models.AssetRecord{},
		Uploaded: report.Succeeded,
		Failed:   report.Failed,
	}

	if s.policy == models.CommitAllOrNothing && len(report.Failed) > 0 {
		commitsTotal.WithLabelValues("held").Inc()
		sink.Warn(fmt.Sprintf("%d of %d uploads failed; nothing was saved. Submit again to retry.", len(report.Failed), report.Total()))
		return result, nil
	}

	existing, err := s.assets.GetRecords(ctx, batch.ProjectID)
	if err != nil {
		commitsTotal.WithLabelValues("store_error").Inc()
		return nil, &domain.StoreError{ProjectID: batch.ProjectID, Err: err}
	}

	remapped, err := s.remapper.Remap(batch, ordered, RemapOptions{
		ProjectID: batch.ProjectID,
		UserID:    userID,
		Existing:  existing,
		Include:   committable,
	})
	if err != nil {
		return nil, err
	}

	if len(remapped.Records) > 0 {
		if err := s.assets.Upsert(ctx, batch.ProjectID, remapped.Records); err != nil {
			commitsTotal.WithLabelValues("store_error").Inc()
			sink.Error("Saving failed. Your batch was kept; submit again to retry.")
			return nil, &domain.StoreError{ProjectID: batch.ProjectID, Err: err}
		}
		for _, n := range ordered {
			if id, ok := remapped.Lookup[n.TempID]; ok && !n.Persisted() {
				n.FinalID = &id
			}
		}
		result.Committed = true
		result.Records = remapped.Records
	}

	if len(batch.Pending()) == 0 {
		result.Completed = true
		s.sessions.close(sess)
		releaseAll(batch.Nodes(), s.logger)
		commitsTotal.WithLabelValues("completed").Inc()
		sink.Info(fmt.Sprintf("Saved %d items.", len(result.Records)))
	} else {
		commitsTotal.WithLabelValues("partial").Inc()
		sink.Warn(fmt.Sprintf("Saved %d items; %d uploads failed and can be retried.", len(result.Records), len(report.Failed)))
	}

	s.logger.Info("batch submitted",
		"batch_id", batch.ID,
		"project_id", batch.ProjectID,
		"records", len(result.Records),
		"uploaded", len(result.Uploaded),
		"failed", len(result.Failed),
		"completed", result.Completed,
	)
	return result, nil
}

// Discard abandons a batch. Nothing is persisted.
func (s *ingestService) Discard(ctx context.Context, userID string, batchID models.BatchID) error {
	if !s.sessions.discard(batchID, userID) {
		return &domain.NotFoundError{Message: fmt.Sprintf("batch %s not found", batchID)}
	}
	s.logger.Info("batch discarded", "batch_id", batchID, "user_id", userID)
	return nil
}

// ListCatalog returns the catalog items of a project the user owns
func (s *ingestService) ListCatalog(ctx context.Context, userID, projectID string) ([]models.CatalogItem, error) {
	if _, err := s.projects.GetByID(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.catalog.ListItems(ctx, projectID)
}

func (s *ingestService) checkCatalogItem(ctx context.Context, projectID, ref string) error {
	items, err := s.catalog.ListItems(ctx, projectID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == ref {
			return nil
		}
	}
	return &domain.ValidationError{Message: fmt.Sprintf("catalog item %q does not exist", ref)}
}

// checkDepth refuses new nodes under parentID that would exceed the depth limit.
func (s *ingestService) checkDepth(batch *models.Batch, parentID *models.TempID) error {
	maxDepth := s.scanner.limits.MaxDepth
	if parentDepth(batch, parentID, maxDepth) >= maxDepth {
		return &domain.ValidationError{Message: fmt.Sprintf("folders cannot be nested deeper than %d levels", maxDepth)}
	}
	return nil
}

// parentDepth returns the depth of parentID (roots are 1, nil is 0), capped at limit+1.
func parentDepth(batch *models.Batch, parentID *models.TempID, limit int) int {
	depth := 0
	for id := parentID; id != nil && depth <= limit; depth++ {
		p, ok := batch.Get(*id)
		if !ok {
			break
		}
		id = p.ParentTempID
	}
	return depth
}

// committable reports whether a node may be persisted in this pass:
// folders always, files only once their payload is stored.
// ensureUnsaved rejects edits touching nodes the project store already holds.
func ensureUnsaved(nodes []*models.Node) error {
	for _, n := range nodes {
		if n.Persisted() {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("node %s has already been saved", n.TempID),
				ResourceType: "node",
				ResourceID:   string(n.TempID),
			}
		}
	}
	return nil
}

func committable(n *models.Node) bool {
	return n.IsFolder() || n.RemoteRef != ""
}

func countInvalid(batch *models.Batch) int {
	count := 0
	for _, n := range batch.Nodes() {
		if n.HasErrors() {
			count++
		}
	}
	return count
}

// summarizeSkips builds the error of a scan that kept nothing.
func summarizeSkips(notes []ingestSvc.Notification) string {
	if len(notes) == 0 {
		return "none of the selected items could be added"
	}
	msgs := make([]string, 0, len(notes))
	for _, n := range notes {
		msgs = append(msgs, n.Message)
	}
	return "none of the selected items could be added: " + strings.Join(msgs, " ")
}

func view(batch *models.Batch, notes *Collector) *ingestSvc.BatchView {
	nodes := batch.Nodes()
	views := make([]models.NodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, n.View())
	}
	return &ingestSvc.BatchView{
		ID:            batch.ID,
		ProjectID:     batch.ProjectID,
		Mode:          batch.Mode,
		Ready:         Ready(batch),
		Nodes:         views,
		Notifications: notes.Drain(),
	}
}
