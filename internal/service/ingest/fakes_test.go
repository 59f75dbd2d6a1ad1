package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"assetdrop/internal/config"
	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLimits() config.Limits {
	return config.Limits{
		MaxDepth:            3,
		MaxFiles:            100,
		MaxFileSize:         1 << 20,
		AllowedContentTypes: []string{"image/png", "image/jpeg"},
	}
}

// fakePayload counts releases.
type fakePayload struct {
	content  string
	released atomic.Int32
	openErr  error
}

func (p *fakePayload) Open() (io.ReadCloser, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return io.NopCloser(strings.NewReader(p.content)), nil
}

func (p *fakePayload) Release() error {
	p.released.Add(1)
	return nil
}

// fakeEntry is an in-memory file or directory.
type fakeEntry struct {
	name        string
	path        string
	dir         bool
	size        int64
	contentType string
	children    []*fakeEntry
	listErr     error
	payloadErr  error
	payload     *fakePayload
}

func (e *fakeEntry) Name() string        { return e.name }
func (e *fakeEntry) Path() string        { return e.path }
func (e *fakeEntry) IsDir() bool         { return e.dir }
func (e *fakeEntry) Size() int64         { return e.size }
func (e *fakeEntry) ContentType() string { return e.contentType }

func (e *fakeEntry) List(ctx context.Context) ([]ingestSvc.Entry, error) {
	if e.listErr != nil {
		return nil, e.listErr
	}
	out := make([]ingestSvc.Entry, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out, nil
}

func (e *fakeEntry) Payload() (models.Payload, error) {
	if e.payloadErr != nil {
		return nil, e.payloadErr
	}
	if e.payload == nil {
		e.payload = &fakePayload{content: "data:" + e.path}
	}
	return e.payload, nil
}

func png(path string) *fakeEntry {
	return &fakeEntry{
		name:        path[strings.LastIndex(path, "/")+1:],
		path:        path,
		size:        128,
		contentType: "image/png",
	}
}

func dir(path string, children ...*fakeEntry) *fakeEntry {
	return &fakeEntry{
		name:     path[strings.LastIndex(path, "/")+1:],
		path:     path,
		dir:      true,
		children: children,
	}
}

func entries(es ...*fakeEntry) []ingestSvc.Entry {
	out := make([]ingestSvc.Entry, 0, len(es))
	for _, e := range es {
		out = append(out, e)
	}
	return out
}

// fakeStore is an object store whose uploads can be made to fail by object name.
type fakeStore struct {
	mu       sync.Mutex
	fail     map[string]bool
	uploaded []string
	delay    time.Duration
	block    chan struct{} // when set, uploads wait on it or on ctx

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeStore(failing ...string) *fakeStore {
	s := &fakeStore{fail: make(map[string]bool)}
	for _, name := range failing {
		s.fail[name] = true
	}
	return s
}

func (s *fakeStore) setFailing(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = make(map[string]bool)
	for _, name := range names {
		s.fail[name] = true
	}
}

func (s *fakeStore) Upload(ctx context.Context, projectID string, obj ingestSvc.Object) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if _, err := io.Copy(io.Discard, obj.Body); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[obj.Name] {
		return "", errors.New("remote store unavailable")
	}
	s.uploaded = append(s.uploaded, obj.Name)
	return fmt.Sprintf("https://objects.test/%s/%s", projectID, obj.Name), nil
}

func (s *fakeStore) uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

// fakeAssets keeps records in memory and rejects upserts with dangling parents.
type fakeAssets struct {
	mu        sync.Mutex
	records   []models.AssetRecord
	upsertErr error
	getErr    error
	upserts   int
}

func (r *fakeAssets) GetRecords(ctx context.Context, projectID string) ([]models.AssetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	var out []models.AssetRecord
	for _, rec := range r.records {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeAssets) Upsert(ctx context.Context, projectID string, records []models.AssetRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}

	known := make(map[models.FinalID]bool, len(r.records)+len(records))
	for _, rec := range r.records {
		known[rec.ID] = true
	}
	for _, rec := range records {
		if rec.ParentID != nil && !known[*rec.ParentID] {
			return fmt.Errorf("%w: parent %s of %s", domain.ErrCorruptForest, *rec.ParentID, rec.ID)
		}
		known[rec.ID] = true
	}
	r.records = append(r.records, records...)
	return nil
}

func (r *fakeAssets) all() []models.AssetRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AssetRecord(nil), r.records...)
}

type fakeCatalog struct {
	items []models.CatalogItem
}

func (c *fakeCatalog) ListItems(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
	return c.items, nil
}

// fakeProjects knows one project per user.
type fakeProjects struct {
	projects map[string]string // project id → owner
}

func (p *fakeProjects) GetByID(ctx context.Context, id, userID string) (*models.Project, error) {
	owner, ok := p.projects[id]
	if !ok || owner != userID {
		return nil, &domain.NotFoundError{Message: "project not found"}
	}
	return &models.Project{ID: id, UserID: owner, Name: "Test"}, nil
}
