package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"assetdrop/internal/config"
	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// Scanner walks a native selection and turns it into nodes.
//
// Limits are enforced during the walk:
//   - depth: folders nested deeper than MaxDepth are pruned, one warning per pruned folder
//   - count: more than MaxFiles files aborts the scan with no nodes and one aggregate error
//   - type and size: offending files are skipped with a warning each
type Scanner struct {
	limits config.Limits
	ids    IDGenerator
	logger *slog.Logger
}

// NewScanner creates a scanner enforcing limits.
func NewScanner(limits config.Limits, ids IDGenerator, logger *slog.Logger) *Scanner {
	return &Scanner{
		limits: limits,
		ids:    ids,
		logger: logger,
	}
}

// ScanOptions tunes one scan.
type ScanOptions struct {
	// ExistingFiles counts files already in the target batch toward MaxFiles.
	ExistingFiles int

	// ParentDepth is the depth of the folder the scanned roots attach to (0 = batch root).
	ParentDepth int
}

// ScanResult holds the nodes of a successful scan in discovery order.
// Root nodes have a nil ParentTempID.
type ScanResult struct {
	Mode    models.DiscoveryMode
	Nodes   []*models.Node
	Files   int
	Folders int
	Skipped int
}

// scanState is the per-walk bookkeeping.
type scanState struct {
	builder  *TreeBuilder
	sink     ingestSvc.NotificationSink
	existing int
	files    int
	folders  int
	skipped  int
}

// DetectMode returns folder mode if any dropped entry is a directory.
// Mixed selections are treated as folder mode as a whole.
func DetectMode(entries []ingestSvc.Entry) models.DiscoveryMode {
	for _, e := range entries {
		if e.IsDir() {
			return models.ModeFolder
		}
	}
	return models.ModeFlat
}

// Scan walks entries. On a count-ceiling violation it returns a *domain.ScanLimitError,
// releases every payload it acquired and yields no nodes.
func (s *Scanner) Scan(ctx context.Context, entries []ingestSvc.Entry, opts ScanOptions, sink ingestSvc.NotificationSink) (*ScanResult, error) {
	mode := DetectMode(entries)
	staging := models.NewBatch("", "", "", mode)
	st := &scanState{
		builder:  NewTreeBuilder(staging, s.ids),
		sink:     sink,
		existing: opts.ExistingFiles,
	}

	for _, entry := range entries {
		if err := s.walk(ctx, st, entry, nil, opts.ParentDepth+1); err != nil {
			releaseAll(staging.Nodes(), s.logger)
			if ctx.Err() != nil {
				scansTotal.WithLabelValues("cancelled").Inc()
			}
			return nil, err
		}
	}

	scansTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("scan complete",
		"mode", mode,
		"files", st.files,
		"folders", st.folders,
		"skipped", st.skipped,
	)

	return &ScanResult{
		Mode:    mode,
		Nodes:   staging.Nodes(),
		Files:   st.files,
		Folders: st.folders,
		Skipped: st.skipped,
	}, nil
}

func (s *Scanner) walk(ctx context.Context, st *scanState, entry ingestSvc.Entry, parent *models.TempID, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if entry.IsDir() {
		return s.walkDir(ctx, st, entry, parent, depth)
	}
	return s.addFile(st, entry, parent)
}

func (s *Scanner) walkDir(ctx context.Context, st *scanState, entry ingestSvc.Entry, parent *models.TempID, depth int) error {
	folder, err := st.builder.AddFolder(entry.Name(), parent)
	if err != nil {
		return err
	}
	folder.SourcePath = entry.Path()
	folder.SetError(models.FieldLink, models.ErrCodeRequired)
	st.folders++

	children, err := entry.List(ctx)
	if err != nil {
		st.skipped++
		skippedEntriesTotal.WithLabelValues("unreadable").Inc()
		st.sink.Warn(fmt.Sprintf("Could not read folder %q; its contents were skipped.", entry.Path()))
		s.logger.Warn("list folder failed", "path", entry.Path(), "error", err)
		return nil
	}

	if depth >= s.limits.MaxDepth {
		if len(children) > 0 {
			st.skipped += len(children)
			skippedEntriesTotal.WithLabelValues("too_deep").Inc()
			st.sink.Warn(fmt.Sprintf("Folder %q is nested deeper than %d levels; its contents were skipped.", entry.Path(), s.limits.MaxDepth))
		}
		return nil
	}

	id := folder.TempID
	for _, child := range children {
		if err := s.walk(ctx, st, child, &id, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) addFile(st *scanState, entry ingestSvc.Entry, parent *models.TempID) error {
	if !s.limits.Allows(entry.ContentType()) {
		st.skipped++
		skippedEntriesTotal.WithLabelValues("type").Inc()
		st.sink.Warn(fmt.Sprintf("Skipped %q: file type %q is not supported.", entry.Path(), displayType(entry.ContentType())))
		return nil
	}
	if entry.Size() > s.limits.MaxFileSize {
		st.skipped++
		skippedEntriesTotal.WithLabelValues("size").Inc()
		st.sink.Warn(fmt.Sprintf("Skipped %q: %s exceeds the %s limit.", entry.Path(), humanize.IBytes(uint64(entry.Size())), humanize.IBytes(uint64(s.limits.MaxFileSize))))
		return nil
	}

	st.files++
	if st.existing+st.files > s.limits.MaxFiles {
		scansTotal.WithLabelValues("too_many_files").Inc()
		st.sink.Error(fmt.Sprintf("Too many files: a batch may contain at most %d files. Nothing was added.", s.limits.MaxFiles))
		return &domain.ScanLimitError{Limit: s.limits.MaxFiles, Found: st.existing + st.files}
	}

	payload, err := entry.Payload()
	if err != nil {
		st.files--
		st.skipped++
		skippedEntriesTotal.WithLabelValues("unreadable").Inc()
		st.sink.Warn(fmt.Sprintf("Skipped %q: the file could not be read.", entry.Path()))
		s.logger.Warn("open payload failed", "path", entry.Path(), "error", err)
		return nil
	}

	_, err = st.builder.AddFile(&models.Node{
		Name:        TrimExtension(entry.Name()),
		SourcePath:  entry.Path(),
		Size:        entry.Size(),
		ContentType: entry.ContentType(),
		Payload:     payload,
	}, parent)
	if err != nil {
		_ = payload.Release()
		return err
	}
	return nil
}

// TrimExtension drops the text after the last dot. A name whose only dot is
// its first character (".hidden") is returned unchanged.
func TrimExtension(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name
	}
	return name[:i]
}

func releaseAll(nodes []*models.Node, logger *slog.Logger) {
	for _, n := range nodes {
		if err := n.ReleasePayload(); err != nil {
			logger.Warn("release payload failed", "temp_id", n.TempID, "error", err)
		}
	}
}

func displayType(contentType string) string {
	if contentType == "" {
		return "unknown"
	}
	return contentType
}
