package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// ProgressFunc receives progress after every settled upload.
type ProgressFunc func(models.Progress)

// Uploader fans file payloads out to the object store with bounded concurrency.
//
// A failed upload is recorded on its node and reported as a warning; the rest
// of the batch keeps going. Nothing is retried automatically.
type Uploader struct {
	store       ingestSvc.ObjectStore
	concurrency int
	logger      *slog.Logger
}

// NewUploader creates an uploader. concurrency < 1 means sequential.
func NewUploader(store ingestSvc.ObjectStore, concurrency int, logger *slog.Logger) *Uploader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Uploader{
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// progressTracker is the single point of mutation for the completed count.
// Callbacks run under the lock, so they arrive in non-decreasing order and
// stop for good once the context is cancelled.
type progressTracker struct {
	mu        sync.Mutex
	ctx       context.Context
	completed int
	total     int
	report    models.UploadReport
	onChange  ProgressFunc
}

func (p *progressTracker) settle(n *models.Node, outcome models.UploadOutcome, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	if failed {
		p.report.Failed = append(p.report.Failed, outcome)
	} else {
		p.report.Succeeded = append(p.report.Succeeded, outcome)
	}

	if p.onChange == nil || p.ctx.Err() != nil {
		return
	}
	p.onChange(models.Progress{
		Completed: p.completed,
		Total:     p.total,
		TempID:    n.TempID,
		Name:      n.Name,
		Failed:    failed,
	})
}

// Upload sends every node in ordered that is a file without a remote reference.
// It returns once all started uploads settled. If ctx is cancelled, uploads that
// have not started are skipped and no further progress is delivered; the
// returned error is then ctx.Err().
func (u *Uploader) Upload(ctx context.Context, projectID string, ordered []*models.Node, sink ingestSvc.NotificationSink, onProgress ProgressFunc) (*models.UploadReport, error) {
	var pending []*models.Node
	for _, n := range ordered {
		if n.IsFile() && n.RemoteRef == "" {
			pending = append(pending, n)
		}
	}

	tracker := &progressTracker{
		ctx:      ctx,
		total:    len(pending),
		onChange: onProgress,
		report: models.UploadReport{
			Succeeded: []models.UploadOutcome{},
			Failed:    []models.UploadOutcome{},
		},
	}

	var g errgroup.Group
	g.SetLimit(u.concurrency)

	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Workers never return an error: one failure must not stop the group.
			if ctx.Err() != nil {
				return nil
			}
			u.uploadOne(ctx, projectID, n, sink, tracker)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return &tracker.report, err
	}

	u.logger.Info("uploads settled",
		"project_id", projectID,
		"total", tracker.total,
		"succeeded", len(tracker.report.Succeeded),
		"failed", len(tracker.report.Failed),
	)
	return &tracker.report, nil
}

func (u *Uploader) uploadOne(ctx context.Context, projectID string, n *models.Node, sink ingestSvc.NotificationSink, tracker *progressTracker) {
	start := time.Now()
	ref, err := u.send(ctx, projectID, n)
	uploadDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// Abandoned batch: no record, no callback, no warning.
			return
		}
		n.UploadError = err.Error()
		uploadsTotal.WithLabelValues("failed").Inc()
		u.logger.Warn("upload failed",
			"project_id", projectID,
			"temp_id", n.TempID,
			"name", n.Name,
			"error", err,
		)
		sink.Warn(fmt.Sprintf("Upload of %q failed; it can be retried.", n.Name))
		tracker.settle(n, models.UploadOutcome{TempID: n.TempID, Name: n.Name, Error: err.Error()}, true)
		return
	}

	n.RemoteRef = ref
	n.UploadError = ""
	if err := n.ReleasePayload(); err != nil {
		u.logger.Warn("release payload failed", "temp_id", n.TempID, "error", err)
	}
	uploadsTotal.WithLabelValues("succeeded").Inc()
	u.logger.Debug("upload succeeded", "temp_id", n.TempID, "remote_ref", ref)
	tracker.settle(n, models.UploadOutcome{TempID: n.TempID, Name: n.Name, RemoteRef: ref}, false)
}

func (u *Uploader) send(ctx context.Context, projectID string, n *models.Node) (string, error) {
	if n.Payload == nil {
		return "", errors.New("payload is no longer available")
	}
	body, err := n.Payload.Open()
	if err != nil {
		return "", fmt.Errorf("open payload: %w", err)
	}
	defer func() { _ = body.Close() }()

	ref, err := u.store.Upload(ctx, projectID, ingestSvc.Object{
		Name:        objectName(n),
		ContentType: n.ContentType,
		Size:        n.Size,
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", errors.New("object store returned an empty reference")
	}
	return ref, nil
}

func objectName(n *models.Node) string {
	if n.SourcePath != "" {
		return n.SourcePath
	}
	return n.Name
}
