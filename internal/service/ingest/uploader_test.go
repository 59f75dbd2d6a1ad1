package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

func fileNodes(count int) ([]*models.Node, []*fakePayload) {
	nodes := make([]*models.Node, 0, count)
	payloads := make([]*fakePayload, 0, count)
	for i := 1; i <= count; i++ {
		p := &fakePayload{content: fmt.Sprintf("content-%d", i)}
		payloads = append(payloads, p)
		nodes = append(nodes, &models.Node{
			TempID:      models.TempID(fmt.Sprintf("tmp-%d", i)),
			Name:        fmt.Sprintf("file-%d", i),
			Kind:        models.KindFile,
			SourcePath:  fmt.Sprintf("file-%d.png", i),
			ContentType: "image/png",
			Size:        int64(len(p.content)),
			Payload:     p,
		})
	}
	return nodes, payloads
}

type progressLog struct {
	mu     sync.Mutex
	events []models.Progress
}

func (l *progressLog) record(p models.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *progressLog) all() []models.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Progress(nil), l.events...)
}

func TestUpload_PartialFailure(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			nodes, payloads := fileNodes(3)
			store := newFakeStore("file-2.png")
			notes := NewCollector()
			progress := &progressLog{}

			report, err := NewUploader(store, concurrency, testLogger()).
				Upload(context.Background(), "proj", nodes, notes, progress.record)
			require.NoError(t, err)

			assert.Len(t, report.Succeeded, 2)
			require.Len(t, report.Failed, 1)
			assert.Equal(t, models.TempID("tmp-2"), report.Failed[0].TempID)
			assert.Equal(t, 3, report.Total())

			events := progress.all()
			require.Len(t, events, 3)
			for i, e := range events {
				assert.Equal(t, i+1, e.Completed)
				assert.Equal(t, 3, e.Total)
			}

			assert.Equal(t, "https://objects.test/proj/file-1.png", nodes[0].RemoteRef)
			assert.Empty(t, nodes[1].RemoteRef)
			assert.NotEmpty(t, nodes[1].UploadError)
			assert.NotEmpty(t, nodes[2].RemoteRef)

			// Succeeded payloads are released; the failed one is kept for a retry.
			assert.Equal(t, int32(1), payloads[0].released.Load())
			assert.Equal(t, int32(0), payloads[1].released.Load())
			assert.Equal(t, int32(1), payloads[2].released.Load())
			assert.NotNil(t, nodes[1].Payload)

			assert.Equal(t, 1, levels(notes.Drain())[ingestSvc.LevelWarn])
		})
	}
}

func TestUpload_RetryOnlySendsPending(t *testing.T) {
	nodes, _ := fileNodes(3)
	store := newFakeStore("file-2.png")
	uploader := NewUploader(store, 2, testLogger())

	_, err := uploader.Upload(context.Background(), "proj", nodes, NewCollector(), nil)
	require.NoError(t, err)
	require.Len(t, store.uploads(), 2)

	store.setFailing()
	progress := &progressLog{}
	report, err := uploader.Upload(context.Background(), "proj", nodes, NewCollector(), progress.record)
	require.NoError(t, err)

	assert.Len(t, report.Succeeded, 1)
	assert.Empty(t, report.Failed)
	uploads := store.uploads()
	require.Len(t, uploads, 3)
	assert.ElementsMatch(t, []string{"file-1.png", "file-3.png"}, uploads[:2])
	assert.Equal(t, "file-2.png", uploads[2])
	assert.Empty(t, nodes[1].UploadError)
	require.Len(t, progress.all(), 1)
	assert.Equal(t, 1, progress.all()[0].Total)
}

func TestUpload_SkipsFolders(t *testing.T) {
	nodes, _ := fileNodes(1)
	nodes = append([]*models.Node{{TempID: "dir", Name: "dir", Kind: models.KindFolder}}, nodes...)
	store := newFakeStore()

	report, err := NewUploader(store, 2, testLogger()).Upload(context.Background(), "proj", nodes, NewCollector(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total())
	assert.Equal(t, []string{"file-1.png"}, store.uploads())
}

func TestUpload_ConcurrencyIsBounded(t *testing.T) {
	nodes, _ := fileNodes(12)
	store := newFakeStore()
	store.delay = 10 * time.Millisecond

	report, err := NewUploader(store, 3, testLogger()).Upload(context.Background(), "proj", nodes, NewCollector(), nil)
	require.NoError(t, err)

	assert.Len(t, report.Succeeded, 12)
	assert.LessOrEqual(t, store.maxInFlight.Load(), int32(3))
	assert.GreaterOrEqual(t, store.maxInFlight.Load(), int32(1))
}

func TestUpload_MissingPayloadFails(t *testing.T) {
	nodes, _ := fileNodes(1)
	nodes[0].Payload = nil

	report, err := NewUploader(newFakeStore(), 1, testLogger()).Upload(context.Background(), "proj", nodes, NewCollector(), nil)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, nodes[0].UploadError, "no longer available")
}

func TestUpload_CancelStopsProgress(t *testing.T) {
	nodes, payloads := fileNodes(4)
	store := newFakeStore()
	store.block = make(chan struct{})
	progress := &progressLog{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for store.inFlight.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	report, err := NewUploader(store, 2, testLogger()).Upload(ctx, "proj", nodes, NewCollector(), progress.record)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Failed)
	assert.Empty(t, progress.all())
	for i, n := range nodes {
		assert.Empty(t, n.UploadError)
		assert.Empty(t, n.RemoteRef)
		assert.Equal(t, int32(0), payloads[i].released.Load())
	}
}
