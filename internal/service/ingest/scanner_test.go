package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

func levels(notes []ingestSvc.Notification) map[ingestSvc.NotificationLevel]int {
	counts := make(map[ingestSvc.NotificationLevel]int)
	for _, n := range notes {
		counts[n.Level]++
	}
	return counts
}

func TestScan_FolderSelection(t *testing.T) {
	notes := NewCollector()
	text := png("Shots/readme.txt")
	text.contentType = "text/plain"

	selection := dir("Shots",
		png("Shots/hero.png"),
		dir("Shots/Raw", png("Shots/Raw/one.final.png")),
		text,
	)

	scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())
	result, err := scanner.Scan(context.Background(), entries(selection), ScanOptions{}, notes)
	require.NoError(t, err)

	assert.Equal(t, models.ModeFolder, result.Mode)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 2, result.Folders)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Nodes, 4)

	root, hero, raw, one := result.Nodes[0], result.Nodes[1], result.Nodes[2], result.Nodes[3]
	assert.Equal(t, "Shots", root.Name)
	assert.Nil(t, root.ParentTempID)
	assert.Equal(t, models.ErrCodeRequired, root.Errors[models.FieldLink])

	assert.Equal(t, "hero", hero.Name)
	assert.Equal(t, root.TempID, *hero.ParentTempID)
	assert.Equal(t, "image/png", hero.ContentType)
	assert.NotNil(t, hero.Payload)

	assert.Equal(t, raw.TempID, *one.ParentTempID)
	assert.Equal(t, "one.final", one.Name)

	got := levels(notes.Drain())
	assert.Equal(t, 1, got[ingestSvc.LevelWarn])
	assert.Zero(t, got[ingestSvc.LevelError])
}

func TestScan_FlatSelection(t *testing.T) {
	scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())
	result, err := scanner.Scan(context.Background(), entries(png("a.png"), png("b.png")), ScanOptions{}, NewCollector())
	require.NoError(t, err)

	assert.Equal(t, models.ModeFlat, result.Mode)
	require.Len(t, result.Nodes, 2)
	for _, n := range result.Nodes {
		assert.True(t, n.IsFile())
		assert.Nil(t, n.ParentTempID)
	}
}

func TestScan_TooManyFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    int
		existing int
		wantErr  bool
	}{
		{name: "at the ceiling", files: 100, existing: 0, wantErr: false},
		{name: "one over the ceiling", files: 101, existing: 0, wantErr: true},
		{name: "existing files count", files: 2, existing: 99, wantErr: true},
		{name: "existing files below ceiling", files: 1, existing: 99, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var files []*fakeEntry
			for i := 0; i < tt.files; i++ {
				files = append(files, png(fmt.Sprintf("Drop/%03d.png", i)))
			}
			notes := NewCollector()
			scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())

			result, err := scanner.Scan(context.Background(), entries(dir("Drop", files...)), ScanOptions{ExistingFiles: tt.existing}, notes)
			got := levels(notes.Drain())

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.files, result.Files)
				assert.Zero(t, got[ingestSvc.LevelError])
				return
			}

			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, domain.ErrTooManyFiles))
			var limitErr *domain.ScanLimitError
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, 100, limitErr.Limit)
			assert.Equal(t, 1, got[ingestSvc.LevelError])

			// Every payload handed out before the abort went back.
			for _, f := range files {
				if f.payload != nil {
					assert.Equal(t, int32(1), f.payload.released.Load(), f.path)
				}
			}
		})
	}
}

func TestScan_Skips(t *testing.T) {
	big := png("big.png")
	big.size = 2 << 20
	gif := png("anim.gif")
	gif.contentType = "image/gif"
	unknown := png("blob")
	unknown.contentType = ""
	broken := png("broken.png")
	broken.payloadErr = errors.New("permission denied")

	tests := []struct {
		name  string
		entry *fakeEntry
	}{
		{name: "oversized file", entry: big},
		{name: "type not allowed", entry: gif},
		{name: "unknown type", entry: unknown},
		{name: "unreadable file", entry: broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := NewCollector()
			scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())

			result, err := scanner.Scan(context.Background(), entries(tt.entry, png("ok.png")), ScanOptions{}, notes)
			require.NoError(t, err)
			require.Len(t, result.Nodes, 1)
			assert.Equal(t, "ok", result.Nodes[0].Name)
			assert.Equal(t, 1, result.Skipped)
			assert.Equal(t, 1, levels(notes.Drain())[ingestSvc.LevelWarn])
		})
	}
}

func TestScan_DepthLimit(t *testing.T) {
	selection := dir("L1",
		dir("L1/L2",
			dir("L1/L2/L3",
				png("L1/L2/L3/deep.png"),
				dir("L1/L2/L3/L4", png("L1/L2/L3/L4/deeper.png")),
			),
		),
	)
	notes := NewCollector()
	scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())

	result, err := scanner.Scan(context.Background(), entries(selection), ScanOptions{}, notes)
	require.NoError(t, err)

	var names []string
	for _, n := range result.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"L1", "L2", "L3"}, names)
	assert.Equal(t, 1, levels(notes.Drain())[ingestSvc.LevelWarn])
}

func TestScan_ParentDepthShiftsLimit(t *testing.T) {
	selection := dir("Sub", png("Sub/x.png"))
	scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())

	result, err := scanner.Scan(context.Background(), entries(selection), ScanOptions{ParentDepth: 2}, NewCollector())
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.True(t, result.Nodes[0].IsFolder())
}

func TestScan_UnreadableFolder(t *testing.T) {
	broken := dir("Locked")
	broken.listErr = errors.New("permission denied")
	notes := NewCollector()
	scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())

	result, err := scanner.Scan(context.Background(), entries(broken), ScanOptions{}, notes)
	require.NoError(t, err)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, 1, levels(notes.Drain())[ingestSvc.LevelWarn])
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := png("a.png")
	scanner := NewScanner(testLimits(), NewSequenceGenerator(), testLogger())

	result, err := scanner.Scan(ctx, entries(a), ScanOptions{}, NewCollector())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Nil(t, a.payload)
}

func TestTrimExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "photo.png", want: "photo"},
		{in: "archive.tar.gz", want: "archive.tar"},
		{in: "noext", want: "noext"},
		{in: ".hidden", want: ".hidden"},
		{in: "trailing.", want: "trailing"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimExtension(tt.in))
		})
	}
}

func TestDetectMode(t *testing.T) {
	assert.Equal(t, models.ModeFlat, DetectMode(entries(png("a.png"))))
	assert.Equal(t, models.ModeFolder, DetectMode(entries(png("a.png"), dir("B"))))
	assert.Equal(t, models.ModeFlat, DetectMode(nil))
}
