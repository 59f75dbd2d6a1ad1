package ingest

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadMetrics(t *testing.T) {
	succeeded := testutil.ToFloat64(uploadsTotal.WithLabelValues("succeeded"))
	failed := testutil.ToFloat64(uploadsTotal.WithLabelValues("failed"))

	nodes, _ := fileNodes(3)
	_, err := NewUploader(newFakeStore("file-3.png"), 2, testLogger()).
		Upload(context.Background(), "proj", nodes, NewCollector(), nil)
	require.NoError(t, err)

	assert.Equal(t, succeeded+2, testutil.ToFloat64(uploadsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, failed+1, testutil.ToFloat64(uploadsTotal.WithLabelValues("failed")))
}

func TestScanMetrics_SkippedByType(t *testing.T) {
	before := testutil.ToFloat64(skippedEntriesTotal.WithLabelValues("type"))

	gif := png("anim.gif")
	gif.contentType = "image/gif"
	_, err := NewScanner(testLimits(), NewSequenceGenerator(), testLogger()).
		Scan(context.Background(), entries(gif, png("a.png")), ScanOptions{}, NewCollector())
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(skippedEntriesTotal.WithLabelValues("type")))
}
