package adapter

import (
	"context"
	"io"
	"time"
)

// CleanupReport summarizes a staging sweep.
type CleanupReport struct {
	RemovedCount int
	BytesFreed   int64
}

// StagingStore holds fetched content between retrieval and delivery. Keys are
// owned by exactly one media item at a time; Release must be idempotent so
// every delivery exit path can call it without double-release hazards.
type StagingStore interface {
	// Put stores the stream and returns the staging key and byte count.
	Put(ctx context.Context, jobID, filename string, r io.Reader) (string, int64, error)
	// Open returns the staged content for delivery. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Release drops the staged content. Releasing an absent key is a no-op.
	Release(ctx context.Context, key string) error
	// Cleanup removes staged content older than the cutoff.
	Cleanup(ctx context.Context, olderThan time.Time) (CleanupReport, error)
}
