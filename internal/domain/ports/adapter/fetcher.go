package adapter

import (
	"context"
	"io"

	"telegram-media-courier/internal/domain/model"
)

// RemoteMedia is one media file discovered behind a content link, in the
// order the source presents it.
type RemoteMedia struct {
	URL      string
	Filename string
}

// ContentFetchAdapter is the upstream fetch capability. Implementations own
// the scraping/HTTP details for one content source; the orchestrator only
// sees resolved item lists and byte streams.
type ContentFetchAdapter interface {
	// Resolve expands a submitted link into its ordered media list.
	// session may be nil for public content.
	Resolve(ctx context.Context, sourceURL string, session *model.Session) ([]RemoteMedia, error)
	// Fetch streams one media file. The caller closes the reader.
	Fetch(ctx context.Context, media RemoteMedia, session *model.Session) (io.ReadCloser, int64, error)
	// RequiresSession reports whether the link needs authenticated access.
	RequiresSession(sourceURL string) bool
}
