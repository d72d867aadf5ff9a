package news

import (
	"context"
	"io"
	"time"
)

// ContentStore persists articles. Upsert must be atomic match-and-replace by
// title so that two racing writers for the same title converge to one row.
type ContentStore interface {
	// Count reports the number of stored articles.
	Count(ctx context.Context) (int64, error)
	// List returns all articles, most recent first.
	List(ctx context.Context) ([]Article, error)
	// Upsert replaces the article with the same title, or creates it.
	Upsert(ctx context.Context, article Article) error
}

// BlobStore holds binary media assets addressed by opaque ids.
type BlobStore interface {
	// Upload stores the bytes under a filename hint and returns a stable id.
	Upload(ctx context.Context, name string, data []byte) (string, error)
	// Open streams a previously uploaded blob back out.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// Fetcher performs one outbound HTTP GET with a bounded timeout.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Publisher pushes run summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
