package news

import (
	"context"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

// MediaResolver turns raw image references into stored blobs.
type MediaResolver struct {
	fetcher Fetcher
	blobs   BlobStore
	logger  *zap.Logger
}

// NewMediaResolver constructs a MediaResolver.
func NewMediaResolver(fetcher Fetcher, blobs BlobStore, logger *zap.Logger) *MediaResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaResolver{
		fetcher: fetcher,
		blobs:   blobs,
		logger:  logger,
	}
}

// ResolveImageURL joins a raw image reference against the source's base URL.
// Inline data URIs are rejected: they are oversized, non-cacheable, and not
// worth persisting. Returns the empty string when the reference is unusable.
func ResolveImageURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "data:") {
		return ""
	}
	abs := AbsoluteURL(base, raw)
	if abs == "" {
		return ""
	}
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return abs
}

// Persist fetches the image bytes and uploads them to the blob store,
// returning the blob id. Any failure is logged and yields the empty string;
// the owning article is still saved without a media reference.
func (m *MediaResolver) Persist(ctx context.Context, imageURL, referer string) string {
	resp, err := m.fetcher.Fetch(ctx, FetchRequest{URL: imageURL, Referer: referer})
	if err != nil {
		m.logger.Warn("image fetch failed",
			zap.String("url", imageURL),
			zap.Error(err),
		)
		return ""
	}

	id, err := m.blobs.Upload(ctx, filenameHint(imageURL), resp.Body)
	if err != nil {
		m.logger.Warn("image upload failed",
			zap.String("url", imageURL),
			zap.Error(err),
		)
		return ""
	}
	return id
}

// filenameHint derives an upload name from the URL's last path segment.
func filenameHint(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "image"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
