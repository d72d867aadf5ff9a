// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vanadzor/cityfeed/internal/news"
)

// ContentStore keeps articles in a title-keyed map. Upsert is atomic under
// the store mutex, matching the replace-by-key contract the orchestrator
// relies on.
type ContentStore struct {
	mu       sync.RWMutex
	articles map[string]news.Article
}

// NewContentStore constructs a ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{articles: make(map[string]news.Article)}
}

// Count reports the number of stored articles.
func (s *ContentStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.articles)), nil
}

// List returns all articles, most recent first.
func (s *ContentStore) List(_ context.Context) ([]news.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]news.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].Title < out[j].Title
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out, nil
}

// Upsert replaces the article with the same title, or creates it.
func (s *ContentStore) Upsert(_ context.Context, article news.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.Title] = article
	return nil
}
