package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vanadzor/cityfeed/internal/news"
)

func TestContentStoreUpsertReplacesByTitle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewContentStore()

	first := news.Article{
		Title:       "City Budget Approved",
		Link:        "https://vanadzor.am/old",
		PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(ctx, first))

	updated := first
	updated.Link = "https://vanadzor.am/new"
	updated.MediaID = "blob-1"
	updated.PublishedAt = first.PublishedAt.Add(time.Hour)
	require.NoError(t, store.Upsert(ctx, updated))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	articles, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Equal(t, updated, articles[0])
}

func TestContentStoreListOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewContentStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, news.Article{Title: "older", PublishedAt: base.Add(-time.Hour)}))
	require.NoError(t, store.Upsert(ctx, news.Article{Title: "newest", PublishedAt: base.Add(time.Hour)}))
	require.NoError(t, store.Upsert(ctx, news.Article{Title: "b same instant", PublishedAt: base}))
	require.NoError(t, store.Upsert(ctx, news.Article{Title: "a same instant", PublishedAt: base}))

	articles, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 4)
	require.Equal(t, "newest", articles[0].Title)
	require.Equal(t, "a same instant", articles[1].Title)
	require.Equal(t, "b same instant", articles[2].Title)
	require.Equal(t, "older", articles[3].Title)
}

func TestContentStoreConcurrentUpserts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewContentStore()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				_ = store.Upsert(ctx, news.Article{
					Title:       "contested",
					Link:        "https://vanadzor.am/",
					PublishedAt: time.Unix(int64(j), 0),
				})
			}
		}()
	}
	wg.Wait()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
