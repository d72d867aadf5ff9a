package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listingA = `<html><body>
<h4><a href="/a1">Alpha One</a></h4>
<h4><a href="/a2">Alpha Two</a></h4>
<h4><a href="/a3">Alpha Three</a></h4>
</body></html>`

const detailWithImage = `<html><body><img src="/img/photo.jpg"></body></html>`
const detailNoImage = `<html><body><p>no pictures here</p></body></html>`

func newIngestor(
	srcs []Source,
	fetcher Fetcher,
	renderer Fetcher,
	store *fakeContentStore,
	blobs *fakeBlobStore,
	publisher Publisher,
) *Ingestor {
	media := NewMediaResolver(fetcher, blobs, zap.NewNop())
	clock := &fakeClock{now: time.Unix(1000, 0).UTC()}
	return NewIngestor(srcs, fetcher, renderer, store, media, publisher, clock,
		IngestorConfig{Topic: "ingest-runs"}, zap.NewNop())
}

func TestIngestorRunColdStart(t *testing.T) {
	t.Parallel()

	src := Source{
		Name:          "alpha",
		URL:           "https://alpha.example/news/",
		TitleSelector: "h4 a",
		ImageSelector: "img",
		MaxArticles:   6,
	}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/":   {StatusCode: 200, Body: []byte(listingA)},
			"https://alpha.example/a1":      {StatusCode: 200, Body: []byte(detailWithImage)},
			"https://alpha.example/a2":      {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a3":      {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/img/photo.jpg": {StatusCode: 200, Body: []byte("jpeg")},
		},
	}
	store := newFakeContentStore()
	blobs := newFakeBlobStore()

	counters, err := newIngestor([]Source{src}, fetcher, nil, store, blobs, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, counters.ArticlesUpserted)
	require.Equal(t, 1, counters.SourcesSucceeded)
	require.Equal(t, 1, counters.MediaStored)

	alpha, ok := store.get("Alpha One")
	require.True(t, ok)
	require.Equal(t, "https://alpha.example/a1", alpha.Link)
	require.NotEmpty(t, alpha.MediaID)
	require.Equal(t, []byte("jpeg"), blobs.data[alpha.MediaID])

	two, ok := store.get("Alpha Two")
	require.True(t, ok)
	require.Empty(t, two.MediaID)
}

func TestIngestorRunShortCircuitsWhenStorePopulated(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.seed(Article{Title: "existing", Link: "https://x", PublishedAt: time.Now()})
	fetcher := &fakeFetcher{}

	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", MaxArticles: 3}
	counters, err := newIngestor([]Source{src}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, counters.ArticlesUpserted)
	require.Zero(t, fetcher.requestCount(), "a populated store must short-circuit before any network activity")
}

func TestIngestorSecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", MaxArticles: 6}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/": {StatusCode: 200, Body: []byte(listingA)},
			"https://alpha.example/a1":    {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a2":    {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a3":    {StatusCode: 200, Body: []byte(detailNoImage)},
		},
	}
	store := newFakeContentStore()
	ing := newIngestor([]Source{src}, fetcher, nil, store, newFakeBlobStore(), nil)

	_, err := ing.Run(context.Background())
	require.NoError(t, err)
	firstCount := store.size()
	fetchesAfterFirst := fetcher.requestCount()

	_, err = ing.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, firstCount, store.size(), "re-running against identical content must not create duplicates")
	require.Equal(t, fetchesAfterFirst, fetcher.requestCount())
}

func TestIngestorPerSourceIsolation(t *testing.T) {
	t.Parallel()

	broken := Source{Name: "broken", URL: "https://broken.example/", TitleSelector: "h4 a", MaxArticles: 3}
	healthy := Source{Name: "healthy", URL: "https://healthy.example/news/", TitleSelector: "h4 a", MaxArticles: 3}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://healthy.example/news/": {StatusCode: 200, Body: []byte(`<h4><a href="/ok">Still Works</a></h4>`)},
			"https://healthy.example/ok":    {StatusCode: 200, Body: []byte(detailNoImage)},
		},
		errors: map[string]error{
			"https://broken.example/": errors.New("connection refused"),
		},
	}
	store := newFakeContentStore()

	counters, err := newIngestor([]Source{broken, healthy}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.SourcesFailed)
	require.Equal(t, 1, counters.SourcesSucceeded)

	_, ok := store.get("Still Works")
	require.True(t, ok, "a dead source must not block the others")
}

func TestIngestorCapEnforcement(t *testing.T) {
	t.Parallel()

	// The cap is a consumer policy: the listing yields three candidates but
	// only the first is accepted.
	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", MaxArticles: 1}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/": {StatusCode: 200, Body: []byte(listingA)},
			"https://alpha.example/a1":    {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a2":    {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a3":    {StatusCode: 200, Body: []byte(detailNoImage)},
		},
	}
	store := newFakeContentStore()

	counters, err := newIngestor([]Source{src}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.ArticlesUpserted)
	require.Equal(t, 1, store.size())

	alpha, ok := store.get("Alpha One")
	require.True(t, ok)
	require.Equal(t, "https://alpha.example/a1", alpha.Link, "relative links resolve against the listing URL")
}

func TestIngestorIntraRunDedup(t *testing.T) {
	t.Parallel()

	one := Source{Name: "one", URL: "https://one.example/", TitleSelector: "h4 a", MaxArticles: 3}
	two := Source{Name: "two", URL: "https://two.example/", TitleSelector: "h4 a", MaxArticles: 3}
	shared := `<h4><a href="/s">Shared Story</a></h4>`
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://one.example/":  {StatusCode: 200, Body: []byte(shared)},
			"https://two.example/":  {StatusCode: 200, Body: []byte(shared)},
			"https://one.example/s": {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://two.example/s": {StatusCode: 200, Body: []byte(detailNoImage)},
		},
	}
	store := newFakeContentStore()

	counters, err := newIngestor([]Source{one, two}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.ArticlesUpserted)
	require.Equal(t, 1, counters.DuplicatesSkip)
	require.Equal(t, 1, store.upsertCount("Shared Story"), "the second source must be skipped via run state")
}

func TestIngestorMediaFailureTolerance(t *testing.T) {
	t.Parallel()

	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", ImageSelector: "img", MaxArticles: 1}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/": {StatusCode: 200, Body: []byte(`<h4><a href="/a1">Alpha One</a></h4>`)},
			"https://alpha.example/a1":    {StatusCode: 200, Body: []byte(detailWithImage)},
		},
		errors: map[string]error{
			"https://alpha.example/img/photo.jpg": errors.New("404 not found"),
		},
	}
	store := newFakeContentStore()

	counters, err := newIngestor([]Source{src}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.ArticlesUpserted)
	require.Equal(t, 1, counters.MediaFailed)

	alpha, ok := store.get("Alpha One")
	require.True(t, ok, "a failed image fetch must not drop the article")
	require.Empty(t, alpha.MediaID)
}

func TestIngestorDetailFailureSkipsCandidateOnly(t *testing.T) {
	t.Parallel()

	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", MaxArticles: 1}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/": {StatusCode: 200, Body: []byte(listingA)},
			"https://alpha.example/a2":    {StatusCode: 200, Body: []byte(detailNoImage)},
		},
		errors: map[string]error{
			"https://alpha.example/a1": errors.New("timeout"),
		},
	}
	store := newFakeContentStore()

	counters, err := newIngestor([]Source{src}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.ArticlesUpserted)

	// The failed candidate does not consume the cap; the next one does.
	_, ok := store.get("Alpha Two")
	require.True(t, ok)
}

func TestIngestorUpsertFailureDoesNotAbortSource(t *testing.T) {
	t.Parallel()

	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", MaxArticles: 6}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/": {StatusCode: 200, Body: []byte(listingA)},
			"https://alpha.example/a1":    {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a2":    {StatusCode: 200, Body: []byte(detailNoImage)},
			"https://alpha.example/a3":    {StatusCode: 200, Body: []byte(detailNoImage)},
		},
	}
	store := newFakeContentStore()
	store.failTitles["Alpha Two"] = errors.New("write conflict")

	counters, err := newIngestor([]Source{src}, fetcher, nil, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counters.ArticlesUpserted)

	_, ok := store.get("Alpha Three")
	require.True(t, ok, "one failed write must not abort the remaining candidates")
}

func TestIngestorPublishesRunSummary(t *testing.T) {
	t.Parallel()

	src := Source{Name: "alpha", URL: "https://alpha.example/news/", TitleSelector: "h4 a", MaxArticles: 1}
	fetcher := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://alpha.example/news/": {StatusCode: 200, Body: []byte(`<h4><a href="/a1">Alpha One</a></h4>`)},
			"https://alpha.example/a1":    {StatusCode: 200, Body: []byte(detailNoImage)},
		},
	}
	publisher := newFakePublisher()

	_, err := newIngestor([]Source{src}, fetcher, nil, newFakeContentStore(), newFakeBlobStore(), publisher).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, publisher.messages, 1)
	require.Equal(t, "ingest-runs", publisher.messages[0].topic)

	payload, ok := publisher.messages[0].payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1, payload["articles_upserted"])
}

func TestIngestorUsesRendererForRenderSources(t *testing.T) {
	t.Parallel()

	src := Source{Name: "spa", URL: "https://spa.example/", TitleSelector: "h4 a", MaxArticles: 1, Render: true}
	renderer := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://spa.example/": {StatusCode: 200, Body: []byte(`<h4><a href="/a1">Rendered Story</a></h4>`)},
		},
	}
	plain := &fakeFetcher{
		responses: map[string]FetchResponse{
			"https://spa.example/a1": {StatusCode: 200, Body: []byte(detailNoImage)},
		},
	}
	store := newFakeContentStore()

	_, err := newIngestor([]Source{src}, plain, renderer, store, newFakeBlobStore(), nil).Run(context.Background())
	require.NoError(t, err)

	_, ok := store.get("Rendered Story")
	require.True(t, ok)
	require.Equal(t, 1, renderer.requestCount(), "listing must go through the renderer")
	require.Equal(t, 1, plain.requestCount(), "detail pages stay on the plain fetcher")
}

// --- fakes ---

type fakeFetcher struct {
	mu          sync.Mutex
	responses   map[string]FetchResponse
	errors      map[string]error
	requests    []FetchRequest
	lastReferer string
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.lastReferer = req.Referer
	if err, ok := f.errors[req.URL]; ok {
		return FetchResponse{}, err
	}
	if resp, ok := f.responses[req.URL]; ok {
		return resp, nil
	}
	return FetchResponse{}, fmt.Errorf("no response configured for %s", req.URL)
}

func (f *fakeFetcher) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeContentStore struct {
	mu         sync.Mutex
	articles   map[string]Article
	upserts    map[string]int
	failTitles map[string]error
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		articles:   make(map[string]Article),
		upserts:    make(map[string]int),
		failTitles: make(map[string]error),
	}
}

func (s *fakeContentStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.articles)), nil
}

func (s *fakeContentStore) List(context.Context) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeContentStore) Upsert(_ context.Context, article Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts[article.Title]++
	if err, ok := s.failTitles[article.Title]; ok {
		return err
	}
	s.articles[article.Title] = article
	return nil
}

func (s *fakeContentStore) seed(article Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.Title] = article
}

func (s *fakeContentStore) get(title string) (Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[title]
	return a, ok
}

func (s *fakeContentStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles)
}

func (s *fakeContentStore) upsertCount(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts[title]
}

type fakeBlobStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	lastName  string
	uploadErr error
	nextID    int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: make(map[string][]byte)}
}

func (b *fakeBlobStore) Upload(_ context.Context, name string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	b.nextID++
	id := fmt.Sprintf("blob-%d", b.nextID)
	b.data[id] = append([]byte(nil), data...)
	b.lastName = name
	return id, nil
}

func (b *fakeBlobStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[id]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type publishedMessage struct {
	topic   string
	payload any
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{topic: topic, payload: payload})
	return "msgid", nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}
