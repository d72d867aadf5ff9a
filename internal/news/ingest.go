package news

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vanadzor/cityfeed/internal/metrics"
)

// IngestorConfig controls orchestrator behavior.
type IngestorConfig struct {
	// Topic, when set, receives a run summary after every completed run.
	Topic string
}

// Ingestor drives one full ingestion pass: listing fetch, extraction, detail
// fetch, media persistence, and the dedup/merge write for every configured
// source.
type Ingestor struct {
	sources   []Source
	fetcher   Fetcher
	renderer  Fetcher
	store     ContentStore
	media     *MediaResolver
	publisher Publisher
	clock     Clock
	cfg       IngestorConfig
	logger    *zap.Logger
}

// NewIngestor constructs an Ingestor. The renderer is optional and only used
// for sources flagged Render; the publisher is optional.
func NewIngestor(
	sources []Source,
	fetcher Fetcher,
	renderer Fetcher,
	store ContentStore,
	media *MediaResolver,
	publisher Publisher,
	clock Clock,
	cfg IngestorConfig,
	logger *zap.Logger,
) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		sources:   sources,
		fetcher:   fetcher,
		renderer:  renderer,
		store:     store,
		media:     media,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one ingestion pass. When the store already holds content the
// pass returns immediately without any network activity; the emptiness gate
// is re-checked on every invocation. Sources are processed concurrently and
// in isolation, so one dead source never blocks the others.
func (i *Ingestor) Run(ctx context.Context) (RunCounters, error) {
	existing, err := i.store.Count(ctx)
	if err != nil {
		return RunCounters{}, fmt.Errorf("count articles: %w", err)
	}
	if existing > 0 {
		i.logger.Debug("store already populated, skipping ingestion",
			zap.Int64("articles", existing),
		)
		return RunCounters{}, nil
	}

	i.logger.Info("starting ingestion run", zap.Int("sources", len(i.sources)))
	start := i.clock.Now()

	state := NewRunState()
	var (
		mu    sync.Mutex
		total RunCounters
		wg    sync.WaitGroup
	)
	for _, src := range i.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			counters := i.ingestSource(ctx, src, state)
			mu.Lock()
			total.add(counters)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	i.logger.Info("ingestion run completed",
		zap.Int("articles_upserted", total.ArticlesUpserted),
		zap.Int("sources_failed", total.SourcesFailed),
		zap.Duration("elapsed", i.clock.Now().Sub(start)),
	)
	metrics.ObserveRun(total.SourcesFailed == 0, i.clock.Now().Sub(start))
	i.publishSummary(ctx, total)
	return total, nil
}

func (i *Ingestor) ingestSource(ctx context.Context, src Source, state *RunState) RunCounters {
	var counters RunCounters

	listing, err := i.listingFetcher(src).Fetch(ctx, FetchRequest{URL: src.URL, Referer: src.URL})
	if err != nil {
		counters.SourcesFailed++
		metrics.ObserveFetchFailure(src.Name, "listing")
		i.logger.Warn("listing fetch failed",
			zap.String("source", src.Name),
			zap.String("url", src.URL),
			zap.Error(err),
		)
		return counters
	}

	candidates, err := ExtractListing(listing.Body, src)
	if err != nil {
		counters.SourcesFailed++
		i.logger.Warn("listing parse failed",
			zap.String("source", src.Name),
			zap.Error(err),
		)
		return counters
	}
	if len(candidates) == 0 {
		// Selector matched nothing; same as an empty source, not an error.
		i.logger.Warn("no candidates found",
			zap.String("source", src.Name),
			zap.String("selector", src.TitleSelector),
		)
		counters.SourcesSucceeded++
		return counters
	}

	accepted := 0
	for _, cand := range candidates {
		if accepted >= src.MaxArticles {
			break
		}
		counters.CandidatesSeen++
		if !state.Claim(cand.Title) {
			counters.DuplicatesSkip++
			continue
		}
		if i.processCandidate(ctx, src, cand, &counters) {
			accepted++
		}
	}

	counters.SourcesSucceeded++
	return counters
}

// processCandidate fetches the detail page, persists any image, and merges
// the article. Reports whether the candidate counted against the source cap.
func (i *Ingestor) processCandidate(ctx context.Context, src Source, cand Candidate, counters *RunCounters) bool {
	link := AbsoluteURL(src.URL, cand.Link)
	if link == "" {
		return false
	}

	detail, err := i.fetcher.Fetch(ctx, FetchRequest{URL: link, Referer: src.URL})
	if err != nil {
		metrics.ObserveFetchFailure(src.Name, "detail")
		i.logger.Warn("detail fetch failed",
			zap.String("source", src.Name),
			zap.String("url", link),
			zap.Error(err),
		)
		return false
	}

	mediaID := ""
	if imageURL := ResolveImageURL(ExtractImageRef(detail.Body, src), src.URL); imageURL != "" {
		mediaID = i.media.Persist(ctx, imageURL, src.URL)
		if mediaID == "" {
			counters.MediaFailed++
			metrics.ObserveMedia(false)
		} else {
			counters.MediaStored++
			metrics.ObserveMedia(true)
		}
	}

	article := Article{
		Title:       cand.Title,
		Link:        link,
		MediaID:     mediaID,
		PublishedAt: i.clock.Now(),
	}
	if err := i.store.Upsert(ctx, article); err != nil {
		i.logger.Error("article upsert failed",
			zap.String("source", src.Name),
			zap.String("title", cand.Title),
			zap.Error(err),
		)
		return false
	}
	counters.ArticlesUpserted++
	metrics.ObserveArticle(src.Name)
	return true
}

func (i *Ingestor) listingFetcher(src Source) Fetcher {
	if src.Render && i.renderer != nil {
		return i.renderer
	}
	return i.fetcher
}

func (i *Ingestor) publishSummary(ctx context.Context, counters RunCounters) {
	if i.publisher == nil || i.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"sources_succeeded": counters.SourcesSucceeded,
		"sources_failed":    counters.SourcesFailed,
		"articles_upserted": counters.ArticlesUpserted,
		"media_stored":      counters.MediaStored,
		"timestamp":         i.clock.Now().Format(time.RFC3339),
	}
	if _, err := i.publisher.Publish(ctx, i.cfg.Topic, payload); err != nil {
		i.logger.Warn("run summary publish failed", zap.Error(err))
	}
}
