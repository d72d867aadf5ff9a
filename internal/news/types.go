// Package news defines the core types shared across the ingestion subsystems.
package news

import (
	"time"
)

// Source describes one external content provider: where its listing page
// lives, how to pull titles and images out of its markup, and how many
// articles to accept from it per run. Sources are immutable after startup.
type Source struct {
	Name          string `json:"name" mapstructure:"name"`
	URL           string `json:"url" mapstructure:"url"`
	TitleSelector string `json:"title_selector" mapstructure:"title_selector"`
	ImageSelector string `json:"image_selector" mapstructure:"image_selector"`
	MaxArticles   int    `json:"max_articles" mapstructure:"max_articles"`
	Render        bool   `json:"render" mapstructure:"render"`
}

// Candidate is a single scraped listing item before persistence. It lives
// only within one run iteration.
type Candidate struct {
	Title    string
	Link     string
	ImageRef string
}

// Article is the persisted content record. Title doubles as the merge key:
// the store holds at most one Article per distinct title, a guarantee
// enforced by upsert-by-title rather than by the storage layer.
type Article struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	MediaID     string    `json:"media_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// RunCounters tracks per-run ingestion stats.
type RunCounters struct {
	SourcesSucceeded int `json:"sources_succeeded"`
	SourcesFailed    int `json:"sources_failed"`
	ArticlesUpserted int `json:"articles_upserted"`
	CandidatesSeen   int `json:"candidates_seen"`
	DuplicatesSkip   int `json:"duplicates_skipped"`
	MediaStored      int `json:"media_stored"`
	MediaFailed      int `json:"media_failed"`
}

func (c *RunCounters) add(other RunCounters) {
	c.SourcesSucceeded += other.SourcesSucceeded
	c.SourcesFailed += other.SourcesFailed
	c.ArticlesUpserted += other.ArticlesUpserted
	c.CandidatesSeen += other.CandidatesSeen
	c.DuplicatesSkip += other.DuplicatesSkip
	c.MediaStored += other.MediaStored
	c.MediaFailed += other.MediaFailed
}

// FetchRequest captures everything needed to fetch one URL.
type FetchRequest struct {
	URL     string
	Referer string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
