// Package sources holds the static source registry.
package sources

import "github.com/vanadzor/cityfeed/internal/news"

// Registry exposes the ordered, read-only list of configured sources. Order
// determines processing order but carries no priority semantics.
type Registry struct {
	sources []news.Source
}

// New builds a Registry. An empty list falls back to the default set.
func New(list []news.Source) *Registry {
	if len(list) == 0 {
		list = Default()
	}
	return &Registry{sources: list}
}

// All returns a copy of the source list in configuration order.
func (r *Registry) All() []news.Source {
	out := make([]news.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Default returns the production source set: the three sites covering
// Vanadzor news, each with its own selectors and per-run cap.
func Default() []news.Source {
	return []news.Source{
		{
			Name:          "vanadzor.am",
			URL:           "https://vanadzor.am/news/",
			TitleSelector: "h4.entry-title a",
			ImageSelector: "img",
			MaxArticles:   6,
		},
		{
			Name:          "sputnik",
			URL:           "https://am.sputniknews.ru/geo_Vanadzor/",
			TitleSelector: "a.list__title",
			ImageSelector: "img",
			MaxArticles:   3,
		},
		{
			Name:          "aravot",
			URL:           "https://ru.aravot.am/tag/%D0%B2%D0%B0%D0%BD%D0%B0%D0%B4%D0%B7%D0%BE%D1%80/",
			TitleSelector: "h6.fs-13.mb-0 a",
			ImageSelector: "img.rounded",
			MaxArticles:   1,
		},
	}
}
