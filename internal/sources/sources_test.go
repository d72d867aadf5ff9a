package sources

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanadzor/cityfeed/internal/news"
)

func TestNewFallsBackToDefault(t *testing.T) {
	t.Parallel()

	reg := New(nil)
	require.Equal(t, Default(), reg.All())
}

func TestNewKeepsConfiguredSources(t *testing.T) {
	t.Parallel()

	custom := []news.Source{{
		Name:          "local",
		URL:           "https://news.example/",
		TitleSelector: "h2 a",
		MaxArticles:   2,
	}}
	reg := New(custom)
	require.Equal(t, custom, reg.All())
}

func TestAllReturnsCopy(t *testing.T) {
	t.Parallel()

	reg := New(nil)
	first := reg.All()
	first[0].Name = "clobbered"
	require.NotEqual(t, "clobbered", reg.All()[0].Name)
}

func TestDefaultSourcesWellFormed(t *testing.T) {
	t.Parallel()

	defaults := Default()
	require.Len(t, defaults, 3)

	seen := make(map[string]bool)
	for _, src := range defaults {
		require.NotEmpty(t, src.Name)
		require.False(t, seen[src.Name], "duplicate source name %q", src.Name)
		seen[src.Name] = true

		u, err := url.Parse(src.URL)
		require.NoError(t, err)
		require.Equal(t, "https", u.Scheme)

		require.NotEmpty(t, src.TitleSelector)
		require.Positive(t, src.MaxArticles)
	}
}
