package headless

import (
	"context"
	"errors"

	"github.com/vanadzor/cityfeed/internal/news"
)

// Noop implements news.Fetcher but always returns an error to indicate that
// headless rendering is not available in the current build.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ news.FetchRequest) (news.FetchResponse, error) {
	return news.FetchResponse{}, errors.New("headless fetcher not configured")
}
