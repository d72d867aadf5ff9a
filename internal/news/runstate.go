package news

import (
	"strings"
	"sync"
)

// RunState tracks the titles already claimed within a single ingestion run.
// Sources fan out concurrently, so membership checks and inserts happen under
// one mutex. Cross-run dedup is handled by the store's upsert-by-title, not
// here.
type RunState struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRunState returns an empty RunState.
func NewRunState() *RunState {
	return &RunState{seen: make(map[string]struct{})}
}

// Claim records the title as processed for this run and reports whether the
// caller won it. Returns false when the title is empty or was already claimed
// (exact match after trimming).
func (s *RunState) Claim(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[title]; dup {
		return false
	}
	s.seen[title] = struct{}{}
	return true
}

// Len reports the number of claimed titles.
func (s *RunState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
