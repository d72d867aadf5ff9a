package news

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunStateClaim(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	require.True(t, state.Claim("Title A"))
	require.False(t, state.Claim("Title A"))
	require.False(t, state.Claim("  Title A  "), "claims compare trimmed titles")
	require.True(t, state.Claim("Title B"))
	require.False(t, state.Claim(""))
	require.False(t, state.Claim("   "))
	require.Equal(t, 2, state.Len())
}

func TestRunStateClaimConcurrent(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	const workers = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if state.Claim("contested") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins, "exactly one claimant may win a title")
	require.Equal(t, 1, state.Len())
}

func TestRunStateDistinctTitlesConcurrent(t *testing.T) {
	t.Parallel()

	state := NewRunState()
	const titles = 50

	var wg sync.WaitGroup
	for i := 0; i < titles; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			require.True(t, state.Claim(fmt.Sprintf("title-%d", n)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, titles, state.Len())
}
