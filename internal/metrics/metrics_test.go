package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(ingestRunsTotal.WithLabelValues("ok"))
	ObserveRun(true, 3*time.Second)
	require.Equal(t, before+1, testutil.ToFloat64(ingestRunsTotal.WithLabelValues("ok")))
}

func TestObserveFetchFailureStages(t *testing.T) {
	for _, stage := range []string{"listing", "detail", "image"} {
		before := testutil.ToFloat64(ingestFetchFailuresTotal.WithLabelValues("vanadzor.am", stage))
		ObserveFetchFailure("vanadzor.am", stage)
		require.Equal(t, before+1,
			testutil.ToFloat64(ingestFetchFailuresTotal.WithLabelValues("vanadzor.am", stage)))
	}
}

func TestObserveMediaResultLabels(t *testing.T) {
	okBefore := testutil.ToFloat64(ingestMediaTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(ingestMediaTotal.WithLabelValues("error"))

	ObserveMedia(true)
	ObserveMedia(false)

	require.Equal(t, okBefore+1, testutil.ToFloat64(ingestMediaTotal.WithLabelValues("ok")))
	require.Equal(t, errBefore+1, testutil.ToFloat64(ingestMediaTotal.WithLabelValues("error")))
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	ObserveHTTPRequest("GET", "/v1/news", 200, 20*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")))
}
