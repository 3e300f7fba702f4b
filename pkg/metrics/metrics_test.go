package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDriver_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(DriverErrors.WithLabelValues("local", "test_op"))
	ObserveDriver("local", "test_op", time.Now(), nil)
	ObserveDriver("local", "test_op", time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(DriverErrors.WithLabelValues("local", "test_op")))
}

func TestWritePrometheus(t *testing.T) {
	CacheRequests.WithLabelValues("credential", "hit").Inc()
	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	assert.Contains(t, buf.String(), "cloudfile_cache_requests_total")
	assert.Contains(t, buf.String(), "go_goroutines")
}
