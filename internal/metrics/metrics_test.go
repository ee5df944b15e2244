package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()

	assert.NotNil(t, c.registry, "registry should be initialized")
	assert.NotNil(t, c.advances, "advances vec should be initialized")

	// Two collectors in one process must not collide.
	assert.NotPanics(t, func() { NewCollector() })
}

func TestCounters(t *testing.T) {
	c := NewCollector()

	c.DispatchStarted()
	c.OfferSent()
	c.OfferSent()
	c.Advanced(ReasonTimeout)
	c.Advanced(ReasonRejected)
	c.Advanced(ReasonTimeout)
	c.Accepted(3 * time.Second)
	c.Exhausted()
	c.Cancelled()
	c.ArbiterConflict()
	c.SnapshotError()
	c.Recovered("resumed")
	c.SetActiveJobs(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.started))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.offers))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.advances.WithLabelValues(ReasonTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.advances.WithLabelValues(ReasonRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exhausted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.arbiterConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshotErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recovered.WithLabelValues("resumed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.activeJobs))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.DispatchStarted()
		c.OfferSent()
		c.Advanced(ReasonPreempted)
		c.Accepted(time.Second)
		c.Exhausted()
		c.Cancelled()
		c.ArbiterConflict()
		c.SnapshotError()
		c.Recovered("failed")
		c.SetActiveJobs(1)
	})
	assert.Nil(t, c.Registry())
}

func TestHandlerExposesDispatchMetrics(t *testing.T) {
	c := NewCollector()
	c.OfferSent()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "dispatch_offers_total 1"))
}
