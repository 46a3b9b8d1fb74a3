package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector("nodebanana_test")

	c.RecordRun("completed")
	c.RecordNode("nanoBanana", "complete", 2*time.Second)
	c.RecordCache("save", nil, time.Millisecond)
	c.RecordCache("save", errors.New("disk full"), time.Millisecond)
	c.RecordBackend("gemini", "image", false)
	c.SetRunning(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NodeExecs.WithLabelValues("nanoBanana", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheOps.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BackendRequests.WithLabelValues("gemini", "image", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveRuns))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "nodebanana_test_workflow_runs_total"))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordRun("failed")
		c.RecordNode("prompt", "complete", 0)
		c.RecordMutation("add_node")
		c.SetHistoryDepth(3)
		c.RecordCache("load", nil, 0)
		c.RecordBackend("openai", "text", true)
		c.SetBreakerState("gemini", 2)
		c.SetRunning(false)
	})
	assert.Nil(t, c.Registry())
}
