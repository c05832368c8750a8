package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsDocuments(t *testing.T) {
	m := New()
	m.BatchFetched(3)
	m.DocumentIndexed(4)
	m.DocumentIndexed(0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.EntriesWrittenTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.BatchDocuments))
}

func TestMetrics_BatchFinished(t *testing.T) {
	m := New()
	m.BatchFinished(2*time.Second, "upsert-entry")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BatchFailuresTotal.WithLabelValues("upsert-entry")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LastSuccess))

	m.BatchFinished(time.Second, "")
	assert.Greater(t, testutil.ToFloat64(m.LastSuccess), float64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchFailuresTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.DocumentIndexed(1)
	m.BatchFetched(1)
	m.BatchFinished(time.Second, "")
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job"))
}

func TestMetrics_Push(t *testing.T) {
	var (
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.DocumentIndexed(5)
	require.NoError(t, m.Push(context.Background(), srv.URL, "search-indexer"))

	assert.Equal(t, "/metrics/job/search-indexer", path)
	assert.NotEmpty(t, body)
}

func TestMetrics_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "search-indexer")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "pushing metrics"))
}
