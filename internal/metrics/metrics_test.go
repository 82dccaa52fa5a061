package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(leadsUpserted.WithLabelValues("created"))
	ObserveUpsert(true)
	assert.Equal(t, before+1, testutil.ToFloat64(leadsUpserted.WithLabelValues("created")))

	ObservePostings("classifieds", 3)
	ObserveAdapterFailure("board")
	ObserveDropped("board")
	ObserveTransition("new", "won")
	ObserveRun("ok", time.Second)
	ObserveHTTPRequest(http.MethodGet, "/leads", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leadhunt_postings_fetched_total")
	assert.Contains(t, rec.Body.String(), `leadhunt_status_transitions_total{from="new",to="won"}`)
}
