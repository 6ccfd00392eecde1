package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	m := New("localchat_test", "llama3")
	m.IncRateLimited()
	m.IncMessage("user")
	m.ObserveUpstream("llama3", "ok", 300*time.Millisecond)

	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Fatalf("rate_limited = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("llama3", "ok")); got != 1 {
		t.Fatalf("upstream ok = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "localchat_test_messages_appended_total") {
		t.Fatalf("exposition missing counter:\n%s", rec.Body.String())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncSessionsCreated()
	m.IncMessage("assistant")
	m.IncRateLimited()
	m.ObserveUpstream("llama3", "upstream_failure", time.Second)
	m.IncUsagePublishFailure()
}

func TestUpstreamModelLabelIsBounded(t *testing.T) {
	m := New("localchat_test", "llama3", "mistral")
	for i := 0; i < 500; i++ {
		m.ObserveUpstream(fmt.Sprintf("junk-%d", i), "ok", time.Millisecond)
	}
	m.ObserveUpstream("llama3", "ok", time.Millisecond)
	m.ObserveUpstream("mistral", "upstream_failure", time.Millisecond)

	if got := testutil.CollectAndCount(m.UpstreamRequests); got != 3 {
		t.Fatalf("upstream series = %d, want 3", got)
	}
	if got := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(OtherModel, "ok")); got != 500 {
		t.Fatalf("other = %v, want 500", got)
	}
	if got := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("llama3", "ok")); got != 1 {
		t.Fatalf("llama3 = %v, want 1", got)
	}
}
