package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountAndExpose(t *testing.T) {
	m := NewMetrics("persona_test")
	m.ObserveReply("play", 3*time.Millisecond)
	m.ObserveReply("play", time.Millisecond)
	m.ObserveSafety("input", "crisis")
	m.ObserveRetrieval(0, errors.New("down"))
	m.ObserveUpdate("ok")

	if got := testutil.ToFloat64(m.Replies.WithLabelValues("play")); got != 2 {
		t.Fatalf("expected 2 play replies, got %v", got)
	}
	if got := testutil.ToFloat64(m.RetrievalErrors); got != 1 {
		t.Fatalf("expected 1 retrieval error, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `persona_test_safety_trips_total{category="crisis",stage="input"} 1`) {
		t.Fatalf("expected safety counter exposed, got:\n%s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveReply("x", time.Second)
	m.ObserveSafety("output", "harmful_content")
	m.ObserveRetrieval(1, nil)
	m.ObserveUpdate("error")
	m.ObserveRateLimited()
	m.ObserveWSMessage("in")
}
