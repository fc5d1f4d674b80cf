package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Requests(t *testing.T) {
	m := New()

	m.RecordRequest("udp", "TRY", "OK", time.Millisecond)
	m.RecordRequest("udp", "TRY", "OK", time.Millisecond)
	m.RecordRequest("tcp", "SSB", "EMPTY", time.Millisecond)

	if v := testutil.ToFloat64(m.Requests.WithLabelValues("udp", "TRY", "OK")); v != 2 {
		t.Errorf("udp TRY OK = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.Requests.WithLabelValues("tcp", "SSB", "EMPTY")); v != 1 {
		t.Errorf("tcp SSB EMPTY = %v, want 1", v)
	}
}

func TestMetrics_Games(t *testing.T) {
	m := New()

	t.Run("started by mode", func(t *testing.T) {
		m.RecordGameStarted(false)
		m.RecordGameStarted(true)
		m.RecordGameStarted(true)
		if v := testutil.ToFloat64(m.GamesStarted.WithLabelValues("debug")); v != 2 {
			t.Errorf("debug = %v, want 2", v)
		}
	})

	t.Run("finished by status", func(t *testing.T) {
		m.RecordGameFinished("WON")
		if v := testutil.ToFloat64(m.GamesFinished.WithLabelValues("WON")); v != 1 {
			t.Errorf("won = %v, want 1", v)
		}
	})

	t.Run("active gauge", func(t *testing.T) {
		m.SetActiveSessions(5)
		if v := testutil.ToFloat64(m.ActiveSessions); v != 5 {
			t.Errorf("active = %v, want 5", v)
		}
	})

	t.Run("stream workers", func(t *testing.T) {
		m.IncStreamWorkers()
		m.IncStreamWorkers()
		m.DecStreamWorkers()
		if v := testutil.ToFloat64(m.StreamWorkers); v != 1 {
			t.Errorf("workers = %v, want 1", v)
		}
	})
}

func TestMetrics_Isolated(t *testing.T) {
	a, b := New(), New()
	a.RecordRejected("udp", ReasonRateLimited)

	if v := testutil.ToFloat64(b.Rejected.WithLabelValues("udp", ReasonRateLimited)); v != 0 {
		t.Errorf("second registry saw %v rejections", v)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordTrialScored()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "codebreaker_trials_scored_total 1") {
		t.Errorf("exposition missing trials counter:\n%s", body)
	}
}
