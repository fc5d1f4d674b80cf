package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/config"
	"github.com/codebreaker-project/codebreaker/internal/db"
	"github.com/codebreaker-project/codebreaker/internal/events"
	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/registry"
)

type fixedCodes struct{ code game.Trial }

func (f fixedCodes) NewCode() game.Trial { return f.code }

var secret = game.NewTrial(game.Red, game.Green, game.Blue, game.Yellow)

func newTestServer(t *testing.T, withArchive bool) (*Server, *registry.Registry, *db.Archive) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := registry.New(
		registry.WithClock(func() time.Time { return now }),
		registry.WithCodeSource(fixedCodes{code: secret}),
		registry.WithLogger(zerolog.Nop()),
	)

	cfg := config.DefaultConfig()
	cfg.API.RateLimitRPS = 0
	s := NewServer(cfg, reg, metrics.New(), "test-instance")

	var archive *db.Archive
	if withArchive {
		var err error
		archive, err = db.NewArchive(db.MemoryDSN)
		if err != nil {
			t.Fatalf("NewArchive: %v", err)
		}
		t.Cleanup(func() { archive.Close() })
	}
	s.SetDependencies(archive, nil)
	return s, reg, archive
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: bad json %q: %v", path, w.Body.String(), err)
		}
	}
	return w.Code, body
}

func TestPing(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	code, body := get(t, s.Handler(), "/api/public/ping")
	if code != http.StatusOK || body["status"] != "ok" || body["instance_id"] != "test-instance" {
		t.Errorf("ping = %d %v", code, body)
	}
}

func TestServerInfo(t *testing.T) {
	s, reg, _ := newTestServer(t, false)
	reg.StartGame(1, time.Minute, nil)

	code, body := get(t, s.Handler(), "/api/public/server_info")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	stats, _ := body["registry"].(map[string]any)
	if stats["active"] != float64(1) {
		t.Errorf("registry stats = %v", stats)
	}
	if body["game_addr"] != ":58000" {
		t.Errorf("game_addr = %v", body["game_addr"])
	}
}

func TestScoreboardAndSession(t *testing.T) {
	s, reg, _ := newTestServer(t, false)
	h := s.Handler()

	if err := reg.StartGame(42, time.Minute, nil); err != nil {
		t.Fatal(err)
	}
	reg.SubmitTrial(42, game.NewTrial(game.Red, game.Red, game.Green, game.Green), 1)

	code, body := get(t, h, "/api/public/sessions/42")
	if code != http.StatusOK || body["status"] != "PLAYING" || body["plid"] != "000042" {
		t.Fatalf("session = %d %v", code, body)
	}
	if _, leaked := body["code"]; leaked {
		t.Error("secret code exposed for a live game")
	}
	attempts := body["attempts"].([]any)
	first := attempts[0].(map[string]any)
	if first["trial"] != "RRGG" || first["black"] != float64(1) || first["white"] != float64(1) {
		t.Errorf("attempt = %v", first)
	}

	reg.SubmitTrial(42, secret, 2)

	_, body = get(t, h, "/api/public/sessions/42")
	if body["status"] != "WON" || body["code"] != "RGBY" {
		t.Errorf("finished session = %v", body)
	}

	_, body = get(t, h, "/api/public/scoreboard")
	entries := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	row := entries[0].(map[string]any)
	if row["plid"] != "000042" || row["trials"] != float64(2) || row["mode"] != "PLAY" {
		t.Errorf("row = %v", row)
	}

	if code, _ := get(t, h, "/api/public/sessions/7"); code != http.StatusNotFound {
		t.Errorf("unknown plid = %d", code)
	}
	if code, _ := get(t, h, "/api/public/sessions/abc"); code != http.StatusBadRequest {
		t.Errorf("bad plid = %d", code)
	}
}

func TestHistoryAndStats(t *testing.T) {
	s, _, archive := newTestServer(t, true)
	h := s.Handler()

	ended := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	archive.RecordGame(context.Background(), events.GameEndedPayload{
		PLID: 9, Status: game.StatusWon, Code: secret, Trials: 4,
		StartedAt: ended.Add(-time.Minute), EndedAt: ended, Duration: time.Minute,
	})

	code, body := get(t, h, "/api/public/history?plid=9")
	if code != http.StatusOK || len(body["games"].([]any)) != 1 {
		t.Errorf("history = %d %v", code, body)
	}

	code, body = get(t, h, "/api/public/players/9/stats")
	if code != http.StatusOK || body["won"] != float64(1) || body["best_trials"] != float64(4) {
		t.Errorf("stats = %d %v", code, body)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/public/history?limit=0", http.StatusBadRequest},
		{"/api/public/history?plid=x", http.StatusBadRequest},
		{"/api/public/players/10/stats", http.StatusNotFound},
		{"/api/public/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if code, _ := get(t, h, tt.path); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestArchiveDisabled(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	if code, _ := get(t, s.Handler(), "/api/public/history"); code != http.StatusServiceUnavailable {
		t.Errorf("history without archive = %d", code)
	}
}

func TestMetricsAndHeaders(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "codebreaker_sessions_active") {
		t.Errorf("metrics = %d %q", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("headers = %v", w.Header())
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.RateLimitRPS = 1
	cfg.API.RateLimitBurst = 1
	s := NewServer(cfg, registry.New(registry.WithLogger(zerolog.Nop())), nil, "x")
	h := s.Handler()

	if code, _ := get(t, h, "/api/public/ping"); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code, _ := get(t, h, "/api/public/ping"); code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", code)
	}
}
