package registry

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

type fixedCodes struct {
	code game.Trial
}

func (f fixedCodes) NewCode() game.Trial { return f.code }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingListener struct {
	mu      sync.Mutex
	started []int
	scored  []game.TrialResult
	ended   []game.Status
	boards  int
}

func (l *recordingListener) GameStarted(s game.SessionSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, s.PLID)
}

func (l *recordingListener) TrialScored(_ int, res game.TrialResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scored = append(l.scored, res)
}

func (l *recordingListener) GameEnded(s game.SessionSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = append(l.ended, s.Status)
}

func (l *recordingListener) ScoreboardChanged([]ScoreEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.boards++
}

var testCode = game.NewTrial(game.Red, game.Green, game.Blue, game.Yellow)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	base := []Option{
		WithClock(clock.Now),
		WithCodeSource(fixedCodes{code: testCode}),
		WithLogger(zerolog.Nop()),
	}
	return New(append(base, opts...)...), clock
}

func TestRegistry_StartGame(t *testing.T) {
	t.Run("second start while playing conflicts", func(t *testing.T) {
		r, _ := newTestRegistry(t)

		if err := r.StartGame(1, 600*time.Second, nil); err != nil {
			t.Fatalf("first start: %v", err)
		}
		if err := r.StartGame(1, 600*time.Second, nil); !errors.Is(err, ErrGameInProgress) {
			t.Fatalf("second start err = %v, want ErrGameInProgress", err)
		}
	})

	t.Run("start succeeds after any terminal status", func(t *testing.T) {
		r, clock := newTestRegistry(t)

		// won
		r.StartGame(1, 600*time.Second, nil)
		r.SubmitTrial(1, testCode, 1)
		if err := r.StartGame(1, 600*time.Second, nil); err != nil {
			t.Errorf("after win: %v", err)
		}

		// quit
		r.QuitGame(1)
		if err := r.StartGame(1, 600*time.Second, nil); err != nil {
			t.Errorf("after quit: %v", err)
		}

		// timed out, detected lazily by the start itself
		clock.Advance(601 * time.Second)
		if err := r.StartGame(1, 600*time.Second, nil); err != nil {
			t.Errorf("after timeout: %v", err)
		}
	})

	t.Run("debug start uses supplied code", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		code := game.NewTrial(game.Purple, game.Purple, game.Orange, game.Orange)

		if err := r.StartGame(42, 30*time.Second, &code); err != nil {
			t.Fatalf("start: %v", err)
		}
		snap, ok := r.Session(42)
		if !ok || snap.Code != code || !snap.Debug {
			t.Errorf("snapshot = %+v", snap)
		}
	})

	t.Run("rejects out of range arguments", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		bad := game.Trial{}

		cases := []struct {
			plid int
			dur  time.Duration
			code *game.Trial
		}{
			{0, time.Minute, nil},
			{1000000, time.Minute, nil},
			{1, 0, nil},
			{1, 601 * time.Second, nil},
			{1, time.Minute, &bad},
		}
		for _, c := range cases {
			if err := r.StartGame(c.plid, c.dur, c.code); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("StartGame(%d, %v) err = %v", c.plid, c.dur, err)
			}
		}
	})
}

func TestRegistry_SubmitTrial(t *testing.T) {
	t.Run("unknown player is rejected", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res := r.SubmitTrial(7, testCode, 1)
		if res.Outcome != game.OutcomeRejected {
			t.Errorf("outcome = %v", res.Outcome)
		}
		if _, ok := r.Session(7); ok {
			t.Error("lookup must not create a session")
		}
	})

	t.Run("win records finish and notifies", func(t *testing.T) {
		l := &recordingListener{}
		r, _ := newTestRegistry(t, WithListener(l))

		r.StartGame(5, 600*time.Second, nil)
		r.SubmitTrial(5, game.NewTrial(game.Red, game.Red, game.Red, game.Red), 1)
		res := r.SubmitTrial(5, testCode, 2)
		if res.Outcome != game.OutcomeWon {
			t.Fatalf("outcome = %v", res.Outcome)
		}

		board := r.Scoreboard()
		if len(board) != 1 || board[0].PLID != 5 || board[0].Trials != 2 {
			t.Fatalf("scoreboard = %+v", board)
		}

		// Replaying the winning trial must not rank the player twice.
		r.SubmitTrial(5, testCode, 2)
		if len(r.Scoreboard()) != 1 {
			t.Error("replayed win added a second entry")
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if len(l.started) != 1 || len(l.scored) != 2 || len(l.ended) != 1 || l.boards != 1 {
			t.Errorf("listener saw started=%v scored=%d ended=%v boards=%d",
				l.started, len(l.scored), l.ended, l.boards)
		}
		if l.ended[0] != game.StatusWon {
			t.Errorf("ended status = %v", l.ended[0])
		}
	})
}

func TestRegistry_QuitGame(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, err := r.QuitGame(1); !errors.Is(err, ErrNoSuchSession) {
		t.Errorf("quit unknown err = %v", err)
	}

	r.StartGame(1, 600*time.Second, nil)
	r.SubmitTrial(1, game.NewTrial(game.Red, game.Red, game.Red, game.Red), 1)
	r.SubmitTrial(1, game.NewTrial(game.Green, game.Green, game.Green, game.Green), 2)
	r.SubmitTrial(1, testCode, 3)

	if _, err := r.QuitGame(1); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("quit after win err = %v, want ErrNotPlaying", err)
	}

	r.StartGame(2, 600*time.Second, nil)
	code, err := r.QuitGame(2)
	if err != nil || code != testCode {
		t.Errorf("QuitGame = %v, %v", code, err)
	}
}

func TestRegistry_ExpireSessions(t *testing.T) {
	l := &recordingListener{}
	r, clock := newTestRegistry(t, WithListener(l))

	r.StartGame(1, 10*time.Second, nil)
	r.StartGame(2, 100*time.Second, nil)
	clock.Advance(20 * time.Second)

	expired := r.ExpireSessions()
	if len(expired) != 1 || expired[0] != 1 {
		t.Fatalf("expired = %v, want [1]", expired)
	}
	snap, _ := r.Session(1)
	if snap.Status != game.StatusTimedOut {
		t.Errorf("status = %v", snap.Status)
	}
	if st := r.Stats(); st.Sessions != 2 || st.Active != 1 {
		t.Errorf("stats = %+v", st)
	}

	// The lazy path answers the same way once expired by the sweeper.
	res := r.SubmitTrial(1, testCode, 1)
	if res.Outcome != game.OutcomeTimedOut || res.Code != testCode {
		t.Errorf("trial after sweep = %+v", res)
	}
}

func TestRegistry_RenderTrialLog(t *testing.T) {
	r, clock := newTestRegistry(t)

	if _, err := r.RenderTrialLog(3); !errors.Is(err, ErrNoSuchSession) {
		t.Errorf("err = %v", err)
	}

	r.StartGame(3, 120*time.Second, nil)
	r.SubmitTrial(3, game.NewTrial(game.Red, game.Yellow, game.Green, game.Green), 1)
	clock.Advance(20 * time.Second)

	art, err := r.RenderTrialLog(3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !art.Active {
		t.Error("artifact should be active")
	}
	if art.Filename != "STATE_000003.txt" {
		t.Errorf("filename = %q", art.Filename)
	}
	for _, want := range []string{"Active game found for player 000003", "R Y G G", "100 seconds remaining"} {
		if !strings.Contains(art.Content, want) {
			t.Errorf("trial log missing %q:\n%s", want, art.Content)
		}
	}
	if art.Size() != len(art.Content) || !strings.HasSuffix(art.Content, "\n") {
		t.Error("content must be newline terminated and sized")
	}

	clock.Advance(200 * time.Second)
	art, _ = r.RenderTrialLog(3)
	if art.Active {
		t.Error("expired game should render as finished")
	}
	if !strings.Contains(art.Content, "ran out of time") {
		t.Errorf("missing timeout footer:\n%s", art.Content)
	}
}

func TestRegistry_RenderScoreboard(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, ok := r.RenderScoreboard(); ok {
		t.Fatal("empty scoreboard should report false")
	}

	r.StartGame(9, 60*time.Second, nil)
	r.SubmitTrial(9, testCode, 1)

	art, ok := r.RenderScoreboard()
	if !ok {
		t.Fatal("expected a scoreboard")
	}
	if !strings.HasPrefix(art.Filename, "TOPSCORES_") {
		t.Errorf("filename = %q", art.Filename)
	}
	for _, want := range []string{"TOP 1 SCORES", "NO TRIALS", "000009", "RGBY", "PLAY"} {
		if !strings.Contains(art.Content, want) {
			t.Errorf("scoreboard missing %q:\n%s", want, art.Content)
		}
	}
	for _, line := range strings.Split(art.Content, "\n") {
		if !strings.Contains(line, "000009") {
			continue
		}
		cells := strings.Split(strings.Trim(line, "| "), "|")
		if len(cells) != 7 || strings.TrimSpace(cells[4]) != "1" {
			t.Errorf("row %q: want 7 cells with 1 trial in the NO TRIALS column", line)
		}
	}

	next, _ := r.RenderScoreboard()
	if next.Filename == art.Filename {
		t.Error("each render should get a fresh filename")
	}
}

func TestRandomCodes(t *testing.T) {
	a, b := NewRandomCodes(7), NewRandomCodes(7)
	for i := 0; i < 20; i++ {
		ca, cb := a.NewCode(), b.NewCode()
		if ca != cb {
			t.Fatalf("same seed diverged: %v vs %v", ca, cb)
		}
		if !ca.Valid() {
			t.Fatalf("invalid code %v", ca)
		}
	}
}
