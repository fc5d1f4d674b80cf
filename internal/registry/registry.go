// Package registry owns every player's current game session and the
// top-scores board. It is the seam the transports call into: StartGame,
// SubmitTrial, QuitGame, RenderTrialLog and RenderScoreboard.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

var (
	// ErrGameInProgress is returned when a start is requested for a PLID
	// whose game is still PLAYING.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrNoSuchSession is returned for a PLID that never started a game.
	ErrNoSuchSession = errors.New("no such session")
	// ErrNotPlaying is returned when quitting a game that already ended.
	ErrNotPlaying = errors.New("game is not in progress")
	// ErrInvalidArgument is returned for out-of-range PLIDs, budgets or codes.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Listener is notified of lifecycle changes after the registry lock is
// released. Implementations must not block.
type Listener interface {
	GameStarted(snap game.SessionSnapshot)
	TrialScored(plid int, res game.TrialResult)
	GameEnded(snap game.SessionSnapshot)
	ScoreboardChanged(entries []ScoreEntry)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now for every session the registry creates.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithCodeSource replaces the random code generator.
func WithCodeSource(src CodeSource) Option {
	return func(r *Registry) { r.codes = src }
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(r *Registry) { r.listeners = append(r.listeners, l) }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Registry maps each PLID to its current or most recent session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*game.Session
	board    *Scoreboard

	codes     CodeSource
	now       func() time.Time
	listeners []Listener
	logger    zerolog.Logger

	boardSeq atomic.Uint64
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[int]*game.Session),
		board:    NewScoreboard(ScoreboardCapacity),
		now:      time.Now,
		logger:   util.ComponentLogger("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.codes == nil {
		r.codes = NewRandomCodes(uint64(r.now().UnixNano()))
	}
	return r
}

// pending collects notifications raised under the lock.
type pending struct {
	started *game.SessionSnapshot
	scored  *game.TrialResult
	ended   []game.SessionSnapshot
	board   []ScoreEntry
	plid    int
}

func (r *Registry) flush(p pending) {
	for _, l := range r.listeners {
		if p.started != nil {
			l.GameStarted(*p.started)
		}
		if p.scored != nil {
			l.TrialScored(p.plid, *p.scored)
		}
		for _, snap := range p.ended {
			l.GameEnded(snap)
		}
		if p.board != nil {
			l.ScoreboardChanged(p.board)
		}
	}
}

// StartGame creates a session for plid. A non-nil code marks a debug game
// with that secret; otherwise a random code is drawn.
func (r *Registry) StartGame(plid int, maxDuration time.Duration, code *game.Trial) error {
	if plid < game.MinPLID || plid > game.MaxPLID {
		return fmt.Errorf("%w: plid %d out of range", ErrInvalidArgument, plid)
	}
	if maxDuration < game.MinDuration || maxDuration > game.MaxDuration {
		return fmt.Errorf("%w: time budget %s out of range", ErrInvalidArgument, maxDuration)
	}
	if code != nil && !code.Valid() {
		return fmt.Errorf("%w: invalid code %s", ErrInvalidArgument, code)
	}

	var p pending

	r.mu.Lock()
	if s, ok := r.sessions[plid]; ok {
		if s.Expire() {
			p.ended = append(p.ended, s.Snapshot())
		}
		if s.InProgress() {
			r.mu.Unlock()
			return ErrGameInProgress
		}
	}

	debug := code != nil
	var secret game.Trial
	if debug {
		secret = *code
	} else {
		secret = r.codes.NewCode()
	}
	s := game.NewSession(plid, maxDuration, secret, debug, r.now)
	r.sessions[plid] = s
	snap := s.Snapshot()
	p.started = &snap
	r.mu.Unlock()

	r.logger.Info().
		Int("plid", plid).
		Dur("budget", maxDuration).
		Bool("debug", debug).
		Msg("game started")

	r.flush(p)
	return nil
}

// SubmitTrial forwards a trial to plid's session. A missing session answers
// OutcomeRejected.
func (r *Registry) SubmitTrial(plid int, t game.Trial, attempt int) game.TrialResult {
	var p pending
	p.plid = plid

	r.mu.Lock()
	s, ok := r.sessions[plid]
	if !ok {
		r.mu.Unlock()
		return game.TrialResult{Outcome: game.OutcomeRejected, Attempt: attempt}
	}

	before, count := s.Status(), s.TrialCount()
	res := s.SubmitTrial(t, attempt)

	if s.TrialCount() > count {
		p.scored = &res
	}
	if before != s.Status() && s.Status().Terminal() {
		snap := s.Snapshot()
		p.ended = append(p.ended, snap)
		if snap.Status == game.StatusWon && r.recordFinish(snap) {
			p.board = r.board.Entries()
		}
	}
	r.mu.Unlock()

	r.logger.Debug().
		Int("plid", plid).
		Int("attempt", attempt).
		Str("trial", t.Compact()).
		Str("outcome", res.Outcome.String()).
		Msg("trial adjudicated")

	r.flush(p)
	return res
}

// recordFinish ranks a won session. Caller holds the write lock.
func (r *Registry) recordFinish(snap game.SessionSnapshot) bool {
	admitted := r.board.Add(ScoreEntry{
		PLID:       snap.PLID,
		Code:       snap.Code,
		Trials:     len(snap.Attempts),
		Debug:      snap.Debug,
		Duration:   snap.Elapsed,
		FinishedAt: snap.EndedAt,
	})
	if admitted {
		r.logger.Info().
			Int("plid", snap.PLID).
			Int("trials", len(snap.Attempts)).
			Msg("scoreboard entry added")
	}
	return admitted
}

// QuitGame ends plid's PLAYING session and returns the secret code.
func (r *Registry) QuitGame(plid int) (game.Trial, error) {
	var p pending

	r.mu.Lock()
	s, ok := r.sessions[plid]
	if !ok {
		r.mu.Unlock()
		return game.Trial{}, ErrNoSuchSession
	}

	before := s.Status()
	code, ok := s.End()
	if before != s.Status() {
		p.ended = append(p.ended, s.Snapshot())
	}
	r.mu.Unlock()

	r.flush(p)
	if !ok {
		return game.Trial{}, ErrNotPlaying
	}

	r.logger.Info().Int("plid", plid).Msg("game quit")
	return code, nil
}

// ExpireSessions moves every PLAYING session whose budget elapsed to
// TIMED_OUT and returns their PLIDs.
func (r *Registry) ExpireSessions() []int {
	var p pending
	var expired []int

	r.mu.Lock()
	for plid, s := range r.sessions {
		if s.Expire() {
			expired = append(expired, plid)
			p.ended = append(p.ended, s.Snapshot())
		}
	}
	r.mu.Unlock()

	r.flush(p)
	return expired
}

// Session returns a snapshot of plid's session. It never creates one.
func (r *Registry) Session(plid int) (game.SessionSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[plid]
	if !ok {
		return game.SessionSnapshot{}, false
	}
	return s.Snapshot(), true
}

// Scoreboard returns the current ranking, best first.
func (r *Registry) Scoreboard() []ScoreEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.board.Entries()
}

// Stats summarises the registry.
type Stats struct {
	Sessions   int `json:"sessions"`
	Active     int `json:"active"`
	Scoreboard int `json:"scoreboard"`
}

// Stats counts stored and in-progress sessions.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{Sessions: len(r.sessions), Scoreboard: r.board.Len()}
	for _, s := range r.sessions {
		if s.InProgress() {
			st.Active++
		}
	}
	return st
}

// RenderTrialLog formats plid's trial history for the show-trials command.
func (r *Registry) RenderTrialLog(plid int) (Artifact, error) {
	snap, ok := r.Session(plid)
	if !ok {
		return Artifact{}, ErrNoSuchSession
	}
	return Artifact{
		Filename: fmt.Sprintf("STATE_%06d.txt", plid),
		Active:   snap.InProgress(),
		Content:  renderTrialLog(snap),
	}, nil
}

// RenderScoreboard formats the top scores. It reports false when nobody
// has won yet.
func (r *Registry) RenderScoreboard() (Artifact, bool) {
	entries := r.Scoreboard()
	if len(entries) == 0 {
		return Artifact{}, false
	}
	seq := r.boardSeq.Add(1)
	return Artifact{
		Filename: fmt.Sprintf("TOPSCORES_%07d.txt", seq),
		Content:  renderScoreboard(entries),
	}, true
}
