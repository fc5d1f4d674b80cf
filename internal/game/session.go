package game

import "time"

// Session limits.
const (
	MaxAttempts = 8
	MinPLID     = 1
	MaxPLID     = 999999
	MinDuration = 1 * time.Second
	MaxDuration = 600 * time.Second
)

// Mode names, shown on the scoreboard and in the archive.
const (
	ModePlay  = "PLAY"
	ModeDebug = "DEBUG"
)

// ModeName returns ModeDebug for caller-supplied codes, ModePlay otherwise.
func ModeName(debug bool) string {
	if debug {
		return ModeDebug
	}
	return ModePlay
}

// ValidPLID reports whether plid is within MinPLID..MaxPLID.
func ValidPLID(plid int) bool {
	return plid >= MinPLID && plid <= MaxPLID
}

// Status is the lifecycle state of a session.
type Status int

const (
	StatusNonexistent Status = iota
	StatusPlaying
	StatusWon
	StatusLost
	StatusTimedOut
	StatusQuit
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "PLAYING"
	case StatusWon:
		return "WON"
	case StatusLost:
		return "LOST"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusQuit:
		return "QUIT"
	default:
		return "NONEXISTENT"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusTimedOut || s == StatusQuit
}

// Outcome is the verdict on a single submitted trial.
type Outcome int

const (
	OutcomeError     Outcome = iota // malformed trial or attempt number
	OutcomeRejected                 // game is over or absent
	OutcomeInvalid                  // attempt number out of order
	OutcomeDuplicate                // trial already registered
	OutcomeTimedOut
	OutcomeLost
	OutcomeWon
	OutcomePlaying
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeLost:
		return "lost"
	case OutcomeWon:
		return "won"
	case OutcomePlaying:
		return "playing"
	default:
		return "error"
	}
}

// Attempt is one registered trial with its cached score.
type Attempt struct {
	Trial Trial     `json:"trial"`
	Pegs  Pegs      `json:"pegs"`
	At    time.Time `json:"at"`
}

// TrialResult is returned by SubmitTrial. Code is only set for OutcomeLost
// and OutcomeTimedOut.
type TrialResult struct {
	Outcome Outcome
	Attempt int
	Pegs    Pegs
	Code    Trial
}

// Session is one player's game. It is not safe for concurrent use; the
// registry serialises access.
type Session struct {
	plid        int
	code        Trial
	debug       bool
	maxDuration time.Duration
	startedAt   time.Time
	endedAt     time.Time
	attempts    []Attempt
	status      Status
	now         func() time.Time
}

// NewSession starts a PLAYING session. A nil clock means time.Now.
func NewSession(plid int, maxDuration time.Duration, code Trial, debug bool, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		plid:        plid,
		code:        code,
		debug:       debug,
		maxDuration: maxDuration,
		startedAt:   now(),
		attempts:    make([]Attempt, 0, MaxAttempts),
		status:      StatusPlaying,
		now:         now,
	}
}

// SubmitTrial adjudicates trial as attempt number n (1-based).
func (s *Session) SubmitTrial(t Trial, n int) TrialResult {
	if !t.Valid() || n < 1 || n > MaxAttempts {
		return TrialResult{Outcome: OutcomeError, Attempt: n}
	}

	last := len(s.attempts)
	if last > 0 && n == last && s.attempts[last-1].Trial == t {
		return s.replay()
	}

	switch s.status {
	case StatusWon, StatusLost, StatusQuit:
		return TrialResult{Outcome: OutcomeRejected, Attempt: n}
	case StatusTimedOut:
		if n != last+1 {
			return TrialResult{Outcome: OutcomeTimedOut, Attempt: n, Code: s.code}
		}
	}

	if s.status == StatusTimedOut || s.expired() {
		s.finish(StatusTimedOut)
		return TrialResult{Outcome: OutcomeTimedOut, Attempt: n, Code: s.code}
	}

	if n != last+1 {
		return TrialResult{Outcome: OutcomeInvalid, Attempt: n}
	}

	for _, a := range s.attempts {
		if a.Trial == t {
			return TrialResult{Outcome: OutcomeDuplicate, Attempt: n}
		}
	}

	pegs := Score(t, s.code)
	s.attempts = append(s.attempts, Attempt{Trial: t, Pegs: pegs, At: s.now()})

	switch {
	case pegs.Exact():
		s.finish(StatusWon)
		return TrialResult{Outcome: OutcomeWon, Attempt: n, Pegs: pegs}
	case len(s.attempts) == MaxAttempts:
		s.finish(StatusLost)
		return TrialResult{Outcome: OutcomeLost, Attempt: n, Pegs: pegs, Code: s.code}
	}
	return TrialResult{Outcome: OutcomePlaying, Attempt: n, Pegs: pegs}
}

// replay answers a resubmission of the last registered trial from cache.
func (s *Session) replay() TrialResult {
	n := len(s.attempts)
	res := TrialResult{Attempt: n, Pegs: s.attempts[n-1].Pegs}

	switch s.status {
	case StatusPlaying:
		res.Outcome = OutcomePlaying
	case StatusWon:
		res.Outcome = OutcomeWon
	case StatusLost:
		res.Outcome = OutcomeLost
		res.Code = s.code
	case StatusTimedOut:
		res.Outcome = OutcomeTimedOut
		res.Code = s.code
	default:
		res.Outcome = OutcomeRejected
	}
	return res
}

// End quits a PLAYING session and returns the secret code. It fails for any
// other status, including a session whose time budget has just run out.
func (s *Session) End() (Trial, bool) {
	s.Expire()
	if s.status != StatusPlaying {
		return Trial{}, false
	}
	s.finish(StatusQuit)
	return s.code, true
}

// Expire moves a PLAYING session past its budget to TIMED_OUT.
func (s *Session) Expire() bool {
	if s.status == StatusPlaying && s.expired() {
		s.finish(StatusTimedOut)
		return true
	}
	return false
}

// InProgress reports whether the game is PLAYING with time left.
func (s *Session) InProgress() bool {
	return s.status == StatusPlaying && !s.expired()
}

func (s *Session) expired() bool {
	return s.now().Sub(s.startedAt) > s.maxDuration
}

func (s *Session) finish(st Status) {
	if s.status.Terminal() {
		return
	}
	s.status = st
	s.endedAt = s.now()
	if st == StatusTimedOut {
		s.endedAt = s.startedAt.Add(s.maxDuration)
	}
}

// Elapsed is the play time so far, frozen once the game has ended.
func (s *Session) Elapsed() time.Duration {
	if s.status.Terminal() {
		return s.endedAt.Sub(s.startedAt)
	}
	return s.now().Sub(s.startedAt)
}

// RemainingTime is max(0, maxDuration - elapsed).
func (s *Session) RemainingTime() time.Duration {
	rem := s.maxDuration - s.Elapsed()
	if rem < 0 {
		return 0
	}
	return rem
}

func (s *Session) PLID() int      { return s.plid }
func (s *Session) Status() Status { return s.status }
func (s *Session) Debug() bool    { return s.debug }

// TrialCount is the number of registered trials, which is also the score.
func (s *Session) TrialCount() int { return len(s.attempts) }

// NextAttempt is the attempt number the session expects next.
func (s *Session) NextAttempt() int { return len(s.attempts) + 1 }

// SessionSnapshot is a read-only copy of a session.
type SessionSnapshot struct {
	PLID        int           `json:"plid"`
	Code        Trial         `json:"-"`
	Debug       bool          `json:"debug"`
	Status      Status        `json:"-"`
	MaxDuration time.Duration `json:"-"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at,omitempty"`
	Elapsed     time.Duration `json:"-"`
	Remaining   time.Duration `json:"-"`
	Attempts    []Attempt     `json:"attempts"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() SessionSnapshot {
	attempts := make([]Attempt, len(s.attempts))
	copy(attempts, s.attempts)
	return SessionSnapshot{
		PLID:        s.plid,
		Code:        s.code,
		Debug:       s.debug,
		Status:      s.status,
		MaxDuration: s.maxDuration,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Elapsed:     s.Elapsed(),
		Remaining:   s.RemainingTime(),
		Attempts:    attempts,
	}
}

// Mode returns the snapshot's mode name.
func (s SessionSnapshot) Mode() string { return ModeName(s.Debug) }

// InProgress reports whether the snapshot was taken while the game was live.
func (s SessionSnapshot) InProgress() bool {
	return s.Status == StatusPlaying && s.Elapsed <= s.MaxDuration
}
