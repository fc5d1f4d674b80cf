// Package events defines the game lifecycle events passed between the
// registry, the archive, telemetry and metrics.
package events

import (
	"time"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// EventType names an event on the bus. The value doubles as the MQTT topic
// suffix.
type EventType string

const (
	// Session lifecycle
	EventGameStarted  EventType = "game_started"
	EventTrialScored  EventType = "trial_scored"
	EventGameWon      EventType = "game_won"
	EventGameLost     EventType = "game_lost"
	EventGameTimedOut EventType = "game_timed_out"
	EventGameQuit     EventType = "game_quit"

	// Ranking
	EventScoreboardUpdated EventType = "scoreboard_updated"

	// System
	EventShutdown EventType = "shutdown"
)

// GameEndEvents lists every event that closes a session.
var GameEndEvents = []EventType{
	EventGameWon,
	EventGameLost,
	EventGameTimedOut,
	EventGameQuit,
}

// EndEventFor maps a terminal status to its event. ok is false for
// non-terminal statuses.
func EndEventFor(st game.Status) (EventType, bool) {
	switch st {
	case game.StatusWon:
		return EventGameWon, true
	case game.StatusLost:
		return EventGameLost, true
	case game.StatusTimedOut:
		return EventGameTimedOut, true
	case game.StatusQuit:
		return EventGameQuit, true
	}
	return "", false
}

// Event is a single message on the bus.
type Event struct {
	Type    EventType
	Source  string
	Payload any
}

// GameStartedPayload accompanies EventGameStarted.
type GameStartedPayload struct {
	PLID        int           `json:"plid"`
	Debug       bool          `json:"debug"`
	MaxDuration time.Duration `json:"max_duration"`
	StartedAt   time.Time     `json:"started_at"`
}

// TrialScoredPayload accompanies EventTrialScored.
type TrialScoredPayload struct {
	PLID    int    `json:"plid"`
	Attempt int    `json:"attempt"`
	Black   int    `json:"black"`
	White   int    `json:"white"`
	Outcome string `json:"outcome"`
}

// GameEndedPayload accompanies every event in GameEndEvents.
type GameEndedPayload struct {
	PLID      int           `json:"plid"`
	Status    game.Status   `json:"status"`
	Code      game.Trial    `json:"code"`
	Debug     bool          `json:"debug"`
	Trials    int           `json:"trials"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// ScoreboardEntry is one row of a ScoreboardUpdatedPayload.
type ScoreboardEntry struct {
	Rank   int        `json:"rank"`
	PLID   int        `json:"plid"`
	Trials int        `json:"trials"`
	Code   game.Trial `json:"code"`
	Mode   string     `json:"mode"`
}

// ScoreboardUpdatedPayload accompanies EventScoreboardUpdated.
type ScoreboardUpdatedPayload struct {
	Entries []ScoreboardEntry `json:"entries"`
}

// NewGameEnded builds the end payload from a session snapshot.
func NewGameEnded(snap game.SessionSnapshot) GameEndedPayload {
	return GameEndedPayload{
		PLID:      snap.PLID,
		Status:    snap.Status,
		Code:      snap.Code,
		Debug:     snap.Debug,
		Trials:    len(snap.Attempts),
		Duration:  snap.Elapsed,
		StartedAt: snap.StartedAt,
		EndedAt:   snap.EndedAt,
	}
}
