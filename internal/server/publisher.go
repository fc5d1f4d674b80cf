package server

import (
	"context"

	"github.com/codebreaker-project/codebreaker/internal/events"
	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/registry"
)

const publisherSource = "registry"

// Publisher forwards registry lifecycle callbacks to the event bus and the
// game counters. It implements registry.Listener.
type Publisher struct {
	ctx     context.Context
	bus     *events.EventBus
	metrics *metrics.Metrics
}

var _ registry.Listener = (*Publisher)(nil)

// NewPublisher creates a publisher. Either bus or m may be nil.
func NewPublisher(ctx context.Context, bus *events.EventBus, m *metrics.Metrics) *Publisher {
	return &Publisher{ctx: ctx, bus: bus, metrics: m}
}

func (p *Publisher) emit(t events.EventType, payload any) {
	if p.bus == nil {
		return
	}
	p.bus.Emit(p.ctx, events.Event{Type: t, Source: publisherSource, Payload: payload})
}

// GameStarted implements registry.Listener.
func (p *Publisher) GameStarted(snap game.SessionSnapshot) {
	if p.metrics != nil {
		p.metrics.RecordGameStarted(snap.Debug)
	}
	p.emit(events.EventGameStarted, events.GameStartedPayload{
		PLID:        snap.PLID,
		Debug:       snap.Debug,
		MaxDuration: snap.MaxDuration,
		StartedAt:   snap.StartedAt,
	})
}

// TrialScored implements registry.Listener.
func (p *Publisher) TrialScored(plid int, res game.TrialResult) {
	if p.metrics != nil {
		p.metrics.RecordTrialScored()
	}
	payload := events.TrialScoredPayload{
		PLID:    plid,
		Attempt: res.Attempt,
		Black:   res.Pegs.Black,
		White:   res.Pegs.White,
		Outcome: res.Outcome.String(),
	}
	p.emit(events.EventTrialScored, payload)
}

// GameEnded implements registry.Listener.
func (p *Publisher) GameEnded(snap game.SessionSnapshot) {
	t, ok := events.EndEventFor(snap.Status)
	if !ok {
		return
	}
	if p.metrics != nil {
		p.metrics.RecordGameFinished(snap.Status.String())
	}
	p.emit(t, events.NewGameEnded(snap))
}

// ScoreboardChanged implements registry.Listener.
func (p *Publisher) ScoreboardChanged(entries []registry.ScoreEntry) {
	rows := make([]events.ScoreboardEntry, len(entries))
	for i, e := range entries {
		rows[i] = events.ScoreboardEntry{
			Rank:   i + 1,
			PLID:   e.PLID,
			Trials: e.Trials,
			Code:   e.Code,
			Mode:   e.Mode(),
		}
	}
	p.emit(events.EventScoreboardUpdated, events.ScoreboardUpdatedPayload{Entries: rows})
}
