package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/events"
	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// ErrNoGames is returned by PlayerStats for a PLID with no archived game.
var ErrNoGames = errors.New("no archived games for player")

// GameRecord is one archived game.
type GameRecord struct {
	ID        string        `json:"id"`
	PLID      int           `json:"plid"`
	Status    string        `json:"status"`
	Code      string        `json:"code"`
	Mode      string        `json:"mode"`
	Trials    int           `json:"trials"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// PlayerStats aggregates the archived games of one PLID.
type PlayerStats struct {
	PLID       int       `json:"plid"`
	Games      int       `json:"games"`
	Won        int       `json:"won"`
	Lost       int       `json:"lost"`
	TimedOut   int       `json:"timed_out"`
	Quit       int       `json:"quit"`
	BestTrials int       `json:"best_trials,omitempty"`
	LastPlayed time.Time `json:"last_played"`
}

// Archive stores finished games.
type Archive struct {
	db     *Database
	logger zerolog.Logger
	newID  func() string
}

// NewArchive opens the archive at dsn and creates its schema.
func NewArchive(dsn string) (*Archive, error) {
	database, err := NewDatabase(dsn)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		db:     database,
		logger: util.ComponentLogger("archive"),
		newID:  func() string { return uuid.NewString() },
	}

	if err := a.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			plid INTEGER NOT NULL,
			status TEXT NOT NULL,
			code TEXT NOT NULL,
			debug INTEGER NOT NULL DEFAULT 0,
			trials INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS player_totals (
			plid INTEGER PRIMARY KEY,
			games INTEGER NOT NULL DEFAULT 0,
			won INTEGER NOT NULL DEFAULT 0,
			lost INTEGER NOT NULL DEFAULT 0,
			timed_out INTEGER NOT NULL DEFAULT 0,
			quit INTEGER NOT NULL DEFAULT 0,
			best_trials INTEGER NOT NULL DEFAULT 0,
			last_played INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_games_plid ON games(plid);
		CREATE INDEX IF NOT EXISTS idx_games_ended_at ON games(ended_at);
	`

	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	a.logger.Debug().Msg("archive schema migrated")
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordGame archives a finished game and returns its row id.
func (a *Archive) RecordGame(ctx context.Context, g events.GameEndedPayload) (string, error) {
	if !g.Status.Terminal() {
		return "", fmt.Errorf("game %06d is still %s", g.PLID, g.Status)
	}

	id := a.newID()
	won, lost, timedOut, quit := 0, 0, 0, 0
	best := 0
	switch g.Status {
	case game.StatusWon:
		won, best = 1, g.Trials
	case game.StatusLost:
		lost = 1
	case game.StatusTimedOut:
		timedOut = 1
	case game.StatusQuit:
		quit = 1
	}

	err := a.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO games (id, plid, status, code, debug, trials, duration_ms, started_at, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, g.PLID, g.Status.String(), g.Code.Compact(), boolToInt(g.Debug), g.Trials,
			g.Duration.Milliseconds(), g.StartedAt.UnixMilli(), g.EndedAt.UnixMilli())
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO player_totals (plid, games, won, lost, timed_out, quit, best_trials, last_played)
			 VALUES (?, 1, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(plid) DO UPDATE SET
				games = games + 1,
				won = won + excluded.won,
				lost = lost + excluded.lost,
				timed_out = timed_out + excluded.timed_out,
				quit = quit + excluded.quit,
				best_trials = CASE
					WHEN excluded.best_trials = 0 THEN best_trials
					WHEN best_trials = 0 OR excluded.best_trials < best_trials THEN excluded.best_trials
					ELSE best_trials END,
				last_played = MAX(last_played, excluded.last_played)`,
			g.PLID, won, lost, timedOut, quit, best, g.EndedAt.UnixMilli())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive game %06d: %w", g.PLID, err)
	}

	a.logger.Debug().Int("plid", g.PLID).Str("id", id).Str("status", g.Status.String()).Msg("game archived")
	return id, nil
}

// RecentGames returns up to limit games, newest first. plid 0 means all
// players.
func (a *Archive) RecentGames(ctx context.Context, plid, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, plid, status, code, debug, trials, duration_ms, started_at, ended_at
		FROM games`
	args := []any{}
	if plid != 0 {
		query += ` WHERE plid = ?`
		args = append(args, plid)
	}
	query += ` ORDER BY ended_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var (
			r                             GameRecord
			debug                         int
			durationMS, started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.PLID, &r.Status, &r.Code, &debug, &r.Trials,
			&durationMS, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		r.Mode = game.ModeName(debug != 0)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.StartedAt = time.UnixMilli(started).UTC()
		r.EndedAt = time.UnixMilli(finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// PlayerStats returns the totals for plid.
func (a *Archive) PlayerStats(ctx context.Context, plid int) (PlayerStats, error) {
	s := PlayerStats{PLID: plid}
	var last int64
	err := a.db.QueryRow(ctx,
		`SELECT games, won, lost, timed_out, quit, best_trials, last_played
		 FROM player_totals WHERE plid = ?`, plid).
		Scan(&s.Games, &s.Won, &s.Lost, &s.TimedOut, &s.Quit, &s.BestTrials, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNoGames
	}
	if err != nil {
		return s, fmt.Errorf("failed to query player stats: %w", err)
	}
	s.LastPlayed = time.UnixMilli(last).UTC()
	return s, nil
}

// Subscribe archives every game end published on bus.
func (a *Archive) Subscribe(bus *events.EventBus) {
	bus.SubscribeMany(events.GameEndEvents, "archive", func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(events.GameEndedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Type)
		}
		_, err := a.RecordGame(ctx, p)
		return err
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
