package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/protocol"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

var (
	// ErrNotPlaying is returned by Try and Quit when no game is running.
	ErrNotPlaying = errors.New("no game in progress")
	// ErrNoPlayer is returned by ShowTrials before any game was started.
	ErrNoPlayer = errors.New("no player id set")
)

// Player tracks the client's view of its game: which PLID it plays as, the
// number of the next trial and whether the server considers the game live.
// It is not safe for concurrent use; the prompt issues one command at a time.
type Player struct {
	datagram Exchanger
	stream   Exchanger
	logger   zerolog.Logger

	plid    int
	next    int
	playing bool
}

// NewPlayer creates a player that sends game commands over datagram and
// history requests over stream.
func NewPlayer(datagram, stream Exchanger) *Player {
	return &Player{
		datagram: datagram,
		stream:   stream,
		logger:   util.ComponentLogger("player"),
	}
}

// PLID returns the player id of the last started game, or 0.
func (p *Player) PLID() int { return p.plid }

// Playing reports whether a game is believed to be running.
func (p *Player) Playing() bool { return p.playing }

// NextAttempt is the trial number the next Try will send.
func (p *Player) NextAttempt() int { return p.next }

func (p *Player) send(ctx context.Context, ex Exchanger, request string) (protocol.Reply, error) {
	cmd := protocol.CommandOf(request)
	text, err := ex.Exchange(ctx, request)
	if err != nil {
		p.logger.Warn().Err(err).Str("command", string(cmd)).Msg("request failed")
		return protocol.DecodeReply(cmd, ReplyOrSentinel(text, err)), fmt.Errorf("%s: %w", cmd, err)
	}
	reply := protocol.DecodeReply(cmd, text)
	if reply.Status == protocol.StatusUnparsable {
		p.logger.Warn().Str("command", string(cmd)).Str("reply", text).Msg("unparsable reply")
	}
	return reply, nil
}

// Start asks for a new game with a random secret.
func (p *Player) Start(ctx context.Context, plid int, maxDuration time.Duration) (protocol.Reply, error) {
	return p.begin(ctx, plid, protocol.EncodeStart(plid, maxDuration))
}

// Debug asks for a new game with a chosen secret.
func (p *Player) Debug(ctx context.Context, plid int, maxDuration time.Duration, code game.Trial) (protocol.Reply, error) {
	return p.begin(ctx, plid, protocol.EncodeDebug(plid, maxDuration, code))
}

func (p *Player) begin(ctx context.Context, plid int, request string) (protocol.Reply, error) {
	reply, err := p.send(ctx, p.datagram, request)
	if err != nil {
		return reply, err
	}
	if reply.Status == protocol.StatusOK {
		p.plid = plid
		p.next = 1
		p.playing = true
		p.logger.Info().Int("plid", plid).Msg("game started")
	}
	return reply, nil
}

// Try submits a guess as the next trial.
func (p *Player) Try(ctx context.Context, t game.Trial) (protocol.Reply, error) {
	if !p.playing {
		return protocol.Reply{}, ErrNotPlaying
	}

	reply, err := p.send(ctx, p.datagram, protocol.EncodeTry(p.plid, t, p.next))
	if err != nil {
		return reply, err
	}

	switch reply.Status {
	case protocol.StatusOK:
		p.next = reply.Attempt + 1
		if reply.Pegs.Exact() {
			p.playing = false
		}
	case protocol.StatusENT, protocol.StatusETM:
		p.playing = false
	case protocol.StatusINV, protocol.StatusNOK:
		// Server and client disagree on the trial count or the game is gone.
		p.playing = false
	}
	return reply, nil
}

// Quit ends the running game.
func (p *Player) Quit(ctx context.Context) (protocol.Reply, error) {
	if !p.playing {
		return protocol.Reply{}, ErrNotPlaying
	}

	reply, err := p.send(ctx, p.datagram, protocol.EncodeQuit(p.plid))
	if err != nil {
		return reply, err
	}
	switch reply.Status {
	case protocol.StatusOK, protocol.StatusNOK:
		p.playing = false
	}
	return reply, nil
}

// ShowTrials fetches the trial log of the current or last game.
func (p *Player) ShowTrials(ctx context.Context) (protocol.Reply, error) {
	if p.plid == 0 {
		return protocol.Reply{}, ErrNoPlayer
	}

	reply, err := p.send(ctx, p.stream, protocol.EncodeShowTrials(p.plid))
	if err != nil {
		return reply, err
	}
	if reply.Status == protocol.StatusFIN {
		p.playing = false
	}
	return reply, nil
}

// Scoreboard fetches the top scores.
func (p *Player) Scoreboard(ctx context.Context) (protocol.Reply, error) {
	return p.send(ctx, p.stream, protocol.EncodeScoreboard())
}

// Raw sends line unchanged over ch and returns the reply text. It does not
// touch the player's state.
func (p *Player) Raw(ctx context.Context, ch protocol.Channel, line string) (string, error) {
	switch ch {
	case protocol.ChannelDatagram:
		return p.datagram.Exchange(ctx, line)
	case protocol.ChannelStream:
		return p.stream.Exchange(ctx, line)
	}
	return "", fmt.Errorf("unknown channel %s", ch)
}
