// Package server turns protocol requests into registry calls and formats
// the replies. It owns no sockets; the network listeners feed it bytes.
package server

import (
	"bytes"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/protocol"
	"github.com/codebreaker-project/codebreaker/internal/registry"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// Dispatcher answers one request line at a time. Only HandleDatagram
// mutates sessions; HandleStream renders read-only artifacts.
type Dispatcher struct {
	reg     *registry.Registry
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher over reg. m may be nil.
func NewDispatcher(reg *registry.Registry, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		metrics: m,
		logger:  util.ComponentLogger("dispatcher"),
	}
}

// WithLogger replaces the component logger.
func (d *Dispatcher) WithLogger(l zerolog.Logger) *Dispatcher {
	d.logger = l
	return d
}

// HandleDatagram answers SNG, DBG, TRY and QUT.
func (d *Dispatcher) HandleDatagram(data []byte, from string) []byte {
	return d.handle(protocol.ChannelDatagram, data, from)
}

// HandleStream answers STR and SSB.
func (d *Dispatcher) HandleStream(data []byte, from string) []byte {
	return d.handle(protocol.ChannelStream, data, from)
}

func (d *Dispatcher) handle(ch protocol.Channel, data []byte, from string) []byte {
	start := time.Now()

	var reply []byte
	req, err := protocol.ParseRequest(data)
	switch {
	case err != nil:
		var pe *protocol.ParseError
		if errors.As(err, &pe) && pe.Command.Channel() != ch {
			reply = []byte(protocol.GenericError)
		} else {
			reply = protocol.ErrorReply(err)
		}
		d.logger.Debug().
			Err(err).
			Str("channel", ch.String()).
			Str("from", from).
			Msg("request rejected")

	case req.Command.Channel() != ch:
		reply = []byte(protocol.GenericError)

	default:
		reply = d.execute(req)
	}

	cmd := string(protocol.CommandOf(string(data)))
	if cmd == "" {
		cmd = "unknown"
	}
	status := replyStatus(reply)

	if d.metrics != nil {
		d.metrics.RecordRequest(ch.String(), cmd, status, time.Since(start))
	}
	d.logger.Debug().
		Str("channel", ch.String()).
		Str("from", from).
		Str("command", cmd).
		Str("status", status).
		Dur("took", time.Since(start)).
		Msg("request handled")

	return reply
}

func (d *Dispatcher) execute(req *protocol.Request) []byte {
	switch req.Command {
	case protocol.CmdStart, protocol.CmdDebug:
		var code *game.Trial
		if req.Command == protocol.CmdDebug {
			code = &req.Code
		}
		err := d.reg.StartGame(req.PLID, req.MaxDuration, code)
		return protocol.StartReply(req.Command,
			errors.Is(err, registry.ErrGameInProgress),
			err != nil && !errors.Is(err, registry.ErrGameInProgress))

	case protocol.CmdTry:
		return protocol.TryReply(d.reg.SubmitTrial(req.PLID, req.Trial, req.Attempt))

	case protocol.CmdQuit:
		code, err := d.reg.QuitGame(req.PLID)
		return protocol.QuitReply(code, err == nil)

	case protocol.CmdShowTrials:
		art, err := d.reg.RenderTrialLog(req.PLID)
		return protocol.TrialLogReply(art.Filename, art.Content, art.Active, err == nil)

	case protocol.CmdScoreboard:
		art, ok := d.reg.RenderScoreboard()
		return protocol.ScoreboardReply(art.Filename, art.Content, ok)
	}
	return []byte(protocol.GenericError)
}

// replyStatus extracts the status word used as a metrics label.
func replyStatus(reply []byte) string {
	line, _, _ := bytes.Cut(reply, []byte("\n"))
	fields := bytes.Fields(line)
	if len(fields) < 2 {
		return "ERR"
	}
	return string(fields[1])
}
