package protocol

import (
	"errors"
	"strconv"
	"strings"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// ReplyBuilder assembles a space-separated reply line.
type ReplyBuilder struct {
	buf strings.Builder
}

// NewReplyBuilder starts a reply with its keyword.
func NewReplyBuilder(code ReplyCode) *ReplyBuilder {
	b := &ReplyBuilder{}
	b.buf.WriteString(string(code))
	return b
}

// Status appends a status word.
func (b *ReplyBuilder) Status(s Status) *ReplyBuilder {
	return b.Word(string(s))
}

// Word appends a raw field.
func (b *ReplyBuilder) Word(w string) *ReplyBuilder {
	b.buf.WriteByte(' ')
	b.buf.WriteString(w)
	return b
}

// Int appends a decimal field.
func (b *ReplyBuilder) Int(n int) *ReplyBuilder {
	return b.Word(strconv.Itoa(n))
}

// Trial appends four color fields.
func (b *ReplyBuilder) Trial(t game.Trial) *ReplyBuilder {
	return b.Word(t.String())
}

// Build terminates the line.
func (b *ReplyBuilder) Build() []byte {
	b.buf.WriteByte('\n')
	return []byte(b.buf.String())
}

// BuildWithPayload appends a payload that carries its own terminator.
func (b *ReplyBuilder) BuildWithPayload(payload string) []byte {
	b.buf.WriteByte(' ')
	b.buf.WriteString(payload)
	if !strings.HasSuffix(payload, "\n") {
		b.buf.WriteByte('\n')
	}
	return []byte(b.buf.String())
}

// StatusReply builds a two-word reply such as "RSG OK\n".
func StatusReply(code ReplyCode, s Status) []byte {
	return NewReplyBuilder(code).Status(s).Build()
}

// StartReply answers SNG or DBG. refused reports a game already in
// progress; failed reports arguments the registry would not accept.
func StartReply(cmd Command, refused, failed bool) []byte {
	switch {
	case failed:
		return StatusReply(cmd.ReplyCode(), StatusERR)
	case refused:
		return StatusReply(cmd.ReplyCode(), StatusNOK)
	default:
		return StatusReply(cmd.ReplyCode(), StatusOK)
	}
}

// TryReply answers TRY.
func TryReply(res game.TrialResult) []byte {
	b := NewReplyBuilder(ReplyTry)
	switch res.Outcome {
	case game.OutcomePlaying, game.OutcomeWon:
		return b.Status(StatusOK).Int(res.Attempt).Int(res.Pegs.Black).Int(res.Pegs.White).Build()
	case game.OutcomeDuplicate:
		return b.Status(StatusDUP).Build()
	case game.OutcomeInvalid:
		return b.Status(StatusINV).Build()
	case game.OutcomeRejected:
		return b.Status(StatusNOK).Build()
	case game.OutcomeLost:
		return b.Status(StatusENT).Trial(res.Code).Build()
	case game.OutcomeTimedOut:
		return b.Status(StatusETM).Trial(res.Code).Build()
	default:
		return b.Status(StatusERR).Build()
	}
}

// QuitReply answers QUT.
func QuitReply(code game.Trial, ok bool) []byte {
	if !ok {
		return StatusReply(ReplyQuit, StatusNOK)
	}
	return NewReplyBuilder(ReplyQuit).Status(StatusOK).Trial(code).Build()
}

// FileReply answers STR or SSB with a named payload.
func FileReply(code ReplyCode, s Status, filename, payload string) []byte {
	return NewReplyBuilder(code).
		Status(s).
		Word(filename).
		Int(len(payload)).
		BuildWithPayload(payload)
}

// TrialLogReply answers STR. found is false when the player never played.
func TrialLogReply(filename, payload string, active, found bool) []byte {
	switch {
	case !found:
		return StatusReply(ReplyShowTrials, StatusNOK)
	case active:
		return FileReply(ReplyShowTrials, StatusACT, filename, payload)
	default:
		return FileReply(ReplyShowTrials, StatusFIN, filename, payload)
	}
}

// ScoreboardReply answers SSB. ok is false while nobody has won.
func ScoreboardReply(filename, payload string, ok bool) []byte {
	if !ok {
		return StatusReply(ReplyScoreboard, StatusEMPTY)
	}
	return FileReply(ReplyScoreboard, StatusOK, filename, payload)
}

// ErrorReply answers a request that failed to parse.
func ErrorReply(err error) []byte {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Command.Known() {
		return StatusReply(pe.Command.ReplyCode(), StatusERR)
	}
	return []byte(GenericError)
}
