package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// EncodeStart formats SNG.
func EncodeStart(plid int, maxDuration time.Duration) string {
	return fmt.Sprintf("SNG %06d %03d\n", plid, int(maxDuration/time.Second))
}

// EncodeDebug formats DBG.
func EncodeDebug(plid int, maxDuration time.Duration, code game.Trial) string {
	return fmt.Sprintf("DBG %06d %03d %s\n", plid, int(maxDuration/time.Second), code)
}

// EncodeTry formats TRY.
func EncodeTry(plid int, t game.Trial, attempt int) string {
	return fmt.Sprintf("TRY %06d %s %d\n", plid, t, attempt)
}

// EncodeQuit formats QUT.
func EncodeQuit(plid int) string {
	return fmt.Sprintf("QUT %06d\n", plid)
}

// EncodeShowTrials formats STR.
func EncodeShowTrials(plid int) string {
	return fmt.Sprintf("STR %06d\n", plid)
}

// EncodeScoreboard formats SSB.
func EncodeScoreboard() string {
	return "SSB\n"
}

// Reply is a decoded server reply. Status is StatusUnparsable when the text
// did not match the grammar of the expected family.
type Reply struct {
	Code     ReplyCode
	Status   Status
	Attempt  int
	Pegs     game.Pegs
	Secret   game.Trial
	Filename string
	Size     int
	Payload  string
}

// OK reports whether the reply carries a successful status.
func (r Reply) OK() bool {
	switch r.Status {
	case StatusOK, StatusACT, StatusFIN:
		return true
	}
	return false
}

// HasSecret reports whether the reply reveals the secret code.
func (r Reply) HasSecret() bool {
	switch {
	case r.Code == ReplyQuit && r.Status == StatusOK:
		return true
	case r.Code == ReplyTry && (r.Status == StatusENT || r.Status == StatusETM):
		return true
	}
	return false
}

// ExpectedReply returns the reply code a request line should produce.
func ExpectedReply(request string) ReplyCode {
	return CommandOf(request).ReplyCode()
}

// ReplyMatches reports whether text answers request: either it starts with
// the expected reply keyword or it is the generic error line.
func ReplyMatches(request, text string) bool {
	if text == GenericError {
		return true
	}
	want := ExpectedReply(request)
	if want == ReplyGeneric {
		return false
	}
	return strings.HasPrefix(text, string(want)+" ")
}

// DecodeReply parses text as the answer to cmd. It never panics; anything
// outside the grammar decodes with StatusUnparsable.
func DecodeReply(cmd Command, text string) Reply {
	bad := Reply{Code: cmd.ReplyCode(), Status: StatusUnparsable}

	if text == GenericError {
		return Reply{Code: ReplyGeneric, Status: StatusERR}
	}

	switch cmd {
	case CmdShowTrials, CmdScoreboard:
		return decodeFileReply(cmd.ReplyCode(), text)
	}

	line, ok := strings.CutSuffix(text, "\n")
	if !ok || strings.Contains(line, "\n") {
		return bad
	}
	fields := strings.Split(line, " ")
	if len(fields) < 2 || ReplyCode(fields[0]) != cmd.ReplyCode() {
		return bad
	}
	r := Reply{Code: cmd.ReplyCode(), Status: Status(fields[1])}
	args := fields[2:]

	switch cmd {
	case CmdStart, CmdDebug:
		switch r.Status {
		case StatusOK, StatusNOK, StatusERR:
			if len(args) == 0 {
				return r
			}
		}

	case CmdTry:
		switch r.Status {
		case StatusOK:
			if len(args) != 3 {
				return bad
			}
			n, err1 := parseFixed(args[0], 1, 1, game.MaxAttempts)
			b, err2 := parseFixed(args[1], 1, 0, game.CodeLength)
			w, err3 := parseFixed(args[2], 1, 0, game.CodeLength)
			if err1 != nil || err2 != nil || err3 != nil || b+w > game.CodeLength {
				return bad
			}
			r.Attempt, r.Pegs = n, game.Pegs{Black: b, White: w}
			return r
		case StatusENT, StatusETM:
			code, err := game.ParseTrial(args)
			if err != nil {
				return bad
			}
			r.Secret = code
			return r
		case StatusDUP, StatusINV, StatusNOK, StatusERR:
			if len(args) == 0 {
				return r
			}
		}

	case CmdQuit:
		switch r.Status {
		case StatusOK:
			code, err := game.ParseTrial(args)
			if err != nil {
				return bad
			}
			r.Secret = code
			return r
		case StatusNOK, StatusERR:
			if len(args) == 0 {
				return r
			}
		}
	}

	return bad
}

// decodeFileReply handles "CODE STATUS filename size payload". The payload
// may itself contain spaces and newlines, so only the first four separators
// split fields.
func decodeFileReply(code ReplyCode, text string) Reply {
	bad := Reply{Code: code, Status: StatusUnparsable}

	parts := strings.SplitN(text, " ", 5)
	if len(parts) < 2 || ReplyCode(parts[0]) != code {
		return bad
	}

	if len(parts) == 2 {
		st := Status(strings.TrimSuffix(parts[1], "\n"))
		if !strings.HasSuffix(parts[1], "\n") {
			return bad
		}
		switch {
		case code == ReplyShowTrials && (st == StatusNOK || st == StatusERR):
			return Reply{Code: code, Status: st}
		case code == ReplyScoreboard && (st == StatusEMPTY || st == StatusERR):
			return Reply{Code: code, Status: st}
		}
		return bad
	}

	if len(parts) != 5 {
		return bad
	}
	st := Status(parts[1])
	switch {
	case code == ReplyShowTrials && (st == StatusACT || st == StatusFIN):
	case code == ReplyScoreboard && st == StatusOK:
	default:
		return bad
	}

	filename := parts[2]
	if filename == "" || len(filename) > 24 {
		return bad
	}
	size, err := strconv.Atoi(parts[3])
	if err != nil || size < 0 {
		return bad
	}
	payload := parts[4]
	switch len(payload) {
	case size:
	case size + 1:
		if !strings.HasSuffix(payload, "\n") {
			return bad
		}
		payload = payload[:size]
	default:
		return bad
	}

	return Reply{Code: code, Status: st, Filename: filename, Size: size, Payload: payload}
}
