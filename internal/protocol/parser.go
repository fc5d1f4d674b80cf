package protocol

import (
	"errors"
	"strings"
	"time"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// Request is a parsed request line.
type Request struct {
	Command     Command
	PLID        int
	MaxDuration time.Duration
	Code        game.Trial // DBG only
	Trial       game.Trial // TRY only
	Attempt     int        // TRY only
}

// fieldCount is the exact number of space-separated fields per command.
var fieldCount = map[Command]int{
	CmdStart:      3,
	CmdDebug:      7,
	CmdTry:        7,
	CmdQuit:       2,
	CmdShowTrials: 2,
	CmdScoreboard: 1,
}

// ParseRequest parses one request line. Any deviation from the grammar
// yields a *ParseError wrapping ErrMalformed or ErrUnknownCommand.
func ParseRequest(data []byte) (*Request, error) {
	line := string(data)

	keyword, _, _ := strings.Cut(strings.TrimSuffix(line, "\n"), " ")
	cmd := Command(keyword)
	if !cmd.Known() {
		return nil, &ParseError{Reason: "keyword " + quote(keyword), Err: ErrUnknownCommand}
	}

	if len(line) > MaxRequestSize {
		return nil, malformed(cmd, "request longer than %d bytes", MaxRequestSize)
	}
	body, ok := strings.CutSuffix(line, "\n")
	if !ok {
		return nil, malformed(cmd, "missing trailing newline")
	}
	if strings.ContainsAny(body, "\n\r\t") {
		return nil, malformed(cmd, "unexpected control character")
	}

	fields := strings.Split(body, " ")
	if len(fields) != fieldCount[cmd] {
		return nil, malformed(cmd, "expected %d fields, got %d", fieldCount[cmd], len(fields))
	}

	req := &Request{Command: cmd}
	var err error

	switch cmd {
	case CmdStart:
		if req.PLID, err = parsePLID(fields[1]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}
		if req.MaxDuration, err = parseBudget(fields[2]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}

	case CmdDebug:
		if req.PLID, err = parsePLID(fields[1]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}
		if req.MaxDuration, err = parseBudget(fields[2]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}
		if req.Code, err = game.ParseTrial(fields[3:7]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}

	case CmdTry:
		if req.PLID, err = parsePLID(fields[1]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}
		if req.Trial, err = game.ParseTrial(fields[2:6]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}
		if req.Attempt, err = parseFixed(fields[6], 1, 1, game.MaxAttempts); err != nil {
			return nil, malformed(cmd, "attempt: %v", err)
		}

	case CmdQuit, CmdShowTrials:
		if req.PLID, err = parsePLID(fields[1]); err != nil {
			return nil, malformed(cmd, "%v", err)
		}
	}

	return req, nil
}

var (
	errWidth = errors.New("wrong field width")
	errDigit = errors.New("non-digit character")
	errRange = errors.New("value out of range")
)

func parsePLID(s string) (int, error) {
	return parseFixed(s, 6, game.MinPLID, game.MaxPLID)
}

func parseBudget(s string) (time.Duration, error) {
	secs, err := parseFixed(s, 3, int(game.MinDuration/time.Second), int(game.MaxDuration/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// parseFixed parses exactly width decimal digits into [lo, hi].
func parseFixed(s string, width, lo, hi int) (int, error) {
	if len(s) != width {
		return 0, errWidth
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errDigit
		}
		n = n*10 + int(s[i]-'0')
	}
	if n < lo || n > hi {
		return 0, errRange
	}
	return n, nil
}

func quote(s string) string {
	if len(s) > 8 {
		s = s[:8] + "..."
	}
	return `"` + s + `"`
}
