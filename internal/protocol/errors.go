package protocol

import (
	"errors"
	"fmt"
)

// Sentinel parse failures.
var (
	ErrMalformed      = errors.New("malformed request")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformedReply = errors.New("malformed reply")
)

// ParseError describes why a request line was rejected. Command is set when
// the keyword was recognised, so the caller can answer with that family's
// ERR reply.
type ParseError struct {
	Command Command
	Reason  string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Command, e.Reason)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func malformed(cmd Command, format string, args ...any) error {
	return &ParseError{Command: cmd, Reason: fmt.Sprintf(format, args...), Err: ErrMalformed}
}
