// Package client implements the player side of the protocol: transports
// that turn an unreliable or one-shot network exchange into a synchronous
// request/reply call, and the session bookkeeping built on top of them.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/codebreaker-project/codebreaker/internal/protocol"
)

// ErrUnreachable is returned once every retry has timed out or failed.
var ErrUnreachable = errors.New("could not reach game server")

// RetryPolicy describes how long to wait for a reply and how often to
// resend. Attempt i waits BaseTimeout + i*Step.
type RetryPolicy struct {
	BaseTimeout time.Duration
	Step        time.Duration
	MaxRetries  int
}

// DatagramPolicy is used for SNG, DBG, TRY and QUT.
var DatagramPolicy = RetryPolicy{
	BaseTimeout: time.Second,
	Step:        200 * time.Millisecond,
	MaxRetries:  10,
}

// StreamPolicy is used for STR and SSB.
var StreamPolicy = RetryPolicy{
	BaseTimeout: time.Second,
	Step:        400 * time.Millisecond,
	MaxRetries:  4,
}

// Attempts is the total number of sends, first one included.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Timeout is the wait for attempt (0-based).
func (p RetryPolicy) Timeout(attempt int) time.Duration {
	return p.BaseTimeout + time.Duration(attempt)*p.Step
}

// Exchanger sends one request and returns the matching reply.
type Exchanger interface {
	Exchange(ctx context.Context, request string) (string, error)
}

// ReplyOrSentinel returns reply, or the generic error line when err is set.
// Callers that only deal in reply text use it to fold transport failures
// into the protocol's own failure reply.
func ReplyOrSentinel(reply string, err error) string {
	if err != nil {
		return protocol.GenericError
	}
	return reply
}

// deadlineFor caps a per-attempt timeout by the context deadline.
func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
