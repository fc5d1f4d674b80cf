package client

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/util"
)

const (
	// streamQuiet ends a read once the server stops sending.
	streamQuiet = 500 * time.Millisecond
	// maxStreamReply bounds a STR/SSB reply.
	maxStreamReply = 1 << 20
)

// StreamTransport opens one TCP connection per request.
type StreamTransport struct {
	addr   string
	policy RetryPolicy
	quiet  time.Duration
	logger zerolog.Logger
}

// NewStreamTransport creates a transport for the server at addr.
func NewStreamTransport(addr string, policy RetryPolicy) *StreamTransport {
	return &StreamTransport{
		addr:   addr,
		policy: policy,
		quiet:  streamQuiet,
		logger: util.ComponentLogger("tcp_client"),
	}
}

// Exchange connects, writes request and reads until the server closes the
// connection or goes quiet. Connect failures and empty replies are retried.
func (t *StreamTransport) Exchange(ctx context.Context, request string) (string, error) {
	for attempt := 0; attempt < t.policy.Attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reply, err := t.once(ctx, request, t.policy.Timeout(attempt))
		if err == nil {
			return reply, nil
		}
		t.logger.Debug().Err(err).Int("attempt", attempt).Msg("stream exchange failed, retrying")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.logger.Warn().Int("retries", t.policy.MaxRetries).Msg("maximum retries exceeded")
	return "", ErrUnreachable
}

func (t *StreamTransport) once(ctx context.Context, request string, timeout time.Duration) (string, error) {
	d := net.Dialer{Deadline: deadlineFor(ctx, timeout)}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		// Pace retries against a server that refuses outright.
		sleepCtx(ctx, time.Until(d.Deadline))
		return "", err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(deadlineFor(ctx, timeout))
	if _, err := io.WriteString(conn, request); err != nil {
		return "", err
	}
	t.logger.Debug().Str("request", request).Msg("sent via stream")

	var reply []byte
	chunk := make([]byte, 4096)
	wait := timeout
	for len(reply) < maxStreamReply {
		_ = conn.SetReadDeadline(deadlineFor(ctx, wait))
		n, err := conn.Read(chunk)
		reply = append(reply, chunk[:n]...)
		if n > 0 {
			wait = t.quiet
		}
		if err != nil {
			if len(reply) > 0 && (errors.Is(err, io.EOF) || isTimeout(err)) {
				break
			}
			if len(reply) == 0 && errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
	}

	t.logger.Debug().Int("bytes", len(reply)).Msg("received via stream")
	return string(reply), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
