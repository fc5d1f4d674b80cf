package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/protocol"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

const maxDatagram = 512

// DatagramTransport sends requests over UDP and resends them until a
// matching reply arrives or the policy is exhausted. Requests are resent
// verbatim; the server answers duplicates idempotently.
type DatagramTransport struct {
	addr   string
	policy RetryPolicy
	logger zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewDatagramTransport creates a transport for the server at addr.
func NewDatagramTransport(addr string, policy RetryPolicy) *DatagramTransport {
	return &DatagramTransport{
		addr:   addr,
		policy: policy,
		logger: util.ComponentLogger("udp_client"),
	}
}

func (t *DatagramTransport) dial(ctx context.Context) (net.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", t.addr, err)
	}
	t.conn = conn
	return conn, nil
}

// Exchange sends request and waits for its reply. Replies that do not
// answer this request, such as late duplicates of an earlier one, are
// discarded.
func (t *DatagramTransport) Exchange(ctx context.Context, request string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		return "", err
	}

	buf := make([]byte, maxDatagram)
	for attempt := 0; attempt < t.policy.Attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		t.logger.Debug().Int("attempt", attempt).Str("request", request).Msg("sending datagram")
		if _, err := conn.Write([]byte(request)); err != nil {
			t.logger.Debug().Err(err).Msg("send failed")
			sleepCtx(ctx, t.policy.Timeout(attempt))
			continue
		}

		_ = conn.SetReadDeadline(deadlineFor(ctx, t.policy.Timeout(attempt)))
		for {
			n, err := conn.Read(buf)
			if err != nil {
				var netErr net.Error
				if !(errors.As(err, &netErr) && netErr.Timeout()) {
					// ICMP port unreachable and similar: wait out the
					// attempt so retries stay paced.
					t.logger.Debug().Err(err).Msg("receive failed")
					sleepCtx(ctx, t.policy.Timeout(attempt))
				} else {
					t.logger.Debug().Int("attempt", attempt).Msg("timed out waiting for reply, retrying")
				}
				break
			}

			reply := string(buf[:n])
			if !protocol.ReplyMatches(request, reply) {
				t.logger.Debug().Str("reply", reply).Msg("discarding stray datagram")
				continue
			}
			t.logger.Debug().Str("reply", reply).Msg("received datagram")
			return reply, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.logger.Warn().Int("retries", t.policy.MaxRetries).Msg("maximum retries exceeded")
	return "", ErrUnreachable
}

// Close releases the socket.
func (t *DatagramTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
