package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// HandlerFunc turns one request into one reply. from is the peer address.
type HandlerFunc func(data []byte, from string) []byte

// datagramBufferSize is larger than any valid request so oversize ones are
// seen whole and rejected by the parser.
const datagramBufferSize = 512

// DatagramListener serves requests over UDP. Each request is handled
// synchronously on the receive goroutine.
type DatagramListener struct {
	addr    string
	handler HandlerFunc
	limiter *IPLimiter
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewDatagramListener creates a listener for addr. limiter and m may be nil.
func NewDatagramListener(addr string, handler HandlerFunc, limiter *IPLimiter, m *metrics.Metrics) *DatagramListener {
	return &DatagramListener{
		addr:    addr,
		handler: handler,
		limiter: limiter,
		metrics: m,
		logger:  util.ComponentLogger("udp"),
	}
}

// Listen binds the socket. Start calls it when needed.
func (l *DatagramListener) Listen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	lc := ReuseAddrListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start UDP listener on %s: %w", l.addr, err)
	}
	l.conn = pc.(*net.UDPConn)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *DatagramListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start serves until ctx is cancelled.
func (l *DatagramListener) Start(ctx context.Context) error {
	if err := l.Listen(ctx); err != nil {
		return err
	}
	conn := l.conn

	l.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP listener started")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, datagramBufferSize)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info().Msg("UDP listener stopping")
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Error().Err(err).Msg("UDP read error")
			continue
		}

		if !l.limiter.Allow(extractIP(remote)) {
			if l.metrics != nil {
				l.metrics.RecordRejected("udp", metrics.ReasonRateLimited)
			}
			l.logger.Debug().Str("remote", remote.String()).Msg("datagram rate limited")
			continue
		}

		reply := l.handler(buf[:n], remote.String())
		if len(reply) == 0 {
			continue
		}
		if _, err := conn.WriteToUDP(reply, remote); err != nil {
			l.logger.Warn().
				Err(err).
				Str("remote", remote.String()).
				Msg("failed to send reply")
		}
	}
}

// Stop closes the socket.
func (l *DatagramListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
