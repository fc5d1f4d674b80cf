package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebreaker-project/codebreaker/internal/metrics"
	"github.com/codebreaker-project/codebreaker/internal/protocol"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

// StreamOptions tunes a StreamListener.
type StreamOptions struct {
	// Workers bounds concurrently served connections.
	Workers int
	// ReadTimeout is the quiescence limit while waiting for the request.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the reply.
	WriteTimeout time.Duration
	// MaxLine bounds the request line.
	MaxLine int
}

// DefaultStreamOptions returns the server defaults.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		Workers:      64,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxLine:      protocol.MaxRequestSize,
	}
}

// StreamListener serves one request per TCP connection. Every connection
// runs in its own goroutine so a slow peer never stalls the datagram side.
type StreamListener struct {
	addr    string
	handler HandlerFunc
	opts    StreamOptions
	pool    *Pool
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
}

// NewStreamListener creates a listener for addr. m may be nil.
func NewStreamListener(addr string, handler HandlerFunc, opts StreamOptions, m *metrics.Metrics) *StreamListener {
	def := DefaultStreamOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.MaxLine <= 0 {
		opts.MaxLine = def.MaxLine
	}
	return &StreamListener{
		addr:    addr,
		handler: handler,
		opts:    opts,
		pool:    NewPool(opts.Workers),
		metrics: m,
		logger:  util.ComponentLogger("tcp"),
	}
}

// Listen binds the socket. Start calls it when needed.
func (l *StreamListener) Listen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return nil
	}

	lc := ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP listener on %s: %w", l.addr, err)
	}
	l.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *StreamListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Pool exposes worker usage.
func (l *StreamListener) Pool() *Pool {
	return l.pool
}

// Start accepts connections until ctx is cancelled, then waits for the
// connections in flight.
func (l *StreamListener) Start(ctx context.Context) error {
	if err := l.Listen(ctx); err != nil {
		return err
	}
	ln := l.listener

	l.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("workers", l.opts.Workers).
		Msg("TCP listener started")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info().Msg("TCP listener stopping")
				l.conns.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				l.conns.Wait()
				return nil
			}
			l.logger.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		if !l.pool.Acquire() {
			if l.metrics != nil {
				l.metrics.RecordRejected("tcp", metrics.ReasonPoolFull)
			}
			l.logger.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Msg("all stream workers busy, dropping connection")
			conn.Close()
			continue
		}

		l.conns.Add(1)
		go l.handleConnection(conn)
	}
}

func (l *StreamListener) handleConnection(rawConn net.Conn) {
	defer l.conns.Done()
	defer l.pool.Release()

	if l.metrics != nil {
		l.metrics.IncStreamWorkers()
		defer l.metrics.DecStreamWorkers()
	}

	conn := NewConnection(rawConn)
	defer conn.Close()

	remote := rawConn.RemoteAddr().String()

	data, err := conn.ReadLine(l.opts.ReadTimeout, l.opts.MaxLine)
	switch {
	case errors.Is(err, ErrLineTooLong):
		if l.metrics != nil {
			l.metrics.RecordRejected("tcp", metrics.ReasonTooLong)
		}
		l.logger.Debug().Str("remote", remote).Msg("request line too long")
	case err != nil:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && l.metrics != nil {
			l.metrics.RecordRejected("tcp", metrics.ReasonReadTimeout)
		}
		l.logger.Debug().Err(err).Str("remote", remote).Msg("no request received")
		return
	}

	reply := l.handler(data, remote)
	if err := conn.WriteReply(reply, l.opts.WriteTimeout); err != nil {
		l.logger.Warn().Err(err).Str("remote", remote).Msg("failed to send reply")
	}
}

// Stop closes the listening socket.
func (l *StreamListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
