// Package network implements the datagram and stream listeners that carry
// protocol requests to the dispatcher.
package network

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrLineTooLong is returned by ReadLine when no newline arrived within the
// size limit.
var ErrLineTooLong = errors.New("request line too long")

// Connection wraps one accepted stream connection. Each connection carries
// exactly one request and one reply.
type Connection struct {
	mu     sync.Mutex
	conn   net.Conn
	logger zerolog.Logger

	connectedAt time.Time
	closed      bool
}

// NewConnection wraps conn.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:        conn,
		connectedAt: time.Now(),
		logger: log.With().
			Str("component", "stream_conn").
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// ReadLine reads up to and including the first '\n'. Each chunk received
// pushes the deadline quiet further out, so a peer that stops sending is
// dropped after quiet of silence. A partial line read before the peer went
// quiet or closed is returned without error. At most limit bytes are read.
func (c *Connection) ReadLine(quiet time.Duration, limit int) ([]byte, error) {
	buf := make([]byte, 0, 128)
	chunk := make([]byte, 256)

	for {
		if quiet > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(quiet))
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				return buf[:i+1], nil
			}
			if len(buf) >= limit {
				return buf[:limit], ErrLineTooLong
			}
		}
		if err != nil {
			if len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
	}
}

// WriteReply writes data with a deadline.
func (c *Connection) WriteReply(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	return nil
}

// Close closes the connection once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Trace().Dur("lifetime", time.Since(c.connectedAt)).Msg("connection closed")
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ConnectedAt returns when the connection was accepted.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}
