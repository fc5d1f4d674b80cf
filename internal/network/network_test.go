package network

import (
	"context"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/codebreaker-project/codebreaker/internal/metrics"
)

func echoUpper(data []byte, _ string) []byte {
	return []byte(strings.ToUpper(string(data)))
}

func startDatagram(t *testing.T, h HandlerFunc, limiter *IPLimiter, m *metrics.Metrics) (*DatagramListener, context.CancelFunc) {
	t.Helper()
	l := NewDatagramListener("127.0.0.1:0", h, limiter, m)
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Listen(ctx); err != nil {
		cancel()
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Start(ctx)
	}()
	return l, func() {
		cancel()
		<-done
	}
}

func startStream(t *testing.T, h HandlerFunc, opts StreamOptions, m *metrics.Metrics) (*StreamListener, context.CancelFunc) {
	t.Helper()
	l := NewStreamListener("127.0.0.1:0", h, opts, m)
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Listen(ctx); err != nil {
		cancel()
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Start(ctx)
	}()
	return l, func() {
		cancel()
		<-done
	}
}

func TestDatagramListener_Reply(t *testing.T) {
	l, stop := startDatagram(t, echoUpper, nil, nil)
	defer stop()

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("sng 000001 600\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "SNG 000001 600\n" {
		t.Errorf("reply = %q", got)
	}
}

func TestDatagramListener_RateLimited(t *testing.T) {
	m := metrics.New()
	l, stop := startDatagram(t, echoUpper, NewIPLimiter(0.001, 1), m)
	defer stop()

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 128)
	conn.Write([]byte("a\n"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("first datagram should be answered: %v", err)
	}

	conn.Write([]byte("b\n"))
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("second datagram should have been dropped")
	}
	if v := testutil.ToFloat64(m.Rejected.WithLabelValues("udp", metrics.ReasonRateLimited)); v != 1 {
		t.Errorf("rate limited count = %v, want 1", v)
	}
}

func TestStreamListener_OneRequestPerConnection(t *testing.T) {
	l, stop := startStream(t, echoUpper, StreamOptions{}, nil)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("ssb\nignored\n"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "SSB\n" {
		t.Errorf("reply = %q, want %q", got, "SSB\n")
	}
}

func TestStreamListener_SplitWrites(t *testing.T) {
	l, stop := startStream(t, echoUpper, StreamOptions{ReadTimeout: time.Second}, nil)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("str 00"))
	time.Sleep(50 * time.Millisecond)
	conn.Write([]byte("0001\n"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, _ := io.ReadAll(conn)
	if string(got) != "STR 000001\n" {
		t.Errorf("reply = %q", got)
	}
}

func TestStreamListener_QuietPeer(t *testing.T) {
	m := metrics.New()
	var called atomic.Bool
	h := func(data []byte, from string) []byte {
		called.Store(true)
		return echoUpper(data, from)
	}
	l, stop := startStream(t, h, StreamOptions{ReadTimeout: 100 * time.Millisecond}, m)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, _ := io.ReadAll(conn)
	if len(got) != 0 || called.Load() {
		t.Errorf("silent peer got reply %q", got)
	}
	if v := testutil.ToFloat64(m.Rejected.WithLabelValues("tcp", metrics.ReasonReadTimeout)); v != 1 {
		t.Errorf("read timeout count = %v, want 1", v)
	}
}

func TestStreamListener_PartialLineOnQuiet(t *testing.T) {
	l, stop := startStream(t, echoUpper, StreamOptions{ReadTimeout: 100 * time.Millisecond}, nil)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("ssb"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, _ := io.ReadAll(conn)
	if string(got) != "SSB" {
		t.Errorf("reply = %q, want the partial line handled", got)
	}
}

func TestStreamListener_LineTooLong(t *testing.T) {
	m := metrics.New()
	l, stop := startStream(t, func(data []byte, _ string) []byte {
		return []byte{byte('0' + len(data)%10)}
	}, StreamOptions{MaxLine: 8}, m)
	defer stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(strings.Repeat("x", 40)))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, _ := io.ReadAll(conn)
	if string(got) != "8" {
		t.Errorf("handler saw %q bytes, want 8", got)
	}
	if v := testutil.ToFloat64(m.Rejected.WithLabelValues("tcp", metrics.ReasonTooLong)); v != 1 {
		t.Errorf("too long count = %v, want 1", v)
	}
}

func TestPool(t *testing.T) {
	p := NewPool(2)
	if !p.Acquire() || !p.Acquire() {
		t.Fatal("expected two slots")
	}
	if p.Acquire() {
		t.Error("third acquire should fail")
	}
	if s := p.Stats(); s.Active != 2 || s.Available != 0 || s.Max != 2 {
		t.Errorf("stats = %+v", s)
	}
	p.Release()
	if p.Active() != 1 {
		t.Errorf("active = %d, want 1", p.Active())
	}
	p.Release()
	p.Release()
	if p.Active() != 0 {
		t.Errorf("extra release went negative: %d", p.Active())
	}

	if NewPool(0).Stats().Max != 1 {
		t.Error("zero size should clamp to one")
	}
}

func TestIPLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPLimiter(1, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst of two should pass")
	}
	if l.Allow("10.0.0.1") {
		t.Error("third request within the same instant should be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("token should refill after a second")
	}

	now = now.Add(10 * time.Minute)
	if n := l.Prune(time.Minute); n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
	if l.Tracked() != 0 {
		t.Errorf("tracked = %d", l.Tracked())
	}

	var disabled *IPLimiter
	if !disabled.Allow("x") {
		t.Error("nil limiter allows everything")
	}
	if !NewIPLimiter(0, 0).Allow("x") {
		t.Error("zero rate disables limiting")
	}
}
