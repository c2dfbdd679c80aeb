// Package netprint pushes raw bytes straight to a network printer's 9100
// socket and probes printer reachability. Operations are short-lived,
// per-call, and safe to run concurrently across printers.
package netprint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// Failure classification for delivery attempts. These drive the retry
// policy upstream; none of them are fatal to the caller.
var (
	ErrTimeout     = errors.New("connection timed out")
	ErrUnreachable = errors.New("printer unreachable")
	ErrWrite       = errors.New("write failed")
)

// Result is the outcome of a send or probe. Message is human-readable and
// safe to surface to operators.
type Result struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message"`
}

// Client talks raw TCP to printers.
type Client struct {
	// SettleDelay is how long to wait after the final write before tearing
	// the socket down, so the printer's internal buffer drains.
	SettleDelay time.Duration
}

// NewClient returns a client with the given settle delay.
func NewClient(settleDelay time.Duration) *Client {
	return &Client{SettleDelay: settleDelay}
}

// SendRaw opens a TCP connection to ip:port, writes data, waits the settle
// delay and closes. Success is reported only after the full write completes
// without error.
func (c *Client) SendRaw(ctx context.Context, ip string, port int, data []byte, timeout time.Duration) (Result, error) {
	start := time.Now()

	conn, err := dial(ctx, ip, port, timeout)
	if err != nil {
		res := classifyDialError(ip, port, timeout, err)
		return res, fmt.Errorf("send to %s:%d: %w", ip, port, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return Result{OK: false, Message: fmt.Sprintf("failed to set write deadline: %v", err)}, err
	}

	if _, err := conn.Write(data); err != nil {
		msg := fmt.Sprintf("write to printer %s:%d failed, connection dropped mid-transfer: %v", ip, port, err)
		return Result{OK: false, Latency: time.Since(start), Message: msg},
			fmt.Errorf("%w: %s:%d: %v", ErrWrite, ip, port, err)
	}

	// Let the printer drain its buffer before the socket goes away.
	if c.SettleDelay > 0 {
		select {
		case <-time.After(c.SettleDelay):
		case <-ctx.Done():
		}
	}

	return Result{
		OK:      true,
		Latency: time.Since(start),
		Message: fmt.Sprintf("sent %d bytes to %s:%d", len(data), ip, port),
	}, nil
}

// Probe attempts only the TCP handshake. Success means the printer accepted
// a connection, not that a print would succeed.
func (c *Client) Probe(ctx context.Context, ip string, port int, timeout time.Duration) Result {
	start := time.Now()

	conn, err := dial(ctx, ip, port, timeout)
	if err != nil {
		return classifyDialError(ip, port, timeout, err)
	}
	conn.Close()

	return Result{
		OK:      true,
		Latency: time.Since(start),
		Message: fmt.Sprintf("printer %s:%d is reachable", ip, port),
	}
}

func dial(ctx context.Context, ip string, port int, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
}

func classifyDialError(ip string, port int, timeout time.Duration, err error) Result {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Result{
			OK:      false,
			Message: fmt.Sprintf("connection to %s:%d timed out after %s", ip, port, timeout),
		}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return Result{
			OK:      false,
			Message: fmt.Sprintf("printer %s:%d refused the connection, it may be off or rebooting", ip, port),
		}
	}
	return Result{
		OK:      false,
		Message: fmt.Sprintf("printer %s:%d is unreachable: %v", ip, port, err),
	}
}

// Classify maps a dial/write error to the package's failure taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, ErrWrite) {
		return ErrWrite
	}
	return ErrUnreachable
}
