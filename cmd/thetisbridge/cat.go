package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// CATClient is the transport gateway to Thetis.
//
// Send is fire-and-forget; Query returns the reply with the trailing
// terminator stripped. Both are bounded by the client's timeout.
type CATClient interface {
	Send(ctx context.Context, command string) error
	Query(ctx context.Context, command string) (string, error)
}

// TransportError describes a failed CAT exchange.
type TransportError struct {
	Op   string // dial, write, read, open
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cat %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// frameCommand terminates command with exactly one ';' followed by the blank
// line Thetis' TCP server expects. A command that already ends in ';' is not
// doubled up to ";;", whatever the table entry carries.
func frameCommand(command string) []byte {
	return []byte(strings.TrimRight(command, catTerminator) + catTerminator + "\n\n")
}

// parseReply strips whitespace and the trailing terminator from a raw reply.
func parseReply(raw []byte) string {
	return strings.TrimRight(strings.TrimSpace(string(raw)), catTerminator)
}

// ============================================================================
// TCP transport
// ============================================================================

// TCPCATClient opens one connection per call to the Thetis CAT server.
// It is safe for concurrent use.
type TCPCATClient struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// NewTCPCATClient creates a client for host:port.
func NewTCPCATClient(host string, port int, timeout time.Duration) *TCPCATClient {
	return &TCPCATClient{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
	}
}

// Addr returns the server address.
func (c *TCPCATClient) Addr() string { return c.addr }

func (c *TCPCATClient) exchange(ctx context.Context, command string, wantReply bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", &TransportError{Op: "dial", Addr: c.addr, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(frameCommand(command)); err != nil {
		return "", &TransportError{Op: "write", Addr: c.addr, Err: err}
	}
	if !wantReply {
		return "", nil
	}

	buf := make([]byte, catReadBufSize)
	n, err := conn.Read(buf)
	if err != nil {
		return "", &TransportError{Op: "read", Addr: c.addr, Err: err}
	}
	return parseReply(buf[:n]), nil
}

// Send writes command and closes the connection.
func (c *TCPCATClient) Send(ctx context.Context, command string) error {
	_, err := c.exchange(ctx, command, false)
	return err
}

// Query writes command and reads a single reply.
func (c *TCPCATClient) Query(ctx context.Context, command string) (string, error) {
	return c.exchange(ctx, command, true)
}

// ============================================================================
// Serial transport
// ============================================================================

// serialPort is the subset of *serial.Port the client uses.
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// SerialCATClient talks CAT over a (virtual) serial port. Exchanges are
// serialised on the single port.
type SerialCATClient struct {
	mu      sync.Mutex
	port    serialPort
	name    string
	timeout time.Duration
}

// NewSerialCATClient opens the named port.
func NewSerialCATClient(name string, baud int, timeout time.Duration) (*SerialCATClient, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		return nil, &TransportError{Op: "open", Addr: name, Err: err}
	}
	return newSerialCATClient(p, name, timeout), nil
}

func newSerialCATClient(p serialPort, name string, timeout time.Duration) *SerialCATClient {
	return &SerialCATClient{port: p, name: name, timeout: timeout}
}

// Close releases the port.
func (c *SerialCATClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Close()
}

// Send writes command.
func (c *SerialCATClient) Send(ctx context.Context, command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "write", Addr: c.name, Err: err}
	}
	if _, err := c.port.Write(frameCommand(command)); err != nil {
		return &TransportError{Op: "write", Addr: c.name, Err: err}
	}
	return nil
}

// Query writes command and reads until the reply terminator or the timeout.
func (c *SerialCATClient) Query(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop stale bytes from a previous timed-out reply.
	_ = c.port.Flush()

	if _, err := c.port.Write(frameCommand(command)); err != nil {
		return "", &TransportError{Op: "write", Addr: c.name, Err: err}
	}

	deadline := time.Now().Add(c.timeout)
	var reply []byte
	chunk := make([]byte, catReadBufSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", &TransportError{Op: "read", Addr: c.name, Err: err}
		}
		n, err := c.port.Read(chunk)
		// A read that times out with no data surfaces as io.EOF.
		if err != nil && !errors.Is(err, io.EOF) {
			return "", &TransportError{Op: "read", Addr: c.name, Err: err}
		}
		reply = append(reply, chunk[:n]...)
		if i := bytes.IndexByte(reply, ';'); i >= 0 {
			return parseReply(reply[:i+1]), nil
		}
		if len(reply) >= catReadBufSize || time.Now().After(deadline) {
			return "", &TransportError{Op: "read", Addr: c.name, Err: errReplyTimeout}
		}
	}
}

var errReplyTimeout = errors.New("no reply terminator within timeout")
