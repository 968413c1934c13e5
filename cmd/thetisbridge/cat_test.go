package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// catServer is a loopback stand-in for the Thetis CAT TCP server.
type catServer struct {
	ln      net.Listener
	replies map[string]string

	mu     sync.Mutex
	frames []string
}

func startCATServer(t *testing.T, replies map[string]string) *catServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &catServer{ln: ln, replies: replies}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *catServer) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	var frame []byte
	buf := make([]byte, 256)
	for !bytes.HasSuffix(frame, []byte("\n\n")) {
		n, err := conn.Read(buf)
		frame = append(frame, buf[:n]...)
		if err != nil {
			break
		}
	}

	s.mu.Lock()
	s.frames = append(s.frames, string(frame))
	s.mu.Unlock()

	if reply, ok := s.replies[strings.TrimSpace(string(frame))]; ok {
		_, _ = conn.Write([]byte(reply))
	}
}

func (s *catServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *catServer) client(t *testing.T) *TCPCATClient {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return NewTCPCATClient(host, port, time.Second)
}

func TestFrameCommand_SingleTerminator(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ZZAC;", "ZZAC;\n\n"},
		{"ZZAC", "ZZAC;\n\n"},
		{"ZZFA;;", "ZZFA;\n\n"},
	}
	for _, tt := range tests {
		if got := string(frameCommand(tt.in)); got != tt.want {
			t.Errorf("frameCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTCPCATClient_Query(t *testing.T) {
	srv := startCATServer(t, map[string]string{"ZZAC;": "ZZAC05;"})
	c := srv.client(t)

	reply, err := c.Query(context.Background(), catReadStepSize)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply != "ZZAC05" {
		t.Errorf("reply = %q, want ZZAC05", reply)
	}

	frames := srv.received()
	if len(frames) != 1 || frames[0] != "ZZAC;\n\n" {
		t.Errorf("server received %q, want one ZZAC; frame", frames)
	}
}

func TestTCPCATClient_Send(t *testing.T) {
	srv := startCATServer(t, nil)
	c := srv.client(t)

	if err := c.Send(context.Background(), "ZZSB;"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return len(srv.received()) == 1 }, "frame not received")
	if got := srv.received()[0]; got != "ZZSB;\n\n" {
		t.Errorf("server received %q", got)
	}
}

func TestTCPCATClient_DialErrorIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	c := NewTCPCATClient("127.0.0.1", addr.Port, 200*time.Millisecond)
	err = c.Send(context.Background(), "ZZSB;")

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.Op != "dial" {
		t.Errorf("Op = %q, want dial", te.Op)
	}
}

func TestTCPCATClient_ReadTimeout(t *testing.T) {
	// The server accepts but never answers ZZFA;.
	srv := startCATServer(t, map[string]string{})
	host, portStr, _ := net.SplitHostPort(srv.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	c := NewTCPCATClient(host, port, 150*time.Millisecond)

	_, err := c.Query(context.Background(), "ZZFA;")
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "read" {
		t.Fatalf("expected read TransportError, got %v", err)
	}
}

// fakeSerialPort feeds scripted read chunks and records writes.
type fakeSerialPort struct {
	mu      sync.Mutex
	chunks  []string
	written bytes.Buffer
	flushes int
	closed  bool
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 {
		time.Sleep(5 * time.Millisecond)
		return 0, io.EOF
	}
	n := copy(p, f.chunks[0])
	f.chunks = f.chunks[1:]
	return n, nil
}

func (f *fakeSerialPort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakeSerialPort) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakeSerialPort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestSerialCATClient_QueryAssemblesChunks(t *testing.T) {
	port := &fakeSerialPort{chunks: []string{"ZZFA0001", "4250123;"}}
	c := newSerialCATClient(port, "COM5", time.Second)

	reply, err := c.Query(context.Background(), "ZZFA;")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if reply != "ZZFA00014250123" {
		t.Errorf("reply = %q", reply)
	}
	if port.written.String() != "ZZFA;\n\n" {
		t.Errorf("written = %q", port.written.String())
	}
	if port.flushes != 1 {
		t.Errorf("flushes = %d, want 1", port.flushes)
	}
}

func TestSerialCATClient_QueryTimeout(t *testing.T) {
	port := &fakeSerialPort{}
	c := newSerialCATClient(port, "COM5", 50*time.Millisecond)

	_, err := c.Query(context.Background(), "ZZAC;")
	if !errors.Is(err, errReplyTimeout) {
		t.Fatalf("expected errReplyTimeout, got %v", err)
	}
}

func TestSerialCATClient_SendAndClose(t *testing.T) {
	port := &fakeSerialPort{}
	c := newSerialCATClient(port, "COM5", time.Second)

	if err := c.Send(context.Background(), "ZZSW1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if port.written.String() != "ZZSW1;\n\n" {
		t.Errorf("written = %q", port.written.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Send(ctx, "ZZSB;"); err == nil {
		t.Errorf("expected error on canceled context")
	}

	if err := c.Close(); err != nil || !port.closed {
		t.Errorf("Close: err=%v closed=%v", err, port.closed)
	}
}
