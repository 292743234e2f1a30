package wsstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

// mockHandler implements Handler by echoing every message back until the
// connection ends.
type mockHandler struct {
	mu       sync.Mutex
	conns    []*Conn
	handleCh chan *Conn
}

func newMockHandler() *mockHandler {
	return &mockHandler{
		conns:    make([]*Conn, 0),
		handleCh: make(chan *Conn, 10),
	}
}

func (h *mockHandler) Handle(ctx context.Context, conn *Conn) {
	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	select {
	case h.handleCh <- conn:
	default:
	}

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			return
		}
		if err := conn.SendBlocking(ctx, msg); err != nil {
			return
		}
	}
}

func (h *mockHandler) getConns() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	opts = append([]ServerOption{
		ServerLoggerOption(discardLogger()),
		ServerConnOption(LoggerOption(discardLogger())),
	}, opts...)
	server, err := New(addr, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return server
}

func serverURL(s *Server) string {
	return fmt.Sprintf("ws://%s/", s.Addr())
}

func dialTest(t *testing.T, ctx context.Context, url string) (*Conn, <-chan error) {
	t.Helper()
	conn, err := Dial(ctx, url, nil, LoggerOption(discardLogger()))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- conn.Run(ctx) }()
	t.Cleanup(func() { _ = conn.Close() })
	return conn, runErr
}

func TestNew(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	if server.listener == nil {
		t.Error("listener is nil")
	}
}

func TestNew_InvalidAddr(t *testing.T) {
	server1 := newTestServer(t)
	defer server1.Close()

	// Try to listen on the same port - should fail
	occupiedAddr := server1.listener.Addr().(*net.TCPAddr)
	_, err := New(occupiedAddr)
	if err == nil {
		t.Error("expected error for occupied port")
	}
}

func TestServer_Close(t *testing.T) {
	server := newTestServer(t)

	err := server.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Verify listener is closed by trying to accept
	_, err = server.listener.AcceptTCP()
	if err == nil {
		t.Error("expected error after close")
	}
}

func TestServer_Addr(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	if server.Addr() == nil {
		t.Error("Addr returned nil")
	}
}

func TestServer_Serve(t *testing.T) {
	server := newTestServer(t)
	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	clientCtx := testContext(t)
	conn, _ := dialTest(t, clientCtx, serverURL(server))

	select {
	case c := <-handler.handleCh:
		if c == nil {
			t.Fatal("handler received nil connection")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	data := patterned(600 * 1024)
	if err := conn.SendBlocking(clientCtx, Bytes(data)); err != nil {
		t.Fatalf("SendBlocking failed: %v", err)
	}
	msg, err := conn.Receive(clientCtx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(msg.Body(), data) {
		t.Error("echoed payload differs")
	}

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
}

func TestServer_Serve_MultipleConnections(t *testing.T) {
	server := newTestServer(t, ServerConnOption(FramingOption(FramingMultiplexed)))
	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Serve(ctx, handler)

	clientCtx := testContext(t)
	numClients := 5
	clients := make([]*Conn, numClients)
	for i := 0; i < numClients; i++ {
		clients[i], _ = dialTest(t, clientCtx, serverURL(server))
	}

	for i, conn := range clients {
		body := []byte(fmt.Sprintf("client %d", i))
		if err := conn.SendBlocking(clientCtx, Bytes(body)); err != nil {
			t.Fatalf("client %d send failed: %v", i, err)
		}
		msg, err := conn.Receive(clientCtx)
		if err != nil {
			t.Fatalf("client %d receive failed: %v", i, err)
		}
		if !bytes.Equal(msg.Body(), body) {
			t.Errorf("client %d got %q", i, msg.Body())
		}
	}

	if conns := handler.getConns(); len(conns) != numClients {
		t.Errorf("handler received %d connections, want %d", len(conns), numClients)
	}
}

func TestServer_Serve_ContextCanceled(t *testing.T) {
	server := newTestServer(t)
	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	// Give server time to start
	time.Sleep(time.Millisecond * 50)

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Serve to return")
	}
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	server := newTestServer(t)
	handler := newMockHandler()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	clientCtx := testContext(t)
	conn, runErr := dialTest(t, clientCtx, serverURL(server))
	<-handler.handleCh

	cancel()

	// The server engine sends a going-away close frame.
	if err := waitRun(t, runErr); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("client Run = %v, want ErrDisconnected", err)
	}
	if !conn.IsClosed() {
		t.Error("client still open after server shutdown")
	}
	if err := conn.Send(Bytes("x")); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send = %v, want ErrChannelClosed", err)
	}
	<-done
}

func TestServer_ShutdownTimeoutBypassedByClose(t *testing.T) {
	server := newTestServer(t, ServerShutdownTimeoutOption(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, HandlerFunc(func(context.Context, *Conn) {}))
	}()
	time.Sleep(time.Millisecond * 50)

	cancel()
	time.Sleep(time.Millisecond * 20)
	server.Close()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not bypass the shutdown timeout")
	}
}
