package client_test

import (
	"context"
	"errors"
	"sync"

	"github.com/omochice/relay-chat/internal/chat"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan chat.Frame
	readErr    error
	writtenMu  sync.Mutex
	written    []chat.Frame
	writeErr   error
	closeOnce  sync.Once
	closed     chan struct{}
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan chat.Frame, 256),
		closed:     make(chan struct{}),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) (chat.Frame, error) {
	if m.readErr != nil {
		return chat.Frame{}, m.readErr
	}
	select {
	case <-ctx.Done():
		return chat.Frame{}, ctx.Err()
	case <-m.closed:
		return chat.Frame{}, chat.ErrConnClosed
	case f, ok := <-m.readCh:
		if !ok {
			return chat.Frame{}, chat.ErrConnClosed
		}
		return f, nil
	}
}

func (m *mockConn) Write(ctx context.Context, f chat.Frame) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	select {
	case <-m.closed:
		return chat.ErrConnClosed
	default:
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	m.written = append(m.written, chat.Frame{Kind: f.Kind, Data: data})
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

func (m *mockConn) GetWritten() []chat.Frame {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	out := make([]chat.Frame, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// dialerFor returns a dialer that fails the first failures attempts and then
// hands out conn. attempts counts every call.
func dialerFor(conn chat.Conn, failures int, attempts *int) chat.Dialer {
	var mu sync.Mutex
	return chat.DialerFunc(func(ctx context.Context, address string) (chat.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		*attempts++
		if *attempts <= failures {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	})
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
