// Package relaytest provides an in-process WebSocket relay for tests.
//
// The relay broadcasts every data frame it receives to all connected peers,
// the sender included, as the public relay does. It can refuse a number of
// connection attempts and run a script against each new peer.
package relaytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Frame is a data frame received by the relay.
type Frame struct {
	Op   ws.OpCode
	Data []byte
}

// Option configures a Server.
type Option func(*Server)

// RefuseFirst makes the relay answer the first n upgrade requests with 503.
func RefuseFirst(n int) Option {
	return func(s *Server) { s.refuse = int32(n) }
}

// OnConnect runs fn for every accepted peer, before its frames are relayed.
func OnConnect(fn func(p *Peer)) Option {
	return func(s *Server) { s.onConnect = fn }
}

// Silent disables broadcasting; received frames are only recorded.
func Silent() Option {
	return func(s *Server) { s.silent = true }
}

// Server is a test relay listening on a loopback address.
type Server struct {
	// URL is the ws:// address of the relay.
	URL string

	srv       *httptest.Server
	refuse    int32
	attempts  atomic.Int32
	onConnect func(p *Peer)
	silent    bool

	mu     sync.RWMutex
	peers  map[*Peer]bool
	frames chan Frame
	wg     sync.WaitGroup
	once   sync.Once
}

// New starts a relay. It is closed when the test ends.
func New(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	s := &Server{
		peers:  make(map[*Peer]bool),
		frames: make(chan Frame, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")
	tb.Cleanup(s.Close)
	return s
}

// Close disconnects every peer and stops the relay.
func (s *Server) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		for p := range s.peers {
			p.Close()
		}
		s.mu.Unlock()
		s.srv.Close()
		s.wg.Wait()
	})
}

// Attempts returns the number of upgrade requests seen, refused ones included.
func (s *Server) Attempts() int {
	return int(s.attempts.Load())
}

// PeerCount returns the number of connected peers.
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Frames returns the data frames received from peers, in arrival order.
func (s *Server) Frames() <-chan Frame {
	return s.frames
}

// Broadcast sends a frame to every connected peer.
func (s *Server) Broadcast(op ws.OpCode, data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		p.send(op, data)
	}
}

// NextFrame waits for the next received frame.
func (s *Server) NextFrame(tb testing.TB, timeout time.Duration) Frame {
	tb.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(timeout):
		tb.Fatalf("relaytest: no frame within %v", timeout)
		return Frame{}
	}
}

// WaitPeers waits until n peers are connected.
func (s *Server) WaitPeers(tb testing.TB, n int, timeout time.Duration) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for s.PeerCount() != n {
		if time.Now().After(deadline) {
			tb.Fatalf("relaytest: %d peers connected, want %d", s.PeerCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if n := s.attempts.Add(1); n <= s.refuse {
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}

	p := newPeer(conn)
	s.register(p)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		p.writeLoop()
	}()
	if s.onConnect != nil {
		s.onConnect(p)
	}
	go func() {
		defer s.wg.Done()
		defer s.unregister(p)
		s.readLoop(p)
	}()
}

func (s *Server) register(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p] = true
}

func (s *Server) unregister(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	p.Close()
}

func (s *Server) readLoop(p *Peer) {
	for {
		data, op, err := wsutil.ReadClientData(p.conn)
		if err != nil {
			return
		}
		select {
		case s.frames <- Frame{Op: op, Data: data}:
		default:
		}
		if !s.silent {
			s.Broadcast(op, data)
		}
	}
}
