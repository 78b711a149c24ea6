// Package client implements the connection manager: it keeps one duplex
// connection to the relay, encodes outbound messages and hands decoded
// inbound messages to a caller-supplied handler.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/pkg/protocol"
)

var (
	// ErrClosed is returned by Send once the manager has stopped.
	ErrClosed = errors.New("connection manager closed")
	// ErrConnectionLost is wrapped by Err when the transport failed after connecting.
	ErrConnectionLost = errors.New("connection to relay lost")
)

// maxReadFailures is the number of consecutive unreadable frames after which
// the transport is considered broken.
const maxReadFailures = 16

// State is the observable connection state.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateClosed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handler receives each successfully decoded inbound message, in arrival order.
// Handlers run on a dedicated goroutine and must not call Manager.Close.
type Handler func(protocol.Message)

// Manager owns a single connection to one relay.
type Manager struct {
	address      string
	codec        protocol.Codec
	log          zerolog.Logger
	writeTimeout time.Duration
	onState      func(State)

	conn     chat.Conn
	outbound *Queue[chat.Frame]
	inbound  *Queue[protocol.Message]
	pending  *backlog

	state     atomic.Int32
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Connect dials address until a connection is established, then starts the
// outbound forwarder, the inbound decoder and the handler dispatcher.
//
// Failed attempts are retried per the RetryPolicy and never reported. Connect
// returns an error only when ctx ends first or the address is unusable. The
// latter departs from retrying forever: an address the dialer rejects with
// chat.ErrBadAddress can never connect, so it is returned at once.
func Connect(ctx context.Context, address string, handler Handler, opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if handler == nil {
		handler = func(protocol.Message) {}
	}

	m := &Manager{
		address:      address,
		codec:        o.codec,
		log:          o.logger.With().Str("relay", address).Logger(),
		writeTimeout: o.writeTimeout,
		onState:      o.onState,
		outbound:     NewQueue[chat.Frame](),
		pending:      newBacklog(),
		inbound:      NewQueue[protocol.Message](),
		done:         make(chan struct{}),
	}
	m.setState(StateConnecting)

	conn, err := m.dial(ctx, o.dialer, o.retry)
	if err != nil {
		m.setState(StateClosed)
		return nil, err
	}
	m.conn = conn

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return m.forward(gctx) })
	g.Go(func() error { return m.decode(gctx) })
	g.Go(func() error { return m.dispatch(runCtx, handler) })

	m.setState(StateConnected)
	go m.finish(g)

	return m, nil
}

// Send encodes msg and queues it for transmission. It never blocks.
// Messages queued from any number of goroutines reach the relay in queue order.
func (m *Manager) Send(msg protocol.Message) error {
	data, err := m.codec.Encode(msg)
	if err != nil {
		return err
	}
	f := chat.Frame{Kind: chat.FrameText, Data: data}
	if m.codec.Binary() {
		f.Kind = chat.FrameBinary
	}
	m.pending.add()
	if err := m.outbound.Push(f); err != nil {
		m.pending.remove()
		return ErrClosed
	}
	return nil
}

// Flush waits until every message queued by Send so far has been written to
// the transport. It returns ErrClosed if the manager stops first.
func (m *Manager) Flush(ctx context.Context) error {
	select {
	case <-m.pending.empty():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// Close stops the background goroutines and closes the transport.
// Queued messages that were not yet written are dropped.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.outbound.Close()
		m.cancel()
		_ = m.conn.Close()
	})
	<-m.done
	return nil
}

// Done is closed when the manager reaches StateClosed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err reports why the manager stopped: nil while running or after Close,
// an error wrapping ErrConnectionLost when the transport failed.
func (m *Manager) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Connected reports whether the connection is live.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Address returns the relay address.
func (m *Manager) Address() string {
	return m.address
}

func (m *Manager) setState(s State) {
	if State(m.state.Swap(int32(s))) == s && s != StateConnecting {
		return
	}
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) dial(ctx context.Context, dialer chat.Dialer, retry RetryPolicy) (chat.Conn, error) {
	var delay time.Duration
	for attempt := 1; ; attempt++ {
		conn, err := dialer.Dial(ctx, m.address)
		if err == nil {
			m.log.Info().Int("attempt", attempt).Str("remote", conn.RemoteAddr()).Msg("connected")
			return conn, nil
		}
		if errors.Is(err, chat.ErrBadAddress) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.log.Debug().Err(err).Int("attempt", attempt).Msg("connect failed, retrying")

		delay = retry.next(delay)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// forward writes queued frames to the transport in FIFO order.
func (m *Manager) forward(ctx context.Context) error {
	for {
		f, err := m.outbound.Pop(ctx)
		if err != nil {
			return nil
		}

		wctx, cancel := ctx, context.CancelFunc(func() {})
		if m.writeTimeout > 0 {
			wctx, cancel = context.WithTimeout(ctx, m.writeTimeout)
		}
		err = m.conn.Write(wctx, f)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: write: %w", ErrConnectionLost, err)
		}
		m.pending.remove()
	}
}

// decode reads frames and queues the ones that decode into messages.
// A bad frame is dropped; it never ends the connection.
func (m *Manager) decode(ctx context.Context) error {
	defer m.inbound.Close()

	failures := 0
	for {
		f, err := m.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, chat.ErrConnClosed) {
				return fmt.Errorf("%w: %w", ErrConnectionLost, err)
			}
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("%w: %d consecutive read failures: %w", ErrConnectionLost, failures, err)
			}
			m.log.Debug().Err(err).Int("failures", failures).Msg("dropping unreadable frame")
			continue
		}
		failures = 0

		msg, err := m.decodeFrame(f)
		if err != nil {
			m.log.Debug().Err(err).Stringer("frame", f.Kind).Int("size", len(f.Data)).Msg("dropping frame")
			continue
		}
		_ = m.inbound.Push(msg)
	}
}

// dispatch invokes handler for every decoded message until the decoder stops
// and the queue is drained, or the manager is closed. Close wins over a
// backlog: messages still queued when ctx ends are dropped.
func (m *Manager) dispatch(ctx context.Context, handler Handler) error {
	for {
		msg, err := m.inbound.Pop(ctx)
		if err != nil || ctx.Err() != nil {
			return nil
		}
		handler(msg)
	}
}

func (m *Manager) decodeFrame(f chat.Frame) (protocol.Message, error) {
	if m.codec.Binary() {
		if f.Kind != chat.FrameBinary {
			return protocol.Message{}, fmt.Errorf("unexpected %s frame", f.Kind)
		}
	} else if !utf8.Valid(f.Data) {
		return protocol.Message{}, fmt.Errorf("%s frame is not valid UTF-8 text", f.Kind)
	}
	return m.codec.Decode(f.Data)
}

func (m *Manager) finish(g *errgroup.Group) {
	err := g.Wait()
	m.outbound.Close()
	m.cancel()
	_ = m.conn.Close()

	if err != nil {
		m.log.Warn().Err(err).Msg("disconnected")
	} else {
		m.log.Info().Msg("connection closed")
	}
	m.err = err
	m.setState(StateClosed)
	close(m.done)
}

// backlog counts frames queued but not yet written.
type backlog struct {
	mu    sync.Mutex
	n     int
	drain chan struct{} // closed while n is zero
}

func newBacklog() *backlog {
	drain := make(chan struct{})
	close(drain)
	return &backlog{drain: drain}
}

func (b *backlog) add() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.n == 0 {
		b.drain = make(chan struct{})
	}
	b.n++
}

func (b *backlog) remove() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n--
	if b.n == 0 {
		close(b.drain)
	}
}

// empty returns a channel that is closed once nothing is pending.
func (b *backlog) empty() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drain
}
