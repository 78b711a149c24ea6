// Package ws provides the WebSocket client transport for the relay.
package ws

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/relay-chat/internal/chat"
)

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// MaxMessageSize bounds a single frame and a reassembled message from the relay.
// A larger one is a protocol violation that closes the connection.
const MaxMessageSize = 1 << 20

// controlWriteTimeout bounds pong and close replies written from Read.
const controlWriteTimeout = time.Second

// Conn adapts a client-side gobwas/ws connection to chat.Conn.
type Conn struct {
	conn    net.Conn
	reader  *wsutil.Reader
	control wsutil.FrameHandlerFunc

	readMu  sync.Mutex
	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewConn wraps a dialed connection. br holds bytes buffered during the
// handshake and may be nil.
func NewConn(conn net.Conn, br *bufio.Reader) *Conn {
	var src io.Reader = conn
	if br != nil {
		src = br
	}
	c := &Conn{conn: conn}
	ctl := wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	// Pongs and close replies share the socket with Write.
	c.control = func(h ws.Header, r io.Reader) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))
		defer conn.SetWriteDeadline(time.Time{})
		return ctl(h, r)
	}
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		MaxFrameSize:   MaxMessageSize,
		OnIntermediate: c.control,
	}
	return c
}

// Read implements chat.Conn.
// Control frames are answered in place; fragmented messages are reassembled.
func (c *Conn) Read(ctx context.Context) (chat.Frame, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	stop := c.bindDeadline(ctx, c.conn.SetReadDeadline)
	defer stop()

	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return chat.Frame{}, c.readErr(ctx, err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, c.reader); err != nil {
				return chat.Frame{}, c.mapErr(ctx, err)
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(c.reader, MaxMessageSize+1))
		if err != nil {
			return chat.Frame{}, c.readErr(ctx, err)
		}
		if len(data) > MaxMessageSize {
			return chat.Frame{}, c.tooLarge(fmt.Errorf("message exceeds %d bytes", MaxMessageSize))
		}
		kind := chat.FrameText
		if hdr.OpCode == ws.OpBinary {
			kind = chat.FrameBinary
		}
		return chat.Frame{Kind: kind, Data: data}, nil
	}
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, f chat.Frame) error {
	if c.closed.Load() {
		return chat.ErrConnClosed
	}
	op := ws.OpText
	if f.Kind == chat.FrameBinary {
		op = ws.OpBinary
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	stop := c.bindDeadline(ctx, c.conn.SetWriteDeadline)
	defer stop()

	if err := wsutil.WriteClientMessage(c.conn, op, f.Data); err != nil {
		return c.mapErr(ctx, err)
	}
	return nil
}

// Close implements chat.Conn. It sends a normal closure frame on a best-effort
// basis and closes the socket.
func (c *Conn) Close() error {
	return c.closeWith(ws.StatusNormalClosure, "")
}

func (c *Conn) closeWith(code ws.StatusCode, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout))
	_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(code, reason))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// tooLarge closes the connection with 1009 and reports it as closed.
func (c *Conn) tooLarge(err error) error {
	_ = c.closeWith(ws.StatusMessageTooBig, "message too big")
	return fmt.Errorf("%w: %w", chat.ErrConnClosed, err)
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// bindDeadline applies ctx's deadline to the socket and interrupts the pending
// I/O when ctx is cancelled. The returned func releases the binding and clears
// the deadline, so later I/O outside a ctx does not inherit it.
func (c *Conn) bindDeadline(ctx context.Context, set func(time.Time) error) func() {
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = set(aLongTimeAgo)
		close(fired)
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = set(time.Time{})
	}
}

func (c *Conn) readErr(ctx context.Context, err error) error {
	if errors.Is(err, wsutil.ErrFrameTooLarge) {
		return c.tooLarge(err)
	}
	return c.mapErr(ctx, err)
}

func (c *Conn) mapErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if c.closed.Load() || isClosed(err) {
		return fmt.Errorf("%w: %w", chat.ErrConnClosed, err)
	}
	return err
}

func isClosed(err error) bool {
	var closedErr wsutil.ClosedError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.As(err, &closedErr)
}
