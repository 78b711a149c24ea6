// Package chat provides the transport contracts and caller-side state shared by
// the connection manager and the presentation layer.
package chat

import (
	"context"
	"errors"
)

// ErrConnClosed is returned by Conn.Read and Conn.Write once the connection is gone,
// whether closed locally or by the relay.
var ErrConnClosed = errors.New("connection closed")

// ErrBadAddress is returned by a Dialer for addresses that can never succeed.
// The connection manager does not retry it.
var ErrBadAddress = errors.New("bad relay address")

// FrameKind tells text frames from binary frames.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

// String returns "text" or "binary".
func (k FrameKind) String() string {
	if k == FrameBinary {
		return "binary"
	}
	return "text"
}

// Frame is one discrete unit read from or written to a Conn.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Conn abstracts a message-oriented duplex connection to the relay.
// This interface isolates transport details from the connection manager.
type Conn interface {
	// Read blocks until the next data frame arrives.
	// Returns an error wrapping ErrConnClosed when the connection is gone.
	Read(ctx context.Context) (Frame, error)

	// Write sends a single frame. Safe to call concurrently with Read.
	Write(ctx context.Context, f Frame) error

	// Close closes the connection. Blocked Reads return.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a Conn to a relay address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}
