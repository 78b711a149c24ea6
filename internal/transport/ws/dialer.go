package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gobwas/ws"

	"github.com/omochice/relay-chat/internal/chat"
)

// Dialer opens WebSocket connections to ws:// and wss:// relay addresses.
type Dialer struct {
	// Timeout bounds a single connection attempt. Zero means no limit beyond ctx.
	Timeout time.Duration
	// Header is sent with the upgrade request.
	Header http.Header
}

var _ chat.Dialer = Dialer{}

// ParseAddress checks that address is an absolute ws:// or wss:// URL.
func ParseAddress(address string) (*url.URL, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrBadAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %q", chat.ErrBadAddress, u.Scheme, address)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", chat.ErrBadAddress, address)
	}
	return u, nil
}

// Dial implements chat.Dialer.
func (d Dialer) Dial(ctx context.Context, address string) (chat.Conn, error) {
	u, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	dialer := ws.Dialer{Timeout: d.Timeout}
	if d.Header != nil {
		dialer.Header = ws.HandshakeHeaderHTTP(d.Header)
	}

	conn, br, _, err := dialer.Dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewConn(conn, br), nil
}
