package client

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/transport/ws"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// RetryPolicy controls the delay between initial connection attempts.
//
// The zero value retries immediately and forever. A positive Initial starts an
// exponential backoff that doubles per failed attempt, capped at Max when set.
type RetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// next returns the delay to wait after a failed attempt that followed prev.
func (p RetryPolicy) next(prev time.Duration) time.Duration {
	if p.Initial <= 0 {
		return 0
	}
	d := p.Initial
	if prev > 0 {
		d = prev * 2
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

type options struct {
	dialer       chat.Dialer
	codec        protocol.Codec
	logger       zerolog.Logger
	retry        RetryPolicy
	writeTimeout time.Duration
	onState      func(State)
}

func defaultOptions() options {
	return options{
		dialer: ws.Dialer{},
		codec:  protocol.JSONCodec{},
		logger: zerolog.Nop(),
	}
}

// Option configures a Manager.
type Option func(*options)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d chat.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithCodec selects the wire encoding. Defaults to protocol.JSONCodec.
func WithCodec(c protocol.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRetryPolicy sets the delay policy for the initial connect loop.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithWriteTimeout bounds each transport write. Zero means no timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithStateHandler registers fn to observe state transitions.
// fn runs synchronously on the goroutine causing the transition.
func WithStateHandler(fn func(State)) Option {
	return func(o *options) { o.onState = fn }
}
