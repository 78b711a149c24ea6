package relaytest

import (
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type outgoing struct {
	op   ws.OpCode
	data []byte
}

// Peer is one client connection accepted by the relay.
type Peer struct {
	conn     net.Conn
	outgoing chan outgoing
	done     chan struct{}
	once     sync.Once
}

func newPeer(conn net.Conn) *Peer {
	return &Peer{
		conn:     conn,
		outgoing: make(chan outgoing, 64),
		done:     make(chan struct{}),
	}
}

// WriteText queues a text frame for the peer.
func (p *Peer) WriteText(data []byte) { p.send(ws.OpText, data) }

// WriteBinary queues a binary frame for the peer.
func (p *Peer) WriteBinary(data []byte) { p.send(ws.OpBinary, data) }

// Close sends a close frame after the queued frames and drops the connection.
func (p *Peer) Close() {
	p.send(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	p.once.Do(func() { close(p.done) })
}

func (p *Peer) send(op ws.OpCode, data []byte) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.outgoing <- outgoing{op: op, data: data}:
	case <-p.done:
	}
}

func (p *Peer) writeLoop() {
	defer p.conn.Close()
	for {
		select {
		case out := <-p.outgoing:
			if err := wsutil.WriteServerMessage(p.conn, out.op, out.data); err != nil {
				return
			}
			if out.op == ws.OpClose {
				return
			}
		case <-p.done:
			p.drain()
			return
		}
	}
}

// drain flushes frames queued before Close, the close frame among them.
func (p *Peer) drain() {
	for {
		select {
		case out := <-p.outgoing:
			if err := wsutil.WriteServerMessage(p.conn, out.op, out.data); err != nil {
				return
			}
			if out.op == ws.OpClose {
				return
			}
		default:
			return
		}
	}
}
