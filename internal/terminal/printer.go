package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/gookit/color"

	"github.com/omochice/relay-chat/internal/client"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// Printer writes chat lines to a terminal. Writes are serialized.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	self    uuid.UUID
	colored bool
}

// NewPrinter returns a printer that hides messages sent by the session with id
// self. colored enables truecolor names.
func NewPrinter(out io.Writer, self uuid.UUID, colored bool) *Printer {
	return &Printer{out: out, self: self, colored: colored}
}

// Message prints m unless the local session sent it.
func (p *Printer) Message(m protocol.Message) {
	if m.Sender().ID() == p.self {
		return
	}
	p.println(p.Render(m))
}

// History prints every message in msgs, including the local session's own.
func (p *Printer) History(msgs []protocol.Message) {
	if len(msgs) == 0 {
		p.println("no messages yet")
		return
	}
	for _, m := range msgs {
		p.println(p.Render(m))
	}
}

// Status prints the connection indicator.
func (p *Printer) Status(state client.State, address string) {
	switch state {
	case client.StateConnected:
		p.println("connected to " + address)
	default:
		p.println("not connected")
	}
}

// Notice prints a local line.
func (p *Printer) Notice(s string) {
	p.println(s)
}

// Error prints err as a local line.
func (p *Printer) Error(err error) {
	p.println("error: " + err.Error())
}

// Render formats m as one line.
func (p *Printer) Render(m protocol.Message) string {
	name := p.name(m.Sender())
	switch m.Kind() {
	case protocol.KindJoin:
		return name + " has joined the chat."
	case protocol.KindLeave:
		return name + " has left the chat"
	case protocol.KindRename:
		return name + " changed their name to " + p.name(m.Sender().WithName(m.Content()))
	default:
		return name + ": " + m.Content()
	}
}

func (p *Printer) name(id protocol.Identity) string {
	if !p.colored {
		return id.String()
	}
	c := id.Color()
	return color.RGB(c.R, c.G, c.B).Sprint(id.String())
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}
