// Package terminal turns typed lines into chat messages and renders
// received messages for a terminal.
package terminal

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/omochice/relay-chat/pkg/protocol"
)

var (
	// ErrUnknownCommand is returned for a slash command that does not exist.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command's argument is missing or invalid.
	ErrUsage = errors.New("bad command usage")
)

// Effect is what handling one input line asks the caller to do.
type Effect struct {
	// Send holds messages to hand to the connection manager, in order.
	Send []protocol.Message
	// Notice is a local line for the user only.
	Notice  string
	History bool
	Quit    bool
}

// Session holds the local identity and applies input lines to it.
// It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	self     protocol.Identity
	colorSet bool
}

// NewSession starts a session for self. colorSet records whether the color
// was explicitly chosen rather than derived from the id.
func NewSession(self protocol.Identity, colorSet bool) *Session {
	return &Session{self: self, colorSet: colorSet}
}

// Self returns the current local identity.
func (s *Session) Self() protocol.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// ColorSet reports whether the user picked the color.
func (s *Session) ColorSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorSet
}

// Handle interprets one input line.
//
//	text           send a Text message
//	/nick NAME     announce a Rename, then take NAME
//	/color #rrggbb change the display color
//	/history       print the received messages
//	/quit          leave
//
// A line starting with "//" sends the rest, starting with "/", as text.
func (s *Session) Handle(line string) (Effect, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Effect{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		text := strings.TrimPrefix(line, "/")
		return Effect{Send: []protocol.Message{protocol.Text(s.self, text)}}, nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "nick":
		if arg == "" {
			return Effect{}, fmt.Errorf("%w: /nick NAME", ErrUsage)
		}
		if arg == s.self.Name() {
			return Effect{Notice: "you are already " + arg}, nil
		}
		rename := protocol.Rename(s.self, arg)
		s.self = s.self.WithName(arg)
		return Effect{Send: []protocol.Message{rename}, Notice: "you are now " + arg}, nil
	case "color":
		c, err := protocol.ParseColor(arg)
		if err != nil {
			return Effect{}, fmt.Errorf("%w: /color #rrggbb: %w", ErrUsage, err)
		}
		s.self = s.self.WithColor(c)
		s.colorSet = true
		return Effect{Notice: "color set to " + c.Hex()}, nil
	case "history":
		return Effect{History: true}, nil
	case "quit", "exit":
		return Effect{Quit: true}, nil
	default:
		return Effect{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
}
