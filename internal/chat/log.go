package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/omochice/relay-chat/pkg/protocol"
)

// Log is the caller-owned, append-only record of received messages.
// Readers get snapshots, so rendering never holds the lock while the
// manager's handler appends.
type Log struct {
	mu       sync.RWMutex
	messages []protocol.Message
	limit    int
}

// NewLog creates a Log. A positive limit keeps only the most recent messages.
func NewLog(limit int) *Log {
	return &Log{limit: limit}
}

// Append adds msg to the end of the log.
func (l *Log) Append(msg protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	if l.limit > 0 && len(l.messages) > l.limit {
		l.messages = append(l.messages[:0:0], l.messages[len(l.messages)-l.limit:]...)
	}
}

// Len returns the number of messages held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Snapshot returns a copy of the messages in arrival order.
func (l *Log) Snapshot() []protocol.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]protocol.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// From returns the messages sent by the participant with the given id.
func (l *Log) From(id uuid.UUID) []protocol.Message {
	return lo.Filter(l.Snapshot(), func(m protocol.Message, _ int) bool {
		return m.Sender().ID() == id
	})
}
