// Package protocol defines the chat identities, messages and their wire encodings.
package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is wrapped by every decode failure.
	ErrMalformed = errors.New("malformed message")
	// ErrEncode is wrapped by every encode failure.
	ErrEncode = errors.New("failed to encode message")
)

// Kind is the event tag of a Message.
type Kind int

// The zero Kind is invalid so that a missing tag never decodes as a real event.
const (
	KindJoin Kind = iota + 1
	KindLeave
	KindRename
	KindText
)

var kindNames = map[Kind]string{
	KindJoin:   "Join",
	KindLeave:  "Leave",
	KindRename: "Rename",
	KindText:   "Text",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind returns the kind with the given wire name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrMalformed, name)
}

// Message is one chat event.
//
// Content depends on Kind: empty for Join and Leave, the new name for Rename
// (Sender still carries the old name) and free text for Text.
type Message struct {
	sender  Identity
	kind    Kind
	content string
}

// NewMessage builds a message. Content is not checked against kind.
func NewMessage(sender Identity, kind Kind, content string) Message {
	return Message{sender: sender, kind: kind, content: content}
}

// Join returns a Join message for sender.
func Join(sender Identity) Message { return NewMessage(sender, KindJoin, "") }

// Leave returns a Leave message for sender.
func Leave(sender Identity) Message { return NewMessage(sender, KindLeave, "") }

// Rename returns a Rename message announcing that sender is now called newName.
func Rename(sender Identity, newName string) Message {
	return NewMessage(sender, KindRename, newName)
}

// Text returns a Text message.
func Text(sender Identity, text string) Message { return NewMessage(sender, KindText, text) }

// Sender returns the identity that sent the message.
func (m Message) Sender() Identity { return m.sender }

// Kind returns the event tag.
func (m Message) Kind() Kind { return m.kind }

// Content returns the kind-specific payload.
func (m Message) Content() string { return m.content }

// Codec converts messages to and from frame payloads.
type Codec interface {
	// Encode serializes m. Errors wrap ErrEncode.
	Encode(m Message) ([]byte, error)
	// Decode parses one frame payload. Errors wrap ErrMalformed.
	Decode(data []byte) (Message, error)
	// Binary reports whether payloads travel in binary frames rather than text frames.
	Binary() bool
}

// CodecByName returns the codec registered under name ("json" or "protobuf").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "protobuf", "proto":
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
