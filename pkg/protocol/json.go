package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// JSONCodec is the default text encoding spoken by the relay clients:
//
//	{"user":{"username":"ann","uuid":"…","color":[r,g,b]},"message_type":"Text","content":"hi"}
//
// Unknown fields are ignored. A missing color is derived from the uuid.
type JSONCodec struct{}

type jsonUser struct {
	Username string     `json:"username"`
	UUID     *uuid.UUID `json:"uuid"`
	Color    *[3]uint8  `json:"color,omitempty"`
}

type jsonMessage struct {
	User        *jsonUser `json:"user"`
	MessageType *string   `json:"message_type"`
	Content     string    `json:"content"`
}

// Encode implements Codec.
func (JSONCodec) Encode(m Message) ([]byte, error) {
	if !m.kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind %d", ErrEncode, int(m.kind))
	}
	// encoding/json would replace invalid bytes with U+FFFD.
	if !utf8.ValidString(m.content) || !utf8.ValidString(m.sender.name) {
		return nil, fmt.Errorf("%w: string field is not valid UTF-8", ErrEncode)
	}
	data, err := json.Marshal(m.toJSON())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (Message, error) {
	var wire jsonMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return wire.toMessage()
}

// Binary implements Codec.
func (JSONCodec) Binary() bool { return false }

func (m Message) toJSON() jsonMessage {
	id := m.sender.id
	color := [3]uint8{m.sender.color.R, m.sender.color.G, m.sender.color.B}
	kind := m.kind.String()
	return jsonMessage{
		User: &jsonUser{
			Username: m.sender.name,
			UUID:     &id,
			Color:    &color,
		},
		MessageType: &kind,
		Content:     m.content,
	}
}

func (w jsonMessage) toMessage() (Message, error) {
	if w.User == nil {
		return Message{}, fmt.Errorf("%w: missing user", ErrMalformed)
	}
	if w.User.UUID == nil {
		return Message{}, fmt.Errorf("%w: missing user uuid", ErrMalformed)
	}
	if w.MessageType == nil {
		return Message{}, fmt.Errorf("%w: missing message_type", ErrMalformed)
	}
	kind, err := ParseKind(*w.MessageType)
	if err != nil {
		return Message{}, err
	}

	id := *w.User.UUID
	color := ColorFromID(id)
	if c := w.User.Color; c != nil {
		color = Color{R: c[0], G: c[1], B: c[2]}
	}
	return NewMessage(RestoreIdentity(w.User.Username, id, color), kind, w.Content), nil
}
