package protocol

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// ProtoCodec encodes messages in the protobuf wire format:
//
//	message Identity { string name = 1; bytes id = 2; bytes color = 3; }
//	message Message  { Identity sender = 1; Kind kind = 2; string content = 3; }
//
// Kind numbers match the Kind constants. Unknown fields are skipped.
type ProtoCodec struct{}

const (
	fieldSender  protowire.Number = 1
	fieldKind    protowire.Number = 2
	fieldContent protowire.Number = 3

	fieldName  protowire.Number = 1
	fieldID    protowire.Number = 2
	fieldColor protowire.Number = 3
)

// Encode implements Codec.
func (ProtoCodec) Encode(m Message) ([]byte, error) {
	if !m.kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind %d", ErrEncode, int(m.kind))
	}
	if !utf8.ValidString(m.content) || !utf8.ValidString(m.sender.name) {
		return nil, fmt.Errorf("%w: string field is not valid UTF-8", ErrEncode)
	}

	var sender []byte
	sender = protowire.AppendTag(sender, fieldName, protowire.BytesType)
	sender = protowire.AppendString(sender, m.sender.name)
	sender = protowire.AppendTag(sender, fieldID, protowire.BytesType)
	sender = protowire.AppendBytes(sender, m.sender.id[:])
	sender = protowire.AppendTag(sender, fieldColor, protowire.BytesType)
	sender = protowire.AppendBytes(sender, []byte{m.sender.color.R, m.sender.color.G, m.sender.color.B})

	var b []byte
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendBytes(b, sender)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.kind))
	b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
	b = protowire.AppendString(b, m.content)
	return b, nil
}

// Decode implements Codec.
func (ProtoCodec) Decode(data []byte) (Message, error) {
	var (
		sender    Identity
		hasSender bool
		kind      Kind
		content   string
	)
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldSender && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			id, err := decodeIdentity(v)
			if err != nil {
				return 0, err
			}
			sender, hasSender = id, true
			return n, nil
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}
			kind = Kind(v)
			if uint64(kind) != v || !kind.Valid() {
				return 0, fmt.Errorf("%w: unknown kind %d", ErrMalformed, v)
			}
			return n, nil
		case num == fieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, nil
			}
			if !utf8.ValidString(v) {
				return 0, fmt.Errorf("%w: content is not valid UTF-8", ErrMalformed)
			}
			content = v
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return Message{}, err
	}
	if !hasSender {
		return Message{}, fmt.Errorf("%w: missing sender", ErrMalformed)
	}
	if kind == 0 {
		return Message{}, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	return NewMessage(sender, kind, content), nil
}

// Binary implements Codec.
func (ProtoCodec) Binary() bool { return true }

func decodeIdentity(data []byte) (Identity, error) {
	var (
		name     string
		id       uuid.UUID
		hasID    bool
		color    Color
		hasColor bool
	)
	err := consumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || num < fieldName || num > fieldColor {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case fieldName:
			if !utf8.Valid(v) {
				return 0, fmt.Errorf("%w: name is not valid UTF-8", ErrMalformed)
			}
			name = string(v)
		case fieldID:
			parsed, err := uuid.FromBytes(v)
			if err != nil {
				return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			id, hasID = parsed, true
		case fieldColor:
			if len(v) != 3 {
				return 0, fmt.Errorf("%w: color has %d bytes", ErrMalformed, len(v))
			}
			color, hasColor = Color{R: v[0], G: v[1], B: v[2]}, true
		}
		return n, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !hasID {
		return Identity{}, fmt.Errorf("%w: missing sender id", ErrMalformed)
	}
	if !hasColor {
		color = ColorFromID(id)
	}
	return RestoreIdentity(name, id, color), nil
}

// consumeFields walks the top-level fields of b. fn consumes one field value
// and returns the number of bytes used, or a negative protowire error code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
