package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Color is an RGB display color.
type Color struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses a #rrggbb (or rrggbb) string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColorFromID derives a color from the first three bytes of id.
// Two sessions holding the same id always render with the same color.
func ColorFromID(id uuid.UUID) Color {
	return Color{R: id[0], G: id[1], B: id[2]}
}

// Identity identifies a chat participant.
// Identity is a value: the With* methods return modified copies.
type Identity struct {
	name  string
	id    uuid.UUID
	color Color
}

// NewIdentity creates an identity with a fresh random id and a color derived from it.
func NewIdentity(name string) Identity {
	id := uuid.New()
	return Identity{name: name, id: id, color: ColorFromID(id)}
}

// RestoreIdentity rebuilds an identity from its parts, e.g. after decoding.
func RestoreIdentity(name string, id uuid.UUID, color Color) Identity {
	return Identity{name: name, id: id, color: color}
}

// Name returns the display name. It may be empty.
func (i Identity) Name() string { return i.name }

// ID returns the session-stable id.
func (i Identity) ID() uuid.UUID { return i.id }

// Color returns the display color.
func (i Identity) Color() Color { return i.color }

// IsUnnamed reports whether the name is empty.
func (i Identity) IsUnnamed() bool {
	return i.name == ""
}

// WithName returns a copy of i with the name replaced.
func (i Identity) WithName(name string) Identity {
	i.name = name
	return i
}

// WithColor returns a copy of i with the color replaced.
func (i Identity) WithColor(c Color) Identity {
	i.color = c
	return i
}

// Same reports whether i and other are the same participant.
func (i Identity) Same(other Identity) bool {
	return i.id == other.id
}

// String returns the display name, or "unnamed".
func (i Identity) String() string {
	if i.IsUnnamed() {
		return "unnamed"
	}
	return i.name
}
