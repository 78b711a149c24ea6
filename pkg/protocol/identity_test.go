package protocol_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/relay-chat/pkg/protocol"
)

func TestNewIdentity_IsUnnamed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"named", "Ann", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := protocol.NewIdentity(tt.in)
			assert.Equal(t, tt.want, id.IsUnnamed())
			assert.Equal(t, tt.in, id.Name())
		})
	}
}

func TestNewIdentity_ColorFromID(t *testing.T) {
	id := protocol.NewIdentity("Ann")
	raw := id.ID()

	assert.Equal(t, protocol.Color{R: raw[0], G: raw[1], B: raw[2]}, id.Color())
	assert.NotEqual(t, uuid.Nil, raw)
}

func TestNewIdentity_UniqueIDs(t *testing.T) {
	a := protocol.NewIdentity("Ann")
	b := protocol.NewIdentity("Ann")

	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.Same(b))
}

func TestIdentity_WithName(t *testing.T) {
	orig := protocol.NewIdentity("Ann")
	renamed := orig.WithName("Bob")

	assert.Equal(t, "Ann", orig.Name(), "receiver must not change")
	assert.Equal(t, "Bob", renamed.Name())
	assert.Equal(t, orig.ID(), renamed.ID())
	assert.Equal(t, orig.Color(), renamed.Color())
	assert.NotEqual(t, orig, renamed)
	assert.True(t, orig.Same(renamed))
}

func TestIdentity_WithColor(t *testing.T) {
	orig := protocol.NewIdentity("Ann")
	want := protocol.Color{R: 1, G: 2, B: 3}
	if orig.Color() == want {
		want = protocol.Color{R: 4, G: 5, B: 6}
	}
	recolored := orig.WithColor(want)

	assert.Equal(t, want, recolored.Color())
	assert.NotEqual(t, want, orig.Color(), "receiver must not change")
	assert.Equal(t, orig.ID(), recolored.ID())
	assert.Equal(t, orig.Name(), recolored.Name())
}

func TestIdentity_String(t *testing.T) {
	assert.Equal(t, "unnamed", protocol.NewIdentity("").String())
	assert.Equal(t, "Ann", protocol.NewIdentity("Ann").String())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    protocol.Color
		wantErr bool
	}{
		{"with hash", "#ff8000", protocol.Color{R: 0xff, G: 0x80, B: 0x00}, false},
		{"without hash", "0a0b0c", protocol.Color{R: 0x0a, G: 0x0b, B: 0x0c}, false},
		{"upper case", "#ABCDEF", protocol.Color{R: 0xab, G: 0xcd, B: 0xef}, false},
		{"too short", "#fff", protocol.Color{}, true},
		{"not hex", "#gggggg", protocol.Color{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.ParseColor(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColor_Hex(t *testing.T) {
	c := protocol.Color{R: 0xff, G: 0x08, B: 0x00}
	assert.Equal(t, "#ff0800", c.Hex())

	back, err := protocol.ParseColor(c.Hex())
	require.NoError(t, err)
	assert.Equal(t, c, back)
}
