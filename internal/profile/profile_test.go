package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/relay-chat/internal/profile"
	"github.com/omochice/relay-chat/pkg/protocol"
)

func TestStore_LoadMissing(t *testing.T) {
	store := profile.NewStore(filepath.Join(t.TempDir(), "profile.yaml"))

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")
	store := profile.NewStore(path)

	want := profile.Profile{Name: "Ann", Color: "#ff8000"}
	require.NoError(t, store.Save(want))

	got, ok, err := store.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, store.Save(profile.Profile{Name: "Annie"}))
	got, _, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, profile.Profile{Name: "Annie"}, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "color")
}

func TestStore_Disabled(t *testing.T) {
	store := profile.NewStore("")

	require.NoError(t, store.Save(profile.Profile{Name: "Ann"}))
	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o600))

	_, _, err := profile.NewStore(path).Load()
	assert.Error(t, err)
}

func TestProfile_Apply(t *testing.T) {
	base := protocol.NewIdentity("Anonymouse")

	id, err := profile.Profile{Name: "Ann"}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, "Ann", id.Name())
	assert.Equal(t, base.ID(), id.ID())
	assert.Equal(t, base.Color(), id.Color())

	id, err = profile.Profile{Name: "Ann", Color: "#102030"}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, protocol.Color{R: 0x10, G: 0x20, B: 0x30}, id.Color())

	_, err = profile.Profile{Name: "Ann", Color: "teal"}.Apply(base)
	assert.Error(t, err)
}
