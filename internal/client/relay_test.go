package client_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/relay-chat/internal/client"
	"github.com/omochice/relay-chat/internal/relaytest"
	"github.com/omochice/relay-chat/pkg/protocol"
)

func TestRelay_ConnectSurvivesRefusedAttempts(t *testing.T) {
	relay := relaytest.New(t, relaytest.RefuseFirst(2))

	m, err := client.Connect(context.Background(), relay.URL, nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 3, relay.Attempts())
	assert.True(t, m.Connected())
	relay.WaitPeers(t, 1, waitFor)
}

func TestRelay_CorruptFrameIsDropped(t *testing.T) {
	ann := protocol.NewIdentity("Ann")
	codec := protocol.JSONCodec{}
	text, err := codec.Encode(protocol.Text(ann, "hello"))
	require.NoError(t, err)
	rename, err := codec.Encode(protocol.Rename(ann, "Annie"))
	require.NoError(t, err)

	relay := relaytest.New(t, relaytest.OnConnect(func(p *relaytest.Peer) {
		p.WriteText(text)
		p.WriteText(text[:len(text)/2])
		p.WriteText(rename)
	}))

	handler, received := collector()
	m, err := client.Connect(context.Background(), relay.URL, handler)
	require.NoError(t, err)
	defer m.Close()

	first := receive(t, received)
	assert.Equal(t, protocol.KindText, first.Kind())
	assert.Equal(t, "hello", first.Content())
	assert.Equal(t, ann, first.Sender())

	second := receive(t, received)
	assert.Equal(t, protocol.KindRename, second.Kind())
	assert.Equal(t, "Annie", second.Content())

	assertNoMessage(t, received)
	assert.True(t, m.Connected())
}

func TestRelay_SendOrder(t *testing.T) {
	relay := relaytest.New(t, relaytest.Silent())
	m, err := client.Connect(context.Background(), relay.URL, nil)
	require.NoError(t, err)
	defer m.Close()

	ann := protocol.NewIdentity("Ann")
	const n = 30
	for i := 0; i < n; i++ {
		require.NoError(t, m.Send(protocol.Text(ann, fmt.Sprint(i))))
	}

	for i := 0; i < n; i++ {
		f := relay.NextFrame(t, waitFor)
		assert.Equal(t, ws.OpText, f.Op)
		got, err := protocol.JSONCodec{}.Decode(f.Data)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), got.Content())
	}
}

func TestRelay_TwoParticipants(t *testing.T) {
	relay := relaytest.New(t)

	annHandler, annInbox := collector()
	annMgr, err := client.Connect(context.Background(), relay.URL, annHandler)
	require.NoError(t, err)
	defer annMgr.Close()

	bobHandler, bobInbox := collector()
	bobMgr, err := client.Connect(context.Background(), relay.URL, bobHandler,
		client.WithCodec(protocol.JSONCodec{}), client.WithWriteTimeout(time.Second))
	require.NoError(t, err)
	defer bobMgr.Close()

	relay.WaitPeers(t, 2, waitFor)

	bob := protocol.NewIdentity("Bob")
	require.NoError(t, bobMgr.Send(protocol.Join(bob)))
	require.NoError(t, bobMgr.Send(protocol.Text(bob, "hi Ann")))

	join := receive(t, annInbox)
	assert.Equal(t, protocol.KindJoin, join.Kind())
	assert.True(t, join.Sender().Same(bob))

	text := receive(t, annInbox)
	assert.Equal(t, protocol.Text(bob, "hi Ann"), text)

	// The relay echoes to the sender too.
	echo := receive(t, bobInbox)
	assert.True(t, echo.Sender().Same(bob))
}

func TestRelay_ClosedByRelay(t *testing.T) {
	relay := relaytest.New(t, relaytest.OnConnect(func(p *relaytest.Peer) {
		p.Close()
	}))

	m, err := client.Connect(context.Background(), relay.URL, nil)
	require.NoError(t, err)

	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("manager did not notice the relay closing")
	}
	assert.ErrorIs(t, m.Err(), client.ErrConnectionLost)
	assert.False(t, m.Connected())
	assert.NoError(t, m.Close())
}

func TestRelay_CloseDisconnects(t *testing.T) {
	relay := relaytest.New(t)
	m, err := client.Connect(context.Background(), relay.URL, nil)
	require.NoError(t, err)
	relay.WaitPeers(t, 1, waitFor)

	require.NoError(t, m.Close())

	relay.WaitPeers(t, 0, waitFor)
	assert.NoError(t, m.Err())
}
