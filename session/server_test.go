package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer("test-server", 4, 48000, 6000)
	addr, err := srv.Start("127.0.0.1:0", 200*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Stop() })
	return srv, addr.String()
}

func TestClientHandshakeReachesInSessionAndReceivesPeerList(t *testing.T) {
	srv, addr := startTestServer(t)

	first := NewClient("alice")
	require.NoError(t, first.Connect(addr, 7001, time.Second))
	defer first.Disconnect()
	assert.Equal(t, ClientInSession, first.State)
	assert.NotZero(t, first.ID)
	assert.Empty(t, first.Peers)

	second := NewClient("bob")
	require.NoError(t, second.Connect(addr, 7002, time.Second))
	defer second.Disconnect()
	assert.Equal(t, ClientInSession, second.State)
	assert.Len(t, second.Peers, 1)

	assert.Eventually(t, func() bool { return srv.Table.Len() == 2 }, time.Second, 10*time.Millisecond)
}

func TestTableFullRejectsConnection(t *testing.T) {
	srv := NewServer("test-server", 1, 48000, 6000)
	addr, err := srv.Start("127.0.0.1:0", time.Second, time.Second)
	require.NoError(t, err)
	defer srv.Stop()

	first := NewClient("alice")
	require.NoError(t, first.Connect(addr.String(), 7001, time.Second))
	defer first.Disconnect()

	second := NewClient("bob")
	err = second.Connect(addr.String(), 7002, 300*time.Millisecond)
	assert.Error(t, err)
}

func TestExplicitLeaveRemovesMemberFromTable(t *testing.T) {
	srv, addr := startTestServer(t)

	c := NewClient("alice")
	require.NoError(t, c.Connect(addr, 7001, time.Second))

	require.NoError(t, c.sendLeave())
	c.Disconnect()

	assert.Eventually(t, func() bool { return srv.Table.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHeartbeatTimeoutRemovesMember(t *testing.T) {
	srv := NewServer("test-server", 4, 48000, 6000)
	addr, err := srv.Start("127.0.0.1:0", 50*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	defer srv.Stop()

	stale := NewClient("stale")
	require.NoError(t, stale.Connect(addr.String(), 7001, time.Second))
	defer stale.Disconnect()

	// Keep the connection open but send no heartbeats; the server should
	// age this member out via SweepHeartbeats rather than on EOF.

	assert.Eventually(t, func() bool { return srv.Table.Len() == 0 }, time.Second, 10*time.Millisecond)
}
