package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/lanvox/wire"
)

func TestUDPSocketSendReceive(t *testing.T) {
	var mu sync.Mutex
	var received []byte
	gotCh := make(chan struct{}, 1)

	server, err := NewUDPSocket("127.0.0.1:0", func(data []byte, addr net.Addr) {
		mu.Lock()
		received = append([]byte(nil), data...)
		mu.Unlock()
		select {
		case gotCh <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer server.Close()

	client, err := NewUDPSocket("127.0.0.1:0", func(data []byte, addr net.Addr) {})
	require.NoError(t, err)
	defer client.Close()

	err = client.SendTo([]byte("hello"), server.LocalAddr())
	require.NoError(t, err)

	select {
	case <-gotCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("hello"), received)
}

func TestControlListenerDispatchesFrames(t *testing.T) {
	gotCh := make(chan wire.ControlFrame, 1)

	listener, err := NewControlListener("127.0.0.1:0", func(conn net.Conn, frame wire.ControlFrame) {
		gotCh <- frame
	})
	require.NoError(t, err)
	defer listener.Close()

	conn, err := DialControl(listener.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	err = WriteFrame(conn, wire.MsgHello, []byte("hi"), 1, 0)
	require.NoError(t, err)

	select {
	case frame := <-gotCh:
		assert.Equal(t, wire.MsgHello, frame.Header.Type)
		assert.Equal(t, []byte("hi"), frame.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control frame")
	}
}
