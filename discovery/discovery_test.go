package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/lanvox/wire"
)

func TestResponderRepliesToRequest(t *testing.T) {
	resp, err := NewResponder("127.0.0.1:0", 42, 5000, 6000, wire.CapOpus, "srv", "1.0", 16, func() uint16 { return 3 })
	require.NoError(t, err)
	defer resp.Stop()

	client, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err)
	defer client.Close()

	req := wire.DiscoveryRequest{ClientID: 1, Name: "client"}
	frame, err := wire.EncodeControlFrame(wire.MsgDiscoveryRequest, req.Encode(), 0, 0)
	require.NoError(t, err)

	_, err = client.WriteTo(frame, resp.conn.LocalAddr())
	require.NoError(t, err)

	buf := make([]byte, 4096)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := client.ReadFrom(buf)
	require.NoError(t, err)

	acc := wire.NewAccumulator()
	frames, err := acc.Feed(buf[:n])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, wire.MsgDiscoveryResponse, frames[0].Header.Type)

	decoded, err := wire.DecodeDiscoveryResponse(frames[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), decoded.ServerID)
	assert.Equal(t, uint16(3), decoded.CurrentPeer)
	assert.Equal(t, "srv", decoded.Name)
}

func TestRequesterAccumulatesServerTable(t *testing.T) {
	resp, err := NewResponder("127.0.0.1:0", 7, 5000, 6000, wire.CapOpus, "lan-server", "1.0", 16, func() uint16 { return 1 })
	require.NoError(t, err)
	defer resp.Stop()

	req, err := NewRequester(1, "roaming-client", 30*time.Millisecond)
	require.NoError(t, err)
	defer req.Stop()

	// The requester broadcasts to the LAN broadcast address, which loopback
	// tests can't reach; exercise the receive/accumulate half directly by
	// unicasting a request to the responder instead of relying on the
	// broadcast loop, then feeding the responder's reply into the requester.
	reqPayload := wire.DiscoveryRequest{ClientID: req.clientID, Name: req.name}
	frame, err := wire.EncodeControlFrame(wire.MsgDiscoveryRequest, reqPayload.Encode(), 0, 0)
	require.NoError(t, err)
	_, err = req.conn.WriteTo(frame, resp.conn.LocalAddr())
	require.NoError(t, err)

	req.wg.Add(1)
	go req.receiveLoop()

	assert.Eventually(t, func() bool {
		return len(req.Servers()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	servers := req.Servers()
	require.Len(t, servers, 1)
	assert.Equal(t, uint32(7), servers[0].Response.ServerID)
	assert.Equal(t, "lan-server", servers[0].Response.Name)
}
