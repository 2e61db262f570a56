package session

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/transport"
	"github.com/opd-ai/lanvox/wire"
)

// ClientState is the client's position in its connection state machine.
type ClientState int

const (
	ClientDisconnected ClientState = iota
	ClientConnecting
	ClientConnected
	ClientJoining
	ClientInSession
)

// ErrUnexpectedFrame is returned when a handshake step receives a frame of
// the wrong type.
var ErrUnexpectedFrame = errors.New("session: unexpected frame during handshake")

// PeerRecord mirrors one entry of a received PEER_LIST/PEER_JOIN payload.
type PeerRecord = wire.PeerInfo

// Client is one client-side session connection: control socket, assigned
// identity, known peer list, and outgoing sequence counters. A failed
// handshake or an explicit Disconnect returns it to ClientDisconnected.
// Nothing reads the control connection after the handshake, so a lost
// connection or a later receive error does not change State. Callers are
// responsible for discarding jitter buffers/mixer state on disconnect
// (session does not own the mixer).
type Client struct {
	Name string

	State ClientState

	conn    net.Conn
	acc     *wire.Accumulator
	pending []wire.ControlFrame

	ID     uint32
	Source uint32

	// ServerMediaPort is the server's media UDP port, learned from
	// HELLO_ACK, so a caller knows where to send outgoing RTP datagrams.
	ServerMediaPort uint16

	Peers map[uint32]PeerRecord

	localUDPPort uint16
	outSeq       uint32
}

// NewClient returns a disconnected client identity.
func NewClient(name string) *Client {
	return &Client{
		Name:  name,
		State: ClientDisconnected,
		acc:   wire.NewAccumulator(),
		Peers: make(map[uint32]PeerRecord),
	}
}

// Connect performs the full HELLO -> HELLO_ACK -> JOIN -> JOIN_ACK+PEER_LIST
// handshake against a server's control address, and leaves the connection
// open for subsequent heartbeat/audio-control traffic on success.
func (c *Client) Connect(controlAddr string, localUDPPort uint16, timeout time.Duration) error {
	c.State = ClientConnecting
	conn, err := net.DialTimeout("tcp", controlAddr, timeout)
	if err != nil {
		c.State = ClientDisconnected
		return fmt.Errorf("session: dial control: %w", err)
	}
	c.conn = conn
	c.localUDPPort = localUDPPort

	if err := c.sendHello(); err != nil {
		c.Disconnect()
		return err
	}
	if err := c.awaitHelloAck(timeout); err != nil {
		c.Disconnect()
		return err
	}
	c.State = ClientConnected

	if err := c.sendJoin(); err != nil {
		c.Disconnect()
		return err
	}
	if err := c.awaitJoinAck(timeout); err != nil {
		c.Disconnect()
		return err
	}
	c.State = ClientInSession

	return nil
}

// Conn returns the underlying control connection for use by a background
// heartbeat sender or control-frame reader.
func (c *Client) Conn() net.Conn { return c.conn }

func (c *Client) sendHello() error {
	req := wire.HelloRequest{ProposedID: 0, Name: c.Name, Capability: wire.CapOpus | wire.CapVAD | wire.CapJitter}
	c.outSeq++
	return transport.WriteFrame(c.conn, wire.MsgHello, req.Encode(), c.outSeq, uint32(time.Now().UnixMilli()))
}

func (c *Client) sendJoin() error {
	req := wire.JoinRequest{LocalUDPPort: c.localUDPPort}
	c.outSeq++
	return transport.WriteFrame(c.conn, wire.MsgJoin, req.Encode(), c.outSeq, uint32(time.Now().UnixMilli()))
}

// sendLeave sends an explicit LEAVE frame, so the server's unified
// remove-and-notify path runs while the connection is still open.
// Disconnect does not send it; closing the connection reaches the same
// server path through its connection-closed callback.
func (c *Client) sendLeave() error {
	c.outSeq++
	return transport.WriteFrame(c.conn, wire.MsgLeave, nil, c.outSeq, uint32(time.Now().UnixMilli()))
}

// SendHeartbeat sends one HEARTBEAT frame per call. The client runs no
// heartbeat task of its own: neither this package nor lanvox.Client calls
// it on a timer.
func (c *Client) SendHeartbeat() error {
	hb := wire.HeartbeatPacket{TimestampMs: uint32(time.Now().UnixMilli())}
	c.outSeq++
	return transport.WriteFrame(c.conn, wire.MsgHeartbeat, hb.Encode(), c.outSeq, hb.TimestampMs)
}

func (c *Client) awaitHelloAck(timeout time.Duration) error {
	frame, err := c.readOneFrame(timeout)
	if err != nil {
		return err
	}
	if frame.Header.Type != wire.MsgHelloAck {
		return ErrUnexpectedFrame
	}
	ack, err := wire.DecodeHelloAck(frame.Payload)
	if err != nil {
		return err
	}
	c.ID = ack.AssignedID
	c.Source = ack.AssignedID
	c.ServerMediaPort = ack.MediaUDPPort
	return nil
}

func (c *Client) awaitJoinAck(timeout time.Duration) error {
	frame, err := c.readOneFrame(timeout)
	if err != nil {
		return err
	}
	if frame.Header.Type != wire.MsgJoin {
		return ErrUnexpectedFrame
	}
	if _, err := wire.DecodeJoinAck(frame.Payload); err != nil {
		return err
	}

	frame, err = c.readOneFrame(timeout)
	if err != nil {
		return err
	}
	if frame.Header.Type != wire.MsgPeerList {
		return ErrUnexpectedFrame
	}
	peers, err := wire.DecodePeerList(frame.Payload)
	if err != nil {
		return err
	}
	for _, p := range peers {
		c.Peers[p.ID] = p
	}
	return nil
}

// readOneFrame blocks for up to timeout for the next complete control
// frame, feeding the accumulator as bytes arrive. A single Read can make
// more than one frame available at once (e.g. JOIN_ACK and PEER_LIST sent
// back to back); any frames beyond the one returned are buffered on the
// client and drained by subsequent calls before a new Read is attempted.
func (c *Client) readOneFrame(timeout time.Duration) (wire.ControlFrame, error) {
	if len(c.pending) > 0 {
		frame := c.pending[0]
		c.pending = c.pending[1:]
		return frame, nil
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)
	for {
		if time.Now().After(deadline) {
			return wire.ControlFrame{}, fmt.Errorf("session: handshake timed out")
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := c.conn.Read(buf)
		if err != nil {
			if isDeadlineExceeded(err) {
				continue
			}
			return wire.ControlFrame{}, fmt.Errorf("session: control read: %w", err)
		}
		frames, err := c.acc.Feed(buf[:n])
		if err != nil {
			return wire.ControlFrame{}, err
		}
		if len(frames) > 0 {
			c.pending = frames[1:]
			return frames[0], nil
		}
	}
}

func isDeadlineExceeded(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HandlePeerNotify applies a PEER_JOIN/PEER_LEAVE/PEER_STATE frame to the
// local peer list.
func (c *Client) HandlePeerNotify(msgType uint16, payload []byte) error {
	notify, err := wire.DecodePeerNotify(payload)
	if err != nil {
		return err
	}
	switch msgType {
	case wire.MsgPeerJoin, wire.MsgPeerState:
		c.Peers[notify.Peer.ID] = notify.Peer
	case wire.MsgPeerLeave:
		delete(c.Peers, notify.Peer.ID)
	}
	return nil
}

// Disconnect closes the control connection and returns the client to
// ClientDisconnected. Callers must separately discard any owned jitter
// buffers/mixer state.
func (c *Client) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.State = ClientDisconnected
	c.Peers = make(map[uint32]PeerRecord)
	logrus.WithFields(logrus.Fields{
		"function": "Client.Disconnect",
	}).Info("client disconnected")
}
