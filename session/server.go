package session

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/transport"
	"github.com/opd-ai/lanvox/wire"
)

// Server drives the server-side per-peer state machine: HELLO/JOIN/LEAVE/
// HEARTBEAT/AUDIO_MUTE handling, heartbeat-timeout sweeping, and join/leave
// broadcast to the connections collected from the table.
type Server struct {
	Table *Table

	id         uint32
	name       string
	sampleRate uint32
	mediaPort  uint16

	seq uint32

	connIndex connIndex

	listener  *transport.ControlListener
	stopSweep chan struct{}
	sweepWg   sync.WaitGroup
}

// NewServer returns a server identity with an empty membership table
// bounded to maxPeers.
func NewServer(name string, maxPeers int, sampleRate uint32, mediaPort uint16) *Server {
	return &Server{
		Table:      NewTable(maxPeers),
		id:         1,
		name:       name,
		sampleRate: sampleRate,
		mediaPort:  mediaPort,
		connIndex:  newConnIndex(),
	}
}

func nowMs() uint32 {
	return uint32(time.Now().UnixMilli())
}

// Start binds a control listener on listenAddr, wires its frame and close
// callbacks to this server, and begins a background heartbeat-timeout
// sweep every sweepInterval. Call Stop to tear both down.
func (s *Server) Start(listenAddr string, heartbeatTimeout, sweepInterval time.Duration) (net.Addr, error) {
	listener, err := transport.NewControlListenerWithClose(listenAddr, s.HandleFrame, s.HandleConnectionClosed)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	s.stopSweep = make(chan struct{})

	s.sweepWg.Add(1)
	go s.sweepLoop(heartbeatTimeout, sweepInterval)

	return listener.LocalAddr(), nil
}

// Stop closes the control listener and stops the heartbeat sweep.
func (s *Server) Stop() error {
	if s.stopSweep != nil {
		close(s.stopSweep)
		s.sweepWg.Wait()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) sweepLoop(timeout, interval time.Duration) {
	defer s.sweepWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.SweepHeartbeats(timeout)
		}
	}
}

// HandleFrame dispatches one received control frame, creating a pending
// member on a connection's first frame.
func (s *Server) HandleFrame(conn net.Conn, frame wire.ControlFrame) {
	m := s.connIndex.get(conn)
	if m == nil {
		m = &Member{
			Conn:          conn,
			ControlAddr:   conn.RemoteAddr(),
			State:         StateAccepted,
			LastHeartbeat: time.Now(),
		}
		if err := s.Table.Add(m); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Server.HandleFrame",
				"error":    err.Error(),
			}).Warn("rejecting connection: membership table full")
			conn.Close()
			return
		}
		s.connIndex.put(conn, m)
	}

	switch frame.Header.Type {
	case wire.MsgHello:
		s.handleHello(m, frame)
	case wire.MsgJoin:
		s.handleJoin(m, frame)
	case wire.MsgLeave:
		s.handleLeave(m)
	case wire.MsgHeartbeat:
		s.handleHeartbeat(m, frame)
	case wire.MsgAudioStart:
		m.AudioActive = true
	case wire.MsgAudioStop:
		m.AudioActive = false
	case wire.MsgAudioMute:
		m.Muted = true
	case wire.MsgAudioUnmute:
		m.Muted = false
	}
}

// HandleConnectionClosed unifies every disconnect path (control EOF,
// explicit LEAVE already handled above, or an abrupt drop here) into one
// Table.Remove + PEER_LEAVE broadcast, so resource release always happens
// exactly once regardless of which path triggered it.
func (s *Server) HandleConnectionClosed(conn net.Conn) {
	m := s.connIndex.pop(conn)
	if m == nil {
		return
	}
	s.removeAndNotify(m)
}

func (s *Server) handleHello(m *Member, frame wire.ControlFrame) {
	req, err := wire.DecodeHelloRequest(frame.Payload)
	if err != nil {
		return
	}
	m.Name = req.Name
	m.State = StateIdentified

	ack := wire.HelloAck{
		Result:       0,
		AssignedID:   m.ID,
		MediaUDPPort: s.mediaPort,
		ServerTimeMs: nowMs(),
	}
	s.send(m.Conn, wire.MsgHelloAck, ack.Encode())
}

func (s *Server) handleJoin(m *Member, frame wire.ControlFrame) {
	req, err := wire.DecodeJoinRequest(frame.Payload)
	if err != nil {
		return
	}

	ip := controlIP(m.ControlAddr)
	m.MediaAddr = &net.UDPAddr{IP: ip, Port: int(req.LocalUDPPort)}
	m.AudioActive = true
	m.State = StateInSession

	ack := wire.JoinAck{
		Result:           0,
		SourceIdentifier: m.Source,
		BaseTimestamp:    nowMs() * (s.sampleRate / 1000),
	}
	// The wire protocol reuses MsgJoin for the server's acknowledgement
	// rather than minting a distinct JOIN_ACK code (the two structs carry
	// different payloads and are told apart by direction, not type).
	s.send(m.Conn, wire.MsgJoin, ack.Encode())

	peers := s.Table.Snapshot(m.ID)
	peerInfos := make([]wire.PeerInfo, len(peers))
	for i, p := range peers {
		peerInfos[i] = toPeerInfo(p)
	}
	s.send(m.Conn, wire.MsgPeerList, wire.EncodePeerList(peerInfos))

	joinerInfo := toPeerInfo(m.Snapshot())
	s.broadcastExcept(m.ID, wire.MsgPeerJoin, wire.PeerNotify{Peer: joinerInfo}.Encode())
}

func (s *Server) handleLeave(m *Member) {
	s.connIndex.pop(m.Conn)
	s.removeAndNotify(m)
}

func (s *Server) handleHeartbeat(m *Member, frame wire.ControlFrame) {
	m.LastHeartbeat = time.Now()
	hb := wire.HeartbeatPacket{TimestampMs: nowMs()}
	s.send(m.Conn, wire.MsgHeartbeat, hb.Encode())
}

// SweepHeartbeats removes every member whose last heartbeat exceeds
// timeout and broadcasts PEER_LEAVE for each. Start runs it from its own
// ticker goroutine every sweepInterval; control-frame arrivals do not
// trigger a sweep.
func (s *Server) SweepHeartbeats(timeout time.Duration) {
	now := time.Now()
	s.Table.SweepHeartbeats(
		func(m *Member) bool { return now.Sub(m.LastHeartbeat) > timeout },
		func(m *Member) {
			s.connIndex.pop(m.Conn)
			s.notifyLeave(m)
		},
	)
}

func (s *Server) removeAndNotify(m *Member) {
	if _, ok := s.Table.Remove(m.ID); !ok {
		return
	}
	s.notifyLeave(m)
}

func (s *Server) notifyLeave(m *Member) {
	info := toPeerInfo(m.Snapshot())
	s.broadcastExcept(m.ID, wire.MsgPeerLeave, wire.PeerNotify{Peer: info}.Encode())
}

// broadcastExcept snapshots the target connections under the table's read
// lock, then writes to each after releasing it, so a stalled control socket
// never blocks other readers of the table.
func (s *Server) broadcastExcept(excludeID uint32, msgType uint16, payload []byte) {
	var conns []net.Conn
	s.Table.ForEachExcept(excludeID, func(m *Member) {
		conns = append(conns, m.Conn)
	})
	for _, conn := range conns {
		s.send(conn, msgType, payload)
	}
}

func (s *Server) send(conn net.Conn, msgType uint16, payload []byte) {
	s.seq++
	if err := transport.WriteFrame(conn, msgType, payload, s.seq, nowMs()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.send",
			"msg_type": msgType,
			"error":    err.Error(),
			"remote":   conn.RemoteAddr().String(),
		}).Debug("control send failed")
	}
}

func controlIP(addr net.Addr) net.IP {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return net.IPv4zero
	}
	return net.ParseIP(host)
}

func toPeerInfo(s Snapshot) wire.PeerInfo {
	return wire.PeerInfo{
		ID:          s.ID,
		Source:      s.Source,
		Name:        s.Name,
		IP:          s.IP,
		UDPPort:     s.UDPPort,
		Talking:     s.Talking,
		Muted:       s.Muted,
		AudioActive: s.AudioActive,
	}
}
