// Package discovery implements the LAN broadcast request/response exchange:
// a server-side responder answering one DISCOVERY_REQUEST with a unicast
// DISCOVERY_RESPONSE, and a client-side requester broadcasting on an
// interval and accumulating replies into a bounded, server-id-keyed table.
// This subsystem carries no session state and is independent of control.
package discovery

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/wire"
)

// BroadcastAddr is the IPv4 limited broadcast address used for requests.
const BroadcastAddr = "255.255.255.255"

// Responder answers discovery requests with a fixed server description.
type Responder struct {
	conn net.PacketConn

	serverID    uint32
	tcpPort     uint16
	mediaPort   uint16
	capability  uint32
	name        string
	version     string
	maxPeer     uint16
	currentPeer func() uint16

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewResponder binds the discovery port and starts answering requests.
// currentPeer is polled at reply time so peer counts stay live without the
// responder holding a reference to the membership table.
func NewResponder(listenAddr string, serverID uint32, tcpPort, mediaPort uint16, capability uint32, name, version string, maxPeer uint16, currentPeer func() uint16) (*Responder, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	r := &Responder{
		conn:        conn,
		serverID:    serverID,
		tcpPort:     tcpPort,
		mediaPort:   mediaPort,
		capability:  capability,
		name:        name,
		version:     version,
		maxPeer:     maxPeer,
		currentPeer: currentPeer,
		stopChan:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.receiveLoop()

	logrus.WithFields(logrus.Fields{
		"function": "NewResponder",
		"addr":     listenAddr,
	}).Info("discovery responder started")

	return r, nil
}

// Stop closes the responder's socket and waits for its loop to exit.
func (r *Responder) Stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
	r.conn.Close()
	r.wg.Wait()
}

func (r *Responder) receiveLoop() {
	defer r.wg.Done()
	buf := make([]byte, wire.MaxControlFrame)

	for {
		select {
		case <-r.stopChan:
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		r.handleRequest(buf[:n], addr)
	}
}

func (r *Responder) handleRequest(data []byte, addr net.Addr) {
	acc := wire.NewAccumulator()
	frames, err := acc.Feed(data)
	if err != nil || len(frames) == 0 {
		return
	}
	frame := frames[0]
	if frame.Header.Type != wire.MsgDiscoveryRequest {
		return
	}
	if _, err := wire.DecodeDiscoveryRequest(frame.Payload); err != nil {
		return
	}

	resp := wire.DiscoveryResponse{
		ServerID:    r.serverID,
		TCPPort:     r.tcpPort,
		MediaPort:   r.mediaPort,
		Capability:  r.capability,
		CurrentPeer: r.currentPeer(),
		MaxPeer:     r.maxPeer,
		Name:        r.name,
		Version:     r.version,
	}
	out, err := wire.EncodeControlFrame(wire.MsgDiscoveryResponse, resp.Encode(), 0, uint32(time.Now().UnixMilli()))
	if err != nil {
		return
	}
	if _, err := r.conn.WriteTo(out, addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Responder.handleRequest",
			"error":    err.Error(),
		}).Debug("discovery reply failed")
	}
}

// ServerEntry is one row of a requester's accumulated server table.
type ServerEntry struct {
	Response wire.DiscoveryResponse
	Addr     net.Addr
	LastSeen time.Time
}

// Requester broadcasts discovery requests on an interval and accumulates
// replies into a table keyed by server id, overwriting LastSeen in place
// and evicting nothing on its own.
type Requester struct {
	conn     net.PacketConn
	clientID uint32
	name     string
	interval time.Duration

	mu    sync.RWMutex
	table map[uint32]ServerEntry

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewRequester opens a UDP socket for a requester that broadcasts every
// interval. It starts no loops; Start begins broadcasting and accumulating
// replies.
func NewRequester(clientID uint32, name string, interval time.Duration) (*Requester, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, err
	}

	req := &Requester{
		conn:     conn,
		clientID: clientID,
		name:     name,
		interval: interval,
		table:    make(map[uint32]ServerEntry),
		stopChan: make(chan struct{}),
	}
	return req, nil
}

// Start begins the broadcast and receive loops against broadcastPort.
func (r *Requester) Start(broadcastPort uint16) {
	r.wg.Add(2)
	go r.broadcastLoop(broadcastPort)
	go r.receiveLoop()
}

// Stop halts both loops and releases the socket.
func (r *Requester) Stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
	r.conn.Close()
	r.wg.Wait()
}

// Servers returns a value-copy snapshot of the current server table.
func (r *Requester) Servers() []ServerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServerEntry, 0, len(r.table))
	for _, e := range r.table {
		out = append(out, e)
	}
	return out
}

func (r *Requester) broadcastLoop(broadcastPort uint16) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.broadcast(broadcastPort)
	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.broadcast(broadcastPort)
		}
	}
}

func (r *Requester) broadcast(broadcastPort uint16) {
	req := wire.DiscoveryRequest{ClientID: r.clientID, Name: r.name}
	frame, err := wire.EncodeControlFrame(wire.MsgDiscoveryRequest, req.Encode(), 0, uint32(time.Now().UnixMilli()))
	if err != nil {
		return
	}
	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: int(broadcastPort)}
	if _, err := r.conn.WriteTo(frame, addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Requester.broadcast",
			"error":    err.Error(),
		}).Debug("discovery broadcast failed")
	}
}

func (r *Requester) receiveLoop() {
	defer r.wg.Done()
	buf := make([]byte, wire.MaxControlFrame)

	for {
		select {
		case <-r.stopChan:
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		r.handleResponse(buf[:n], addr)
	}
}

func (r *Requester) handleResponse(data []byte, addr net.Addr) {
	acc := wire.NewAccumulator()
	frames, err := acc.Feed(data)
	if err != nil || len(frames) == 0 {
		return
	}
	frame := frames[0]
	if frame.Header.Type != wire.MsgDiscoveryResponse {
		return
	}
	resp, err := wire.DecodeDiscoveryResponse(frame.Payload)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.table[resp.ServerID] = ServerEntry{Response: resp, Addr: addr, LastSeen: time.Now()}
	r.mu.Unlock()
}
