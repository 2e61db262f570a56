// Package session implements the server-side per-peer state machine and
// membership table, and the client-side connection state machine, per the
// dual-transport session protocol: accepted -> identified -> in-session ->
// left on the server, disconnected -> connecting -> connected -> joining ->
// in-session on the client.
package session

import (
	"net"
	"sync"
	"time"
)

// MemberState is a server-side peer's position in the session state
// machine.
type MemberState int

const (
	StateAccepted MemberState = iota
	StateIdentified
	StateInSession
	StateLeft
)

// Member is one server-side session participant. Identity invariant:
// ID == Source always. audio_active implies MediaAddr is set.
type Member struct {
	mu sync.Mutex

	ID     uint32
	Source uint32
	Name   string
	State  MemberState

	Conn        net.Conn
	ControlAddr net.Addr
	MediaAddr   *net.UDPAddr

	LastHeartbeat time.Time

	AudioActive bool
	Talking     bool
	Muted       bool

	// RecvAccum is not used by the server: partially-received control
	// bytes are buffered by the wire.Accumulator inside
	// transport.ReadControlFrames. Not guarded by mu.
	RecvAccum []byte
}

// SetTalking updates the talking flag under the member's own lock, used by
// the fan-out path which does not hold the table lock per-datagram.
func (m *Member) SetTalking(talking bool) {
	m.mu.Lock()
	m.Talking = talking
	m.mu.Unlock()
}

// IsTalking reads the talking flag under the member's own lock.
func (m *Member) IsTalking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Talking
}

// Snapshot returns a value copy of the fields exposed in a PEER_LIST/
// PEER_JOIN/PEER_LEAVE/PEER_STATE record, taken under the member's lock so
// concurrent flag updates cannot tear the read.
type Snapshot struct {
	ID          uint32
	Source      uint32
	Name        string
	IP          string
	UDPPort     uint16
	Talking     bool
	Muted       bool
	AudioActive bool
}

// Snapshot builds a value-copy view of the member for wire encoding.
func (m *Member) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		ID:          m.ID,
		Source:      m.Source,
		Name:        m.Name,
		Talking:     m.Talking,
		Muted:       m.Muted,
		AudioActive: m.AudioActive,
	}
	if m.MediaAddr != nil {
		s.IP = m.MediaAddr.IP.String()
		s.UDPPort = uint16(m.MediaAddr.Port)
	}
	return s
}
