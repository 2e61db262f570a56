package wire

import (
	"encoding/binary"
	"errors"
)

// MaxNameLen bounds display names carried in wire records.
const MaxNameLen = 32

// VersionLen is the fixed size of the version string in a discovery response.
const VersionLen = 16

// Capability flag bits carried in a discovery response.
const (
	CapOpus   uint32 = 1 << 0
	CapVAD    uint32 = 1 << 1
	CapJitter uint32 = 1 << 2
)

// ErrShortRecord is returned when a fixed-layout record cannot be decoded
// from the bytes available.
var ErrShortRecord = errors.New("wire: short record")

// putString writes s left-justified into a fixed-width, zero-padded field.
func putString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// PeerInfo is one fixed-size record inside a PEER_LIST payload.
type PeerInfo struct {
	ID          uint32
	Source      uint32
	Name        string
	IP          string
	UDPPort     uint16
	Talking     bool
	Muted       bool
	AudioActive bool
	PeerType    uint8
}

// PeerInfoSize is the on-wire size of one PeerInfo record.
// 4 (id) + 4 (source) + 32 (name) + 16 (ip) + 2 (udp port) + 4 (flags/type)
const PeerInfoSize = 4 + 4 + MaxNameLen + 16 + 2 + 4

// Encode serializes a PeerInfo record.
func (p PeerInfo) Encode() []byte {
	buf := make([]byte, PeerInfoSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.ID)
	binary.LittleEndian.PutUint32(buf[4:8], p.Source)
	putString(buf[8:8+MaxNameLen], p.Name)
	off := 8 + MaxNameLen
	putString(buf[off:off+16], p.IP)
	off += 16
	binary.LittleEndian.PutUint16(buf[off:off+2], p.UDPPort)
	off += 2
	buf[off] = boolByte(p.Talking)
	buf[off+1] = boolByte(p.Muted)
	buf[off+2] = boolByte(p.AudioActive)
	buf[off+3] = p.PeerType
	return buf
}

// DecodePeerInfo parses one PeerInfo record.
func DecodePeerInfo(buf []byte) (PeerInfo, error) {
	var p PeerInfo
	if len(buf) < PeerInfoSize {
		return p, ErrShortRecord
	}
	p.ID = binary.LittleEndian.Uint32(buf[0:4])
	p.Source = binary.LittleEndian.Uint32(buf[4:8])
	p.Name = getString(buf[8 : 8+MaxNameLen])
	off := 8 + MaxNameLen
	p.IP = getString(buf[off : off+16])
	off += 16
	p.UDPPort = binary.LittleEndian.Uint16(buf[off : off+2])
	off += 2
	p.Talking = buf[off] != 0
	p.Muted = buf[off+1] != 0
	p.AudioActive = buf[off+2] != 0
	p.PeerType = buf[off+3]
	return p, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// EncodePeerList serializes a one-byte count followed by that many
// PeerInfo records, per §6.
func EncodePeerList(peers []PeerInfo) []byte {
	out := make([]byte, 0, 1+len(peers)*PeerInfoSize)
	out = append(out, uint8(len(peers)))
	for _, p := range peers {
		out = append(out, p.Encode()...)
	}
	return out
}

// DecodePeerList parses a PEER_LIST payload.
func DecodePeerList(buf []byte) ([]PeerInfo, error) {
	if len(buf) < 1 {
		return nil, ErrShortRecord
	}
	count := int(buf[0])
	buf = buf[1:]
	peers := make([]PeerInfo, 0, count)
	for i := 0; i < count; i++ {
		if len(buf) < PeerInfoSize {
			return nil, ErrShortRecord
		}
		p, err := DecodePeerInfo(buf[:PeerInfoSize])
		if err != nil {
			return nil, err
		}
		peers = append(peers, p)
		buf = buf[PeerInfoSize:]
	}
	return peers, nil
}

// DiscoveryRequest is the payload of a MSG_DISCOVERY_REQUEST frame.
type DiscoveryRequest struct {
	ClientID    uint32
	ServiceMask uint32
	Name        string
}

// DiscoveryRequestSize is the on-wire size of a DiscoveryRequest.
const DiscoveryRequestSize = 4 + 4 + MaxNameLen

// Encode serializes a DiscoveryRequest.
func (r DiscoveryRequest) Encode() []byte {
	buf := make([]byte, DiscoveryRequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.ClientID)
	binary.LittleEndian.PutUint32(buf[4:8], r.ServiceMask)
	putString(buf[8:8+MaxNameLen], r.Name)
	return buf
}

// DecodeDiscoveryRequest parses a DiscoveryRequest.
func DecodeDiscoveryRequest(buf []byte) (DiscoveryRequest, error) {
	var r DiscoveryRequest
	if len(buf) < DiscoveryRequestSize {
		return r, ErrShortRecord
	}
	r.ClientID = binary.LittleEndian.Uint32(buf[0:4])
	r.ServiceMask = binary.LittleEndian.Uint32(buf[4:8])
	r.Name = getString(buf[8 : 8+MaxNameLen])
	return r, nil
}

// DiscoveryResponse is the payload of a MSG_DISCOVERY_RESPONSE frame.
type DiscoveryResponse struct {
	ServerID    uint32
	TCPPort     uint16
	MediaPort   uint16
	Capability  uint32
	CurrentPeer uint16
	MaxPeer     uint16
	Name        string
	Version     string
}

// DiscoveryResponseSize is the on-wire size of a DiscoveryResponse.
const DiscoveryResponseSize = 4 + 2 + 2 + 4 + 2 + 2 + MaxNameLen + VersionLen

// Encode serializes a DiscoveryResponse.
func (r DiscoveryResponse) Encode() []byte {
	buf := make([]byte, DiscoveryResponseSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.ServerID)
	binary.LittleEndian.PutUint16(buf[4:6], r.TCPPort)
	binary.LittleEndian.PutUint16(buf[6:8], r.MediaPort)
	binary.LittleEndian.PutUint32(buf[8:12], r.Capability)
	binary.LittleEndian.PutUint16(buf[12:14], r.CurrentPeer)
	binary.LittleEndian.PutUint16(buf[14:16], r.MaxPeer)
	off := 16
	putString(buf[off:off+MaxNameLen], r.Name)
	off += MaxNameLen
	putString(buf[off:off+VersionLen], r.Version)
	return buf
}

// DecodeDiscoveryResponse parses a DiscoveryResponse.
func DecodeDiscoveryResponse(buf []byte) (DiscoveryResponse, error) {
	var r DiscoveryResponse
	if len(buf) < DiscoveryResponseSize {
		return r, ErrShortRecord
	}
	r.ServerID = binary.LittleEndian.Uint32(buf[0:4])
	r.TCPPort = binary.LittleEndian.Uint16(buf[4:6])
	r.MediaPort = binary.LittleEndian.Uint16(buf[6:8])
	r.Capability = binary.LittleEndian.Uint32(buf[8:12])
	r.CurrentPeer = binary.LittleEndian.Uint16(buf[12:14])
	r.MaxPeer = binary.LittleEndian.Uint16(buf[14:16])
	off := 16
	r.Name = getString(buf[off : off+MaxNameLen])
	off += MaxNameLen
	r.Version = getString(buf[off : off+VersionLen])
	return r, nil
}

// HelloRequest is the payload of a MSG_HELLO frame.
type HelloRequest struct {
	ProposedID uint32
	Name       string
	Capability uint32
}

// HelloRequestSize is the on-wire size of a HelloRequest.
const HelloRequestSize = 4 + MaxNameLen + 4

// Encode serializes a HelloRequest.
func (r HelloRequest) Encode() []byte {
	buf := make([]byte, HelloRequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.ProposedID)
	putString(buf[4:4+MaxNameLen], r.Name)
	binary.LittleEndian.PutUint32(buf[4+MaxNameLen:8+MaxNameLen], r.Capability)
	return buf
}

// DecodeHelloRequest parses a HelloRequest.
func DecodeHelloRequest(buf []byte) (HelloRequest, error) {
	var r HelloRequest
	if len(buf) < HelloRequestSize {
		return r, ErrShortRecord
	}
	r.ProposedID = binary.LittleEndian.Uint32(buf[0:4])
	r.Name = getString(buf[4 : 4+MaxNameLen])
	r.Capability = binary.LittleEndian.Uint32(buf[4+MaxNameLen : 8+MaxNameLen])
	return r, nil
}

// HelloAck is the payload of a MSG_HELLO_ACK frame.
type HelloAck struct {
	Result       uint32
	AssignedID   uint32
	MediaUDPPort uint16
	ServerTimeMs uint32
}

// HelloAckSize is the on-wire size of a HelloAck.
const HelloAckSize = 4 + 4 + 2 + 4

// Encode serializes a HelloAck.
func (a HelloAck) Encode() []byte {
	buf := make([]byte, HelloAckSize)
	binary.LittleEndian.PutUint32(buf[0:4], a.Result)
	binary.LittleEndian.PutUint32(buf[4:8], a.AssignedID)
	binary.LittleEndian.PutUint16(buf[8:10], a.MediaUDPPort)
	binary.LittleEndian.PutUint32(buf[10:14], a.ServerTimeMs)
	return buf
}

// DecodeHelloAck parses a HelloAck.
func DecodeHelloAck(buf []byte) (HelloAck, error) {
	var a HelloAck
	if len(buf) < HelloAckSize {
		return a, ErrShortRecord
	}
	a.Result = binary.LittleEndian.Uint32(buf[0:4])
	a.AssignedID = binary.LittleEndian.Uint32(buf[4:8])
	a.MediaUDPPort = binary.LittleEndian.Uint16(buf[8:10])
	a.ServerTimeMs = binary.LittleEndian.Uint32(buf[10:14])
	return a, nil
}

// JoinRequest is the payload of a MSG_JOIN frame.
type JoinRequest struct {
	LocalUDPPort uint16
}

// JoinRequestSize is the on-wire size of a JoinRequest.
const JoinRequestSize = 2

// Encode serializes a JoinRequest.
func (r JoinRequest) Encode() []byte {
	buf := make([]byte, JoinRequestSize)
	binary.LittleEndian.PutUint16(buf[0:2], r.LocalUDPPort)
	return buf
}

// DecodeJoinRequest parses a JoinRequest.
func DecodeJoinRequest(buf []byte) (JoinRequest, error) {
	var r JoinRequest
	if len(buf) < JoinRequestSize {
		return r, ErrShortRecord
	}
	r.LocalUDPPort = binary.LittleEndian.Uint16(buf[0:2])
	return r, nil
}

// JoinAck is the payload of the server's reply to a MSG_JOIN frame, which
// is sent under the same MsgJoin type code.
type JoinAck struct {
	Result           uint32
	SourceIdentifier uint32
	BaseTimestamp    uint32
}

// JoinAckSize is the on-wire size of a JoinAck.
const JoinAckSize = 4 + 4 + 4

// Encode serializes a JoinAck.
func (a JoinAck) Encode() []byte {
	buf := make([]byte, JoinAckSize)
	binary.LittleEndian.PutUint32(buf[0:4], a.Result)
	binary.LittleEndian.PutUint32(buf[4:8], a.SourceIdentifier)
	binary.LittleEndian.PutUint32(buf[8:12], a.BaseTimestamp)
	return buf
}

// DecodeJoinAck parses a JoinAck.
func DecodeJoinAck(buf []byte) (JoinAck, error) {
	var a JoinAck
	if len(buf) < JoinAckSize {
		return a, ErrShortRecord
	}
	a.Result = binary.LittleEndian.Uint32(buf[0:4])
	a.SourceIdentifier = binary.LittleEndian.Uint32(buf[4:8])
	a.BaseTimestamp = binary.LittleEndian.Uint32(buf[8:12])
	return a, nil
}

// HeartbeatPacket is the payload of a MSG_HEARTBEAT frame (both directions).
type HeartbeatPacket struct {
	TimestampMs uint32
}

// HeartbeatPacketSize is the on-wire size of a HeartbeatPacket.
const HeartbeatPacketSize = 4

// Encode serializes a HeartbeatPacket.
func (h HeartbeatPacket) Encode() []byte {
	buf := make([]byte, HeartbeatPacketSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.TimestampMs)
	return buf
}

// DecodeHeartbeatPacket parses a HeartbeatPacket.
func DecodeHeartbeatPacket(buf []byte) (HeartbeatPacket, error) {
	var h HeartbeatPacket
	if len(buf) < HeartbeatPacketSize {
		return h, ErrShortRecord
	}
	h.TimestampMs = binary.LittleEndian.Uint32(buf[0:4])
	return h, nil
}

// PeerNotify is the payload of PEER_JOIN/PEER_LEAVE/PEER_STATE frames: one
// PeerInfo record describing the subject.
type PeerNotify struct {
	Peer PeerInfo
}

// Encode serializes a PeerNotify.
func (n PeerNotify) Encode() []byte {
	return n.Peer.Encode()
}

// DecodePeerNotify parses a PeerNotify.
func DecodePeerNotify(buf []byte) (PeerNotify, error) {
	p, err := DecodePeerInfo(buf)
	if err != nil {
		return PeerNotify{}, err
	}
	return PeerNotify{Peer: p}, nil
}
