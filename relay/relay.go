// Package relay implements the server's media fan-out path: a single
// receive loop that decodes one datagram's header, looks its source up in
// the membership table, and forwards the datagram unchanged to every other
// in-session member with a known media address. No buffering, mixing, or
// decoding happens on this path.
package relay

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/codec"
	"github.com/opd-ai/lanvox/session"
	"github.com/opd-ai/lanvox/transport"
	"github.com/opd-ai/lanvox/wire"
)

// AudioMonitor receives a decoded PCM frame for an optional server-side
// monitor; decode for this path is orthogonal to fan-out and only runs if a
// monitor is registered.
type AudioMonitor func(source uint32, pcm []int16)

// Relay forwards media datagrams between in-session members of a table.
// HandleDatagram is driven by a single receive loop, so the per-source
// decoder table below needs no lock of its own.
type Relay struct {
	socket  *transport.UDPSocket
	table   *session.Table
	monitor AudioMonitor

	decoderFactory codec.DecoderFactory
	decoders       map[uint32]codec.Decoder
}

// New returns a relay bound to an already-listening media socket and a
// server's membership table. Register the returned relay's HandleDatagram
// as the socket's handler (or pass one at construction via
// transport.NewMediaSocket and rebuild the socket with it).
func New(socket *transport.UDPSocket, table *session.Table) *Relay {
	return &Relay{
		socket:         socket,
		table:          table,
		decoderFactory: codec.OpusDecoderFactory{},
		decoders:       make(map[uint32]codec.Decoder),
	}
}

// SetMonitor installs an optional audio-received callback. Passing nil
// disables monitoring and the decode work it requires.
func (r *Relay) SetMonitor(m AudioMonitor) {
	r.monitor = m
}

// HandleDatagram is the media socket's receive callback: decode, look up
// source, update talking flag, and fan out to every other in-session
// member with a known media address.
func (r *Relay) HandleDatagram(data []byte, _ net.Addr) {
	if len(data) > wire.MaxMediaDatagram {
		logrus.WithFields(logrus.Fields{
			"function": "Relay.HandleDatagram",
			"size":     len(data),
		}).Debug("dropping oversized media datagram")
		return
	}

	header, payload, err := wire.DecodeMediaDatagram(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Relay.HandleDatagram",
			"error":    err.Error(),
		}).Debug("dropping malformed media datagram")
		return
	}

	member, ok := r.table.GetBySource(header.Source)
	if !ok {
		return
	}
	member.SetTalking(header.VAD())

	if r.monitor != nil {
		if pcm, ok := r.decodeForMonitor(header.Source, payload); ok {
			r.monitor(header.Source, pcm)
		}
	}

	r.table.ForEachExcept(header.Source, func(m *session.Member) {
		if m.State != session.StateInSession || m.MediaAddr == nil {
			return
		}
		if err := r.socket.SendTo(data, m.MediaAddr); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Relay.HandleDatagram",
				"to":       m.ID,
				"error":    err.Error(),
			}).Debug("media send failed")
		}
	})
}

// decodeForMonitor decodes payload through a decoder keyed by source,
// creating one on first sight of that source. The fan-out path itself
// never decodes; this only runs when a monitor is registered.
func (r *Relay) decodeForMonitor(source uint32, payload []byte) ([]int16, bool) {
	dec, ok := r.decoders[source]
	if !ok {
		newDec, err := r.decoderFactory.NewDecoder()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Relay.decodeForMonitor",
				"source":   source,
				"error":    err.Error(),
			}).Debug("failed to create monitor decoder")
			return nil, false
		}
		dec = newDec
		r.decoders[source] = dec
	}

	pcm, err := dec.Decode(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Relay.decodeForMonitor",
			"source":   source,
			"error":    err.Error(),
		}).Debug("monitor decode failed")
		return nil, false
	}
	return pcm, true
}
