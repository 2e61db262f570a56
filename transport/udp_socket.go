// Package transport provides the three socket endpoints named in the
// external interfaces: a UDP discovery socket, a UDP media socket, and a
// TCP control listener/dialer. All three offer non-blocking, deadline-based
// receive so their owning goroutine can observe a shutdown signal between
// blocking calls.
package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// ReadDeadline bounds every blocking receive so tasks can observe
// cancellation between reads.
const ReadDeadline = 100 * time.Millisecond

// DatagramHandler processes one received datagram.
type DatagramHandler func(data []byte, addr net.Addr)

// UDPSocket is a single UDP endpoint (used for both the discovery and
// media sockets) with a background receive loop dispatching to a handler.
type UDPSocket struct {
	conn    net.PacketConn
	handler DatagramHandler
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewUDPSocket binds listenAddr and starts the receive loop, dispatching
// every datagram to handler.
func NewUDPSocket(listenAddr string, handler DatagramHandler) (*UDPSocket, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &UDPSocket{
		conn:    conn,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.receiveLoop()

	return s, nil
}

// LocalAddr returns the bound local address.
func (s *UDPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// SendTo transmits one datagram. A single write call is atomic per §4:
// either the whole datagram is queued to the kernel or the call fails.
func (s *UDPSocket) SendTo(data []byte, addr net.Addr) error {
	_, err := s.conn.WriteTo(data, addr)
	return err
}

// Close stops the receive loop and releases the socket.
func (s *UDPSocket) Close() error {
	s.cancel()
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *UDPSocket) receiveLoop() {
	defer close(s.done)

	buffer := make([]byte, 2048)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(ReadDeadline))
		n, addr, err := s.conn.ReadFrom(buffer)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		s.handler(data, addr)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// NewDiscoverySocket is a thin naming wrapper over NewUDPSocket documenting
// intent at call sites (discovery vs. media socket carry the same shape).
func NewDiscoverySocket(listenAddr string, handler DatagramHandler) (*UDPSocket, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewDiscoverySocket",
		"addr":     listenAddr,
	}).Info("binding discovery socket")
	return NewUDPSocket(listenAddr, handler)
}

// NewMediaSocket is a thin naming wrapper over NewUDPSocket for the media
// endpoint.
func NewMediaSocket(listenAddr string, handler DatagramHandler) (*UDPSocket, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewMediaSocket",
		"addr":     listenAddr,
	}).Info("binding media socket")
	return NewUDPSocket(listenAddr, handler)
}
