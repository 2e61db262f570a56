package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/lanvox/wire"
)

// FrameHandler processes one decoded control frame from a connection.
type FrameHandler func(conn net.Conn, frame wire.ControlFrame)

// ControlListener accepts TCP control connections and feeds each one
// through its own wire.Accumulator, dispatching complete frames to a
// handler.
type ControlListener struct {
	listener net.Listener
	handler  FrameHandler
	onClose  func(conn net.Conn)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewControlListener binds listenAddr and starts accepting connections.
func NewControlListener(listenAddr string, handler FrameHandler) (*ControlListener, error) {
	return NewControlListenerWithClose(listenAddr, handler, nil)
}

// NewControlListenerWithClose is NewControlListener plus a callback invoked
// once a connection's read loop exits (EOF, error, or shutdown), so a
// caller such as session.Server can unify all disconnect paths.
func NewControlListenerWithClose(listenAddr string, handler FrameHandler, onClose func(conn net.Conn)) (*ControlListener, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &ControlListener{
		listener: listener,
		handler:  handler,
		onClose:  onClose,
		ctx:      ctx,
		cancel:   cancel,
	}

	l.wg.Add(1)
	go l.acceptLoop()

	return l, nil
}

// LocalAddr returns the bound local address.
func (l *ControlListener) LocalAddr() net.Addr {
	return l.listener.Addr()
}

// Close stops accepting and closes the listener; already-accepted
// connections are the caller's responsibility (owned by session.Table).
func (l *ControlListener) Close() error {
	l.cancel()
	err := l.listener.Close()
	l.wg.Wait()
	return err
}

func (l *ControlListener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
				continue
			}
		}
		l.wg.Add(1)
		go l.readLoop(conn)
	}
}

func (l *ControlListener) readLoop(conn net.Conn) {
	defer l.wg.Done()
	ReadControlFrames(l.ctx, conn, l.handler)
	if l.onClose != nil {
		l.onClose(conn)
	}
}

// ReadControlFrames blocks reading length-prefixed control frames from conn
// until it errors, EOF, or ctx is cancelled, dispatching each complete
// frame to handler. Used by both the server's per-connection reader and the
// client's control receiver task.
func ReadControlFrames(ctx context.Context, conn net.Conn, handler FrameHandler) {
	acc := wire.NewAccumulator()
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(ReadDeadline))
		n, err := conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return
		}

		frames, err := acc.Feed(buf[:n])
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ReadControlFrames",
				"error":    err.Error(),
			}).Warn("control accumulator resync on bad magic")
		}
		for _, f := range frames {
			handler(conn, f)
		}
	}
}

// DialControl opens a control connection to a server's control address.
func DialControl(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

// WriteFrame sends one encoded control frame over conn.
func WriteFrame(conn net.Conn, msgType uint16, payload []byte, sequence, timestampMs uint32) error {
	data, err := wire.EncodeControlFrame(msgType, payload, sequence, timestampMs)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
