package connection

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/go-zoox/logger"
)

// WSClient writes one binary websocket message.
type WSClient interface {
	WriteBinary(bytes []byte) error
}

// Socket is the transport under a websocket client.
type Socket interface {
	io.Closer
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// StreamConn is the server side of a websocket whose read loop is owned by
// the web framework: messages arrive through Push and are drained by Read.
type StreamConn struct {
	ID     string
	Client WSClient

	socket Socket

	Stream  chan []byte
	pending []byte
	rmu     sync.Mutex

	readDeadline *deadline

	eof       chan struct{}
	eofOnce   sync.Once
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewStream(id string, client WSClient, socket Socket) *StreamConn {
	return &StreamConn{
		ID:           id,
		Client:       client,
		socket:       socket,
		Stream:       make(chan []byte),
		readDeadline: newDeadline(),
		eof:          make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Push hands one received message to Read. It blocks until Read takes it,
// which holds back the framework's read loop.
func (sc *StreamConn) Push(b []byte) {
	if len(b) == 0 {
		return
	}

	data := make([]byte, len(b))
	copy(data, b)

	select {
	case sc.Stream <- data:
	case <-sc.done:
		logger.Debugf("[ws][push][connection: %s] dropped %d bytes after close", sc.ID, len(b))
	}
}

// CloseRead marks the end of the incoming stream, Read returns io.EOF once
// pushed messages are drained.
func (sc *StreamConn) CloseRead() {
	sc.eofOnce.Do(func() {
		close(sc.eof)
	})
}

func (sc *StreamConn) Read(b []byte) (n int, err error) {
	sc.rmu.Lock()
	defer sc.rmu.Unlock()

	if len(sc.pending) == 0 {
		select {
		case data := <-sc.Stream:
			sc.pending = data
		case <-sc.eof:
			return 0, io.EOF
		case <-sc.done:
			return 0, net.ErrClosed
		case <-sc.readDeadline.wait():
			return 0, os.ErrDeadlineExceeded
		}
	}

	n = copy(b, sc.pending)
	sc.pending = sc.pending[n:]
	return n, nil
}

func (sc *StreamConn) Write(b []byte) (n int, err error) {
	select {
	case <-sc.done:
		return 0, net.ErrClosed
	default:
	}

	if err := sc.Client.WriteBinary(b); err != nil {
		return 0, err
	}

	return len(b), nil
}

// Close closes the socket directly, which also unblocks a Write stalled on
// a peer that stopped reading.
func (sc *StreamConn) Close() error {
	sc.closeOnce.Do(func() {
		close(sc.done)
		sc.closeErr = sc.socket.Close()
	})

	return sc.closeErr
}

func (sc *StreamConn) LocalAddr() net.Addr {
	return sc.socket.LocalAddr()
}

func (sc *StreamConn) RemoteAddr() net.Addr {
	return sc.socket.RemoteAddr()
}

func (sc *StreamConn) SetDeadline(t time.Time) error {
	return sc.SetReadDeadline(t)
}

func (sc *StreamConn) SetReadDeadline(t time.Time) error {
	sc.readDeadline.set(t)
	return nil
}

// SetWriteDeadline is a no-op: writes go through the framework client.
func (sc *StreamConn) SetWriteDeadline(t time.Time) error {
	return nil
}

// deadline closes its channel when the time set passes.
type deadline struct {
	sync.Mutex
	timer  *time.Timer
	cancel chan struct{}
}

func newDeadline() *deadline {
	return &deadline{cancel: make(chan struct{})}
}

func (d *deadline) set(t time.Time) {
	d.Lock()
	defer d.Unlock()

	if d.timer != nil && !d.timer.Stop() {
		// the timer fired, wait has been released
		<-d.cancel
	}
	d.timer = nil

	closed := isClosed(d.cancel)
	if t.IsZero() {
		if closed {
			d.cancel = make(chan struct{})
		}
		return
	}

	if dur := time.Until(t); dur > 0 {
		if closed {
			d.cancel = make(chan struct{})
		}
		cancel := d.cancel
		d.timer = time.AfterFunc(dur, func() {
			close(cancel)
		})
		return
	}

	if !closed {
		close(d.cancel)
	}
}

func (d *deadline) wait() chan struct{} {
	d.Lock()
	defer d.Unlock()

	return d.cancel
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
