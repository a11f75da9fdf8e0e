package connection

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-zoox/logger"
	"github.com/gorilla/websocket"
)

const closeFrameTimeout = 500 * time.Millisecond

// WSConn exposes a websocket as a byte stream. Each Write becomes one binary
// message; Read drains messages in order, across message boundaries.
type WSConn struct {
	ID     string
	Client *websocket.Conn

	reader io.Reader

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func New(id string, client *websocket.Conn) *WSConn {
	return &WSConn{
		ID:     id,
		Client: client,
	}
}

func (wc *WSConn) Read(b []byte) (n int, err error) {
	for {
		if wc.reader == nil {
			messageType, reader, err := wc.Client.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					return 0, io.EOF
				}
				return 0, err
			}

			if messageType != websocket.BinaryMessage {
				logger.Debugf("[ws][read][connection: %s] skip non-binary message(%d)", wc.ID, messageType)
				continue
			}

			wc.reader = reader
		}

		n, err = wc.reader.Read(b)
		if err == io.EOF {
			wc.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}

		return n, err
	}
}

func (wc *WSConn) Write(b []byte) (n int, err error) {
	wc.wmu.Lock()
	defer wc.wmu.Unlock()

	if err := wc.Client.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}

	return len(b), nil
}

func (wc *WSConn) Close() error {
	wc.closeOnce.Do(func() {
		// WriteControl may run alongside a Write; it gives up at the deadline
		// when a stalled Write holds the frame writer.
		wc.Client.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeFrameTimeout),
		)

		wc.closeErr = wc.Client.Close()
	})

	return wc.closeErr
}

func (wc *WSConn) LocalAddr() net.Addr {
	return wc.Client.LocalAddr()
}

func (wc *WSConn) RemoteAddr() net.Addr {
	return wc.Client.RemoteAddr()
}

func (wc *WSConn) SetDeadline(t time.Time) error {
	if err := wc.Client.SetReadDeadline(t); err != nil {
		return err
	}

	return wc.Client.SetWriteDeadline(t)
}

func (wc *WSConn) SetReadDeadline(t time.Time) error {
	return wc.Client.SetReadDeadline(t)
}

func (wc *WSConn) SetWriteDeadline(t time.Time) error {
	return wc.Client.SetWriteDeadline(t)
}
