package ws

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/connection"
	"github.com/go-zoox/potato/network/tcp"
	"github.com/go-zoox/zoox"
	"github.com/go-zoox/zoox/components/application/websocket"
	"github.com/go-zoox/zoox/defaults"
)

type ListenConfig struct {
	Addr string
	Path string

	TLS  bool
	Cert string
	Key  string
}

// Listener serves websocket upgrades on Path and hands each connected
// client to Accept.
type Listener struct {
	raw    net.Listener
	server *http.Server
	conns  chan net.Conn

	done      chan struct{}
	closeOnce sync.Once
}

func Listen(cfg *ListenConfig) (*Listener, error) {
	raw, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	if cfg.TLS {
		config, err := tcp.LoadTLSConfig(cfg.Cert, cfg.Key)
		if err != nil {
			raw.Close()
			return nil, err
		}
		raw = tls.NewListener(raw, config)
	}

	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}

	l := &Listener{
		raw:   raw,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}

	core := defaults.Default()
	core.WebSocket(path, l.handle)

	l.server = &http.Server{
		Handler:           core,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(raw); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[network:ws] serve error: %s", err)
		}
	}()

	logger.Infof("listen websocket server at: %s%s", cfg.Addr, path)
	return l, nil
}

func (l *Listener) handle(ctx *zoox.Context, client *websocket.Client) {
	// created on connect, once the upgrade is done
	var conn *connection.StreamConn

	client.OnError = func(err error) {
		if e, ok := err.(*websocket.CloseError); ok {
			logger.Debugf("[network:ws][client: %s][code: %d] %v", client.ID, e.Code, e)
		} else {
			logger.Warnf("[network:ws][client: %s] %v", client.ID, err)
		}
	}

	client.OnConnect = func() {
		logger.Debugf("[network:ws][connect] client: %s", client.ID)

		conn = connection.NewStream(client.ID, client, client.Conn)
		go func(conn *connection.StreamConn) {
			select {
			case l.conns <- conn:
			case <-l.done:
				conn.Close()
			}
		}(conn)
	}

	client.OnDisconnect = func() {
		logger.Debugf("[network:ws][disconnect] client: %s", client.ID)
		if conn != nil {
			conn.CloseRead()
		}
	}

	client.OnBinaryMessage = func(raw []byte) {
		if conn != nil {
			conn.Push(raw)
		}
	}
}

func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = l.server.Shutdown(ctx)
	})
	return err
}

func (l *Listener) Addr() net.Addr {
	return l.raw.Addr()
}
