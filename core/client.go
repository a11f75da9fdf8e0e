package core

import (
	"context"
	"io"
	"net"
	"strconv"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/manager"
	"github.com/go-zoox/potato/network"
	"github.com/go-zoox/potato/obfs"
	"github.com/go-zoox/potato/protocol"
	"github.com/go-zoox/potato/tunnel"
	"github.com/pkg/errors"
	"github.com/things-go/go-socks5"
	"github.com/things-go/go-socks5/statute"
)

type Client interface {
	// Run listens on the local SOCKS5 address and serves until it fails.
	Run() error
	// Serve accepts SOCKS5 clients on l.
	Serve(l net.Listener) error
	// Sessions returns the number of live tunnelled connections.
	Sessions() int
}

type client struct {
	cfg    *ClientConfig
	tunnel *tunnel.Tunnel
	socks  *socks5.Server

	sessions *manager.Manager[*tunnel.Session]
}

func NewClient(cfg *ClientConfig) (Client, error) {
	cfg.ApplyDefaults()

	cipher, err := newCipher(cfg.Algorithm, cfg.Password)
	if err != nil {
		return nil, err
	}

	dialer, err := network.NewDialer(&network.DialConfig{
		Method:   cfg.Method,
		Host:     cfg.ServerAddr,
		Port:     cfg.ServerPort,
		Path:     cfg.Path,
		Insecure: cfg.Insecure,
	})
	if err != nil {
		return nil, err
	}

	o, err := obfs.New(&obfs.Config{
		Name:   cfg.Obfs,
		Secret: cfg.Password,
		Role:   obfs.RoleClient,
		Host:   cfg.ServerAddr,
	})
	if err != nil {
		return nil, err
	}

	t, err := tunnel.New(&tunnel.Config{
		Cipher:       cipher,
		Dialer:       dialer,
		Obfuscator:   o,
		Mode:         cfg.Mode,
		ReplyTimeout: cfg.replyTimeout(),
		DialRetries:  cfg.DialRetries,
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[client] relay: %s, algorithm: %s (%s), obfs: %s, mode: %s", dialer, cipher.Algorithm(), cipher.Fingerprint(), o.Name(), t.Mode())

	c := &client{
		cfg:      cfg,
		tunnel:   t,
		sessions: manager.New[*tunnel.Session](),
	}

	c.socks = socks5.NewServer(
		socks5.WithLogger(socksLogger{}),
		socks5.WithConnectHandle(c.handleConnect),
	)

	return c, nil
}

func (c *client) Run() error {
	addr := net.JoinHostPort(c.cfg.LocalHost, strconv.Itoa(c.cfg.LocalPort))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	logger.Infof("listen socks5 server at: %s", addr)
	return c.Serve(l)
}

func (c *client) Serve(l net.Listener) error {
	return c.socks.Serve(l)
}

func (c *client) Sessions() int {
	return c.sessions.Count()
}

func (c *client) handleConnect(ctx context.Context, writer io.Writer, request *socks5.Request) error {
	host := request.DestAddr.FQDN
	if host == "" {
		host = request.DestAddr.IP.String()
	}
	port := uint16(request.DestAddr.Port)

	session, err := c.tunnel.Connect(ctx, host, port)
	if err != nil {
		rep := uint8(statute.RepHostUnreachable)
		if session != nil {
			rep = socksReply(session.Sig())
		}

		if serr := socks5.SendReply(writer, rep, nil); serr != nil {
			return errors.Wrap(serr, "failed to send reply")
		}
		return err
	}

	c.sessions.Set(session.ID, session)
	defer c.sessions.Remove(session.ID)

	if err := socks5.SendReply(writer, statute.RepSuccess, session.LocalAddr()); err != nil {
		session.Close()
		return errors.Wrap(err, "failed to send reply")
	}

	local := &socksConn{Reader: request.Reader, Writer: writer}
	if closer, ok := writer.(io.Closer); ok {
		local.Closer = closer
	}

	return session.Proxy(ctx, local)
}

// socksReply maps a relay reply code to a SOCKS5 reply; the defined codes
// share their values.
func socksReply(code protocol.ReplyCode) uint8 {
	if !code.Defined() {
		return statute.RepServerFailure
	}
	return uint8(code)
}

// socksConn joins the buffered SOCKS5 request reader with the client
// connection.
type socksConn struct {
	io.Reader
	io.Writer
	io.Closer
}

func (c *socksConn) Close() error {
	if c.Closer == nil {
		return nil
	}
	return c.Closer.Close()
}

type socksLogger struct{}

func (socksLogger) Errorf(format string, args ...interface{}) {
	logger.Errorf("[socks5] "+format, args...)
}
