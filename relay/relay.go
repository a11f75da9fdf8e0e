package relay

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/crypto"
	"github.com/go-zoox/potato/network"
	"github.com/go-zoox/potato/obfs"
	"github.com/go-zoox/potato/pipe"
	"github.com/go-zoox/potato/protocol"
	"github.com/pkg/errors"
)

const DefaultHandshakeTimeout = 30 * time.Second

type DialFunc func(ctx context.Context, host string, port uint16, timeout time.Duration) (net.Conn, error)

type Config struct {
	Cipher     *crypto.Cipher
	Obfuscator obfs.Obfuscator

	Mode string
	// DialTimeout bounds the dial to the target.
	DialTimeout time.Duration
	// HandshakeTimeout bounds the wait for a complete request header.
	HandshakeTimeout time.Duration
	QueueSize        int

	// Dial overrides network.DialTarget, for tests.
	Dial DialFunc
	// Clock overrides time.Now for the replay check, for tests.
	Clock func() time.Time
}

// Handler serves relay connections: it learns the target from the request
// header, connects to it and proxies both directions.
type Handler struct {
	cfg   *Config
	mode  string
	codec *protocol.Codec
	obfs  obfs.Obfuscator
	dial  DialFunc

	counters counters
}

func New(cfg *Config) (*Handler, error) {
	if cfg == nil {
		return nil, errors.Wrap(crypto.ErrConfig, "relay config is required")
	}

	codec, err := protocol.NewCodec(cfg.Cipher, &protocol.CodecOptions{Clock: cfg.Clock})
	if err != nil {
		return nil, err
	}

	mode := cfg.Mode
	switch mode {
	case "":
		mode = protocol.ModeHandshake
	case protocol.ModeHandshake, protocol.ModeInline:
	default:
		return nil, errors.Wrapf(crypto.ErrConfig, "unsupported mode: %s", cfg.Mode)
	}

	o := cfg.Obfuscator
	if o == nil {
		o, _ = obfs.New(nil)
	}

	dial := cfg.Dial
	if dial == nil {
		dial = network.DialTarget
	}

	return &Handler{
		cfg:   cfg,
		mode:  mode,
		codec: codec,
		obfs:  o,
		dial:  dial,
	}, nil
}

func (h *Handler) Mode() string {
	return h.mode
}

// Stats returns a snapshot of the handler counters.
func (h *Handler) Stats() Stats {
	return h.counters.snapshot()
}

// Serve handles one client connection until it ends. conn is always closed.
func (h *Handler) Serve(ctx context.Context, id string, conn net.Conn) error {
	h.counters.accepted.Add(1)
	h.counters.active.Add(1)
	defer h.counters.active.Add(-1)

	var err error
	if h.mode == protocol.ModeInline {
		err = h.serveInline(ctx, id, conn)
	} else {
		err = h.serveHandshake(ctx, id, conn)
	}

	if err != nil {
		if errors.Is(err, protocol.ErrReplaySuspected) {
			h.counters.replays.Add(1)
		} else {
			h.counters.failures.Add(1)
		}
	}

	return err
}

func (h *Handler) serveHandshake(ctx context.Context, id string, conn net.Conn) error {
	defer conn.Close()

	request, err := h.readRequest(conn)
	if err != nil {
		logger.Warnf("[relay][connection: %s] invalid request from %s: %s", id, conn.RemoteAddr(), err)
		return err
	}

	if err := protocol.CheckFresh(h.codec.Now(), request.Timestamp); err != nil {
		logger.Warnf("[relay][connection: %s] reject %s:%d: %s", id, request.Addr, request.Port, err)
		h.reply(id, conn, protocol.ReplyConnectionNotAllowed)
		return err
	}

	logger.Infof("[relay][connection: %s] connect to %s:%d", id, request.Addr, request.Port)

	target, err := h.dial(ctx, request.Addr, request.Port, h.cfg.DialTimeout)
	if err != nil {
		code := ReplyFor(err)
		logger.Warnf("[relay][connection: %s] failed to connect to %s:%d (%s): %s", id, request.Addr, request.Port, code, err)
		h.reply(id, conn, code)
		return errors.Wrapf(err, "failed to connect to %s:%d", request.Addr, request.Port)
	}
	defer target.Close()

	if err := h.reply(id, conn, protocol.ReplySucceeded); err != nil {
		return err
	}

	return h.proxy(ctx, id, conn, target)
}

func (h *Handler) readRequest(conn net.Conn) (*protocol.ConnectRequest, error) {
	timeout := h.cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = DefaultHandshakeTimeout
	}
	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	prefix := make([]byte, protocol.RequestPrefixLength)
	if _, err := io.ReadFull(conn, prefix); err != nil {
		return nil, errors.Wrap(err, "failed to read request prefix")
	}

	n, _, err := h.codec.RequestLength(prefix)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, n)
	copy(raw, prefix)
	if _, err := io.ReadFull(conn, raw[protocol.RequestPrefixLength:]); err != nil {
		return nil, errors.Wrap(protocol.ErrMalformedHeader, "truncated request")
	}

	request, err := h.codec.DecodeConnectRequest(raw)
	if err != nil {
		return nil, err
	}

	if err := request.Expect(protocol.FlagControl); err != nil {
		return nil, err
	}

	return request, nil
}

func (h *Handler) reply(id string, conn net.Conn, code protocol.ReplyCode) error {
	raw, err := h.codec.EncodeConnectReply(code)
	if err != nil {
		return err
	}

	logger.Debugf("[relay][connection: %s] reply: %s", id, code)
	if _, err := conn.Write(raw); err != nil {
		return errors.Wrap(err, "failed to send reply")
	}

	return nil
}

// proxy wires client <-> target after a successful handshake and returns
// once either direction ends.
func (h *Handler) proxy(ctx context.Context, id string, conn, target net.Conn) error {
	encrypter, err := h.cfg.Cipher.NewEncrypter()
	if err != nil {
		return err
	}
	decrypter, err := h.cfg.Cipher.NewDecrypter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() {
		_, err := pipe.Pipe(ctx, target, conn, &pipe.Options{
			Name:      id + ":upstream",
			QueueSize: h.cfg.QueueSize,
		}, h.obfs.RemoveDisguise(), decrypter)
		errc <- err
	}()
	go func() {
		_, err := pipe.Pipe(ctx, conn, target, &pipe.Options{
			Name:      id + ":downstream",
			QueueSize: h.cfg.QueueSize,
		}, encrypter, h.obfs.ApplyDisguise())
		errc <- err
	}()

	err = <-errc
	cancel()
	conn.Close()
	target.Close()
	<-errc

	logger.Debugf("[relay][connection: %s] closed", id)
	return err
}
