package tunnel

import (
	"context"
	"net"
	"time"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/connection"
	"github.com/go-zoox/potato/crypto"
	"github.com/go-zoox/potato/network"
	"github.com/go-zoox/potato/obfs"
	"github.com/go-zoox/potato/protocol"
	"github.com/go-zoox/retry"
	"github.com/pkg/errors"
)

const DefaultDialRetryInterval = 500 * time.Millisecond

type Config struct {
	Cipher     *crypto.Cipher
	Dialer     network.Dialer
	Obfuscator obfs.Obfuscator

	Mode string
	// ReplyTimeout bounds the wait for the relay reply; zero waits forever.
	ReplyTimeout time.Duration
	// DialRetries is the number of extra attempts after a failed relay dial.
	DialRetries       int
	DialRetryInterval time.Duration
	// QueueSize bounds each pipeline stage queue.
	QueueSize int

	// Clock overrides time.Now for header timestamps, for tests.
	Clock func() time.Time
}

// Tunnel opens sessions to the relay. It is immutable and safe for
// concurrent use.
type Tunnel struct {
	cfg   *Config
	mode  string
	codec *protocol.Codec
	obfs  obfs.Obfuscator
}

func New(cfg *Config) (*Tunnel, error) {
	if cfg == nil {
		return nil, errors.Wrap(crypto.ErrConfig, "tunnel config is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.Wrap(crypto.ErrConfig, "tunnel requires a relay dialer")
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

	return &Tunnel{
		cfg:   cfg,
		mode:  mode,
		codec: codec,
		obfs:  o,
	}, nil
}

func (t *Tunnel) Mode() string {
	return t.mode
}

// Connect dials the relay and, in handshake mode, asks it to connect to
// host:port. A relay refusal returns the session (with its reply code) and a
// *RejectedError; the session is already closed then.
func (t *Tunnel) Connect(ctx context.Context, host string, port uint16) (*Session, error) {
	s := newSession(t, connection.GenerateID(), host, port)
	logger.Infof("[tunnel][session: %s] connect to %s:%d via %s (%s)", s.ID, host, port, t.cfg.Dialer, t.mode)

	remote, err := t.dial(ctx, s.ID)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to connect to relay")
	}
	s.remote = remote

	if t.mode == protocol.ModeInline {
		s.sig = protocol.ReplySucceeded
		return s, nil
	}

	if err := s.handshake(ctx); err != nil {
		s.Close()
		return s, err
	}

	return s, nil
}

func (t *Tunnel) dial(ctx context.Context, id string) (conn net.Conn, err error) {
	attempt := 0
	dial := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return err
		}

		c, err := t.cfg.Dialer.Dial(ctx)
		if err != nil {
			logger.Warnf("[tunnel][session: %s] dial relay attempt %d failed: %s", id, attempt, err)
			return err
		}

		conn = c
		return nil
	}

	if t.cfg.DialRetries <= 0 {
		return conn, dial()
	}

	interval := t.cfg.DialRetryInterval
	if interval == 0 {
		interval = DefaultDialRetryInterval
	}

	err = retry.Retry(dial, t.cfg.DialRetries+1, interval)
	return conn, err
}
