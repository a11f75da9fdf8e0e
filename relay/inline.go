package relay

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/framing"
	"github.com/go-zoox/potato/pipe"
	"github.com/go-zoox/potato/protocol"
	"github.com/pkg/errors"
)

// inlineTarget is the target connection of an inline session. It is set by
// the decoder listener, which always runs before the first payload write.
type inlineTarget struct {
	mu      sync.Mutex
	conn    net.Conn
	closed  bool
	started atomic.Int32
}

func (t *inlineTarget) set(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}

	t.conn = conn
	t.started.Add(1)
	return true
}

func (t *inlineTarget) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn != nil {
		t.conn.Close()
	}
}

func (t *inlineTarget) Write(b []byte) (int, error) {
	return t.conn.Write(b)
}

func (h *Handler) serveInline(ctx context.Context, id string, conn net.Conn) error {
	defer conn.Close()

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

	target := &inlineTarget{}
	target.started.Store(1)
	errc := make(chan error, 2)

	decoder := framing.NewDecoder(h.codec)
	decoder.OnResult = func(r framing.Result) error {
		if r.Kind == framing.ReplaySuspected {
			logger.Warnf("[relay][connection: %s] reject %s:%d: %s", id, r.Addr, r.Port, r.Reason)
			return errors.Wrap(protocol.ErrReplaySuspected, r.Reason)
		}

		logger.Infof("[relay][connection: %s] connect to %s:%d", id, r.Addr, r.Port)

		c, err := h.dial(ctx, r.Addr, r.Port, h.cfg.DialTimeout)
		if err != nil {
			logger.Warnf("[relay][connection: %s] failed to connect to %s:%d (%s): %s", id, r.Addr, r.Port, ReplyFor(err), err)
			return errors.Wrapf(err, "failed to connect to %s:%d", r.Addr, r.Port)
		}

		if !target.set(c) {
			c.Close()
			return context.Canceled
		}

		go func() {
			_, err := pipe.Pipe(ctx, conn, c, &pipe.Options{
				Name:      id + ":downstream",
				QueueSize: h.cfg.QueueSize,
			}, encrypter, h.obfs.ApplyDisguise())
			errc <- err
		}()

		return nil
	}

	go func() {
		_, err := pipe.Pipe(ctx, target, conn, &pipe.Options{
			Name:      id + ":upstream",
			QueueSize: h.cfg.QueueSize,
		}, h.obfs.RemoveDisguise(), decoder, decrypter)
		errc <- err
	}()

	err = <-errc
	cancel()
	conn.Close()
	target.close()
	for i := int32(1); i < target.started.Load(); i++ {
		<-errc
	}

	if err == nil && decoder.Result().Kind == framing.Incomplete {
		err = errors.Wrap(protocol.ErrMalformedHeader, "connection closed before the request header")
	}

	logger.Debugf("[relay][connection: %s] closed", id)
	return err
}
