package tunnel

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/framing"
	"github.com/go-zoox/potato/pipe"
	"github.com/go-zoox/potato/protocol"
	"github.com/pkg/errors"
)

// Session is one local connection tunnelled through one relay connection.
type Session struct {
	ID   string
	Host string
	Port uint16

	tunnel *Tunnel
	remote net.Conn
	sig    protocol.ReplyCode

	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(t *Tunnel, id, host string, port uint16) *Session {
	s := &Session{
		ID:     id,
		Host:   host,
		Port:   port,
		tunnel: t,
		sig:    protocol.ReplyGeneralFailure,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Sig returns the relay reply code (ReplySucceeded in inline mode).
func (s *Session) Sig() protocol.ReplyCode {
	return s.sig
}

// LocalAddr returns the local address of the relay connection.
func (s *Session) LocalAddr() net.Addr {
	if s.remote == nil {
		return nil
	}
	return s.remote.LocalAddr()
}

func (s *Session) handshake(ctx context.Context) error {
	s.state.Store(int32(StateAwaitingReply))

	request, err := s.tunnel.codec.EncodeConnectRequest(s.Host, s.Port)
	if err != nil {
		return err
	}

	if _, err := s.remote.Write(request); err != nil {
		return errors.Wrap(err, "failed to send connect request")
	}

	if timeout := s.tunnel.cfg.ReplyTimeout; timeout > 0 {
		s.remote.SetReadDeadline(time.Now().Add(timeout))
	}

	// a cancelled context unblocks the reply read
	stop := make(chan struct{})
	watching := make(chan struct{})
	go func() {
		defer close(watching)

		select {
		case <-ctx.Done():
			s.remote.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	raw := make([]byte, protocol.ReplyLength)
	_, err = io.ReadFull(s.remote, raw)

	// the watcher must be gone before the deadline is cleared
	close(stop)
	<-watching

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return errors.Wrapf(ErrReplyTimeout, "no reply within %s", s.tunnel.cfg.ReplyTimeout)
		}
		return errors.Wrap(err, "failed to read connect reply")
	}

	s.remote.SetReadDeadline(time.Time{})

	reply, err := s.tunnel.codec.DecodeConnectReply(raw)
	if err != nil {
		return err
	}

	s.sig = reply.Sig
	logger.Debugf("[tunnel][session: %s] relay replied: %s", s.ID, reply.Sig)

	if reply.Sig != protocol.ReplySucceeded {
		return &RejectedError{Code: reply.Sig}
	}

	return nil
}

// Proxy pumps local through the tunnel until either side ends, then closes
// both. It returns the error that ended the session, nil on a clean close.
func (s *Session) Proxy(ctx context.Context, local io.ReadWriteCloser) error {
	if !s.state.CompareAndSwap(int32(StateAwaitingReply), int32(StateProxying)) &&
		!s.state.CompareAndSwap(int32(StateConnecting), int32(StateProxying)) {
		local.Close()
		return ErrClosed
	}

	cipher := s.tunnel.cfg.Cipher
	encrypter, err := cipher.NewEncrypter()
	if err != nil {
		local.Close()
		s.Close()
		return err
	}
	decrypter, err := cipher.NewDecrypter()
	if err != nil {
		local.Close()
		s.Close()
		return err
	}

	upstream := []pipe.Transform{encrypter}
	if s.tunnel.mode == protocol.ModeInline {
		upstream = append(upstream, framing.NewEncoder(s.tunnel.codec, s.Host, s.Port))
	}
	upstream = append(upstream, s.tunnel.obfs.ApplyDisguise())

	downstream := []pipe.Transform{s.tunnel.obfs.RemoveDisguise(), decrypter}

	logger.Infof("[tunnel][session: %s] proxying %s:%d", s.ID, s.Host, s.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() {
		_, err := pipe.Pipe(ctx, s.remote, local, &pipe.Options{
			Name:      s.ID + ":upstream",
			QueueSize: s.tunnel.cfg.QueueSize,
		}, upstream...)
		errc <- err
	}()
	go func() {
		_, err := pipe.Pipe(ctx, local, s.remote, &pipe.Options{
			Name:      s.ID + ":downstream",
			QueueSize: s.tunnel.cfg.QueueSize,
		}, downstream...)
		errc <- err
	}()

	err = <-errc

	// either direction ending tears down both
	cancel()
	local.Close()
	s.Close()
	<-errc

	if err != nil {
		logger.Debugf("[tunnel][session: %s] closed: %s", s.ID, err)
	} else {
		logger.Debugf("[tunnel][session: %s] closed", s.ID)
	}

	return err
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		if s.remote != nil {
			err = s.remote.Close()
		}
	})
	return err
}
