package core

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/connection"
	"github.com/go-zoox/potato/manager"
	"github.com/go-zoox/potato/network"
	"github.com/go-zoox/potato/obfs"
	"github.com/go-zoox/potato/relay"
	"github.com/go-zoox/zoox"
	"github.com/go-zoox/zoox/defaults"
	"github.com/pkg/errors"
)

type Server interface {
	// Run listens on the configured transport and serves until it fails.
	Run() error
	// Serve accepts relay connections on l.
	Serve(l net.Listener) error
	Close() error
	Stats() *Status
}

// Status is the JSON body of GET /status.
type Status struct {
	relay.Stats

	Sessions  int    `json:"sessions"`
	Algorithm string `json:"algorithm"`
	Method    string `json:"method"`
	Mode      string `json:"mode"`
	Obfs      string `json:"obfs"`
}

type server struct {
	cfg     *ServerConfig
	handler *relay.Handler
	obfs    obfs.Obfuscator

	sessions *manager.Manager[net.Conn]

	ctx    context.Context
	cancel context.CancelFunc

	sync.Mutex
	listener net.Listener
}

func NewServer(cfg *ServerConfig) (Server, error) {
	cfg.ApplyDefaults()

	cipher, err := newCipher(cfg.Algorithm, cfg.Password)
	if err != nil {
		return nil, err
	}

	o, err := obfs.New(&obfs.Config{
		Name:   cfg.Obfs,
		Secret: cfg.Password,
		Role:   obfs.RoleRelay,
	})
	if err != nil {
		return nil, err
	}

	handler, err := relay.New(&relay.Config{
		Cipher:      cipher,
		Obfuscator:  o,
		Mode:        cfg.Mode,
		DialTimeout: cfg.dialTimeout(),
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[server] algorithm: %s (%s), obfs: %s, mode: %s", cipher.Algorithm(), cipher.Fingerprint(), o.Name(), handler.Mode())

	ctx, cancel := context.WithCancel(context.Background())
	return &server{
		cfg:     cfg,
		handler: handler,
		obfs:    o,
		sessions: manager.New(&manager.Options[net.Conn]{
			OnRemove: func(id string, conn net.Conn) {
				conn.Close()
			},
		}),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (s *server) Run() error {
	l, err := network.Listen(&network.ListenConfig{
		Method: s.cfg.Method,
		Host:   s.cfg.Host,
		Port:   s.cfg.Port,
		Path:   s.cfg.Path,
		Cert:   s.cfg.Cert,
		Key:    s.cfg.Key,
	})
	if err != nil {
		return err
	}

	if s.cfg.StatusPort != 0 {
		go func() {
			if err := s.serveStatus(); err != nil {
				logger.Errorf("[server] status endpoint stopped: %s", err)
			}
		}()
	}

	return s.Serve(l)
}

func (s *server) Serve(l net.Listener) error {
	s.Lock()
	s.listener = l
	s.Unlock()

	defer l.Close()
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			logger.Warnf("[server] failed to accept: %s", err)
			continue
		}

		id := connection.GenerateID()
		logger.Debugf("[server][connection: %s] accepted from %s", id, conn.RemoteAddr())

		if err := s.sessions.Set(id, conn); err != nil {
			conn.Close()
			continue
		}

		go func() {
			defer s.sessions.Remove(id)

			if err := s.handler.Serve(s.ctx, id, conn); err != nil {
				logger.Debugf("[server][connection: %s] ended: %s", id, err)
			}
		}()
	}
}

func (s *server) Close() error {
	s.cancel()

	s.Lock()
	l := s.listener
	s.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}

	s.sessions.ForEach(func(id string, conn net.Conn) {
		s.sessions.Remove(id)
	})

	return err
}

func (s *server) Stats() *Status {
	return &Status{
		Stats:     s.handler.Stats(),
		Sessions:  s.sessions.Count(),
		Algorithm: s.cfg.Algorithm,
		Method:    s.cfg.Method,
		Mode:      s.handler.Mode(),
		Obfs:      s.obfs.Name(),
	}
}

func (s *server) serveStatus() error {
	app := defaults.Default()

	app.Get("/status", func(ctx *zoox.Context) {
		ctx.JSON(200, s.Stats())
	})

	return app.Run(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.StatusPort))
}
