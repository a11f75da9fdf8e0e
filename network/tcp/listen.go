package tcp

import (
	"crypto/tls"
	"net"

	"github.com/go-zoox/logger"
	"github.com/pkg/errors"
)

type ListenConfig struct {
	Addr string

	TLS  bool
	Cert string
	Key  string
}

func Listen(cfg *ListenConfig) (net.Listener, error) {
	if !cfg.TLS {
		logger.Infof("listen tcp server at: %s", cfg.Addr)
		return net.Listen("tcp", cfg.Addr)
	}

	config, err := LoadTLSConfig(cfg.Cert, cfg.Key)
	if err != nil {
		return nil, err
	}

	logger.Infof("listen tls server at: %s", cfg.Addr)
	return tls.Listen("tcp", cfg.Addr, config)
}

// LoadTLSConfig reads a PEM certificate/key pair for the relay.
func LoadTLSConfig(cert, key string) (*tls.Config, error) {
	if cert == "" || key == "" {
		return nil, errors.New("tls requires both cert and key")
	}

	pair, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
	}, nil
}
