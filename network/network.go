package network

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/go-zoox/potato/network/tcp"
	"github.com/go-zoox/potato/network/ws"
	"github.com/pkg/errors"
)

const (
	MethodTCP   = "tcp"
	MethodTLS   = "tls"
	MethodHTTPS = "https"
	MethodWS    = "ws"
	MethodWSS   = "wss"
)

const DefaultDialTimeout = 10 * time.Second

// Dialer opens a new transport connection to the relay each time Dial is
// called.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
	String() string
}

type DialConfig struct {
	Method string
	Host   string
	Port   int

	// Path is the websocket endpoint for ws and wss.
	Path string
	// Insecure skips relay certificate verification for tls, https and wss.
	Insecure bool
	Timeout  time.Duration
}

func NewDialer(cfg *DialConfig) (Dialer, error) {
	if cfg == nil || cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("relay host and port are required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	switch cfg.Method {
	case "", MethodTCP:
		return &tcp.Dialer{Addr: addr, Timeout: timeout}, nil
	case MethodTLS, MethodHTTPS:
		return &tcp.Dialer{Addr: addr, Timeout: timeout, TLS: true, Insecure: cfg.Insecure}, nil
	case MethodWS:
		return &ws.Dialer{Addr: addr, Path: cfg.Path, Timeout: timeout}, nil
	case MethodWSS:
		return &ws.Dialer{Addr: addr, Path: cfg.Path, Timeout: timeout, TLS: true, Insecure: cfg.Insecure}, nil
	default:
		return nil, errors.Errorf("network method(%s) not supported", cfg.Method)
	}
}

type ListenConfig struct {
	Method string
	Host   string
	Port   int

	Path string
	Cert string
	Key  string
}

// Listen returns a listener whose accepted connections carry the raw tunnel
// byte stream, whatever the transport underneath.
func Listen(cfg *ListenConfig) (net.Listener, error) {
	if cfg == nil {
		return nil, errors.New("listen config is required")
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	switch cfg.Method {
	case "", MethodTCP:
		return tcp.Listen(&tcp.ListenConfig{Addr: addr})
	case MethodTLS, MethodHTTPS:
		return tcp.Listen(&tcp.ListenConfig{Addr: addr, TLS: true, Cert: cfg.Cert, Key: cfg.Key})
	case MethodWS, MethodWSS:
		l, err := ws.Listen(&ws.ListenConfig{
			Addr: addr,
			Path: cfg.Path,
			TLS:  cfg.Method == MethodWSS,
			Cert: cfg.Cert,
			Key:  cfg.Key,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, errors.Errorf("network method(%s) not supported", cfg.Method)
	}
}

// DialTarget connects the relay to the destination announced by a client.
func DialTarget(ctx context.Context, host string, port uint16, timeout time.Duration) (net.Conn, error) {
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	d := &net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
}
