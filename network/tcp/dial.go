package tcp

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/go-zoox/logger"
)

// Dialer connects to the relay over plain tcp or tls.
type Dialer struct {
	Addr    string
	Timeout time.Duration

	TLS      bool
	Insecure bool
}

func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	logger.Debugf("[network:%s] connect to: %s", d.scheme(), d.Addr)

	nd := &net.Dialer{Timeout: d.Timeout}
	if !d.TLS {
		return nd.DialContext(ctx, "tcp", d.Addr)
	}

	host, _, err := net.SplitHostPort(d.Addr)
	if err != nil {
		return nil, err
	}

	td := &tls.Dialer{
		NetDialer: nd,
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: d.Insecure,
		},
	}
	return td.DialContext(ctx, "tcp", d.Addr)
}

func (d *Dialer) String() string {
	return d.scheme() + "://" + d.Addr
}

func (d *Dialer) scheme() string {
	if d.TLS {
		return "tls"
	}
	return "tcp"
}
