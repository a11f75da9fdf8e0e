package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-zoox/logger"
	"github.com/go-zoox/potato/connection"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const DefaultPath = "/potato"

// Dialer connects to the relay through a websocket upgrade.
type Dialer struct {
	Addr    string
	Path    string
	Timeout time.Duration

	TLS      bool
	Insecure bool
}

func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	url := d.String()
	logger.Debugf("[network:ws] connect to: %s", url)

	wd := &websocket.Dialer{
		Proxy:            nil,
		HandshakeTimeout: d.Timeout,
	}
	if d.TLS {
		wd.TLSClientConfig = &tls.Config{InsecureSkipVerify: d.Insecure}
	}

	client, response, err := wd.DialContext(ctx, url, nil)
	if err != nil {
		if response != nil {
			return nil, errors.Wrapf(err, "websocket handshake failed with status %d", response.StatusCode)
		}
		return nil, err
	}

	return connection.New(connection.GenerateID(), client), nil
}

func (d *Dialer) String() string {
	scheme := "ws"
	if d.TLS {
		scheme = "wss"
	}

	path := d.Path
	if path == "" {
		path = DefaultPath
	}

	return fmt.Sprintf("%s://%s%s", scheme, d.Addr, path)
}
