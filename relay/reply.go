package relay

import (
	"net"
	"syscall"

	"github.com/go-zoox/potato/protocol"
	"github.com/pkg/errors"
)

// ReplyFor maps a target dial error to the reply code sent to the client.
func ReplyFor(err error) protocol.ReplyCode {
	switch {
	case err == nil:
		return protocol.ReplySucceeded
	case errors.Is(err, syscall.ECONNREFUSED):
		return protocol.ReplyConnectionRefused
	case errors.Is(err, syscall.ENETUNREACH):
		return protocol.ReplyNetworkUnreachable
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return protocol.ReplyTTLExpired
	}

	return protocol.ReplyHostUnreachable
}
