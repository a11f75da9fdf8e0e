package tunnel

import (
	"fmt"

	"github.com/go-zoox/potato/protocol"
	"github.com/pkg/errors"
)

var (
	ErrRejected     = errors.New("relay rejected the connection")
	ErrReplyTimeout = errors.New("timed out waiting for the relay reply")
	ErrClosed       = errors.New("session closed")
)

// RejectedError carries the reply code of a relay that refused a connection.
type RejectedError struct {
	Code protocol.ReplyCode
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("relay rejected the connection: %s", e.Code)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
