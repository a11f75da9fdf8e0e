package protocol

import "github.com/pkg/errors"

var (
	// ErrMalformedHeader reports a header with insufficient or inconsistent bytes.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrReplaySuspected reports a header whose timestamp is outside the replay window.
	ErrReplaySuspected = errors.New("replay suspected")
)
