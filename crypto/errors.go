package crypto

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfig reports a missing or invalid algorithm or secret. It is fatal at startup.
	ErrConfig = errors.New("invalid cipher config")

	// ErrCrypto reports a cipher initialization or operation failure.
	ErrCrypto = errors.New("cipher failure")
)

// UnsupportedAlgorithmError is returned for an algorithm name missing from the table.
// It matches both ErrConfig and ErrCrypto.
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported algorithm: %q", e.Algorithm)
}

func (e *UnsupportedAlgorithmError) Is(target error) bool {
	return target == ErrConfig || target == ErrCrypto
}
