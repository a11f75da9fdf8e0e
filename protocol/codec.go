package protocol

import (
	"time"

	"github.com/go-zoox/potato/crypto"
	"github.com/pkg/errors"
)

// Codec encodes and decodes the encrypted connect headers.
// It holds no per-connection state; every call uses a fresh cipher context.
type Codec struct {
	cipher *crypto.Cipher
	clock  func() time.Time
}

type CodecOptions struct {
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func NewCodec(cipher *crypto.Cipher, opts ...*CodecOptions) (*Codec, error) {
	if cipher == nil {
		return nil, errors.Wrap(crypto.ErrConfig, "codec requires a cipher")
	}

	clock := time.Now
	if len(opts) == 1 && opts[0] != nil && opts[0].Clock != nil {
		clock = opts[0].Clock
	}

	return &Codec{
		cipher: cipher,
		clock:  clock,
	}, nil
}

// Now returns the codec clock's current time.
func (c *Codec) Now() time.Time {
	return c.clock()
}

func knownFlag(flag uint8) bool {
	return flag == FlagControl || flag == FlagInline
}
