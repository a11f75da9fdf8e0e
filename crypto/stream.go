package crypto

import "crypto/cipher"

// Stream is a pipeline stage that keeps one cipher context for the whole
// connection. Chunks must be fed in order; the context is never reset.
type Stream struct {
	stream cipher.Stream
}

// Transform encrypts (or decrypts) chunk and emits the result.
func (s *Stream) Transform(chunk []byte, emit func([]byte) error) error {
	if len(chunk) == 0 {
		return nil
	}

	return emit(s.XOR(chunk))
}

// XOR runs b through the key stream and returns a new slice.
func (s *Stream) XOR(b []byte) []byte {
	out := make([]byte, len(b))
	s.stream.XORKeyStream(out, b)
	return out
}
