package obfs

import (
	"crypto/sha256"

	"github.com/go-zoox/potato/pipe"
)

type xorObfuscator struct {
	key []byte
}

func newXOR(secret string) *xorObfuscator {
	h := sha256.Sum256([]byte(secret))
	return &xorObfuscator{key: h[:]}
}

func (o *xorObfuscator) Name() string { return XOR }

func (o *xorObfuscator) ApplyDisguise() pipe.Transform {
	return &xorStage{key: o.key}
}

func (o *xorObfuscator) RemoveDisguise() pipe.Transform {
	return &xorStage{key: o.key}
}

// xorStage rolls the key offset across chunks so the output does not
// depend on how the stream was split.
type xorStage struct {
	key []byte
	pos int
}

func (s *xorStage) Transform(chunk []byte, emit func([]byte) error) error {
	if len(chunk) == 0 {
		return nil
	}

	out := make([]byte, len(chunk))
	for i, b := range chunk {
		out[i] = b ^ s.key[s.pos%len(s.key)]
		s.pos++
	}
	return emit(out)
}
