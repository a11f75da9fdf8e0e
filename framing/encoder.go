package framing

import (
	"github.com/go-zoox/potato/protocol"
)

// Encoder prefixes an inline request header to the first chunk of a stream.
// Later chunks pass through untouched. It never buffers.
type Encoder struct {
	codec *protocol.Codec
	addr  string
	port  uint16

	sent bool
}

func NewEncoder(codec *protocol.Codec, addr string, port uint16) *Encoder {
	return &Encoder{
		codec: codec,
		addr:  addr,
		port:  port,
	}
}

// Transform emits the header as its own chunk before the first payload chunk.
func (e *Encoder) Transform(chunk []byte, emit func([]byte) error) error {
	if !e.sent {
		header, err := e.codec.EncodeInlineRequest(e.addr, e.port)
		if err != nil {
			return err
		}

		e.sent = true
		if err := emit(header); err != nil {
			return err
		}
	}

	return emit(chunk)
}

// Sent reports whether the header has been emitted.
func (e *Encoder) Sent() bool {
	return e.sent
}
