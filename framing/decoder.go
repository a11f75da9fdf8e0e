package framing

import (
	"github.com/go-zoox/potato/protocol"
)

// Decoder strips the inline request header from the front of a stream,
// accumulating until the whole header has arrived. Everything after the
// header passes through untouched.
type Decoder struct {
	codec *protocol.Codec

	buf    []byte
	done   bool
	result Result

	// OnResult is called synchronously with the Parsed or ReplaySuspected
	// result, before any payload is forwarded. Returning an error aborts the
	// stream; nil forwards the payload whatever the verdict.
	OnResult func(r Result) error
}

func NewDecoder(codec *protocol.Codec) *Decoder {
	return &Decoder{
		codec: codec,
	}
}

// Feed consumes chunk and returns the verdict plus the bytes to forward.
func (d *Decoder) Feed(chunk []byte) (Result, []byte, error) {
	if d.done {
		return Result{Kind: Passthrough}, chunk, nil
	}

	d.buf = append(d.buf, chunk...)

	headerLen, ok, err := d.codec.RequestLength(d.buf)
	if err != nil {
		return Result{}, nil, err
	}
	if !ok || len(d.buf) < headerLen {
		return Result{Kind: Incomplete}, nil, nil
	}

	request, err := d.codec.DecodeConnectRequest(d.buf[:headerLen])
	if err != nil {
		return Result{}, nil, err
	}
	if err := request.Expect(protocol.FlagInline); err != nil {
		return Result{}, nil, err
	}

	residual := d.buf[headerLen:]
	d.buf = nil
	d.done = true

	result := Result{
		Kind:      Parsed,
		Addr:      request.Addr,
		Port:      request.Port,
		Timestamp: request.Timestamp,
	}
	if err := protocol.CheckFresh(d.codec.Now(), request.Timestamp); err != nil {
		result.Kind = ReplaySuspected
		result.Reason = err.Error()
	}

	d.result = result
	return result, residual, nil
}

// Transform is the pipeline form of Feed.
func (d *Decoder) Transform(chunk []byte, emit func([]byte) error) error {
	result, residual, err := d.Feed(chunk)
	if err != nil {
		return err
	}

	switch result.Kind {
	case Incomplete:
		return nil
	case Parsed, ReplaySuspected:
		if d.OnResult != nil {
			if err := d.OnResult(result); err != nil {
				return err
			}
		}
	}

	if len(residual) == 0 {
		return nil
	}
	return emit(residual)
}

// Result returns the header verdict, Incomplete until the header is parsed.
func (d *Decoder) Result() Result {
	return d.result
}
