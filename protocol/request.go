package protocol

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

type ConnectRequest struct {
	Flag      uint8
	Addr      string
	Port      uint16
	Timestamp int64
}

// Length returns the encoded length of the request.
func (r *ConnectRequest) Length() int {
	return requestFixedLength + len(r.Addr)
}

// Expect returns ErrMalformedHeader unless the request carries flag. Each
// mode accepts only its own header.
func (r *ConnectRequest) Expect(flag uint8) error {
	if r.Flag != flag {
		return errors.Wrapf(ErrMalformedHeader, "unexpected flag 0x%02x, expect 0x%02x", r.Flag, flag)
	}
	return nil
}

// EncodeConnectRequest builds the control request header for host:port.
func (c *Codec) EncodeConnectRequest(host string, port uint16) ([]byte, error) {
	return c.EncodeRequest(&ConnectRequest{
		Flag:      FlagControl,
		Addr:      host,
		Port:      port,
		Timestamp: c.Now().UnixMilli(),
	})
}

// EncodeInlineRequest builds the request header the framing encoder prefixes
// to the first payload chunk.
func (c *Codec) EncodeInlineRequest(host string, port uint16) ([]byte, error) {
	return c.EncodeRequest(&ConnectRequest{
		Flag:      FlagInline,
		Addr:      host,
		Port:      port,
		Timestamp: c.Now().UnixMilli(),
	})
}

// EncodeRequest serializes r as-is (including its timestamp) and encrypts it.
func (c *Codec) EncodeRequest(r *ConnectRequest) ([]byte, error) {
	if len(r.Addr) == 0 {
		return nil, errors.Wrap(ErrMalformedHeader, "empty address")
	}
	if len(r.Addr) > MaxAddrLength {
		return nil, errors.Wrapf(ErrMalformedHeader, "address too long (%d bytes)", len(r.Addr))
	}

	buf := bytes.NewBuffer(make([]byte, 0, r.Length()))
	buf.WriteByte(r.Flag)
	binary.Write(buf, binary.BigEndian, uint16(len(r.Addr)))
	buf.WriteString(r.Addr)
	binary.Write(buf, binary.BigEndian, r.Port)
	binary.Write(buf, binary.BigEndian, r.Timestamp)

	return c.cipher.Encrypt(buf.Bytes())
}

// DecodeConnectRequest decrypts raw and parses exactly one request header.
func (c *Codec) DecodeConnectRequest(raw []byte) (*ConnectRequest, error) {
	plaintext, err := c.cipher.Decrypt(raw)
	if err != nil {
		return nil, err
	}

	reader := bytes.NewReader(plaintext)

	// FLAG
	flag, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(ErrMalformedHeader, "failed to read flag")
	}
	if !knownFlag(flag) {
		return nil, errors.Wrapf(ErrMalformedHeader, "unknown flag 0x%02x", flag)
	}

	// ADDR_LEN
	var addrLen uint16
	if err := binary.Read(reader, binary.BigEndian, &addrLen); err != nil {
		return nil, errors.Wrap(ErrMalformedHeader, "failed to read addr_len")
	}

	// ADDR
	addr := make([]byte, addrLen)
	if _, err := io.ReadFull(reader, addr); err != nil {
		return nil, errors.Wrapf(ErrMalformedHeader, "addr_len %d exceeds available bytes", addrLen)
	}

	// PORT
	var port uint16
	if err := binary.Read(reader, binary.BigEndian, &port); err != nil {
		return nil, errors.Wrap(ErrMalformedHeader, "failed to read port")
	}

	// TIMESTAMP
	var timestamp int64
	if err := binary.Read(reader, binary.BigEndian, &timestamp); err != nil {
		return nil, errors.Wrap(ErrMalformedHeader, "failed to read timestamp")
	}

	if reader.Len() != 0 {
		return nil, errors.Wrapf(ErrMalformedHeader, "%d trailing bytes after request", reader.Len())
	}

	return &ConnectRequest{
		Flag:      flag,
		Addr:      string(addr),
		Port:      port,
		Timestamp: timestamp,
	}, nil
}

// RequestLength returns the full encoded length of the request starting at
// prefix. ok is false until RequestPrefixLength bytes are available.
func (c *Codec) RequestLength(prefix []byte) (n int, ok bool, err error) {
	if len(prefix) < RequestPrefixLength {
		return 0, false, nil
	}

	plaintext, err := c.cipher.Decrypt(prefix[:RequestPrefixLength])
	if err != nil {
		return 0, false, err
	}

	if !knownFlag(plaintext[0]) {
		return 0, false, errors.Wrapf(ErrMalformedHeader, "unknown flag 0x%02x", plaintext[0])
	}

	addrLen := int(binary.BigEndian.Uint16(plaintext[1:RequestPrefixLength]))
	return requestFixedLength + addrLen, true, nil
}
