package protocol

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

type ConnectReply struct {
	Flag      uint8
	Sig       ReplyCode
	Timestamp int64
}

// EncodeConnectReply builds the reply header carrying code.
func (c *Codec) EncodeConnectReply(code ReplyCode) ([]byte, error) {
	return c.EncodeReply(&ConnectReply{
		Flag:      FlagControl,
		Sig:       code,
		Timestamp: c.Now().UnixMilli(),
	})
}

// EncodeReply serializes r as-is and encrypts it.
func (c *Codec) EncodeReply(r *ConnectReply) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, ReplyLength))
	buf.WriteByte(r.Flag)
	buf.WriteByte(byte(r.Sig))
	binary.Write(buf, binary.BigEndian, r.Timestamp)

	return c.cipher.Encrypt(buf.Bytes())
}

// DecodeConnectReply decrypts raw and parses exactly one reply header.
func (c *Codec) DecodeConnectReply(raw []byte) (*ConnectReply, error) {
	if len(raw) != ReplyLength {
		return nil, errors.Wrapf(ErrMalformedHeader, "reply length %d, expect %d", len(raw), ReplyLength)
	}

	plaintext, err := c.cipher.Decrypt(raw)
	if err != nil {
		return nil, err
	}

	flag := plaintext[0]
	if flag != FlagControl {
		return nil, errors.Wrapf(ErrMalformedHeader, "unexpected reply flag 0x%02x", flag)
	}

	return &ConnectReply{
		Flag:      flag,
		Sig:       ReplyCode(int8(plaintext[1])),
		Timestamp: int64(binary.BigEndian.Uint64(plaintext[2:ReplyLength])),
	}, nil
}
