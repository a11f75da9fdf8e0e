package protocol

import "fmt"

const (
	FlagControl uint8 = 0x86
	FlagInline  uint8 = 0x01
)

const (
	// ModeHandshake exchanges a request and a reply before any payload.
	ModeHandshake = "handshake"
	// ModeInline prefixes the request header to the first payload chunk and
	// does not wait for a reply.
	ModeInline = "inline"
)

const (
	// ReplyLength is the length of an encoded connect reply.
	ReplyLength = 1 + 1 + 8

	// RequestPrefixLength is the number of bytes needed to learn a request's length.
	RequestPrefixLength = 1 + 2

	requestFixedLength = 1 + 2 + 2 + 8

	MaxAddrLength = 0xffff
)

// ReplyCode is the SIG field of a connect reply.
type ReplyCode int8

const (
	ReplySucceeded               ReplyCode = 0x00
	ReplyGeneralFailure          ReplyCode = 0x01
	ReplyConnectionNotAllowed    ReplyCode = 0x02
	ReplyNetworkUnreachable      ReplyCode = 0x03
	ReplyHostUnreachable         ReplyCode = 0x04
	ReplyConnectionRefused       ReplyCode = 0x05
	ReplyTTLExpired              ReplyCode = 0x06
	ReplyCommandNotSupported     ReplyCode = 0x07
	ReplyAddressTypeNotSupported ReplyCode = 0x08
)

var replyCodeNames = map[ReplyCode]string{
	ReplySucceeded:               "succeeded",
	ReplyGeneralFailure:          "general failure",
	ReplyConnectionNotAllowed:    "connection not allowed",
	ReplyNetworkUnreachable:      "network unreachable",
	ReplyHostUnreachable:         "host unreachable",
	ReplyConnectionRefused:       "connection refused",
	ReplyTTLExpired:              "ttl expired",
	ReplyCommandNotSupported:     "command not supported",
	ReplyAddressTypeNotSupported: "address type not supported",
}

func (c ReplyCode) String() string {
	if name, ok := replyCodeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("undefined(0x%02x)", uint8(c))
}

// Defined reports whether c is one of 0x00-0x08.
func (c ReplyCode) Defined() bool {
	_, ok := replyCodeNames[c]
	return ok
}
