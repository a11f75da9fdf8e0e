package core

import (
	"github.com/go-zoox/potato/crypto"
	"github.com/go-zoox/potato/network"
	"github.com/go-zoox/potato/protocol"
)

const (
	DefaultAlgorithm = crypto.DefaultAlgorithm
	DefaultMethod    = network.MethodTCP
	DefaultMode      = protocol.ModeHandshake

	DefaultServerPort = 8888
	DefaultLocalHost  = "127.0.0.1"
	DefaultLocalPort  = 1080

	DefaultDialRetries = 2
	// DefaultReplyTimeout is in milliseconds; 0 waits forever.
	DefaultReplyTimeout = 0
	// DefaultDialTimeout is in milliseconds.
	DefaultDialTimeout = 10000
)
