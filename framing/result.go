package framing

import "fmt"

type Kind int

const (
	// Incomplete: not enough bytes yet to parse the header.
	Incomplete Kind = iota
	// Parsed: header parsed and its timestamp is inside the replay window.
	Parsed
	// ReplaySuspected: header parsed but its timestamp is outside the window.
	ReplaySuspected
	// Passthrough: the header was handled earlier, the chunk is payload.
	Passthrough
)

func (k Kind) String() string {
	switch k {
	case Incomplete:
		return "incomplete"
	case Parsed:
		return "parsed"
	case ReplaySuspected:
		return "replay-suspected"
	case Passthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is what the decoder learned from a chunk.
type Result struct {
	Kind Kind

	Addr      string
	Port      uint16
	Timestamp int64

	// Reason is set for ReplaySuspected.
	Reason string
}
