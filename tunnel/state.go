package tunnel

import "fmt"

// State is the lifecycle of one tunnelled connection.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingReply
	StateProxying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingReply:
		return "awaiting-reply"
	case StateProxying:
		return "proxying"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}
