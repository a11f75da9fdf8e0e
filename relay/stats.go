package relay

import "sync/atomic"

type Stats struct {
	Accepted       int64 `json:"accepted"`
	Active         int64 `json:"active"`
	ReplaySuspects int64 `json:"replay_suspects"`
	Failures       int64 `json:"failures"`
}

type counters struct {
	accepted atomic.Int64
	active   atomic.Int64
	replays  atomic.Int64
	failures atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Accepted:       c.accepted.Load(),
		Active:         c.active.Load(),
		ReplaySuspects: c.replays.Load(),
		Failures:       c.failures.Load(),
	}
}
