package protocol

import (
	"time"

	"github.com/pkg/errors"
)

// ReplayWindow is the maximum distance between a header's timestamp and the
// receiver's clock.
const ReplayWindow = 60 * time.Second

// Fresh reports whether |now - timestamp| is strictly inside ReplayWindow.
func Fresh(now time.Time, timestamp int64) bool {
	return abs(now.UnixMilli()-timestamp) < ReplayWindow.Milliseconds()
}

// CheckFresh returns ErrReplaySuspected when timestamp is outside the window.
func CheckFresh(now time.Time, timestamp int64) error {
	if Fresh(now, timestamp) {
		return nil
	}

	return errors.Wrapf(
		ErrReplaySuspected,
		"timestamp %d is %dms away from local clock (window %dms)",
		timestamp,
		abs(now.UnixMilli()-timestamp),
		ReplayWindow.Milliseconds(),
	)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
