//go:build !linux

package processes

import (
	"errors"
	"time"
)

var errStartTicksUnsupported = errors.New("process start time is not available on this platform")

func WaitForStartTimeTicks(int, time.Duration) uint64 {
	return 0
}

func ReadStartTimeTicks(int) (uint64, error) {
	return 0, errStartTicksUnsupported
}
