//go:build linux

package processes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var errStartTicksUnsupported = errors.New("process start time is not available on this platform")

// WaitForStartTimeTicks waits for /proc stat start time to become available.
func WaitForStartTimeTicks(pid int, timeout time.Duration) uint64 {
	if pid <= 0 {
		return 0
	}
	if timeout <= 0 {
		timeout = defaultStartProbeWait
	}

	deadline := time.Now().Add(timeout)
	for {
		if ticks, err := ReadStartTimeTicks(pid); err == nil && ticks > 0 {
			return ticks
		}
		if time.Now().After(deadline) {
			return 0
		}
		time.Sleep(defaultStartProbeInterval)
	}
}

// ReadStartTimeTicks reads the process start time from /proc/<pid>/stat.
func ReadStartTimeTicks(pid int) (uint64, error) {
	if pid <= 0 {
		return 0, fmt.Errorf("invalid process pid")
	}

	raw, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, err
	}

	// The command name may contain spaces and parentheses; fields resume
	// after the last ')'.
	line := strings.TrimSpace(string(raw))
	closing := strings.LastIndex(line, ")")
	if closing < 0 || closing+1 >= len(line) {
		return 0, fmt.Errorf("unexpected /proc stat format")
	}

	fields := strings.Fields(line[closing+1:])
	if len(fields) <= 19 {
		return 0, fmt.Errorf("unexpected /proc stat field count")
	}
	return strconv.ParseUint(fields[19], 10, 64)
}
