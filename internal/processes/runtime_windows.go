//go:build windows

package processes

import (
	"fmt"
	"runtime"
	"time"
)

func unsupported(op string) error {
	return fmt.Errorf("%s is not supported on %s", op, runtime.GOOS)
}

// Inspect returns StatusUnknown on Windows.
func Inspect(record Record) RuntimeState {
	state := RuntimeState{Status: StatusUnknown}
	if record.PID <= 0 {
		state.CheckError = "invalid process pid"
		return state
	}
	state.CheckError = unsupported("process inspection").Error()
	return state
}

func Terminate(pid int, _ time.Duration) error {
	if pid <= 0 {
		return fmt.Errorf("invalid process pid")
	}
	return unsupported("process termination")
}

func Alive(pid int) (bool, error) {
	return false, unsupported("process inspection")
}
