//go:build unix

package processes

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Inspect evaluates whether a recorded launcher is still running. A live pid
// whose start time differs from the recorded one belongs to another process.
func Inspect(record Record) RuntimeState {
	state := RuntimeState{Status: StatusUnknown}
	if record.PID <= 0 {
		state.CheckError = "invalid process pid"
		return state
	}

	exists, err := Alive(record.PID)
	if err != nil {
		state.CheckError = err.Error()
		return state
	}
	if !exists {
		state.Status = StatusExited
		return state
	}

	state.Status = StatusRunning
	state.Running = true

	startTicks, err := ReadStartTimeTicks(record.PID)
	if err != nil {
		if !errors.Is(err, errStartTicksUnsupported) {
			state.CheckError = err.Error()
		}
		return state
	}
	state.ObservedStartTimeTicks = startTicks

	if record.StartTimeTicks > 0 && startTicks > 0 && startTicks != record.StartTimeTicks {
		state.Status = StatusStale
		state.Running = false
	}
	return state
}

// Terminate asks the launcher at pid to shut its stack down and waits for it
// to exit. The launcher needs up to twice its stop timeout, so callers should
// allow for that.
func Terminate(pid int, timeout time.Duration) error {
	if pid <= 0 {
		return fmt.Errorf("invalid process pid")
	}
	if timeout <= 0 {
		timeout = defaultTerminateTimeout
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		exists, err := Alive(pid)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("process %d did not exit within %s", pid, timeout)
		}
		time.Sleep(defaultProbeInterval)
	}
}

// Alive reports whether pid refers to a live process.
func Alive(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid process pid")
	}

	err := syscall.Kill(pid, syscall.Signal(0))
	switch {
	case err == nil, errors.Is(err, syscall.EPERM):
		return true, nil
	case errors.Is(err, syscall.ESRCH):
		return false, nil
	default:
		return false, err
	}
}
