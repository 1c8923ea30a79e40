//go:build unix

package service

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the process group led by proc, so helpers a
// wrapper script forked receive it too. The group outlives its leader while
// any member is alive.
func signalGroup(proc *os.Process, sig os.Signal) error {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return proc.Signal(sig)
	}
	err := unix.Kill(-proc.Pid, num)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

func killGroup(proc *os.Process) error {
	return signalGroup(proc, syscall.SIGKILL)
}

// exitSignal reports the name of the signal that terminated the process.
func exitSignal(state *os.ProcessState) (string, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	if name := unix.SignalName(ws.Signal()); name != "" {
		return name, true
	}
	return ws.Signal().String(), true
}
