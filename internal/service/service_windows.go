//go:build windows

package service

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// signalGroup only reaches proc itself; windows has no group signals.
func signalGroup(proc *os.Process, sig os.Signal) error {
	return proc.Signal(sig)
}

func killGroup(proc *os.Process) error {
	return proc.Kill()
}

func exitSignal(*os.ProcessState) (string, bool) {
	return "", false
}
