package service

import (
	"encoding/json"
	"fmt"
)

// ExitStatus records how a process ended. At most one of Code, Signal and Err
// is set.
type ExitStatus struct {
	Exe    string
	Code   *int
	Signal string
	Err    error
}

func exitedWithCode(exe string, code int) ExitStatus {
	return ExitStatus{Exe: exe, Code: &code}
}

// Exited reports whether a termination cause has been recorded.
func (e ExitStatus) Exited() bool {
	return e.Code != nil || e.Signal != "" || e.Err != nil
}

// Cause names which field carries the termination cause.
func (e ExitStatus) Cause() string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Signal != "":
		return "signal"
	case e.Code != nil:
		return "code"
	default:
		return "none"
	}
}

// String is the user-facing message, e.g. "cardano-node exited with status 1".
func (e ExitStatus) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s failed to start: %v", e.Exe, e.Err)
	case e.Signal != "":
		return fmt.Sprintf("%s exited with status %s", e.Exe, e.Signal)
	case e.Code != nil:
		return fmt.Sprintf("%s exited with status %d", e.Exe, *e.Code)
	default:
		return e.Exe + " was not started"
	}
}

type exitStatusJSON struct {
	Exe    string  `json:"exe" yaml:"exe"`
	Code   *int    `json:"code" yaml:"code"`
	Signal *string `json:"signal" yaml:"signal"`
	Err    *string `json:"err" yaml:"err"`
}

func (e ExitStatus) wire() exitStatusJSON {
	out := exitStatusJSON{Exe: e.Exe, Code: e.Code}
	if e.Signal != "" {
		sig := e.Signal
		out.Signal = &sig
	}
	if e.Err != nil {
		msg := e.Err.Error()
		out.Err = &msg
	}
	return out
}

func (e ExitStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// MarshalYAML keeps the YAML output in the same shape as JSON.
func (e ExitStatus) MarshalYAML() (any, error) {
	return e.wire(), nil
}
