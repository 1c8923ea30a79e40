package launcher

import (
	"errors"
	"strings"

	"github.com/walletstack/cardano-launcher/internal/service"
)

var (
	ErrServiceExited = errors.New("service exited before the API was ready")
	ErrMissingConfig = errors.New("incomplete launcher configuration")
)

// ExitStatus aggregates how both services ended.
type ExitStatus struct {
	Wallet service.ExitStatus `json:"wallet" yaml:"wallet"`
	Node   service.ExitStatus `json:"node" yaml:"node"`
	// Requested is set when teardown was asked for with Stop rather than
	// caused by a service exiting on its own.
	Requested bool `json:"requested" yaml:"requested"`
}

// Code maps the aggregate to a process exit code.
func (e ExitStatus) Code() int {
	for _, st := range []service.ExitStatus{e.Node, e.Wallet} {
		switch {
		case st.Err != nil:
			return 1
		case st.Signal != "" && !e.Requested:
			return 1
		case st.Code != nil && *st.Code != 0:
			return 1
		}
	}
	return 0
}

// Lines lists the termination causes, node first, skipping services that
// never ran.
func (e ExitStatus) Lines() []string {
	var lines []string
	for _, st := range []service.ExitStatus{e.Node, e.Wallet} {
		if st.Exited() {
			lines = append(lines, st.String())
		}
	}
	return lines
}

// StartError is returned by Start when the stack did not become ready. Its
// message holds one line per service that exited.
type StartError struct {
	Status ExitStatus
	Cause  error
}

func (e *StartError) Error() string {
	if lines := e.Status.Lines(); len(lines) > 0 {
		return strings.Join(lines, "\n")
	}
	if e.Cause != nil {
		return "launcher did not start: " + e.Cause.Error()
	}
	return "launcher was stopped before the wallet API was ready"
}

func (e *StartError) Unwrap() error {
	return e.Cause
}
