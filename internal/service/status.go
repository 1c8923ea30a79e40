package service

// Status is the externally visible state of a Service.
type Status string

const (
	// Started is reported as soon as a spawn attempt is issued, before the OS
	// confirms it. A failed spawn is observed as Started followed by Stopped.
	Started  Status = "started"
	Stopping Status = "stopping"
	Stopped  Status = "stopped"
)

func (s Status) String() string {
	return string(s)
}

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseExited
)
