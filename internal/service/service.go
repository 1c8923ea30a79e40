// Package service supervises a single OS process: idempotent start and stop,
// graceful shutdown with kill escalation, and exit status capture.
package service

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/walletstack/cardano-launcher/internal/log"
	"github.com/walletstack/cardano-launcher/internal/metrics"
	"github.com/walletstack/cardano-launcher/internal/notify"
	"github.com/walletstack/cardano-launcher/internal/processes"
)

const (
	// DefaultStopTimeout is how long Stop waits for a graceful exit before
	// killing the process.
	DefaultStopTimeout = 15 * time.Second

	// waitDelay bounds how long Wait keeps copying output after the process
	// exits, in case a grandchild inherited the pipes.
	waitDelay = 2 * time.Second
)

// ErrStoppedBeforeStart is returned by Start when Stop was called first.
var ErrStoppedBeforeStart = errors.New("service was stopped before it was started")

// Command describes the process a Service runs.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the parent environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
	// StopSignal is sent along with closing stdin when a stop is requested.
	// Leave nil for programs that shut down on stdin EOF.
	StopSignal os.Signal
}

// Option configures a Service.
type Option func(*Service)

// WithStopTimeout sets the grace period used by Stop calls without a timeout.
// Non-positive values keep the default.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithName overrides the executable name used in exit statuses and logs.
func WithName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.name = name
		}
	}
}

// Service supervises one run of a Command. It starts the process at most
// once; after it has stopped a new Service is needed to run it again.
type Service struct {
	command     Command
	name        string
	logger      log.Logger
	stopTimeout time.Duration
	events      *notify.Emitter[Status]

	mu                 sync.Mutex
	phase              phase
	status             Status
	stopping           bool
	stoppedBeforeStart bool
	proc               *os.Process
	stdin              io.Closer
	pid                int
	exit               ExitStatus
	exited             chan struct{}
}

// New prepares a Service for cmd without starting it. A nil logger discards
// log output.
func New(cmd Command, logger log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Service{
		command:     cmd,
		name:        filepath.Base(cmd.Name),
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		events:      notify.NewEmitter[Status](),
		status:      Stopped,
		exited:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name is the executable name used in exit statuses and logs.
func (s *Service) Name() string {
	return s.name
}

// Subscribe registers fn for status changes. Changes are delivered in order,
// asynchronously, so fn may call back into the Service.
func (s *Service) Subscribe(fn func(Status)) func() {
	return s.events.Subscribe(fn)
}

// Status reports the last status change.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start spawns the process once and returns its pid. Every later or
// concurrent call returns the same pid. A spawn failure does not fail the
// call that attempted it; the error is recorded in the exit status and any
// subsequent Start returns it.
func (s *Service) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case phaseRunning:
		return s.pid, nil
	case phaseExited:
		if s.stoppedBeforeStart {
			return 0, ErrStoppedBeforeStart
		}
		return s.pid, s.exit.Err
	}

	s.setStatusLocked(Started)
	metrics.ServiceStarts.WithLabelValues(s.name).Inc()

	cmd := exec.Command(s.command.Name, s.command.Args...)
	cmd.Dir = s.command.Dir
	if len(s.command.Env) > 0 {
		cmd.Env = append(os.Environ(), s.command.Env...)
	}
	cmd.Stdout = s.command.Stdout
	cmd.Stderr = s.command.Stderr
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		if stdin != nil {
			_ = stdin.Close()
		}
		s.logger.Error("failed to start process", "exe", s.name, "error", err)
		s.finishLocked(ExitStatus{Exe: s.name, Err: err})
		return 0, nil
	}

	s.phase = phaseRunning
	s.proc = cmd.Process
	s.pid = cmd.Process.Pid
	s.stdin = stdin
	metrics.ServicesRunning.Inc()
	s.logger.Info("process spawned",
		"exe", s.name,
		"pid", s.pid,
		"args", processes.RedactArgs(s.command.Args))

	go s.wait(cmd)
	return s.pid, nil
}

// Stop requests a graceful shutdown and kills the process if it is still
// alive after timeout. A timeout <= 0 uses the configured default. Only the
// first request signals the process; every call returns the same status.
func (s *Service) Stop(timeout time.Duration) ExitStatus {
	if timeout <= 0 {
		timeout = s.stopTimeout
	}

	s.mu.Lock()
	switch s.phase {
	case phaseIdle:
		s.stoppedBeforeStart = true
		s.phase = phaseExited
		s.exit = ExitStatus{Exe: s.name}
		status := s.exit
		close(s.exited)
		s.events.Close()
		s.mu.Unlock()
		return status
	case phaseRunning:
		if !s.stopping {
			s.stopping = true
			s.setStatusLocked(Stopping)
			go s.terminate(s.proc, s.stdin, timeout)
		}
	}
	s.mu.Unlock()

	return s.WaitForExit()
}

// WaitForExit blocks until the process has ended, without requesting it.
func (s *Service) WaitForExit() ExitStatus {
	<-s.exited
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exit
}

// Done is closed once the exit status is final.
func (s *Service) Done() <-chan struct{} {
	return s.exited
}

// Exit returns the recorded exit status and whether the process has ended.
func (s *Service) Exit() (ExitStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exit, s.phase == phaseExited
}

// Process returns the OS process while it is running.
func (s *Service) Process() *os.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseRunning {
		return nil
	}
	return s.proc
}

// PID returns the process id while it is running, else 0.
func (s *Service) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseRunning {
		return 0
	}
	return s.pid
}

func (s *Service) terminate(proc *os.Process, stdin io.Closer, timeout time.Duration) {
	s.logger.Debug("requesting shutdown", "exe", s.name, "pid", proc.Pid, "timeout", timeout)
	if stdin != nil {
		_ = stdin.Close()
	}
	if sig := s.command.StopSignal; sig != nil {
		if err := signalGroup(proc, sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Debug("failed to signal process", "exe", s.name, "signal", sig.String(), "error", err)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.exited:
		// Descendants left behind by the leader go with it.
		_ = killGroup(proc)
		return
	case <-timer.C:
	}

	s.logger.Info("process did not stop in time, killing", "exe", s.name, "pid", proc.Pid)
	if err := killGroup(proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Error("failed to kill process", "exe", s.name, "pid", proc.Pid, "error", err)
	}
}

func (s *Service) wait(cmd *exec.Cmd) {
	waitErr := cmd.Wait()

	status := ExitStatus{Exe: s.name}
	switch state := cmd.ProcessState; {
	case state == nil:
		status.Err = waitErr
	default:
		if sig, ok := exitSignal(state); ok {
			status.Signal = sig
		} else {
			status = exitedWithCode(s.name, state.ExitCode())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.ServicesRunning.Dec()
	s.logger.Info(status.String(), "exe", s.name, "pid", s.pid)
	s.finishLocked(status)
}

// finishLocked records the exit and emits Stopped. s.mu must be held.
func (s *Service) finishLocked(status ExitStatus) {
	s.exit = status
	s.phase = phaseExited
	s.proc = nil
	s.stdin = nil
	metrics.ServiceExits.WithLabelValues(s.name, status.Cause()).Inc()
	s.setStatusLocked(Stopped)
	s.events.Close()
	close(s.exited)
}

func (s *Service) setStatusLocked(status Status) {
	s.status = status
	s.logger.Debug("status changed", "exe", s.name, "status", status.String())
	s.events.Emit(status)
}
