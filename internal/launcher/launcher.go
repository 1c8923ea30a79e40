// Package launcher runs a node and a wallet as one stack: the node starts
// first, the wallet once the node is ready, and either one exiting tears the
// other down.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/walletstack/cardano-launcher/internal/backend"
	"github.com/walletstack/cardano-launcher/internal/httpclient"
	"github.com/walletstack/cardano-launcher/internal/log"
	"github.com/walletstack/cardano-launcher/internal/metrics"
	"github.com/walletstack/cardano-launcher/internal/notify"
	"github.com/walletstack/cardano-launcher/internal/service"
)

type Config struct {
	StateDir string
	Backend  backend.Backend
	// APIPort is the wallet API port. Zero allocates a free port.
	APIPort       int
	ProbeInterval time.Duration
	// StopTimeout is the grace period before a service is killed.
	StopTimeout time.Duration
	// ChildOutput receives stdout and stderr of both services when set.
	ChildOutput io.Writer
	HTTPClient  httpclient.Doer
}

type Launcher struct {
	cfg    Config
	logger log.Logger
	runID  string
	api    APIInfo
	node   *service.Service
	wallet *service.Service
	probe  *Probe

	// ctx is cancelled when teardown begins.
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	startDone chan struct{}
	startErr  error

	stopOnce   sync.Once
	requested  atomic.Bool
	exitStatus ExitStatus
	exitFired  atomic.Bool

	mu    sync.Mutex
	ready bool

	readyEvents *notify.Emitter[APIInfo]
	exitEvents  *notify.Emitter[ExitStatus]
}

func New(cfg Config, logger log.Logger) (*Launcher, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: no node backend", ErrMissingConfig)
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("%w: no state directory", ErrMissingConfig)
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = service.DefaultStopTimeout
	}
	if cfg.APIPort == 0 {
		port, err := backend.FreePort()
		if err != nil {
			return nil, err
		}
		cfg.APIPort = port
	}
	if err := cfg.Backend.Prepare(cfg.StateDir); err != nil {
		return nil, fmt.Errorf("prepare %s backend: %w", cfg.Backend.Kind(), err)
	}

	output := childOutput(cfg.ChildOutput)
	nodeCmd := cfg.Backend.NodeCommand()
	walletCmd := cfg.Backend.WalletCommand(cfg.APIPort)
	if output != nil {
		nodeCmd.Stdout, nodeCmd.Stderr = output, output
		walletCmd.Stdout, walletCmd.Stderr = output, output
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Launcher{
		cfg:    cfg,
		logger: log.Named(logger, "launcher"),
		runID:  uuid.NewString(),
		api:    NewAPIInfo(cfg.APIPort),
		node: service.New(nodeCmd, log.Named(logger, "node"),
			service.WithStopTimeout(cfg.StopTimeout)),
		wallet: service.New(walletCmd, log.Named(logger, "wallet"),
			service.WithStopTimeout(cfg.StopTimeout)),
		ctx:         ctx,
		cancel:      cancel,
		startDone:   make(chan struct{}),
		readyEvents: notify.NewEmitter[APIInfo](),
		exitEvents:  notify.NewEmitter[ExitStatus](),
	}
	l.probe = &Probe{
		Client:   cfg.HTTPClient,
		Interval: cfg.ProbeInterval,
		Logger:   l.logger,
	}
	return l, nil
}

func (l *Launcher) RunID() string                   { return l.runID }
func (l *Launcher) NodeService() *service.Service   { return l.node }
func (l *Launcher) WalletService() *service.Service { return l.wallet }

// API returns the wallet API descriptor once the stack is ready.
func (l *Launcher) API() (APIInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.api, l.ready
}

// OnReady registers fn for the ready event.
func (l *Launcher) OnReady(fn func(APIInfo)) func() {
	return l.readyEvents.Subscribe(fn)
}

// OnExit registers fn for the exit event, which fires once per Launcher.
func (l *Launcher) OnExit(fn func(ExitStatus)) func() {
	return l.exitEvents.Subscribe(fn)
}

// Done is closed once teardown has completed.
func (l *Launcher) Done() <-chan struct{} {
	return l.exitEvents.Drained()
}

// Start brings the stack up and blocks until the wallet API answers or the
// stack fails. Concurrent and repeated calls share one attempt.
func (l *Launcher) Start() (APIInfo, error) {
	l.startOnce.Do(func() {
		go l.run()
	})
	<-l.startDone
	if l.startErr != nil {
		return APIInfo{}, l.startErr
	}
	return l.api, nil
}

// Stop tears the stack down, wallet first. Only the first call signals the
// services; every call returns the same aggregate.
func (l *Launcher) Stop(timeout time.Duration) ExitStatus {
	l.requested.CompareAndSwap(false, !l.isTerminating())
	return l.shutdown(timeout)
}

// Wait blocks until the stack has been torn down.
func (l *Launcher) Wait() ExitStatus {
	<-l.ctx.Done()
	return l.shutdown(0)
}

func (l *Launcher) run() {
	defer close(l.startDone)

	if l.isTerminating() {
		l.startErr = &StartError{Status: l.shutdown(0), Cause: context.Canceled}
		return
	}

	started := time.Now()
	go l.monitor()

	if err := l.bringUp(); err != nil {
		l.logger.Debug("start aborted", "error", err)
		l.startErr = &StartError{Status: l.shutdown(0), Cause: err}
		return
	}

	l.mu.Lock()
	if l.isTerminating() {
		l.mu.Unlock()
		l.startErr = &StartError{Status: l.shutdown(0), Cause: context.Canceled}
		return
	}
	l.ready = true
	l.readyEvents.Emit(l.api)
	l.mu.Unlock()

	metrics.StartDuration.Observe(time.Since(started).Seconds())
	l.logger.Info("wallet API is ready", "url", l.api.BaseURL, "run", l.runID)
}

func (l *Launcher) bringUp() error {
	l.logger.Info("starting node", "backend", string(l.cfg.Backend.Kind()), "network", l.cfg.Backend.Network())
	if _, err := l.node.Start(); err != nil {
		return err
	}
	if err := l.cfg.Backend.WaitForNode(l.ctx, l.node); err != nil {
		return err
	}
	if err := l.ctx.Err(); err != nil {
		return err
	}

	l.logger.Info("starting wallet", "port", l.api.Port)
	if _, err := l.wallet.Start(); err != nil {
		return err
	}
	return l.probe.WaitForAPI(l.ctx, l.api, l.wallet)
}

// monitor tears the stack down when either service exits on its own.
func (l *Launcher) monitor() {
	var exited *service.Service
	select {
	case <-l.ctx.Done():
		return
	case <-l.node.Done():
		exited = l.node
	case <-l.wallet.Done():
		exited = l.wallet
	}

	if l.isTerminating() {
		return
	}
	status, _ := exited.Exit()
	l.logger.Error("service exited unexpectedly", "exe", exited.Name(), "status", status.String())
	l.shutdown(0)
}

func (l *Launcher) shutdown(timeout time.Duration) ExitStatus {
	l.stopOnce.Do(func() {
		l.cancel()
		l.logger.Info("stopping", "requested", l.requested.Load())

		wallet := l.wallet.Stop(timeout)
		node := l.node.Stop(timeout)
		status := ExitStatus{Wallet: wallet, Node: node, Requested: l.requested.Load()}

		l.mu.Lock()
		l.ready = false
		l.exitStatus = status
		l.mu.Unlock()

		l.fireExit(status)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exitStatus
}

func (l *Launcher) fireExit(status ExitStatus) {
	if !l.exitFired.CompareAndSwap(false, true) {
		return
	}
	metrics.LauncherExits.WithLabelValues(strconv.Itoa(status.Code())).Inc()
	l.logger.Info("stopped", "node", status.Node.String(), "wallet", status.Wallet.String())
	l.readyEvents.Close()
	l.exitEvents.Emit(status)
	l.exitEvents.Close()
}

func (l *Launcher) isTerminating() bool {
	return errors.Is(l.ctx.Err(), context.Canceled)
}
