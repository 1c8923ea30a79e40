package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ServiceStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_service_starts_total",
		Help: "Spawn attempts per executable",
	}, []string{"exe"})

	ServiceExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_service_exits_total",
		Help: "Process terminations per executable and cause (code, signal, error)",
	}, []string{"exe", "cause"})

	ServicesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launcher_services_running",
		Help: "Supervised processes currently alive",
	})

	ProbeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_probe_attempts_total",
		Help: "Readiness probe requests by result",
	}, []string{"result"})

	StartDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "launcher_start_duration_seconds",
		Help:    "Time from launcher start until the wallet API answered",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	LauncherExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launcher_exits_total",
		Help: "Launcher completions by exit code",
	}, []string{"code"})
)

// Serve exposes the default registry on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
