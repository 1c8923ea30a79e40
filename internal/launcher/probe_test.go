//go:build unix

package launcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walletstack/cardano-launcher/internal/service"
)

func running(t *testing.T, cmd service.Command) *service.Service {
	t.Helper()
	svc := service.New(cmd, nil, service.WithStopTimeout(200*time.Millisecond))
	_, err := svc.Start()
	require.NoError(t, err)
	t.Cleanup(func() { svc.Stop(0) })
	return svc
}

func TestProbeWaitsForSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/network/information", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := NewAPIInfo(srv.Listener.Addr().(*net.TCPAddr).Port)
	probe := &Probe{Interval: 10 * time.Millisecond}

	err := probe.WaitForAPI(context.Background(), api, running(t, service.Command{Name: "cat"}))
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestProbeFailsWhenServiceExits(t *testing.T) {
	port := unusedPort(t)
	svc := running(t, service.Command{Name: "sh", Args: []string{"-c", "sleep 0.1; exit 3"}})

	probe := &Probe{Interval: 10 * time.Millisecond}
	err := probe.WaitForAPI(context.Background(), NewAPIInfo(port), svc)
	require.ErrorIs(t, err, ErrServiceExited)
	require.Contains(t, err.Error(), "sh exited with status 3")
}

func TestProbeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	probe := &Probe{Interval: 10 * time.Millisecond}
	err := probe.WaitForAPI(ctx, NewAPIInfo(unusedPort(t)), running(t, service.Command{Name: "cat"}))
	require.ErrorIs(t, err, context.Canceled)
}
