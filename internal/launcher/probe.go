package launcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/walletstack/cardano-launcher/internal/httpclient"
	"github.com/walletstack/cardano-launcher/internal/log"
	"github.com/walletstack/cardano-launcher/internal/metrics"
	"github.com/walletstack/cardano-launcher/internal/service"
)

const (
	DefaultProbeInterval = 250 * time.Millisecond
	probePath            = "network/information"
)

// Probe polls the wallet API until it answers. It has no deadline of its own:
// it gives up when the watched service exits or the context is done.
type Probe struct {
	Client   httpclient.Doer
	Interval time.Duration
	Logger   log.Logger
}

func (p *Probe) WaitForAPI(ctx context.Context, api APIInfo, svc *service.Service) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	logger := p.Logger
	if logger == nil {
		logger = log.Discard()
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: httpclient.DefaultTimeout}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	url := api.URL(probePath)
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-svc.Done():
			return serviceExited(svc)
		default:
		}

		err := p.attempt(ctx, client, url)
		if err == nil {
			metrics.ProbeAttempts.WithLabelValues("ready").Inc()
			logger.Debug("wallet API is ready", "url", url, "attempts", attempt)
			return nil
		}
		metrics.ProbeAttempts.WithLabelValues("not_ready").Inc()
		logger.Debug("wallet API not ready", "url", url, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-svc.Done():
			return serviceExited(svc)
		case <-ticker.C:
		}
	}
}

func (p *Probe) attempt(ctx context.Context, client httpclient.Doer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func serviceExited(svc *service.Service) error {
	status, _ := svc.Exit()
	return fmt.Errorf("%w: %s", ErrServiceExited, status)
}
