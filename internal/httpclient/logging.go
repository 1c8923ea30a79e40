package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walletstack/cardano-launcher/internal/log"
)

const (
	DefaultTimeout = 5 * time.Second

	redactedValue = "[REDACTED]"
	maxBodyLog    = 1000
)

// Doer is the subset of *http.Client the launcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LoggingHTTPClient wraps an HTTP client. Requests are logged at debug level,
// headers and error bodies additionally at trace level.
type LoggingHTTPClient struct {
	wrapped Doer
	logger  *slog.Logger
}

func NewLoggingHTTPClient(logger *slog.Logger) *LoggingHTTPClient {
	return NewLoggingHTTPClientWithClient(&http.Client{Timeout: DefaultTimeout}, logger)
}

// NewLoggingHTTPClientWithClient wraps an existing client.
func NewLoggingHTTPClientWithClient(client Doer, logger *slog.Logger) *LoggingHTTPClient {
	if logger == nil {
		logger = log.Discard()
	}
	return &LoggingHTTPClient{wrapped: client, logger: logger}
}

func (c *LoggingHTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return c.wrapped.Do(req)
	}

	requestID := uuid.NewString()
	trace := c.logger.Enabled(ctx, log.LevelTrace)
	c.logRequest(req, requestID, trace)

	start := time.Now()
	resp, err := c.wrapped.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "HTTP request failed",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("route", req.URL.Path),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logResponse(req, resp, requestID, duration, trace)
	return resp, nil
}

func (c *LoggingHTTPClient) logRequest(req *http.Request, requestID string, trace bool) {
	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("host", req.URL.Host),
		slog.String("route", req.URL.Path),
	}
	level := slog.LevelDebug
	if trace {
		level = log.LevelTrace
		attrs = append(attrs, slog.Any("headers", redactHeaders(req.Header)))
	}
	c.logger.LogAttrs(req.Context(), level, "HTTP request", attrs...)
}

func (c *LoggingHTTPClient) logResponse(
	req *http.Request, resp *http.Response, requestID string, duration time.Duration, trace bool,
) {
	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", duration),
	}
	level := slog.LevelDebug
	if trace {
		level = log.LevelTrace
		attrs = append(attrs, slog.Any("headers", redactHeaders(resp.Header)))
		if resp.StatusCode >= 400 {
			if body, err := peekResponseBody(resp); err == nil && body != "" {
				if len(body) > maxBodyLog {
					body = fmt.Sprintf("%s... [truncated, total %d bytes]", body[:maxBodyLog], len(body))
				}
				attrs = append(attrs, slog.String("error_body", body))
			}
		}
	}
	c.logger.LogAttrs(req.Context(), level, "HTTP response", attrs...)
}

func redactHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for k, v := range h {
		key := strings.ToLower(k)
		if key == "authorization" || key == "set-cookie" || key == "cookie" || strings.Contains(key, "token") {
			headers[k] = redactedValue
			continue
		}
		headers[k] = strings.Join(v, ", ")
	}
	return headers
}

// peekResponseBody reads the body and puts it back for the caller.
func peekResponseBody(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return string(data), nil
}
