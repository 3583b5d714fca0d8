package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"library-client/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// ClientOptions configures a backend client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	// Limiter throttles outbound calls. Nil means unlimited.
	Limiter *rate.Limiter
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// endpoint issues JSON requests to one backend. It never retries.
type endpoint struct {
	service string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newEndpoint(service string, opts ClientOptions) *endpoint {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &endpoint{
		service: service,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		limiter: limiter,
		log:     opts.Logger.With().Str("service", service).Logger(),
	}
}

// do sends in as the JSON body (when non-nil) and decodes a 2xx answer into
// out (when non-nil). token, when non-empty, is sent as a bearer credential.
func (e *endpoint) do(ctx context.Context, method, path, token string, in, out any) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := e.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(e.service, method, 0, elapsed)
		e.log.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("request failed")
		return err
	}
	defer resp.Body.Close()
	metrics.ObserveRequest(e.service, method, resp.StatusCode, elapsed)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	e.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Str("request_id", reqID).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Service: e.service,
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: serverMessage(raw),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
