// Package fetch retrieves remote audio bytes over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"podpress/pkg/logger"
	"podpress/pkg/retry"
	"podpress/pkg/types"
)

// HTTPFetcher downloads track bytes with bounded retries. Transient
// failures (connection errors, 5xx) are retried; 4xx responses are not.
type HTTPFetcher struct {
	httpClient *http.Client
	retryCfg   retry.Config
	log        *logger.Logger
}

// NewHTTPFetcher creates a fetcher from pipeline config.
func NewHTTPFetcher(cfg types.PipelineConfig, log *logger.Logger) *HTTPFetcher {
	timeout := time.Duration(cfg.FetchTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBackoffMs > 0 {
		retryCfg.Delay = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}

	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		log:        log,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Fetch downloads the bytes behind a URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	var permErr error

	err := retry.Do(ctx, f.retryCfg, func() error {
		d, attemptErr := f.fetchOnce(ctx, url)
		if attemptErr != nil {
			var perm *permanentError
			if errors.As(attemptErr, &perm) {
				// Definitive rejection, no point retrying.
				permErr = perm.err
				return nil
			}
			f.log.Warn("fetch attempt failed", zap.String("url", url), zap.Error(attemptErr))
			return attemptErr
		}
		data = d
		return nil
	})
	if err == nil {
		err = permErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return data, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, &permanentError{err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	default:
		return nil, &permanentError{fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}
