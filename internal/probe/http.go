package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProber checks whether a URL answers with a non-error status.
type HTTPProber interface {
	Check(ctx context.Context, url string) error
}

type httpProber struct {
	client *http.Client
}

// NewHTTPProber builds an HTTP prober issuing HEAD requests to keep
// bandwidth usage minimal.
func NewHTTPProber(timeout time.Duration) HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpProber{client: &http.Client{Timeout: timeout}}
}

func (p *httpProber) Check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("build request for '%s': %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request '%s': %w", url, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("'%s' returned status %d", url, resp.StatusCode)
	}
	return nil
}
