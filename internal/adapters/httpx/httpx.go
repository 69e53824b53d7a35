// Package httpx holds the HTTP plumbing shared by the outbound adapters.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/version"
)

// StatusOverloaded is the non-standard status some generative APIs return
// when they shed load.
const StatusOverloaded = 529

// NewClient returns an http.Client with a bounded per-call timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// SetCommonHeaders sets the headers every outbound request carries.
func SetCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
}

// IsTransientStatus reports whether a response status is worth retrying.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout, StatusOverloaded:
		return true
	}
	return false
}

// CheckResponse turns a non-2xx response into an error, transient when the
// status says so. The body snippet is kept short.
func CheckResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	if IsTransientStatus(resp.StatusCode) {
		return secondary.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// WrapTransportError classifies an error from http.Client.Do. Once the
// caller's context is done the error is final; any other transport failure
// (timeout, refused or reset connection) is transient.
func WrapTransportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return secondary.Transient(op, err)
}
