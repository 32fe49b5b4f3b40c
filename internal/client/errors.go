package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for upstream failures. Handlers map these to HTTP statuses
// with errors.Is. No retries happen at this layer; a failed call surfaces
// immediately so the caller sees the real latency.
var (
	ErrCityNotFound        = errors.New("city not found")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamHTTP        = errors.New("upstream http error")
	ErrUpstreamDataInvalid = errors.New("upstream data invalid")
)

// wrapTransportError classifies a transport-level failure from http.Client.Do
// into the timeout or connection sentinel.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// checkStatus returns ErrUpstreamHTTP for any non-2xx response.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamHTTP, resp.StatusCode)
	}
	return nil
}
