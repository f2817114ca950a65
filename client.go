package callspan

import (
	"context"
	"io"
	"net/http"
)

// instrumentedTransport resolves the Callspan from each request's context.
type instrumentedTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return fromContext(req.Context()).Transport(t.base).RoundTrip(req)
}

// NewClient creates an http.Client whose requests get client spans from the
// Callspan attached to each request's context. Requests without one pass
// through untouched.
//
// Usage:
//
//	client := callspan.NewClient(nil)  // Uses default HTTP client settings
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/users", nil)
//	resp, err := client.Do(req)
func NewClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	return &http.Client{
		Transport:     &instrumentedTransport{base: base.Transport},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}

// Do executes req with ctx through a client span.
//
// For better performance with multiple requests, create a client once with
// NewClient and reuse it.
func Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return fromContext(ctx).Transport(nil).RoundTrip(req)
}

// Get is a convenience function for GET requests.
func Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return Do(ctx, req)
}

// Post is a convenience function for POST requests.
func Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return Do(ctx, req)
}
