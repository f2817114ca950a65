// Package transport wires the call interceptor into net/http and gRPC
// clients. For typical usage prefer callspan.NewClient and
// Callspan.UnaryClientInterceptor.
package transport

import (
	"fmt"
	"net/http"

	"github.com/kzs0/callspan/intercept"
	tracehttp "github.com/kzs0/callspan/trace/http"
)

// Transport is an http.RoundTripper that wraps every request in a client
// span. It writes the span identity into the request headers, tags the span
// from the request and response, and closes it when RoundTrip returns.
type Transport struct {
	// Base performs the request. Nil means http.DefaultTransport.
	Base http.RoundTripper

	// Interceptor starts the spans. Nil passes requests through untouched.
	Interceptor *intercept.Interceptor
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	if t.Interceptor == nil {
		return t.base().RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	if out.Header == nil {
		out.Header = make(http.Header)
	}

	ctx, guard := t.Interceptor.Start(out.Context(), intercept.Call{
		URL:     out.URL,
		Method:  out.Method,
		Headers: out.Header,
		Carrier: tracehttp.HeaderCarrier(out.Header),
	})
	defer func() {
		if r := recover(); r != nil {
			guard.Finish(fmt.Errorf("transport: panic: %v", r))
			panic(r)
		}
		guard.Finish(err)
	}()

	resp, err = t.base().RoundTrip(out.WithContext(ctx))
	if err == nil && resp != nil {
		guard.TagResponse(resp.StatusCode)
	}
	return resp, err
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
