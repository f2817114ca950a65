// Package http adapts net/http headers to the trace.Carrier interface.
package http

import (
	"net/http"

	"github.com/kzs0/callspan/trace"
)

// HeaderCarrier is a trace.Carrier over http.Header.
//
// Keys are canonicalized the way net/http does, so lookups are
// case-insensitive. Usage:
//
//	trace.B3Injector{}.Inject(span, HeaderCarrier(req.Header))
type HeaderCarrier http.Header

var _ trace.Carrier = HeaderCarrier(nil)

// Get returns the first value of key.
func (c HeaderCarrier) Get(key string) (string, bool) {
	values := http.Header(c).Values(key)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Put replaces every value of key with value unless value is blank.
func (c HeaderCarrier) Put(key, value string) {
	if trace.IsBlank(value) {
		return
	}
	http.Header(c).Set(key, value)
}

// Range visits each header with its first value.
func (c HeaderCarrier) Range(fn func(key, value string) bool) {
	for k, values := range c {
		v := ""
		if len(values) > 0 {
			v = values[0]
		}
		if !fn(k, v) {
			return
		}
	}
}
