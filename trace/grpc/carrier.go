// Package grpc adapts gRPC metadata to the trace.Carrier interface.
package grpc

import (
	"google.golang.org/grpc/metadata"

	"github.com/kzs0/callspan/trace"
)

// MetadataCarrier is a trace.Carrier over gRPC metadata.
// gRPC lowercases metadata keys, so B3 headers travel as x-b3-traceid etc.
type MetadataCarrier metadata.MD

var _ trace.Carrier = MetadataCarrier(nil)

// Get returns the first value of key.
func (c MetadataCarrier) Get(key string) (string, bool) {
	values := metadata.MD(c).Get(key)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Put replaces every value of key with value unless value is blank.
func (c MetadataCarrier) Put(key, value string) {
	if trace.IsBlank(value) {
		return
	}
	metadata.MD(c).Set(key, value)
}

// Range visits each key with its first value.
func (c MetadataCarrier) Range(fn func(key, value string) bool) {
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
