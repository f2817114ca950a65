package internal

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// TraceID is the 64-bit identifier shared by every span of one trace.
type TraceID uint64

// SpanID is the 64-bit identifier of a single span.
type SpanID uint64

// NewTraceID generates a new random, non-zero trace ID.
func NewTraceID() TraceID {
	return TraceID(randomNonZero())
}

// NewSpanID generates a new random, non-zero span ID.
func NewSpanID() SpanID {
	return SpanID(randomNonZero())
}

func randomNonZero() uint64 {
	var b [8]byte
	for {
		_, _ = rand.Read(b[:])
		if v := binary.BigEndian.Uint64(b[:]); v != 0 {
			return v
		}
	}
}

// String returns the trace ID as 16 lowercase hex digits.
func (t TraceID) String() string {
	return formatHex(uint64(t))
}

// String returns the span ID as 16 lowercase hex digits.
func (s SpanID) String() string {
	return formatHex(uint64(s))
}

// IsZero reports whether the trace ID is unset.
func (t TraceID) IsZero() bool {
	return t == 0
}

// IsZero reports whether the span ID is unset.
func (s SpanID) IsZero() bool {
	return s == 0
}

// Bytes returns the big-endian encoding of the ID.
func (t TraceID) Bytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t))
	return b
}

// Bytes returns the big-endian encoding of the ID.
func (s SpanID) Bytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(s))
	return b
}

func formatHex(v uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return hex.EncodeToString(b[:])
}

// ErrInvalidID is returned when a hex ID cannot be parsed.
var ErrInvalidID = errors.New("invalid id")

// ParseHex parses a hex-encoded 64-bit ID of 1 to 16 digits.
// A 32-digit (128-bit) value is accepted and its low 64 bits are kept.
func ParseHex(s string) (uint64, error) {
	switch {
	case len(s) == 32:
		s = s[16:]
	case len(s) == 0 || len(s) > 16:
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}

	var b [8]byte
	copy(b[8-len(raw):], raw)
	return binary.BigEndian.Uint64(b[:]), nil
}

// TraceIDFromHex parses a hex-encoded trace ID.
func TraceIDFromHex(s string) (TraceID, error) {
	v, err := ParseHex(s)
	return TraceID(v), err
}

// SpanIDFromHex parses a hex-encoded span ID.
func SpanIDFromHex(s string) (SpanID, error) {
	v, err := ParseHex(s)
	return SpanID(v), err
}
