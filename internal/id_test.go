package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDStringIsPaddedLowercaseHex(t *testing.T) {
	assert.Equal(t, "0000000000000001", TraceID(1).String())
	assert.Equal(t, "00000000000000ab", SpanID(0xAB).String())
	assert.Equal(t, "ffffffffffffffff", SpanID(^uint64(0)).String())
}

func TestNewIDsAreNonZeroAndDistinct(t *testing.T) {
	seen := make(map[SpanID]struct{})
	for i := 0; i < 1000; i++ {
		id := NewSpanID()
		require.False(t, id.IsZero())
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)
	assert.False(t, NewTraceID().IsZero())
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1", want: 1},
		{in: "0000000000000002", want: 2},
		{in: "abc", want: 0xabc},
		{in: "ABC", want: 0xabc},
		{in: "463ac35c9f6413ad48485a3953bb6124", want: 0x48485a3953bb6124},
		{in: "", wantErr: true},
		{in: "zz", wantErr: true},
		{in: "00000000000000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTripThroughHex(t *testing.T) {
	id := NewTraceID()
	parsed, err := TraceIDFromHex(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	sid := NewSpanID()
	parsedSpan, err := SpanIDFromHex(sid.String())
	require.NoError(t, err)
	assert.Equal(t, sid, parsedSpan)
}

func TestBytesBigEndian(t *testing.T) {
	assert.Equal(t, [8]byte{0, 0, 0, 0, 0, 0, 0x01, 0x02}, TraceID(0x0102).Bytes())
	assert.Equal(t, [8]byte{0xff, 0, 0, 0, 0, 0, 0, 0}, SpanID(0xff00000000000000).Bytes())
}
