package trace

import "strings"

// Carrier is a key/value view over a call's transport metadata.
//
// Get returns the first value stored under key. Put replaces every value of
// key with value, and does nothing when value is blank. Range visits each key
// with its first value; every call starts a fresh pass and key order is not
// defined.
type Carrier interface {
	Get(key string) (string, bool)
	Put(key, value string)
	Range(fn func(key, value string) bool)
}

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// MapCarrier is a Carrier over a plain multi-valued map with exact keys.
type MapCarrier map[string][]string

var _ Carrier = MapCarrier(nil)

// Get returns the first value of key.
func (c MapCarrier) Get(key string) (string, bool) {
	values, ok := c[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Put replaces the values of key with value unless value is blank.
func (c MapCarrier) Put(key, value string) {
	if IsBlank(value) {
		return
	}
	c[key] = []string{value}
}

// Range visits every key with its first value.
func (c MapCarrier) Range(fn func(key, value string) bool) {
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
