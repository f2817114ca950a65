package attr

import (
	"cmp"
	"slices"
	"sort"
)

// Set is an immutable collection of attributes sorted by key.
// When a key appears more than once the last value wins.
type Set struct {
	attrs []Attr
}

// NewSet creates a Set from the given attributes.
func NewSet(attrs ...Attr) Set {
	if len(attrs) == 0 {
		return Set{}
	}

	sorted := slices.Clone(attrs)
	// Stable so that "last value wins" keeps meaning after sorting.
	slices.SortStableFunc(sorted, func(a, b Attr) int {
		return cmp.Compare(a.Key, b.Key)
	})

	deduped := sorted[:0]
	for _, a := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Key == a.Key {
			deduped[n-1] = a
			continue
		}
		deduped = append(deduped, a)
	}

	return Set{attrs: deduped}
}

// Len returns the number of attributes in the set.
func (s Set) Len() int {
	return len(s.attrs)
}

// Attrs returns the attributes. The returned slice must not be modified.
func (s Set) Attrs() []Attr {
	return s.attrs
}

// Get returns the value stored under key.
func (s Set) Get(key string) (Value, bool) {
	i := sort.Search(len(s.attrs), func(i int) bool {
		return s.attrs[i].Key >= key
	})
	if i < len(s.attrs) && s.attrs[i].Key == key {
		return s.attrs[i].Value, true
	}
	return Value{}, false
}

// Has reports whether the set contains key.
func (s Set) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Merge returns a new Set with other layered over s.
func (s Set) Merge(other ...Attr) Set {
	if len(other) == 0 {
		return s
	}
	if len(s.attrs) == 0 {
		return NewSet(other...)
	}

	combined := make([]Attr, 0, len(s.attrs)+len(other))
	combined = append(combined, s.attrs...)
	combined = append(combined, other...)
	return NewSet(combined...)
}

// Range calls fn for each attribute in key order until fn returns false.
func (s Set) Range(fn func(Attr) bool) {
	for _, a := range s.attrs {
		if !fn(a) {
			return
		}
	}
}

// StringMap renders the set as key -> string value.
func (s Set) StringMap() map[string]string {
	m := make(map[string]string, len(s.attrs))
	for _, a := range s.attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}
