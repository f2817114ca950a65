// Package attr holds the typed key/value pairs used for span tags and metric labels.
package attr

// Attr is a key-value pair attached to a span or a metric series.
type Attr struct {
	Key   string
	Value Value
}

// String creates a string attribute.
func String(key, value string) Attr {
	return Attr{Key: key, Value: StringValue(value)}
}

// Int creates an int attribute (stored as int64).
func Int(key string, value int) Attr {
	return Attr{Key: key, Value: Int64Value(int64(value))}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attr {
	return Attr{Key: key, Value: Int64Value(value)}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attr {
	return Attr{Key: key, Value: Float64Value(value)}
}

// Bool creates a bool attribute.
func Bool(key string, value bool) Attr {
	return Attr{Key: key, Value: BoolValue(value)}
}

// Error creates the "error" attribute carrying the error message.
// A nil error yields an empty message.
func Error(err error) Attr {
	if err == nil {
		return String("error", "")
	}
	return String("error", err.Error())
}

// String returns key=value.
func (a Attr) String() string {
	return a.Key + "=" + a.Value.String()
}

// WithKey returns a copy of the attribute under a different key.
func (a Attr) WithKey(key string) Attr {
	return Attr{Key: key, Value: a.Value}
}
