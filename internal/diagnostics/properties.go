package diagnostics

import (
	"strconv"
	"time"
)

// Properties is an immutable snapshot of plugin properties taken when the
// diagnostics service is built. Plugins read their settings once at
// construction, so a live config map mutating underneath cannot produce a
// half-applied plugin.
type Properties struct {
	values map[string]string
}

// NewProperties copies the given map into a snapshot.
func NewProperties(values map[string]string) Properties {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Properties{values: copied}
}

// Seconds reads key as a whole number of seconds.
func (p Properties) Seconds(key string, def time.Duration) time.Duration {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}

// Millis reads key as a whole number of milliseconds.
func (p Properties) Millis(key string, def time.Duration) time.Duration {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

// Int reads key as an integer.
func (p Properties) Int(key string, def int) int {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// Bool reads key as a boolean.
func (p Properties) Bool(key string, def bool) bool {
	raw, ok := p.values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}
