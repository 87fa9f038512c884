// Package provider defines the marshaling contract between a script
// engine and the host: opaque engine values cross the boundary as plain
// JSON-like trees, and engine callables cross as Function handles that
// can be invoked from any goroutine.
package provider

import (
	"encoding/json"
	"fmt"
)

// Value is a JSON-like data tree produced by a script engine:
// nil, bool, numbers, string, []any and map[string]any. A Value may
// also contain Function handles as leaves before the extraction pass
// has run. Values are safe to share across goroutines once produced.
type Value = any

// Function is a live handle to a script-engine callable. Calling it is
// synchronous and may block until the owning engine thread replies.
// Implementations must be safe for concurrent use.
type Function interface {
	// Call invokes the callable with the given argument values. A nil
	// result with a nil error means the function returned nothing.
	Call(args []Value) (Value, error)
}

// As converts a Value into a typed Go representation via a JSON
// round-trip. The Value must be free of Function leaves.
func As[T any](v Value) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("encode value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

// From converts arbitrary host data into a Value tree.
func From(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode host data: %w", err)
	}
	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("rebuild value tree: %w", err)
	}
	return out, nil
}
