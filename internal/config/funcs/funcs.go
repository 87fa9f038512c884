// Package funcs implements the callable leaves of the configuration
// tree. A Func is either live (carrying an engine function handle) or
// a named placeholder produced by structural deserialization and
// waiting for reattachment.
package funcs

import (
	"encoding/json"
	"fmt"

	"github.com/swarmhost/swarmhost/internal/config/tree"
	"github.com/swarmhost/swarmhost/internal/provider"
)

// Marker is the object key the extraction pass writes in place of a
// callable so structural deserialization can recognize the slot.
const Marker = "$fn"

var (
	_ tree.FuncSlot    = (*Func)(nil)
	_ json.Unmarshaler = (*Func)(nil)
	_ json.Marshaler   = (*Func)(nil)
)

// Func is a reference to a script-engine function. Identity is
// engine-scoped; a Func never round-trips through ordinary structural
// serialization, which is why reattachment exists.
type Func struct {
	name string
	fn   provider.Function
}

// Named returns an inert placeholder identified by a dotted path or a
// bare function name. Calling it fails until a live handle is
// attached.
func Named(name string) *Func {
	return &Func{name: name}
}

// Live wraps an already-resolved engine callable.
func Live(fn provider.Function) *Func {
	return &Func{fn: fn}
}

// Name returns the recorded path or bare name, empty for handles
// constructed with Live.
func (f *Func) Name() string {
	return f.name
}

// Attached reports whether a live callable is bound.
func (f *Func) Attached() bool {
	return f.fn != nil
}

// Call invokes the underlying engine function.
func (f *Func) Call(args ...provider.Value) (provider.Value, error) {
	if f.fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrDetached, f.name)
	}
	return f.fn.Call(args)
}

// Attach binds a live callable, converting the placeholder into a
// live handle.
func (f *Func) Attach(fn provider.Function) {
	f.fn = fn
}

// Child implements tree.Node. A Func is a leaf.
func (f *Func) Child(name string) (tree.Node, error) {
	return nil, fmt.Errorf("%w: function has no field %q", tree.ErrLeaf, name)
}

// UnmarshalJSON accepts the extraction marker object or a bare name
// string; both yield an inert placeholder.
func (f *Func) UnmarshalJSON(data []byte) error {
	fn, ok, err := FromJSON(data)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not a function reference: %s", data)
	}
	*f = *fn
	return nil
}

// MarshalJSON renders the marker form so a decoded tree can be dumped
// for debugging without touching the engine.
func (f *Func) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{Marker: f.name})
}

// FromJSON attempts to read a function reference from raw JSON:
// either the marker object {"$fn": "path"} or a bare name string.
// ok is false when the data is some other shape.
func FromJSON(data []byte) (fn *Func, ok bool, err error) {
	var name string
	if json.Unmarshal(data, &name) == nil {
		return Named(name), true, nil
	}
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false, nil
	}
	name, found := obj[Marker]
	if !found || len(obj) != 1 {
		return nil, false, nil
	}
	return Named(name), true, nil
}
