package funcs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/swarmhost/swarmhost/internal/config/tree"
	"github.com/swarmhost/swarmhost/internal/provider"
)

// Extract is the extraction pass: it walks a raw engine value tree,
// records every callable under its dotted path, and returns a copy of
// the tree with each callable rewritten to the inert marker object.
// The input is not mutated.
func Extract(v provider.Value, prefix string) (provider.Value, map[string]provider.Function) {
	out := make(map[string]provider.Function)
	cleaned := extract(v, prefix, out)
	return cleaned, out
}

func extract(v provider.Value, path string, out map[string]provider.Function) provider.Value {
	switch val := v.(type) {
	case provider.Function:
		out[path] = val
		return map[string]any{Marker: path}
	case map[string]any:
		clean := make(map[string]any, len(val))
		for k, child := range val {
			clean[k] = extract(child, joinPath(path, k), out)
		}
		return clean
	case []any:
		clean := make([]any, len(val))
		for i, child := range val {
			clean[i] = extract(child, joinPath(path, fmt.Sprintf("%d", i)), out)
		}
		return clean
	default:
		return v
	}
}

func joinPath(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

// Paths returns the recorded dotted paths in a stable order.
func Paths(m map[string]provider.Function) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DecodeValue converts a raw engine value that may contain callables
// into a typed form: extraction, structural JSON decoding, and, when
// the target is addressable, reattachment of the extracted callables.
// It is used both for whole configurations and for values returned by
// config functions at runtime (a keyboard function may itself return
// rows containing further functions).
func DecodeValue[T any](v provider.Value, out *T) error {
	cleaned, extracted := Extract(v, "")
	data, err := json.Marshal(cleaned)
	if err != nil {
		return fmt.Errorf("encode raw tree: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode raw tree: %w", err)
	}
	root, ok := any(out).(tree.Node)
	if !ok {
		if len(extracted) > 0 {
			return fmt.Errorf("%d callables lost: target %T is not addressable", len(extracted), out)
		}
		return nil
	}
	for _, path := range Paths(extracted) {
		node, err := tree.Descend(root, path)
		if err != nil {
			return fmt.Errorf("reattach %q: %w", path, err)
		}
		slot, ok := node.(tree.FuncSlot)
		if !ok {
			return fmt.Errorf("reattach %q: node %T is not a callable slot", path, node)
		}
		slot.Attach(extracted[path])
	}
	return nil
}
