package dialog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/swarmhost/swarmhost/internal/config/funcs"
	"github.com/swarmhost/swarmhost/internal/config/tree"
	"github.com/swarmhost/swarmhost/internal/provider"
)

// LiteralSource resolves button display text for literal names.
type LiteralSource interface {
	Literal(ctx context.Context, key string) (value string, ok bool, err error)
}

// maxResolveDepth bounds function-returning-function chains during
// keyboard resolution.
const maxResolveDepth = 8

// Keyboard is either a static grid of rows or a script function
// returning that grid.
type Keyboard struct {
	rows Rows
	fn   *funcs.Func
}

// Rows is the structural form of a keyboard.
type Rows []*Row

// Row is either a static list of buttons or a script function
// returning one.
type Row struct {
	buttons []*Button
	fn      *funcs.Func
}

// Button is one of: a full spec, a bare literal name, or a script
// function returning either.
type Button struct {
	spec    *ButtonSpec
	literal string
	fn      *funcs.Func
}

// ButtonSpec is the structural button definition: a display name
// (inline or a literal key) plus the callback name routed back through
// the dialog's buttons map.
type ButtonSpec struct {
	Name         ButtonName `json:"name"`
	CallbackName string     `json:"callback_name"`
}

// ButtonName is the button caption: inline text or a literal key
// resolved from the store.
type ButtonName struct {
	Name    string `json:"name"`
	Literal string `json:"literal"`
}

// ButtonLayout is a fully resolved button ready for the transport
// layer.
type ButtonLayout struct {
	Name     string
	Literal  string
	Callback string
}

var (
	_ tree.FuncSlot = (*Keyboard)(nil)
	_ tree.FuncSlot = (*Row)(nil)
	_ tree.FuncSlot = (*Button)(nil)
	_ tree.Node     = (Rows)(nil)
)

// Resolve produces the final button grid, calling script functions for
// any dynamic keyboard, row or button and resolving literal captions
// through the store.
func (k *Keyboard) Resolve(ctx context.Context, lits LiteralSource) ([][]ButtonLayout, error) {
	rows, err := k.structuralRows()
	if err != nil {
		return nil, err
	}
	out := make([][]ButtonLayout, 0, len(rows))
	for _, row := range rows {
		buttons, err := row.structuralButtons()
		if err != nil {
			return nil, err
		}
		layouts := make([]ButtonLayout, 0, len(buttons))
		for _, b := range buttons {
			spec, err := b.resolveSpec()
			if err != nil {
				return nil, err
			}
			layout, err := spec.layout(ctx, lits)
			if err != nil {
				return nil, err
			}
			layouts = append(layouts, layout)
		}
		out = append(out, layouts)
	}
	return out, nil
}

func (k *Keyboard) structuralRows() (Rows, error) {
	if k.fn == nil {
		return k.rows, nil
	}
	val, err := k.fn.Call()
	if err != nil {
		return nil, fmt.Errorf("keyboard function: %w", err)
	}
	if val == nil {
		return nil, fmt.Errorf("keyboard function: %w", provider.ErrNoResult)
	}
	var rows Rows
	if err := funcs.DecodeValue(val, &rows); err != nil {
		return nil, fmt.Errorf("keyboard function result: %w", err)
	}
	return rows, nil
}

func (r *Row) structuralButtons() ([]*Button, error) {
	if r.fn == nil {
		return r.buttons, nil
	}
	val, err := r.fn.Call()
	if err != nil {
		return nil, fmt.Errorf("keyboard row function: %w", err)
	}
	if val == nil {
		return nil, fmt.Errorf("keyboard row function: %w", provider.ErrNoResult)
	}
	var row Row
	if err := funcs.DecodeValue(val, &row); err != nil {
		return nil, fmt.Errorf("keyboard row function result: %w", err)
	}
	return row.structuralButtons()
}

func (b *Button) resolveSpec() (*ButtonSpec, error) {
	cur := b
	for depth := 0; depth < maxResolveDepth; depth++ {
		switch {
		case cur.spec != nil:
			return cur.spec, nil
		case cur.fn == nil:
			return &ButtonSpec{
				Name:         ButtonName{Literal: cur.literal},
				CallbackName: cur.literal,
			}, nil
		default:
			val, err := cur.fn.Call()
			if err != nil {
				return nil, fmt.Errorf("button function: %w", err)
			}
			if val == nil {
				return nil, fmt.Errorf("button function: %w", provider.ErrNoResult)
			}
			next := &Button{}
			if err := funcs.DecodeValue(val, next); err != nil {
				return nil, fmt.Errorf("button function result: %w", err)
			}
			cur = next
		}
	}
	return nil, fmt.Errorf("button function: resolution depth exceeded")
}

func (s *ButtonSpec) layout(ctx context.Context, lits LiteralSource) (ButtonLayout, error) {
	name := s.Name.Name
	if s.Name.Literal != "" {
		value, ok, err := lits.Literal(ctx, s.Name.Literal)
		if err != nil {
			return ButtonLayout{}, fmt.Errorf("button literal %q: %w", s.Name.Literal, err)
		}
		if !ok {
			return ButtonLayout{}, fmt.Errorf("button literal %q is not set", s.Name.Literal)
		}
		name = value
	}
	return ButtonLayout{
		Name:     name,
		Literal:  s.Name.Literal,
		Callback: s.CallbackName,
	}, nil
}

// UnmarshalJSON decodes a keyboard: a grid of rows, a function marker,
// or a bare function name.
func (k *Keyboard) UnmarshalJSON(data []byte) error {
	var rows Rows
	if err := json.Unmarshal(data, &rows); err == nil {
		*k = Keyboard{rows: rows}
		return nil
	}
	if fn, ok, _ := funcs.FromJSON(data); ok {
		*k = Keyboard{fn: fn}
		return nil
	}
	return fmt.Errorf("invalid keyboard definition: %s", data)
}

// UnmarshalJSON decodes a row: a list of buttons, a function marker,
// or a bare function name.
func (r *Row) UnmarshalJSON(data []byte) error {
	var buttons []*Button
	if err := json.Unmarshal(data, &buttons); err == nil {
		*r = Row{buttons: buttons}
		return nil
	}
	if fn, ok, _ := funcs.FromJSON(data); ok {
		*r = Row{fn: fn}
		return nil
	}
	return fmt.Errorf("invalid keyboard row definition: %s", data)
}

// UnmarshalJSON decodes a button: a spec object, a bare literal
// string, or a function marker. A bare string is a literal button, not
// a function name.
func (b *Button) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		*b = Button{literal: literal}
		return nil
	}
	var spec ButtonSpec
	if err := json.Unmarshal(data, &spec); err == nil && spec.CallbackName != "" {
		*b = Button{spec: &spec}
		return nil
	}
	if fn, ok, _ := funcs.FromJSON(data); ok {
		*b = Button{fn: fn}
		return nil
	}
	return fmt.Errorf("invalid button definition: %s", data)
}

// Child implements tree.Node.
func (k *Keyboard) Child(name string) (tree.Node, error) {
	return tree.SliceChild(k.rows, name)
}

// Attach implements tree.FuncSlot: the whole keyboard is dynamic.
func (k *Keyboard) Attach(fn provider.Function) {
	if k.fn == nil {
		k.fn = funcs.Live(fn)
	} else {
		k.fn.Attach(fn)
	}
}

// Child implements tree.Node.
func (r Rows) Child(name string) (tree.Node, error) {
	return tree.SliceChild(r, name)
}

// Child implements tree.Node.
func (r *Row) Child(name string) (tree.Node, error) {
	return tree.SliceChild(r.buttons, name)
}

// Attach implements tree.FuncSlot: the row is dynamic.
func (r *Row) Attach(fn provider.Function) {
	if r.fn == nil {
		r.fn = funcs.Live(fn)
	} else {
		r.fn.Attach(fn)
	}
}

// Child implements tree.Node. A button is a leaf.
func (b *Button) Child(name string) (tree.Node, error) {
	return nil, fmt.Errorf("%w: button has no field %q", tree.ErrLeaf, name)
}

// Attach implements tree.FuncSlot: the button is dynamic.
func (b *Button) Attach(fn provider.Function) {
	if b.fn == nil {
		b.fn = funcs.Live(fn)
	} else {
		b.fn.Attach(fn)
	}
}
