package engine

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"

	"github.com/swarmhost/swarmhost/internal/provider"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Function is a live handle to a script function. It stays bound to
// the actor that produced it; Call is safe from any goroutine and
// serializes through the actor's worker.
type Function struct {
	actor *Actor
	fn    reflect.Value
}

var _ provider.Function = (*Function)(nil)

// Call invokes the script function. Arguments are converted to the
// function's parameter types; a trailing error return is unwrapped into
// the error result, remaining returns become the value (a list when
// there is more than one). A function with no non-error returns yields
// nil.
func (f *Function) Call(args []provider.Value) (provider.Value, error) {
	return f.actor.roundTrip(func(i *interp.Interpreter) (val provider.Value, err error) {
		defer recoverScript(&err)

		in, err := buildArgs(f.fn.Type(), args)
		if err != nil {
			return nil, err
		}
		out := f.fn.Call(in)
		return f.actor.collectResults(out)
	})
}

// buildArgs converts call arguments to the function's parameter types,
// spreading the tail over a variadic parameter.
func buildArgs(ft reflect.Type, args []provider.Value) ([]reflect.Value, error) {
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("%w: want at least %d args, got %d", ErrScript, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("%w: want %d args, got %d", ErrScript, fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for n, arg := range args {
		var pt reflect.Type
		if n < fixed {
			pt = ft.In(n)
		} else {
			pt = ft.In(fixed).Elem()
		}
		rv, err := convertArg(pt, arg)
		if err != nil {
			return nil, fmt.Errorf("%w: arg %d: %v", ErrScript, n, err)
		}
		in = append(in, rv)
	}
	return in, nil
}

// convertArg coerces one value to a parameter type: direct assignment
// when possible, numeric conversion next, and a JSON round-trip for
// structured shapes like map arguments feeding struct parameters.
func convertArg(pt reflect.Type, arg provider.Value) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(pt), nil
	}
	rv := reflect.ValueOf(arg)
	if rv.Type().AssignableTo(pt) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(pt) && isScalar(rv.Kind()) && isScalar(pt.Kind()) {
		return rv.Convert(pt), nil
	}

	data, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("encode %T: %v", arg, err)
	}
	target := reflect.New(pt)
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("convert %T to %s: %v", arg, pt, err)
	}
	return target.Elem(), nil
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// collectResults applies the return convention: a trailing error is
// split off, zero remaining values mean nil, one is returned as-is and
// several come back as a list.
func (a *Actor) collectResults(out []reflect.Value) (provider.Value, error) {
	if n := len(out); n > 0 && out[n-1].Type().Implements(errType) {
		if e := out[n-1].Interface(); e != nil {
			return nil, fmt.Errorf("%w: %v", ErrScript, e.(error))
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return a.toValue(out[0]), nil
	default:
		vals := make([]any, len(out))
		for i, rv := range out {
			vals[i] = a.toValue(rv)
		}
		return vals, nil
	}
}
