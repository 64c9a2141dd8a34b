package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var ErrShapeMismatch = errors.New("store: state does not match the combined slices")

// Reducer maps (previous slice value, action) to the next slice value. Returning prev
// unchanged marks the action as irrelevant to the slice.
type Reducer func(prev any, a Action) (any, error)

type Slice struct {
	Name   string
	Reduce Reducer
}

// Typed adapts a typed, infallible reducer. A nil previous value (the init pass) is
// presented to fn as the zero T.
func Typed[T any](name string, fn func(prev T, a Action) T) Slice {
	return Slice{
		Name: name,
		Reduce: func(prev any, a Action) (any, error) {
			var cur T
			if prev != nil {
				t, ok := prev.(T)
				if !ok {
					return nil, fmt.Errorf("unexpected state type %T", prev)
				}
				cur = t
			}
			next := fn(cur, a)
			if prev != nil && identical(next, cur) {
				return prev, nil
			}
			return next, nil
		},
	}
}

// ReducerError reports a slice reducer failure. The dispatch that hit it commits nothing.
type ReducerError struct {
	Slice  string
	Action string
	Err    error
}

func (e *ReducerError) Error() string {
	return fmt.Sprintf("reducer %q failed on %q: %v", e.Slice, e.Action, e.Err)
}

func (e *ReducerError) Unwrap() error { return e.Err }

// Combined is the composition of several slice reducers into one.
type Combined struct {
	slices []Slice
	names  []string
	index  map[string]int
}

func Combine(slices ...Slice) (*Combined, error) {
	if len(slices) == 0 {
		return nil, errors.New("combine: no slices")
	}
	c := &Combined{index: make(map[string]int, len(slices))}
	for i, sl := range slices {
		name := strings.TrimSpace(sl.Name)
		if name == "" || name != sl.Name {
			return nil, fmt.Errorf("combine: invalid slice name %q", sl.Name)
		}
		if sl.Reduce == nil {
			return nil, fmt.Errorf("combine: slice %q has no reducer", name)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("combine: duplicate slice %q", name)
		}
		c.index[name] = i
		c.names = append(c.names, name)
		c.slices = append(c.slices, sl)
	}
	return c, nil
}

func (c *Combined) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Init builds the initial composite state by running every reducer on InitAction.
func (c *Combined) Init() (*State, error) {
	values := make([]any, len(c.slices))
	for i, sl := range c.slices {
		v, err := invoke(sl, nil, InitAction)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &State{names: c.names, index: c.index, values: values}, nil
}

// Reduce offers a to every slice. If no slice changes, s itself is returned.
func (c *Combined) Reduce(s *State, a Action) (*State, error) {
	if !s.sameShape(c.names) {
		return nil, ErrShapeMismatch
	}
	var values []any
	for i, sl := range c.slices {
		prev := s.values[i]
		next, err := invoke(sl, prev, a)
		if err != nil {
			return nil, err
		}
		if values == nil {
			if identical(next, prev) {
				continue
			}
			values = make([]any, len(s.values))
			copy(values, s.values[:i])
		}
		values[i] = next
	}
	if values == nil {
		return s, nil
	}
	return &State{names: c.names, index: c.index, values: values}, nil
}

func invoke(sl Slice, prev any, a Action) (next any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ReducerError{Slice: sl.Name, Action: a.Type, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	next, err = sl.Reduce(prev, a)
	if err != nil {
		return nil, &ReducerError{Slice: sl.Name, Action: a.Type, Err: err}
	}
	return next, nil
}

// identical reports whether b is the same value as a without deep comparison:
// reference types compare by address, everything else by value.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	return sameValue(va, vb)
}

func sameValue(va, vb reflect.Value) bool {
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Interface:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		if va.Elem().Type() != vb.Elem().Type() {
			return false
		}
		return sameValue(va.Elem(), vb.Elem())
	case reflect.Struct:
		for i := 0; i < va.NumField(); i++ {
			if !sameValue(va.Field(i), vb.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < va.Len(); i++ {
			if !sameValue(va.Index(i), vb.Index(i)) {
				return false
			}
		}
		return true
	default:
		return va.Equal(vb)
	}
}
