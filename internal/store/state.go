package store

import (
	"bytes"
	"encoding/json"
	"slices"
)

// State is an immutable composite state: slice name -> slice value, in composition order.
//
// Every state produced by the same Combined shares its key set. A dispatch that changes
// nothing yields the very same *State.
type State struct {
	names  []string
	index  map[string]int
	values []any
}

func (s *State) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.names)
}

func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

func (s *State) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.values[i], true
}

// Map returns a shallow copy of the state as a plain map.
func (s *State) Map() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for i, n := range s.names {
		out[n] = s.values[i]
	}
	return out
}

func (s *State) sameShape(names []string) bool {
	return s != nil && slices.Equal(s.names, names)
}

// MarshalJSON writes slices in composition order.
func (s *State) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(s.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Value returns the named slice converted to T.
func Value[T any](s *State, name string) (T, bool) {
	var zero T
	v, ok := s.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
