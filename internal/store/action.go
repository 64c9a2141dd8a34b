package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
)

// InitType is the type of the sentinel action used to build each slice's initial value.
const InitType = "@@INIT"

// InitAction is offered to every slice reducer (with a nil previous value) when a store is created.
var InitAction = Action{Type: InitType}

// Action is a discriminated record: a type tag plus arbitrary fields.
//
// On the wire an action is a flat JSON object: {"type": "...", ...fields}.
type Action struct {
	Type   string
	Fields map[string]any
}

func NewAction(typ string, fields map[string]any) Action {
	return Action{Type: strings.TrimSpace(typ), Fields: maps.Clone(fields)}
}

func (a Action) clone() Action {
	return Action{Type: a.Type, Fields: maps.Clone(a.Fields)}
}

func (a Action) Get(key string) (any, bool) {
	v, ok := a.Fields[key]
	return v, ok
}

// String returns a string field. Missing or non-string fields report ok=false.
func (a Action) String(key string) (string, bool) {
	v, ok := a.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Decode copies the action fields into v using JSON field naming.
func (a Action) Decode(v any) error {
	b, err := json.Marshal(a.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (a Action) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		out[k] = v
	}
	if a.Type != "" {
		out["type"] = a.Type
	}
	return json.Marshal(out)
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("action: expected a JSON object")
	}
	a.Type = ""
	if t, ok := raw["type"].(string); ok {
		a.Type = t
		delete(raw, "type")
	}
	// A non-string "type" stays in Fields so the message is forwarded unmodified.
	a.Fields = raw
	return nil
}

// DecodeAction parses a surface message. Anything that is not a JSON object is rejected;
// objects without a type decode to an action no reducer recognizes.
func DecodeAction(b []byte) (Action, error) {
	if t := bytes.TrimSpace(b); len(t) == 0 || t[0] != '{' {
		return Action{}, errors.New("decode action: expected a JSON object")
	}
	var a Action
	if err := json.Unmarshal(b, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}
