// Package draft converts a pull-request draft document to and from a Record.
//
// A document is a block of "key: value" header lines closed by a "---" line, followed by a
// free-text body. An opening "---" line before the header is accepted as well:
//
//	---
//	title: Fix bug
//	branch: feat
//	---
//	Details here.
package draft

import (
	"bytes"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Record is the structured form of a draft document. Optional header fields are nil when
// the header is missing. Unknown scalar headers land in Extra as strings; lists and maps
// keep their decoded YAML shape.
type Record struct {
	Title   string         `json:"title"`
	Branch  *string        `json:"branch,omitempty"`
	Remote  *string        `json:"remote,omitempty"`
	Head    *string        `json:"head,omitempty"`
	Base    *string        `json:"base,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
	Content string         `json:"__content"`
}

// Str returns *p or "" for a missing field.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func Ptr(s string) *string { return &s }

// Parse never fails: a document without a recognizable header is all body, and a header
// that is not valid YAML is read line by line.
func Parse(raw string) Record {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	header, body, ok := split(raw)
	if !ok {
		return Record{Content: raw}
	}
	rec := Record{Content: body}
	for _, kv := range parseHeader(header) {
		rec.set(kv)
	}
	return rec
}

// Serialize writes r as a delimited document. Known headers come first in a fixed order,
// unknown ones follow sorted by key.
func Serialize(r Record) string {
	m := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k, v string) {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v},
		)
	}
	add("title", r.Title)
	for _, f := range []struct {
		k string
		v *string
	}{{"branch", r.Branch}, {"remote", r.Remote}, {"head", r.Head}, {"base", r.Base}} {
		if f.v != nil {
			add(f.k, *f.v)
		}
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if _, known := knownKeys[k]; known {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := r.Extra[k].(string); ok {
			add(k, v)
			continue
		}
		var n yaml.Node
		if err := n.Encode(r.Extra[k]); err != nil {
			continue
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &n)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	if b, err := yaml.Marshal(m); err == nil {
		buf.Write(b)
	} else {
		for i := 0; i+1 < len(m.Content); i += 2 {
			buf.WriteString(m.Content[i].Value + ": " + m.Content[i+1].Value + "\n")
		}
	}
	buf.WriteString(delimiter + "\n")
	buf.WriteString(r.Content)
	return buf.String()
}

var knownKeys = map[string]struct{}{
	"title": {}, "branch": {}, "remote": {}, "head": {}, "base": {},
}

func (r *Record) set(f headerField) {
	key, value := f.key, f.value
	if f.null {
		// "branch:" with nothing after it means the field is unset.
		if key != "title" {
			return
		}
		value = ""
	}
	switch key {
	case "title":
		r.Title = value
	case "branch":
		r.Branch = Ptr(value)
	case "remote":
		r.Remote = Ptr(value)
	case "head":
		r.Head = Ptr(value)
	case "base":
		r.Base = Ptr(value)
	default:
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		r.Extra[key] = value
		if f.node != nil && (f.node.Kind == yaml.SequenceNode || f.node.Kind == yaml.MappingNode) {
			var v any
			if err := f.node.Decode(&v); err == nil {
				r.Extra[key] = v
			}
		}
	}
}

// split separates header text from body text.
func split(raw string) (header, body string, ok bool) {
	lines := strings.SplitAfter(raw, "\n")
	// Only a delimiter at column 0 counts; an indented one belongs to a block scalar.
	isDelim := func(ln string) bool { return strings.TrimRight(ln, " \t\r\n") == delimiter }

	start := 0
	if len(lines) > 0 && isDelim(lines[0]) {
		start = 1
	}
	for i := start; i < len(lines); i++ {
		if !isDelim(lines[i]) {
			continue
		}
		header = strings.Join(lines[start:i], "")
		body = strings.Join(lines[i+1:], "")
		if start == 0 && !looksLikeHeader(lines[:i]) {
			// A thematic break inside plain prose, not a header terminator.
			return "", "", false
		}
		return header, body, true
	}
	return "", "", false
}

func looksLikeHeader(lines []string) bool {
	seen := false
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		// Continuation lines of nested YAML values are indented.
		if ln[0] == ' ' || ln[0] == '\t' {
			continue
		}
		k, _, found := strings.Cut(t, ":")
		if !found || strings.TrimSpace(k) == "" || strings.ContainsAny(strings.TrimSpace(k), " \t") {
			return false
		}
		seen = true
	}
	return seen
}

type headerField struct {
	key   string
	value string
	null  bool
	node  *yaml.Node
}

func parseHeader(header string) []headerField {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(header), &doc); err == nil &&
		doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 && doc.Content[0].Kind == yaml.MappingNode {
		m := doc.Content[0]
		out := make([]headerField, 0, len(m.Content)/2)
		for i := 0; i+1 < len(m.Content); i += 2 {
			k, v := m.Content[i], m.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				continue
			}
			out = append(out, headerField{key: k.Value, value: nodeText(v), null: v.Tag == "!!null", node: v})
		}
		return out
	}
	return parseHeaderLines(header)
}

func nodeText(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	b, err := yaml.Marshal(n)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func parseHeaderLines(header string) []headerField {
	var out []headerField
	for _, ln := range strings.Split(header, "\n") {
		k, v, ok := strings.Cut(ln, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		v = strings.TrimSpace(v)
		out = append(out, headerField{key: k, value: v, null: v == ""})
	}
	return out
}
