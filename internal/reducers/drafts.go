package reducers

import (
	"maps"
	"reflect"

	"prdraft/internal/draft"
	"prdraft/internal/store"
)

// Drafts maps a document URI to its parsed draft record.
type Drafts map[string]draft.Record

// ReduceDrafts replaces the record for a URI on every SET_DOCUMENT. Records are never
// merged; a malformed document still yields a best-effort record.
func ReduceDrafts(prev Drafts, a store.Action) Drafts {
	if a.Type == store.InitType {
		return Drafts{}
	}
	if a.Type != SetDocument {
		return prev
	}
	uri, ok := a.String("uri")
	if !ok || uri == "" {
		return prev
	}
	src, ok := a.String("src")
	if !ok {
		return prev
	}
	rec := draft.Parse(src)
	if old, ok := prev[uri]; ok && reflect.DeepEqual(old, rec) {
		return prev
	}
	next := maps.Clone(prev)
	if next == nil {
		next = Drafts{}
	}
	next[uri] = rec
	return next
}
