// Package panels defines the kinds of surface the host can show.
package panels

import (
	"fmt"

	"prdraft/internal/draft"
	"prdraft/internal/reducers"
	"prdraft/internal/store"
	"prdraft/internal/surface"
)

const (
	KindPreview   = "preview"
	KindInspector = "inspector"
)

// Factories maps each kind name to its constructor.
func Factories() map[string]surface.Factory {
	return map[string]surface.Factory{
		KindPreview:   Preview,
		KindInspector: Inspector,
	}
}

// Names lists the kinds in a stable order.
func Names() []string {
	return []string{KindPreview, KindInspector}
}

// PreviewState is what a preview surface receives. Draft is nil until a document for the
// key has been dispatched.
type PreviewState struct {
	Key           string           `json:"key"`
	GitHubRemotes reducers.Remotes `json:"gitHubRemotes"`
	Draft         *draft.Record    `json:"draft"`
	DraftHTML     string           `json:"draftHTML"`
	NewPR         reducers.NewPR   `json:"newPR"`
}

// Preview renders the pull request drafted in the document whose URI is key.
func Preview(key string) (surface.Kind, error) {
	return surface.Kind{
		ViewType: "PrPreviewPanel",
		Title:    fmt.Sprintf("PR Preview (%s)", key),
		Entry:    "preview.js",
		Style:    "index.css",
		Project: func(s *store.State) (any, error) {
			return ProjectPreview(s, key), nil
		},
	}, nil
}

func ProjectPreview(s *store.State, key string) PreviewState {
	out := PreviewState{
		Key:           key,
		GitHubRemotes: reducers.GitHubRemotes(s),
		NewPR:         reducers.PR(s),
	}
	if out.GitHubRemotes == nil {
		out.GitHubRemotes = reducers.Remotes{}
	}
	if rec, ok := reducers.Draft(s, key); ok {
		out.Draft = &rec
		out.DraftHTML = string(RenderMarkdown(rec.Content))
	}
	// Submission status of another draft is not shown here.
	if out.NewPR.URI != "" && out.NewPR.URI != key {
		out.NewPR = reducers.NewPR{Status: reducers.StatusIdle}
	}
	return out
}

// Inspector shows the whole composite state.
func Inspector(key string) (surface.Kind, error) {
	return surface.Kind{
		ViewType: "StateInspector",
		Title:    fmt.Sprintf("State (%s)", key),
		Entry:    "inspector.js",
		Style:    "index.css",
	}, nil
}
