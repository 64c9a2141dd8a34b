package panels

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prdraft/internal/reducers"
	"prdraft/internal/store"
)

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    []string
		notWant []string
	}{
		{name: "empty", in: "  \n"},
		{name: "heading", in: "# Fix bug", want: []string{"<h1>Fix bug</h1>"}},
		{name: "raw html is dropped", in: "hi <script>alert(1)</script>", notWant: []string{"<script>"}},
		{name: "task list", in: "- [x] done\n- [ ] todo", want: []string{`type="checkbox"`}},
		{name: "emoji shortcode", in: "ship it :tada:", notWant: []string{":tada:"}},
		{name: "hard wraps", in: "one\ntwo", want: []string{"<br"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := string(RenderMarkdown(tt.in))
			if len(tt.want) == 0 && len(tt.notWant) == 0 {
				assert.Empty(t, got)
			}
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func newState(t *testing.T, actions ...store.Action) *store.State {
	t.Helper()
	c, err := reducers.Root()
	require.NoError(t, err)
	st, err := store.New(c)
	require.NoError(t, err)
	for _, a := range actions {
		_, err := st.Dispatch(a)
		require.NoError(t, err)
	}
	return st.State()
}

func TestProjectPreview(t *testing.T) {
	t.Parallel()

	s := newState(t,
		reducers.SetGitHubRemotesAction([]reducers.Remote{{Name: "origin", Host: "github.com", Owner: "me", Repo: "app"}}),
		reducers.SetDocumentAction("repo/pr-1", "title: Fix bug\nbranch: feat\n---\nDetails **here**.\n"),
		reducers.CreatePRAction("repo/pr-1"),
	)

	got := ProjectPreview(s, "repo/pr-1")
	require.NotNil(t, got.Draft)
	assert.Equal(t, "Fix bug", got.Draft.Title)
	assert.Contains(t, got.DraftHTML, "<strong>here</strong>")
	assert.Len(t, got.GitHubRemotes, 1)
	assert.Equal(t, reducers.StatusRequested, got.NewPR.Status)

	other := ProjectPreview(s, "repo/pr-2")
	assert.Nil(t, other.Draft)
	assert.Empty(t, other.DraftHTML)
	assert.Equal(t, reducers.StatusIdle, other.NewPR.Status)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	for _, k := range []string{`"gitHubRemotes"`, `"draft"`, `"draftHTML"`, `"newPR"`, `"__content"`} {
		assert.True(t, strings.Contains(string(b), k), k)
	}
}

func TestFactories(t *testing.T) {
	t.Parallel()

	f := Factories()
	require.Len(t, f, len(Names()))

	p, err := f[KindPreview]("repo/pr-1")
	require.NoError(t, err)
	assert.Equal(t, "PrPreviewPanel", p.ViewType)
	assert.Equal(t, "PR Preview (repo/pr-1)", p.Title)
	assert.Equal(t, "preview.js", p.Entry)
	require.NotNil(t, p.Project)

	i, err := f[KindInspector]("x")
	require.NoError(t, err)
	assert.Equal(t, "StateInspector", i.ViewType)
	assert.Equal(t, "State (x)", i.Title)
	assert.Nil(t, i.Project)
}
