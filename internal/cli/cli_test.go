package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prdraft/internal/draftfile"
	"prdraft/internal/host"
	"prdraft/internal/journal"
	"prdraft/internal/reducers"
	"prdraft/internal/store"
)

func runCLI(t *testing.T, stdin string, args ...string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// isolate keeps the user's config and env out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PRDRAFT_CONFIG", "")
	t.Setenv("PRDRAFT_FORMAT", "")
	t.Setenv("PRDRAFT_LOG_LEVEL", "")
}

func envelope(t *testing.T, stdout []byte) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(stdout, &env), "stdout:\n%s", stdout)
	require.Contains(t, env, "data")
	if hints, ok := env["_hints"]; ok && hints != nil {
		_, ok := hints.([]any)
		require.True(t, ok, "_hints must be a list, got %T", hints)
	}
	return env
}

const sampleDraft = "---\ntitle: Fix bug\nbase: main\nticket: ABC-1\n---\nDetails here.\n"

func TestDraftParse(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "PULL_REQUEST.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleDraft), 0o644))

	stdout, stderr, err := runCLI(t, "", "draft", "parse", path)
	require.NoError(t, err, "stderr: %s", stderr)
	data := envelope(t, stdout)["data"].(map[string]any)
	assert.Equal(t, "Fix bug", data["title"])
	assert.Equal(t, "main", data["base"])
	assert.Equal(t, "Details here.\n", data["__content"])
	assert.NotContains(t, data, "head")
	assert.Equal(t, map[string]any{"ticket": "ABC-1"}, data["extra"])
}

func TestDraftParse_Stdin(t *testing.T) {
	isolate(t)
	stdout, _, err := runCLI(t, "no header at all\n", "draft", "parse", "-")
	require.NoError(t, err)
	data := envelope(t, stdout)["data"].(map[string]any)
	assert.Equal(t, "", data["title"])
	assert.Equal(t, "no header at all\n", data["__content"])
}

func TestDraftParse_Formats(t *testing.T) {
	isolate(t)

	stdout, _, err := runCLI(t, sampleDraft, "--format", "yaml", "draft", "parse", "-")
	require.NoError(t, err)
	assert.Contains(t, string(stdout), "title: Fix bug")

	stdout, _, err = runCLI(t, sampleDraft, "--format", "edn", "draft", "parse", "-")
	require.NoError(t, err)
	assert.Contains(t, string(stdout), `:title "Fix bug"`)

	_, stderr, err := runCLI(t, sampleDraft, "--format", "xml", "draft", "parse", "-")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "xml")
}

func TestDraftParse_MissingFile(t *testing.T) {
	isolate(t)
	_, stderr, err := runCLI(t, "", "draft", "parse", filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
	assert.NotEmpty(t, stderr)
}

func TestDraftFmt(t *testing.T) {
	isolate(t)
	src := "ticket: ABC-1\nbase: main\ntitle: Fix bug\n---\nBody\n"
	path := filepath.Join(t.TempDir(), "d.md")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	stdout, _, err := runCLI(t, "", "draft", "fmt", path)
	require.NoError(t, err)
	want := "---\ntitle: Fix bug\nbase: main\nticket: ABC-1\n---\nBody\n"
	assert.Equal(t, want, string(stdout))

	stdout, _, err = runCLI(t, "", "draft", "fmt", "--write", path)
	require.NoError(t, err)
	assert.Equal(t, true, envelope(t, stdout)["data"].(map[string]any)["changed"])
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(b))

	stdout, _, err = runCLI(t, "", "draft", "fmt", "-w", path)
	require.NoError(t, err)
	assert.Equal(t, false, envelope(t, stdout)["data"].(map[string]any)["changed"])
}

func TestJournal(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(context.Background(), path, nil)
	require.NoError(t, err)
	for _, a := range []store.Action{
		reducers.SetDocumentAction("file:///r/.git/PULL_REQUEST.md", "title: A\n---\n"),
		reducers.CreatePRAction("file:///r/.git/PULL_REQUEST.md"),
		reducers.SetDocumentAction("file:///r/.git/PULL_REQUEST.md", "title: B\n---\n"),
	} {
		b, err := json.Marshal(a)
		require.NoError(t, err)
		require.NoError(t, j.Record(context.Background(), journal.Entry{Type: a.Type, Action: b, Changed: true}))
	}
	require.NoError(t, j.Close())

	stdout, stderr, err := runCLI(t, "", "journal", "--path", path, "--limit", "2")
	require.NoError(t, err, "stderr: %s", stderr)
	env := envelope(t, stdout)
	entries := env["data"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, reducers.CreatePR, entries[0].(map[string]any)["type"])
	assert.Equal(t, reducers.SetDocument, entries[1].(map[string]any)["type"])
	assert.NotEmpty(t, env["_hints"])

	stdout, _, err = runCLI(t, "", "journal", "--path", path, "--type", reducers.SetDocument, "--limit", "5")
	require.NoError(t, err)
	assert.Len(t, envelope(t, stdout)["data"].([]any), 2)

	_, _, err = runCLI(t, "", "journal", "--path", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

type stubGit struct{}

func (stubGit) Branches(context.Context) (reducers.Branches, error) {
	return reducers.Branches{Current: "feat", Names: []string{"feat", "main"}}, nil
}

func (stubGit) Remotes(context.Context) ([]reducers.Remote, error) {
	return []reducers.Remote{{Name: "origin", Host: "github.com", Owner: "acme", Repo: "widgets"}}, nil
}

// serveHost runs a host for a fresh repository and returns its address and draft key.
func serveHost(t *testing.T) (addr, key, dir string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/feat\n"), 0o644))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h, err := host.New(context.Background(), host.Config{
		Dir:      dir,
		Addr:     ln.Addr().String(),
		Listener: ln,
		Git:      stubGit{},
		Defaults: func(context.Context, string) (draftfile.Defaults, error) {
			return draftfile.Defaults{Title: "Add widgets", Head: "feat", Base: "main", Remote: "origin"}, nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("host did not stop")
		}
	})
	select {
	case <-h.Ready():
	case err := <-done:
		t.Fatalf("run: %v", err)
	}
	require.Eventually(t, func() bool {
		_, ok := reducers.Draft(h.Store().State(), h.DraftURI())
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	return ln.Addr().String(), h.DraftURI(), dir
}

func TestHostCommands(t *testing.T) {
	isolate(t)
	addr, key, dir := serveHost(t)

	stdout, stderr, err := runCLI(t, "", "--addr", addr, "surfaces")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Empty(t, envelope(t, stdout)["data"])

	// Without a key, open uses the draft of --dir.
	stdout, stderr, err = runCLI(t, "", "--addr", addr, "--dir", dir, "open", "--no-browser")
	require.NoError(t, err, "stderr: %s", stderr)
	env := envelope(t, stdout)
	opened := env["data"].(map[string]any)["surface"].(map[string]any)
	assert.Equal(t, key, opened["key"])
	assert.Equal(t, "preview", opened["kind"])
	assert.Contains(t, env["data"].(map[string]any)["url"], "http://"+addr+"/s/")

	// Same key again: the existing surface, even for another kind.
	stdout, _, err = runCLI(t, "", "--addr", addr, "open", "--no-browser", "--kind", "inspector", key)
	require.NoError(t, err)
	again := envelope(t, stdout)["data"].(map[string]any)["surface"].(map[string]any)
	assert.Equal(t, opened["id"], again["id"])
	assert.Equal(t, "preview", again["kind"])

	stdout, _, err = runCLI(t, "", "--addr", addr, "surfaces")
	require.NoError(t, err)
	assert.Len(t, envelope(t, stdout)["data"], 1)

	stdout, _, err = runCLI(t, "", "--addr", addr, "state", "--slice", "draftPRs")
	require.NoError(t, err)
	drafts := envelope(t, stdout)["data"].(map[string]any)
	assert.Equal(t, "Add widgets", drafts[key].(map[string]any)["title"])

	_, stderr, err = runCLI(t, "", "--addr", addr, "state", "--slice", "nope")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "slice not found: nope")

	stdout, _, err = runCLI(t, "", "--addr", addr, "close", key)
	require.NoError(t, err)
	assert.Equal(t, opened["id"], envelope(t, stdout)["data"].(map[string]any)["closed"].(map[string]any)["id"])

	stdout, _, err = runCLI(t, "", "--addr", addr, "surfaces")
	require.NoError(t, err)
	assert.Empty(t, envelope(t, stdout)["data"])

	_, stderr, err = runCLI(t, "", "--addr", addr, "close", key)
	require.Error(t, err)
	assert.Contains(t, string(stderr), "surface not found")
}

func TestHostCommands_NoHost(t *testing.T) {
	isolate(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, stderr, err := runCLI(t, "", "--addr", addr, "surfaces")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "prdraft serve")
}

func TestOpen_OutsideRepository(t *testing.T) {
	isolate(t)
	_, stderr, err := runCLI(t, "", "--addr", "127.0.0.1:1", "--dir", t.TempDir(), "open", "--no-browser")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "not inside a git repository")
}

func TestWebViewNotBuiltIn(t *testing.T) {
	isolate(t)
	_, stderr, err := runCLI(t, "", "webview")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "-tags webview")
}

func TestDocs(t *testing.T) {
	isolate(t)
	stdout, _, err := runCLI(t, "", "docs")
	require.NoError(t, err)
	assert.Equal(t, []any{"config", "draft", "surfaces"}, envelope(t, stdout)["data"])

	stdout, _, err = runCLI(t, "", "docs", "draft")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(stdout), "# Draft documents"))

	_, stderr, err := runCLI(t, "", "docs", "nope")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "topic not found: nope")
}
