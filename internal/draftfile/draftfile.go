// Package draftfile manages the pull request draft kept at .git/PULL_REQUEST.md.
package draftfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"prdraft/internal/draft"
	"prdraft/internal/gitrepo"
)

const FileName = "PULL_REQUEST.md"

var ErrNotRepo = errors.New("draftfile: not inside a git repository")

func Path(gitDir string) string {
	return filepath.Join(gitDir, FileName)
}

// URI is the document identifier used for the draft at path.
func URI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// Defaults fill a new draft.
type Defaults struct {
	Title  string
	Body   string
	Branch string
	Remote string
	Head   string
	Base   string
}

// DefaultsFor derives defaults from the repository at dir: the last commit supplies title
// and body, HEAD supplies branch and head, and the base is the remote's default branch.
func DefaultsFor(ctx context.Context, dir string) (Defaults, error) {
	var d Defaults
	if c, err := gitrepo.LastCommit(ctx, dir); err == nil {
		d.Title, d.Body = c.Subject, c.Body
	} else if !errors.Is(err, gitrepo.ErrNoCommits) {
		return Defaults{}, err
	}
	branch, err := gitrepo.CurrentBranch(ctx, dir)
	if err != nil {
		return Defaults{}, err
	}
	d.Branch, d.Head = branch, branch

	remote, _ := gitrepo.Upstream(ctx, dir)
	if remote == "" {
		remotes, err := gitrepo.ListRemotes(ctx, dir)
		if err != nil {
			return Defaults{}, err
		}
		for _, r := range remotes {
			if r.Name == "origin" || remote == "" {
				remote = r.Name
			}
		}
	}
	d.Remote = remote
	d.Base = gitrepo.DefaultBase(ctx, dir, remote)
	return d, nil
}

// Record converts defaults into a draft, leaving empty fields absent.
func (d Defaults) Record() draft.Record {
	opt := func(s string) *string {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return draft.Ptr(s)
	}
	body := d.Body
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return draft.Record{
		Title:   strings.TrimSpace(d.Title),
		Branch:  opt(d.Branch),
		Remote:  opt(d.Remote),
		Head:    opt(d.Head),
		Base:    opt(d.Base),
		Content: body,
	}
}

// FindOrCreate returns the draft path for the repository containing dir, writing a new
// draft from defaults when none exists. A nil defaults func derives them with DefaultsFor.
func FindOrCreate(ctx context.Context, dir string, defaults func(context.Context, string) (Defaults, error)) (path string, created bool, err error) {
	gitDir, ok, err := gitrepo.FindGitDir(dir)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, ErrNotRepo
	}
	path = Path(gitDir)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}

	if defaults == nil {
		defaults = DefaultsFor
	}
	d, err := defaults(ctx, dir)
	if err != nil {
		return "", false, fmt.Errorf("draft defaults: %w", err)
	}
	if err := os.WriteFile(path, []byte(draft.Serialize(d.Record())), 0o644); err != nil {
		return "", false, err
	}
	return path, true, nil
}
