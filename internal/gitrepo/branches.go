package gitrepo

import (
	"context"
	"errors"
	"strings"
)

// ListLocalBranches returns the short names of refs/heads.
func ListLocalBranches(ctx context.Context, dir string) ([]string, error) {
	out, err := git(ctx, dir, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// CurrentBranch returns the checked out branch, or "" on a detached HEAD.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := git(ctx, dir, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		if _, herr := git(ctx, dir, "rev-parse", "--verify", "-q", "HEAD"); herr == nil {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Upstream returns the remote and branch HEAD tracks, if any.
func Upstream(ctx context.Context, dir string) (remote, branch string) {
	out, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return "", ""
	}
	remote, branch, _ = strings.Cut(strings.TrimSpace(out), "/")
	return remote, branch
}

// DefaultBase guesses the branch a pull request from dir should target: the remote's
// HEAD when known, then main, then master.
func DefaultBase(ctx context.Context, dir, remote string) string {
	if remote = strings.TrimSpace(remote); remote == "" {
		remote = "origin"
	}
	if out, err := git(ctx, dir, "symbolic-ref", "--quiet", "--short", "refs/remotes/"+remote+"/HEAD"); err == nil {
		if _, b, ok := strings.Cut(strings.TrimSpace(out), "/"); ok && b != "" {
			return b
		}
	}
	for _, b := range []string{"main", "master"} {
		if _, err := git(ctx, dir, "rev-parse", "--verify", "-q", "refs/heads/"+b); err == nil {
			return b
		}
	}
	return "main"
}

type Commit struct {
	Hash    string `json:"hash"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

var ErrNoCommits = errors.New("gitrepo: no commits")

// LastCommit returns HEAD's subject and body.
func LastCommit(ctx context.Context, dir string) (Commit, error) {
	out, err := git(ctx, dir, "log", "-1", "--format=%H%x00%s%x00%b")
	if err != nil {
		if _, herr := git(ctx, dir, "rev-parse", "--verify", "-q", "HEAD"); herr != nil {
			return Commit{}, ErrNoCommits
		}
		return Commit{}, err
	}
	parts := strings.SplitN(strings.TrimRight(out, "\n"), "\x00", 3)
	if len(parts) != 3 {
		return Commit{}, errors.New("gitrepo: unexpected log output")
	}
	return Commit{Hash: parts[0], Subject: parts[1], Body: strings.TrimSpace(parts[2])}, nil
}
