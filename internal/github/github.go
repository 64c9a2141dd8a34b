// Package github publishes pull requests through the GitHub CLI.
package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"prdraft/internal/draft"
	"prdraft/internal/reducers"
)

var ErrIncomplete = errors.New("github: draft is missing title, head or base")

// Request is one pull request to open.
type Request struct {
	Dir   string
	Repo  string // [HOST/]OWNER/REPO; empty lets gh infer it from Dir
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// Publisher opens pull requests and returns their URL.
type Publisher interface {
	Create(ctx context.Context, req Request) (string, error)
}

// Runner executes a command in dir and returns its stdout.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s %s: %s", name, args[0], msg)
	}
	return stdout.Bytes(), nil
}

// CLI shells out to gh, which owns authentication.
type CLI struct {
	Bin string
	Run Runner
}

func NewCLI() *CLI {
	return &CLI{Bin: "gh", Run: execRunner}
}

func (c *CLI) bin() string {
	if strings.TrimSpace(c.Bin) == "" {
		return "gh"
	}
	return c.Bin
}

// Check verifies that gh is installed and authenticated.
func (c *CLI) Check(ctx context.Context) error {
	if c.Run == nil {
		if _, err := exec.LookPath(c.bin()); err != nil {
			return fmt.Errorf("GitHub CLI not found: install gh to publish pull requests")
		}
	}
	if _, err := c.runner()(ctx, "", c.bin(), "auth", "status"); err != nil {
		return fmt.Errorf("not authenticated with GitHub CLI, run: gh auth login")
	}
	return nil
}

func (c *CLI) runner() Runner {
	if c.Run == nil {
		return execRunner
	}
	return c.Run
}

func (c *CLI) Create(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Head) == "" || strings.TrimSpace(req.Base) == "" {
		return "", ErrIncomplete
	}
	args := []string{"pr", "create",
		"--title", req.Title,
		"--body", req.Body,
		"--head", req.Head,
		"--base", req.Base,
	}
	if req.Repo != "" {
		args = append(args, "--repo", req.Repo)
	}
	if req.Draft {
		args = append(args, "--draft")
	}
	out, err := c.runner()(ctx, req.Dir, c.bin(), args...)
	if err != nil {
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}
	// gh prints progress lines before the URL.
	var url string
	for _, ln := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if ln = strings.TrimSpace(ln); strings.HasPrefix(ln, "https://") || strings.HasPrefix(ln, "http://") {
			url = ln
		}
	}
	if url == "" {
		return "", fmt.Errorf("gh pr create: no URL in output %q", strings.TrimSpace(string(out)))
	}
	return url, nil
}

// RequestFromDraft builds a request from a parsed draft. The draft's remote selects the
// target repository among the known GitHub remotes; head defaults to the branch.
func RequestFromDraft(rec draft.Record, remotes reducers.Remotes, dir string) (Request, error) {
	req := Request{
		Dir:   dir,
		Title: strings.TrimSpace(rec.Title),
		Body:  strings.TrimSpace(rec.Content),
		Head:  strings.TrimSpace(draft.Str(rec.Head)),
		Base:  strings.TrimSpace(draft.Str(rec.Base)),
	}
	if req.Head == "" {
		req.Head = strings.TrimSpace(draft.Str(rec.Branch))
	}
	if name := strings.TrimSpace(draft.Str(rec.Remote)); name != "" {
		r, ok := remotes.Find(name)
		if !ok {
			return Request{}, fmt.Errorf("github: remote %q is not a known GitHub remote", name)
		}
		req.Repo = r.Owner + "/" + r.Repo
		if r.Host != "" && r.Host != "github.com" {
			req.Repo = r.Host + "/" + req.Repo
		}
	}
	if req.Title == "" || req.Head == "" || req.Base == "" {
		return Request{}, ErrIncomplete
	}
	return req, nil
}
