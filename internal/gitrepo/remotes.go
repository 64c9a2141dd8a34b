package gitrepo

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// RemoteURL returns the configured fetch URL for a remote (e.g. origin).
func RemoteURL(ctx context.Context, dir, remoteName string) (string, error) {
	remoteName = strings.TrimSpace(remoteName)
	if remoteName == "" {
		remoteName = "origin"
	}
	out, err := git(ctx, dir, "remote", "get-url", remoteName)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

type Remote struct {
	Name     string `json:"name"`
	FetchURL string `json:"fetchUrl,omitempty"`
	PushURL  string `json:"pushUrl,omitempty"`
}

func ListRemotes(ctx context.Context, dir string) ([]Remote, error) {
	out, err := git(ctx, dir, "remote")
	if err != nil {
		return nil, err
	}
	var remotes []Remote
	for _, name := range lines(out) {
		r := Remote{Name: name}
		if fetchURL, err := git(ctx, dir, "remote", "get-url", name); err == nil {
			r.FetchURL = strings.TrimSpace(fetchURL)
		}
		if pushURL, err := git(ctx, dir, "remote", "get-url", "--push", name); err == nil {
			r.PushURL = strings.TrimSpace(pushURL)
		}
		remotes = append(remotes, r)
	}
	return remotes, nil
}

// GitHubRepo identifies a repository on a GitHub host.
type GitHubRepo struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (r GitHubRepo) String() string { return r.Owner + "/" + r.Repo }

// DefaultHosts are the hosts treated as GitHub when no others are configured.
var DefaultHosts = []string{"github.com"}

// ParseGitHubURL extracts owner/repo from the remote URL forms git accepts:
// git@host:owner/repo.git, ssh://git@host/owner/repo, https://host/owner/repo.git.
// The host must be one of hosts (DefaultHosts when empty).
func ParseGitHubURL(raw string, hosts ...string) (GitHubRepo, error) {
	raw = strings.TrimSpace(raw)
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	var host, path string
	switch {
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return GitHubRepo{}, fmt.Errorf("invalid remote URL %q: %w", raw, err)
		}
		switch u.Scheme {
		case "https", "http", "ssh", "git", "git+ssh":
		default:
			return GitHubRepo{}, fmt.Errorf("unsupported remote scheme %q", u.Scheme)
		}
		host, path = u.Hostname(), u.Path
	default:
		// scp-like syntax: [user@]host:path
		at := strings.LastIndex(raw, "@")
		rest := raw[at+1:]
		h, p, ok := strings.Cut(rest, ":")
		if !ok || h == "" || strings.Contains(h, "/") {
			return GitHubRepo{}, fmt.Errorf("not a remote URL: %q", raw)
		}
		host, path = h, p
	}

	host = strings.ToLower(host)
	if !slices.Contains(hosts, host) {
		return GitHubRepo{}, fmt.Errorf("not a GitHub repository: %s", raw)
	}
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return GitHubRepo{}, fmt.Errorf("invalid GitHub repository path in %q", raw)
	}
	return GitHubRepo{Host: host, Owner: parts[0], Repo: parts[1]}, nil
}
