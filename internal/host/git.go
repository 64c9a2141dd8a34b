package host

import (
	"context"

	"prdraft/internal/gitrepo"
	"prdraft/internal/reducers"
)

// GitSource answers the repository queries the host turns into actions.
type GitSource interface {
	Branches(ctx context.Context) (reducers.Branches, error)
	Remotes(ctx context.Context) ([]reducers.Remote, error)
}

// RepoGit queries the repository at Dir. Only remotes on one of Hosts are reported.
type RepoGit struct {
	Dir   string
	Hosts []string
}

func (g RepoGit) Branches(ctx context.Context) (reducers.Branches, error) {
	names, err := gitrepo.ListLocalBranches(ctx, g.Dir)
	if err != nil {
		return reducers.Branches{}, err
	}
	current, err := gitrepo.CurrentBranch(ctx, g.Dir)
	if err != nil {
		return reducers.Branches{}, err
	}
	return reducers.Branches{Current: current, Names: names}, nil
}

func (g RepoGit) Remotes(ctx context.Context) ([]reducers.Remote, error) {
	remotes, err := gitrepo.ListRemotes(ctx, g.Dir)
	if err != nil {
		return nil, err
	}
	out := []reducers.Remote{}
	for _, r := range remotes {
		u := r.FetchURL
		if u == "" {
			u = r.PushURL
		}
		repo, err := gitrepo.ParseGitHubURL(u, g.Hosts...)
		if err != nil {
			continue
		}
		out = append(out, reducers.Remote{Name: r.Name, URL: u, Host: repo.Host, Owner: repo.Owner, Repo: repo.Repo})
	}
	return out, nil
}
