package reducers

import (
	"slices"
	"strings"

	"prdraft/internal/store"
)

// Remote is a git remote that points at a GitHub-style host.
type Remote struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

type Remotes []Remote

func ReduceGitHubRemotes(prev Remotes, a store.Action) Remotes {
	if a.Type == store.InitType {
		return Remotes{}
	}
	if a.Type != SetGitHubRemotes {
		return prev
	}
	var in struct {
		Remotes []Remote `json:"remotes"`
	}
	if err := a.Decode(&in); err != nil {
		return prev
	}
	next := make(Remotes, 0, len(in.Remotes))
	for _, r := range in.Remotes {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Owner) == "" || strings.TrimSpace(r.Repo) == "" {
			continue
		}
		next = append(next, r)
	}
	slices.SortStableFunc(next, func(x, y Remote) int { return strings.Compare(x.Name, y.Name) })
	if slices.Equal(next, prev) {
		return prev
	}
	return next
}

// Find returns the remote with the given name.
func (rs Remotes) Find(name string) (Remote, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Remote{}, false
}
