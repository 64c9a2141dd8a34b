package reducers

import (
	"slices"
	"strings"

	"prdraft/internal/store"
)

// Branches is the local branch list of the host repository.
type Branches struct {
	Current string   `json:"current,omitempty"`
	Names   []string `json:"names"`
}

func ReduceLocalBranches(prev Branches, a store.Action) Branches {
	if a.Type == store.InitType {
		return Branches{Names: []string{}}
	}
	if a.Type != SetLocalBranches {
		return prev
	}
	var in struct {
		Current  string   `json:"current"`
		Branches []string `json:"branches"`
	}
	if err := a.Decode(&in); err != nil {
		return prev
	}
	names := make([]string, 0, len(in.Branches))
	for _, n := range in.Branches {
		n = strings.TrimSpace(n)
		if n == "" || slices.Contains(names, n) {
			continue
		}
		names = append(names, n)
	}
	slices.Sort(names)
	next := Branches{Current: strings.TrimSpace(in.Current), Names: names}
	if next.Current == prev.Current && slices.Equal(next.Names, prev.Names) {
		return prev
	}
	return next
}
