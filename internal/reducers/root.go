// Package reducers holds the slice reducers of the pull-request draft host.
package reducers

import (
	"prdraft/internal/draft"
	"prdraft/internal/store"
)

// Slice names, in composition order.
const (
	SliceLocalBranches = "localBranches"
	SliceGitHubRemotes = "gitHubRemotes"
	SliceNewPR         = "newPR"
	SliceDraftPRs      = "draftPRs"
)

func Slices() []store.Slice {
	return []store.Slice{
		store.Typed(SliceLocalBranches, ReduceLocalBranches),
		store.Typed(SliceGitHubRemotes, ReduceGitHubRemotes),
		store.Typed(SliceNewPR, ReduceNewPR),
		store.Typed(SliceDraftPRs, ReduceDrafts),
	}
}

// Root combines every slice of the host.
func Root() (*store.Combined, error) {
	return store.Combine(Slices()...)
}

func LocalBranches(s *store.State) Branches {
	v, _ := store.Value[Branches](s, SliceLocalBranches)
	return v
}

func GitHubRemotes(s *store.State) Remotes {
	v, _ := store.Value[Remotes](s, SliceGitHubRemotes)
	return v
}

func PR(s *store.State) NewPR {
	v, _ := store.Value[NewPR](s, SliceNewPR)
	return v
}

func DraftPRs(s *store.State) Drafts {
	v, _ := store.Value[Drafts](s, SliceDraftPRs)
	return v
}

// Draft returns the parsed draft for uri.
func Draft(s *store.State, uri string) (draft.Record, bool) {
	rec, ok := DraftPRs(s)[uri]
	return rec, ok
}
