package reducers

import "prdraft/internal/store"

// Action types understood by the host's slices. Surfaces send these as {"type": ..., ...}.
const (
	SetDocument      = "SET_DOCUMENT"
	SetLocalBranches = "SET_LOCAL_BRANCHES"
	SetGitHubRemotes = "SET_GITHUB_REMOTES"
	CreatePR         = "CREATE_PR"
	PRCreated        = "PR_CREATED"
	PRFailed         = "PR_FAILED"
	ResetNewPR       = "RESET_NEW_PR"
)

func SetDocumentAction(uri, src string) store.Action {
	return store.NewAction(SetDocument, map[string]any{"uri": uri, "src": src})
}

func SetLocalBranchesAction(b Branches) store.Action {
	names := make([]any, len(b.Names))
	for i, n := range b.Names {
		names[i] = n
	}
	return store.NewAction(SetLocalBranches, map[string]any{"current": b.Current, "branches": names})
}

func SetGitHubRemotesAction(remotes []Remote) store.Action {
	list := make([]any, 0, len(remotes))
	for _, r := range remotes {
		list = append(list, map[string]any{
			"name":  r.Name,
			"url":   r.URL,
			"host":  r.Host,
			"owner": r.Owner,
			"repo":  r.Repo,
		})
	}
	return store.NewAction(SetGitHubRemotes, map[string]any{"remotes": list})
}

func CreatePRAction(uri string) store.Action {
	return store.NewAction(CreatePR, map[string]any{"uri": uri})
}

func PRCreatedAction(uri, url string) store.Action {
	return store.NewAction(PRCreated, map[string]any{"uri": uri, "url": url})
}

func PRFailedAction(uri string, err error) store.Action {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return store.NewAction(PRFailed, map[string]any{"uri": uri, "error": msg})
}
