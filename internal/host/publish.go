package host

import (
	"fmt"

	"go.uber.org/zap"

	"prdraft/internal/github"
	"prdraft/internal/reducers"
	"prdraft/internal/store"
)

// publishEffect starts the publisher once a CREATE_PR request has been accepted. It runs on
// the loop inside the dispatch, so the publisher itself runs on its own goroutine and the
// outcome comes back as a posted action.
func (h *Host) publishEffect(a store.Action, next *store.State, changed bool) {
	if a.Type != reducers.CreatePR || !changed {
		return
	}
	pr := reducers.PR(next)
	if pr.Status != reducers.StatusRequested {
		return
	}
	uri := pr.URI
	rec, ok := reducers.Draft(next, uri)
	if !ok {
		h.post(reducers.PRFailedAction(uri, fmt.Errorf("no draft loaded for %s", uri)))
		return
	}
	req, err := github.RequestFromDraft(rec, reducers.GitHubRemotes(next), h.dir)
	if err != nil {
		h.post(reducers.PRFailedAction(uri, err))
		return
	}
	req.Draft = h.cfg.PublishDraft

	ctx := h.runContext()
	h.effects.Add(1)
	go func() {
		defer h.effects.Done()
		h.log.Info("creating pull request", zap.String("uri", uri), zap.String("head", req.Head), zap.String("base", req.Base))
		url, err := h.pub.Create(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Warn("create pull request", zap.String("uri", uri), zap.Error(err))
			h.post(reducers.PRFailedAction(uri, err))
			return
		}
		h.log.Info("pull request created", zap.String("url", url))
		h.post(reducers.PRCreatedAction(uri, url))
	}()
}
