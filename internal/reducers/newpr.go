package reducers

import (
	"strings"

	"prdraft/internal/store"
)

type NewPRStatus string

const (
	StatusIdle      NewPRStatus = "idle"
	StatusRequested NewPRStatus = "requested"
	StatusCreated   NewPRStatus = "created"
	StatusFailed    NewPRStatus = "failed"
)

// NewPR tracks the submission of one draft as a pull request.
type NewPR struct {
	URI    string      `json:"uri,omitempty"`
	Status NewPRStatus `json:"status"`
	URL    string      `json:"url,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func ReduceNewPR(prev NewPR, a store.Action) NewPR {
	switch a.Type {
	case store.InitType, ResetNewPR:
		if a.Type == ResetNewPR && prev.Status == StatusIdle {
			return prev
		}
		return NewPR{Status: StatusIdle}
	case CreatePR:
		uri, _ := a.String("uri")
		uri = strings.TrimSpace(uri)
		if uri == "" || prev.Status == StatusRequested {
			// One submission at a time.
			return prev
		}
		return NewPR{URI: uri, Status: StatusRequested}
	case PRCreated, PRFailed:
		uri, _ := a.String("uri")
		if prev.Status != StatusRequested || uri != prev.URI {
			return prev
		}
		if a.Type == PRCreated {
			url, _ := a.String("url")
			return NewPR{URI: uri, Status: StatusCreated, URL: url}
		}
		msg, _ := a.String("error")
		return NewPR{URI: uri, Status: StatusFailed, Error: msg}
	}
	return prev
}
