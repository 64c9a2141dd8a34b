package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"
)

// handleEvents streams the surface's payloads as Datastar signal patches under "state".
// Pages that cannot open a WebSocket use this together with POST /s/{id}/actions.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	c, ok := ch.attach()
	if !ok {
		http.Error(w, "surface closed", http.StatusGone)
		return
	}
	defer ch.detach(c)

	sse := datastar.NewSSE(w, r)

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-c.done:
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case msg := <-c.send:
			if err := sse.MarshalAndPatchSignals(map[string]any{"state": json.RawMessage(msg)}); err != nil {
				return
			}
		}
	}
}
