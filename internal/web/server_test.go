package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prdraft/internal/bridge"
	"prdraft/internal/panels"
	"prdraft/internal/reducers"
	"prdraft/internal/store"
	"prdraft/internal/surface"
)

const draftURI = "file:///tmp/repo/.git/PULL_REQUEST.md"

type fixture struct {
	srv  *Server
	ts   *httptest.Server
	st   *store.Store
	loop *store.Loop
	reg  *surface.Registry
}

func newFixture(t *testing.T, grace time.Duration) *fixture {
	t.Helper()
	c, err := reducers.Root()
	require.NoError(t, err)
	st, err := store.New(c)
	require.NoError(t, err)

	loop := store.NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", CloseGrace: grace})
	require.NoError(t, err)
	reg := surface.NewRegistry(surface.RegistryConfig{
		Host:      srv,
		Kinds:     panels.Factories(),
		Bind:      bridge.Binder(bridge.Config{Store: st, Exec: loop}),
		MediaRoot: "media",
	})
	srv.Bind(st, loop, reg)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return &fixture{srv: srv, ts: ts, st: st, loop: loop, reg: reg}
}

func (f *fixture) show(t *testing.T, kind, key string) (SurfaceInfo, int) {
	t.Helper()
	body, err := json.Marshal(ShowRequest{Kind: kind, Key: key})
	require.NoError(t, err)
	resp, err := http.Post(f.ts.URL+"/surfaces", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var info SurfaceInfo
	if resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	}
	return info, resp.StatusCode
}

func (f *fixture) dial(t *testing.T, info SurfaceInfo) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.ts.URL, "http") + info.Path + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readPreview(t *testing.T, conn *websocket.Conn) panels.PreviewState {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var st panels.PreviewState
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func TestShow_SameKeyRevealsExistingSurface(t *testing.T) {
	f := newFixture(t, 0)

	first, code := f.show(t, panels.KindPreview, draftURI)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "PrPreviewPanel", first.ViewType)
	assert.Equal(t, "/s/"+first.ID, first.Path)

	again, code := f.show(t, panels.KindInspector, draftURI)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, panels.KindPreview, again.Kind)

	other, code := f.show(t, panels.KindPreview, draftURI+" ")
	require.Equal(t, http.StatusCreated, code)
	assert.NotEqual(t, first.ID, other.ID)

	resp, err := http.Get(f.ts.URL + "/surfaces")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []SurfaceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestShow_Errors(t *testing.T) {
	f := newFixture(t, 0)

	_, code := f.show(t, "nope", "k")
	assert.Equal(t, http.StatusBadRequest, code)
	_, code = f.show(t, panels.KindPreview, "")
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Post(f.ts.URL+"/surfaces", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, f.reg.Len())
}

func TestDocument_ContentPolicy(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindPreview, draftURI)
	inst, ok := f.reg.Get(draftURI)
	require.True(t, ok)

	resp, err := http.Get(f.ts.URL + info.Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	csp := resp.Header.Get("Content-Security-Policy")
	assert.Equal(t, surface.ContentPolicy("'self'", inst.Nonce(), "'self'"), csp)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<script nonce="`+inst.Nonce()+`" src="/media/preview.js"`)
	assert.Contains(t, string(body), `<link rel="stylesheet" href="/media/index.css">`)
	assert.Contains(t, string(body), "connect-src &#39;self&#39;;")

	missing, err := http.Get(f.ts.URL + "/s/unknown")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindPreview, draftURI)

	a := f.dial(t, info)
	b := f.dial(t, info)
	assert.Nil(t, readPreview(t, a).Draft)
	assert.Nil(t, readPreview(t, b).Draft)

	msg, err := json.Marshal(reducers.SetDocumentAction(draftURI, "title: Fix bug\nhead: feat\nbase: main\n---\nDetails *here*.\n"))
	require.NoError(t, err)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, msg))

	for _, conn := range []*websocket.Conn{a, b} {
		got := readPreview(t, conn)
		require.NotNil(t, got.Draft)
		assert.Equal(t, "Fix bug", got.Draft.Title)
		assert.Contains(t, got.DraftHTML, "<em>here</em>")
	}
}

func TestWebSocket_NewClientGetsLatestPayload(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindPreview, draftURI)

	var dispatchErr error
	require.NoError(t, f.loop.Call(context.Background(), func() {
		_, dispatchErr = f.st.Dispatch(reducers.SetDocumentAction(draftURI, "title: Late\n---\n"))
	}))
	require.NoError(t, dispatchErr)

	got := readPreview(t, f.dial(t, info))
	require.NotNil(t, got.Draft)
	assert.Equal(t, "Late", got.Draft.Title)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindPreview, draftURI)

	u := "ws" + strings.TrimPrefix(f.ts.URL, "http") + info.Path + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocket_OriginMustMatchHost(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindPreview, draftURI)

	host := strings.TrimPrefix(f.ts.URL, "http://")
	u := "ws://" + host + info.Path + "/ws"
	tests := []struct {
		origin string
		ok     bool
	}{
		{origin: "http://" + host, ok: true},
		{origin: "http://" + host + ".evil.test"},
		{origin: "http://evil.test/?next=://" + host},
		{origin: "http://user@" + host + "@evil.test"},
	}
	for _, tt := range tests {
		conn, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {tt.origin}})
		if tt.ok {
			require.NoError(t, err, tt.origin)
			conn.Close()
			continue
		}
		require.Error(t, err, tt.origin)
		require.NotNil(t, resp, tt.origin)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, tt.origin)
	}
}

func TestActions_PostDispatches(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindInspector, "inspector")

	body := `{"action":{"type":"SET_LOCAL_BRANCHES","current":"feat","branches":["main","feat"]}}`
	resp, err := http.Post(f.ts.URL+info.Path+"/actions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return reducers.LocalBranches(f.st.State()).Current == "feat"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"feat", "main"}, reducers.LocalBranches(f.st.State()).Names)

	state, err := http.Get(f.ts.URL + "/state")
	require.NoError(t, err)
	defer state.Body.Close()
	var m map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(state.Body).Decode(&m))
	assert.JSONEq(t, `{"current":"feat","names":["feat","main"]}`, string(m["localBranches"]))
}

func TestEvents_StreamsStateSignals(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindInspector, "inspector")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ts.URL+info.Path+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	var sawEvent, sawState bool
	for sc.Scan() {
		line := sc.Text()
		if line == "event: datastar-patch-signals" {
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: signals ") && strings.Contains(line, `"draftPRs"`) {
			sawState = true
			break
		}
	}
	assert.True(t, sawEvent)
	assert.True(t, sawState)
}

func TestClose_DisposesSurface(t *testing.T) {
	f := newFixture(t, 0)
	info, _ := f.show(t, panels.KindPreview, draftURI)
	conn := f.dial(t, info)
	readPreview(t, conn)

	req, err := http.NewRequest(http.MethodDelete, f.ts.URL+info.Path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Zero(t, f.reg.Len())
	_, ok := f.srv.channel(info.ID)
	assert.False(t, ok)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	again, code := f.show(t, panels.KindPreview, draftURI)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEqual(t, info.ID, again.ID)
}

func TestCloseGrace_LastClientGone(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	info, _ := f.show(t, panels.KindPreview, draftURI)

	conn := f.dial(t, info)
	readPreview(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return f.reg.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseGrace_ReconnectKeepsSurface(t *testing.T) {
	f := newFixture(t, 200*time.Millisecond)
	info, _ := f.show(t, panels.KindPreview, draftURI)

	first := f.dial(t, info)
	readPreview(t, first)
	require.NoError(t, first.Close())
	second := f.dial(t, info)
	readPreview(t, second)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, f.reg.Len())
}

func TestMedia(t *testing.T) {
	f := newFixture(t, 0)

	resp, err := http.Get(f.ts.URL + "/media/preview.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "window.prdraftChannel = connect")
	assert.Contains(t, string(body), "CREATE_PR")

	for _, p := range []string{"/media/missing.js", "/media/index.html"} {
		r, err := http.Get(f.ts.URL + p)
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, http.StatusNotFound, r.StatusCode, p)
	}
}

func TestUnwrapAction(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"type":"X"}`, `{"type":"X"}`},
		{`{"action":{"type":"X"}}`, `{"type":"X"}`},
		{`{"type":"X","action":1}`, `{"type":"X","action":1}`},
		{`not json`, `not json`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, string(unwrapAction([]byte(tc.in))))
	}
}
