// Package web hosts surfaces over HTTP. Every surface context is a page at /s/{id} whose
// message channel is a WebSocket, with a Datastar SSE stream plus POST as the fallback.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"prdraft/internal/store"
	"prdraft/internal/surface"
)

//go:embed templates/*.html media/*
var assetsFS embed.FS

const maxActionBytes = 1 << 20

type ServerConfig struct {
	Addr string
	// CloseGrace closes a surface once its last client has been gone this long. Zero keeps
	// surfaces open until they are disposed.
	CloseGrace time.Duration
	Logger     *zap.Logger
}

// Caller runs fn on the dispatch loop and waits for it.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

type Server struct {
	cfg  ServerConfig
	log  *zap.Logger
	tmpl *template.Template

	mu       sync.Mutex
	addr     string
	channels map[string]*channel
	st       *store.Store
	loop     Caller
	reg      *surface.Registry
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.CloseGrace < 0 {
		return nil, errors.New("web: negative close grace")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tmpl, err := template.New("base").ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		log:      log.Named("web"),
		tmpl:     tmpl,
		addr:     cfg.Addr,
		channels: map[string]*channel{},
	}, nil
}

// Bind connects the server to the store it serves and the registry whose surfaces it
// hosts. Registry calls go through loop.
func (s *Server) Bind(st *store.Store, loop Caller, reg *surface.Registry) {
	s.mu.Lock()
	s.st, s.loop, s.reg = st, loop, reg
	s.mu.Unlock()
}

func (s *Server) bound() (*store.Store, Caller, *surface.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st, s.loop, s.reg
}

// Addr is the configured address, or the listening one once Serve has started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL is the absolute URL of p on this server.
func (s *Server) URL(p string) string {
	return (&url.URL{Scheme: "http", Host: s.Addr(), Path: p}).String()
}

func (s *Server) CreateContext(opts surface.ContextOptions) (surface.Context, error) {
	if strings.TrimSpace(opts.ID) == "" {
		return nil, errors.New("web: context id is empty")
	}
	if !opts.Scripts {
		return nil, errors.New("web: surfaces need scripts enabled")
	}
	for _, root := range opts.MediaRoots {
		if root != "media" {
			return nil, errors.New("web: unknown media root " + root)
		}
	}
	ch := newChannel(s, opts)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[opts.ID]; ok {
		return nil, errors.New("web: duplicate context id " + opts.ID)
	}
	s.channels[opts.ID] = ch
	return ch, nil
}

func (s *Server) ResourceURI(file string) string {
	return "/media/" + url.PathEscape(file)
}

func (s *Server) ResourceOrigin() string { return "'self'" }

// ChannelSource allows the WebSocket and the event stream back to this server.
func (s *Server) ChannelSource() string { return "'self'" }

func (s *Server) channel(id string) (*channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	return ch, ok
}

func (s *Server) forget(ch *channel) {
	s.mu.Lock()
	if cur, ok := s.channels[ch.opts.ID]; ok && cur == ch {
		delete(s.channels, ch.opts.ID)
	}
	s.mu.Unlock()
}

// closeChannel runs a user-initiated close on the loop, like every other registry change.
func (s *Server) closeChannel(ctx context.Context, ch *channel) error {
	_, loop, _ := s.bound()
	if loop != nil {
		err := loop.Call(ctx, ch.Dispose)
		if !errors.Is(err, store.ErrLoopStopped) {
			return err
		}
	}
	ch.Dispose()
	return nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /surfaces", s.handleSurfaces)
	mux.HandleFunc("POST /surfaces", s.handleShow)
	mux.HandleFunc("GET /s/{id}", s.handleDocument)
	mux.HandleFunc("GET /s/{id}/ws", s.handleWS)
	mux.HandleFunc("GET /s/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /s/{id}/actions", s.handleActions)
	mux.HandleFunc("DELETE /s/{id}", s.handleClose)
	mux.HandleFunc("GET /media/{file}", s.handleMedia)
	mux.HandleFunc("GET /{$}", s.handleHome)
	return mux
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. Streaming handlers see ctx through their request
// context, so they end with it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("listening", zap.String("addr", s.Addr()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	return err
}

// SurfaceInfo describes a live surface.
type SurfaceInfo struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	ViewType  string `json:"viewType"`
	Title     string `json:"title"`
	ID        string `json:"id"`
	Path      string `json:"path"`
	Clients   int    `json:"clients"`
	Placement string `json:"placement,omitempty"`
}

func (s *Server) surfaces() []SurfaceInfo {
	_, _, reg := s.bound()
	if reg == nil {
		return []SurfaceInfo{}
	}
	out := []SurfaceInfo{}
	for _, key := range reg.Keys() {
		inst, ok := reg.Get(key)
		if !ok {
			continue
		}
		out = append(out, s.info(inst))
	}
	return out
}

func (s *Server) info(inst *surface.Instance) SurfaceInfo {
	id := inst.Context().ID()
	info := SurfaceInfo{
		Key:      inst.Key(),
		Kind:     inst.KindName(),
		ViewType: inst.Kind().ViewType,
		Title:    inst.Kind().Title,
		ID:       id,
		Path:     path.Join("/s", id),
	}
	if ch, ok := s.channel(id); ok {
		info.Clients, info.Placement = ch.status()
	}
	return info
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, _, _ := s.bound()
	if st == nil {
		http.Error(w, "no store", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st.State())
}

func (s *Server) handleSurfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.surfaces())
}

// ShowRequest is the body of POST /surfaces.
type ShowRequest struct {
	Kind      string `json:"kind"`
	Key       string `json:"key"`
	Placement string `json:"placement,omitempty"`
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	_, loop, reg := s.bound()
	if loop == nil || reg == nil {
		http.Error(w, "no registry", http.StatusServiceUnavailable)
		return
	}
	var req ShowRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	var (
		inst    *surface.Instance
		existed bool
		showErr error
	)
	if err := loop.Call(r.Context(), func() {
		_, existed = reg.Get(req.Key)
		inst, showErr = reg.Show(req.Kind, req.Key, surface.ParsePlacement(req.Placement))
	}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if showErr != nil {
		code := http.StatusInternalServerError
		if errors.Is(showErr, surface.ErrUnknownKind) {
			code = http.StatusBadRequest
		}
		http.Error(w, showErr.Error(), code)
		return
	}
	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, s.info(inst))
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	doc := ch.document()
	if doc == "" {
		http.Error(w, "surface not ready", http.StatusServiceUnavailable)
		return
	}
	h := w.Header()
	h.Set("Content-Security-Policy", surface.ContentPolicy(s.ResourceOrigin(), ch.opts.Nonce, s.ChannelSource()))
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	_, _ = io.WriteString(w, doc)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxActionBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if !ch.deliver(unwrapAction(b)) {
		http.Error(w, "surface closed", http.StatusGone)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// unwrapAction accepts either a bare action or Datastar's signal object with the action
// under "action".
func unwrapAction(b []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(b, &envelope); err != nil {
		return b
	}
	if _, ok := envelope["type"]; ok {
		return b
	}
	if inner, ok := envelope["action"]; ok {
		return inner
	}
	return b
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channel(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.closeChannel(r.Context(), ch); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var mediaTypes = map[string]string{
	".js":  "text/javascript; charset=utf-8",
	".css": "text/css; charset=utf-8",
	".svg": "image/svg+xml",
	".png": "image/png",
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	ct, ok := mediaTypes[path.Ext(file)]
	if !ok || strings.Contains(file, "..") {
		http.NotFound(w, r)
		return
	}
	b, err := readMedia(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(b)
}

// channelScript is prepended to every entry script; a surface document loads exactly one.
const channelScript = "channel.js"

func readMedia(file string) ([]byte, error) {
	b, err := assetsFS.ReadFile("media/" + file)
	if err != nil || path.Ext(file) != ".js" || file == channelScript {
		return b, err
	}
	lib, err := assetsFS.ReadFile("media/" + channelScript)
	if err != nil {
		return nil, err
	}
	return slices.Concat(lib, []byte("\n"), b), nil
}

type homeVM struct {
	Addr     string
	Surfaces []SurfaceInfo
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	vm := homeVM{Addr: s.Addr(), Surfaces: s.surfaces()}
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, "index.html", vm); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, b.String())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
