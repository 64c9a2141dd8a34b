// Package host assembles the running system: one store driven by one dispatch loop, the
// surface registry and its web host, the draft file watcher, the journal and the pull
// request publisher.
package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prdraft/internal/bridge"
	"prdraft/internal/draftfile"
	"prdraft/internal/github"
	"prdraft/internal/gitrepo"
	"prdraft/internal/journal"
	"prdraft/internal/panels"
	"prdraft/internal/reducers"
	"prdraft/internal/store"
	"prdraft/internal/surface"
	"prdraft/internal/web"
)

type Config struct {
	Dir        string
	Addr       string
	CloseGrace time.Duration
	// Listener, when set, is served instead of listening on Addr.
	Listener net.Listener

	GitHubHosts []string
	Debounce    time.Duration
	// Git answers branch and remote queries. Nil queries the repository with git.
	Git GitSource
	// Defaults seeds a missing draft. Nil derives them from the repository.
	Defaults func(context.Context, string) (draftfile.Defaults, error)

	// JournalPath is the sqlite journal. Empty disables journaling.
	JournalPath string

	// Publisher opens pull requests. Nil uses the gh CLI at GHBin.
	Publisher    github.Publisher
	GHBin        string
	PublishDraft bool

	Logger *zap.Logger
}

type Host struct {
	cfg Config
	log *zap.Logger

	loop    *store.Loop
	store   *store.Store
	reg     *surface.Registry
	srv     *web.Server
	journal *journal.Journal
	git     GitSource
	pub     github.Publisher

	dir       string
	gitDir    string
	draftPath string
	draftURI  string

	subs  []surface.Disposable
	ready chan struct{}

	mu      sync.Mutex
	runCtx  context.Context
	effects sync.WaitGroup
	started sync.Once

	closeOnce sync.Once
	closeErr  error
}

// New prepares a host for the repository containing cfg.Dir, creating its draft file when
// there is none. Nothing runs until Run.
func New(ctx context.Context, cfg Config) (*Host, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	dir, err := filepath.Abs(strings.TrimSpace(cfg.Dir))
	if err != nil {
		return nil, err
	}
	if len(cfg.GitHubHosts) == 0 {
		cfg.GitHubHosts = gitrepo.DefaultHosts
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = draftfile.DefaultDebounce
	}

	gitDir, ok, err := gitrepo.FindGitDir(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, draftfile.ErrNotRepo)
	}
	path, created, err := draftfile.FindOrCreate(ctx, dir, cfg.Defaults)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("draft created", zap.String("path", path))
	}

	combined, err := reducers.Root()
	if err != nil {
		return nil, err
	}
	st, err := store.New(combined)
	if err != nil {
		return nil, err
	}

	h := &Host{
		cfg:       cfg,
		log:       log,
		loop:      store.NewLoop(0),
		store:     st,
		git:       cfg.Git,
		pub:       cfg.Publisher,
		dir:       dir,
		gitDir:    gitDir,
		draftPath: path,
		draftURI:  draftfile.URI(path),
		ready:     make(chan struct{}),
		runCtx:    context.Background(),
	}
	if h.git == nil {
		h.git = RepoGit{Dir: dir, Hosts: cfg.GitHubHosts}
	}
	if h.pub == nil {
		h.pub = &github.CLI{Bin: cfg.GHBin}
	}

	srv, err := web.NewServer(web.ServerConfig{Addr: cfg.Addr, CloseGrace: cfg.CloseGrace, Logger: log})
	if err != nil {
		return nil, err
	}
	h.srv = srv
	h.reg = surface.NewRegistry(surface.RegistryConfig{
		Host:      srv,
		Kinds:     panels.Factories(),
		Bind:      bridge.Binder(bridge.Config{Store: st, Exec: h.loop, Logger: log}),
		MediaRoot: "media",
		Logger:    log,
	})
	srv.Bind(st, h.loop, h.reg)

	if p := strings.TrimSpace(cfg.JournalPath); p != "" {
		j, err := journal.Open(ctx, p, log)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		h.journal = j
		h.subs = append(h.subs, st.OnAction(j.Observer()))
	}
	h.subs = append(h.subs, st.OnAction(h.publishEffect))
	return h, nil
}

func (h *Host) Store() *store.Store         { return h.store }
func (h *Host) Registry() *surface.Registry { return h.reg }
func (h *Host) Server() *web.Server         { return h.srv }
func (h *Host) Loop() *store.Loop           { return h.loop }
func (h *Host) Journal() *journal.Journal   { return h.journal }
func (h *Host) DraftPath() string           { return h.draftPath }
func (h *Host) DraftURI() string            { return h.draftURI }

// Ready is closed once the server is listening.
func (h *Host) Ready() <-chan struct{} { return h.ready }

// Run runs the loop, the server, the watchers and the journal until ctx ends or one of
// them fails, then closes the host.
func (h *Host) Run(ctx context.Context) error {
	ln := h.cfg.Listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", h.srv.Addr()); err != nil {
			h.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	h.mu.Lock()
	h.runCtx = gctx
	h.mu.Unlock()

	g.Go(func() error { return h.loop.Run(gctx) })
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- h.srv.Serve(gctx, ln) }()
		h.started.Do(func() { close(h.ready) })
		return <-errCh
	})
	g.Go(func() error {
		w := draftfile.NewWatcher(h.draftPath, func(src string) {
			h.post(reducers.SetDocumentAction(h.draftURI, src))
		}, draftfile.WithDebounce(h.cfg.Debounce), draftfile.WithLogger(h.log))
		return w.Run(gctx)
	})
	refresh := func(trigger string) {
		if err := h.Refresh(gctx); err != nil && gctx.Err() == nil {
			h.log.Warn("refresh", zap.String("trigger", trigger), zap.Error(err))
		}
	}
	// HEAD moves on checkout, config changes with the remotes, and branches come and go
	// under refs/heads or in packed-refs.
	common := gitrepo.CommonDir(h.gitDir)
	for _, path := range []string{
		filepath.Join(h.gitDir, "HEAD"),
		filepath.Join(common, "config"),
		filepath.Join(common, "packed-refs"),
	} {
		g.Go(func() error {
			w := draftfile.NewWatcher(path, func(string) { refresh(filepath.Base(path)) },
				draftfile.WithDebounce(h.cfg.Debounce), draftfile.WithLogger(h.log))
			return w.Run(gctx)
		})
	}
	g.Go(func() error {
		w := draftfile.NewTreeWatcher(filepath.Join(common, "refs", "heads"), func() { refresh("refs/heads") },
			draftfile.WithDebounce(h.cfg.Debounce), draftfile.WithLogger(h.log))
		return w.Run(gctx)
	})
	if h.journal != nil {
		g.Go(func() error { return h.journal.Run(gctx) })
	}

	err := g.Wait()
	h.effects.Wait()
	if cerr := h.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close disposes every surface and subscription and closes the journal. Only the first
// call does anything.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.loop.Stop()
		h.reg.DisposeAll()
		for i := len(h.subs) - 1; i >= 0; i-- {
			h.subs[i].Dispose()
		}
		if h.journal != nil {
			h.closeErr = h.journal.Close()
		}
		h.log.Info("host closed")
	})
	return h.closeErr
}

// Show opens or reveals a surface on the loop.
func (h *Host) Show(ctx context.Context, kind, key string, hint surface.Placement) (*surface.Instance, error) {
	var (
		inst *surface.Instance
		err  error
	)
	if cerr := h.loop.Call(ctx, func() { inst, err = h.reg.Show(kind, key, hint) }); cerr != nil {
		return nil, cerr
	}
	return inst, err
}

// Dispatch runs a on the loop and waits for it.
func (h *Host) Dispatch(ctx context.Context, a store.Action) (*store.State, error) {
	var (
		next *store.State
		err  error
	)
	if cerr := h.loop.Call(ctx, func() { next, err = h.store.Dispatch(a) }); cerr != nil {
		return nil, cerr
	}
	return next, err
}

func (h *Host) post(a store.Action) {
	if !h.loop.Post(func() { h.dispatch(a) }) {
		h.log.Debug("loop stopped, action dropped", zap.String("type", a.Type))
	}
}

func (h *Host) dispatch(a store.Action) {
	if _, err := h.store.Dispatch(a); err != nil {
		h.log.Warn("dispatch", zap.String("type", a.Type), zap.Error(err))
	}
}

// Refresh reads branches and remotes from the repository and dispatches them.
func (h *Host) Refresh(ctx context.Context) error {
	branches, berr := h.git.Branches(ctx)
	remotes, rerr := h.git.Remotes(ctx)
	if berr == nil {
		h.post(reducers.SetLocalBranchesAction(branches))
	}
	if rerr == nil {
		h.post(reducers.SetGitHubRemotesAction(remotes))
	}
	return errors.Join(berr, rerr)
}

func (h *Host) runContext() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runCtx
}
