package surface

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prdraft/internal/store"
)

// Kind describes one type of surface.
type Kind struct {
	ViewType string
	Title    string
	// Entry is the single script file the bootstrap document loads from the media root.
	Entry string
	Style string
	// Project maps the composite state to the payload the surface receives. Nil sends the
	// whole state.
	Project func(*store.State) (any, error)
}

// Factory builds the Kind for a key.
type Factory func(key string) (Kind, error)

// Binder connects a freshly created instance to the rest of the host and returns what
// must be released when the instance goes away.
type Binder func(inst *Instance) ([]Disposable, error)

type RegistryConfig struct {
	Host      Host
	Kinds     map[string]Factory
	Bind      Binder
	MediaRoot string
	Logger    *zap.Logger
}

// Registry keeps at most one live Instance per key. Show and Dispose are expected to run
// on the dispatch loop; Get, Keys and Len may be called from anywhere.
type Registry struct {
	cfg RegistryConfig
	log *zap.Logger

	mu        sync.Mutex
	instances map[string]*Instance
}

func NewRegistry(cfg RegistryConfig) *Registry {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		cfg:       cfg,
		log:       log.Named("surface"),
		instances: map[string]*Instance{},
	}
}

// Show reveals the live instance for key, or creates one of the given kind. The key is the
// identity: an existing instance is returned even when kind differs.
func (r *Registry) Show(kind, key string, hint Placement) (*Instance, error) {
	if inst, ok := r.Get(key); ok {
		inst.ctx.Reveal(hint)
		r.log.Debug("reveal", zap.String("key", key), zap.String("placement", string(hint)))
		return inst, nil
	}
	if r.cfg.Host == nil {
		return nil, ErrNoHost
	}
	factory, ok := r.cfg.Kinds[kind]
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	k, err := factory(key)
	if err != nil {
		return nil, fmt.Errorf("surface %q: %w", kind, err)
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	roots := []string{}
	if root := strings.TrimSpace(r.cfg.MediaRoot); root != "" {
		roots = append(roots, root)
	}
	ctx, err := r.cfg.Host.CreateContext(ContextOptions{
		ID:         uuid.NewString(),
		ViewType:   k.ViewType,
		Title:      k.Title,
		Key:        key,
		Nonce:      nonce,
		Placement:  hint,
		Scripts:    true,
		MediaRoots: roots,
	})
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}

	inst := &Instance{key: key, kind: kind, def: k, nonce: nonce, ctx: ctx, reg: r}
	// From here on every failure goes through Dispose, which releases the context too.
	doc, err := Bootstrap(BootstrapParams{
		Title:          k.Title,
		Key:            key,
		Nonce:          nonce,
		ResourceOrigin: r.cfg.Host.ResourceOrigin(),
		ScriptURI:      r.cfg.Host.ResourceURI(k.Entry),
		StyleURI:       r.styleURI(k.Style),
		ConnectSrc:     r.connectSrc(),
	})
	if err != nil {
		inst.Dispose()
		return nil, err
	}
	ctx.SetDocument(doc)
	inst.Track(ctx.OnClose(inst.Dispose))

	r.mu.Lock()
	r.instances[key] = inst
	r.mu.Unlock()

	if r.cfg.Bind != nil {
		ds, err := r.cfg.Bind(inst)
		if err != nil {
			inst.Dispose()
			return nil, fmt.Errorf("bind %q: %w", key, err)
		}
		inst.Track(ds...)
	}
	r.log.Info("surface created", zap.String("key", key), zap.String("kind", kind), zap.String("context", ctx.ID()))
	return inst, nil
}

func (r *Registry) styleURI(file string) string {
	if strings.TrimSpace(file) == "" {
		return ""
	}
	return r.cfg.Host.ResourceURI(file)
}

func (r *Registry) connectSrc() string {
	if ch, ok := r.cfg.Host.(ChannelHost); ok {
		return ch.ChannelSource()
	}
	return ""
}

func (r *Registry) Get(key string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[key]
	return inst, ok
}

// Keys returns the live keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.instances))
	for k := range r.instances {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	slices.Sort(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// DisposeAll disposes every live instance.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	all := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		all = append(all, inst)
	}
	r.mu.Unlock()
	for _, inst := range all {
		inst.Dispose()
	}
}

func (r *Registry) remove(key string, inst *Instance) {
	r.mu.Lock()
	if cur, ok := r.instances[key]; ok && cur == inst {
		delete(r.instances, key)
	}
	r.mu.Unlock()
}
