// Package surface manages the sandboxed rendering surfaces of the host: at most one live
// instance per key, each with its own isolated context, bootstrap document and nonce.
package surface

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

var (
	ErrUnknownKind = errors.New("surface: unknown kind")
	ErrNoHost      = errors.New("surface: registry has no host")
)

// Placement is a hint for where a surface is shown. Hosts may ignore it.
type Placement string

const (
	PlaceActive     Placement = "active"
	PlaceBeside     Placement = "beside"
	PlaceBackground Placement = "background"
)

func ParsePlacement(s string) Placement {
	switch Placement(s) {
	case PlaceBeside, PlaceBackground:
		return Placement(s)
	}
	return PlaceActive
}

type Disposable interface {
	Dispose()
}

type DisposeFunc func()

func (f DisposeFunc) Dispose() { f() }

// ContextOptions describe a context to create.
type ContextOptions struct {
	ID        string
	ViewType  string
	Title     string
	Key       string
	Nonce     string
	Placement Placement
	// Scripts enables script execution; MediaRoots restricts what the context may load.
	Scripts    bool
	MediaRoots []string
}

// Context is one isolated rendering context. Messages in each direction are delivered in
// order. PostMessage is fire-and-forget and reports false when the context is gone.
type Context interface {
	ID() string
	SetDocument(html string)
	PostMessage(payload []byte) bool
	OnMessage(fn func([]byte)) Disposable
	OnClose(fn func()) Disposable
	Reveal(p Placement)
	Dispose()
}

// Host creates contexts and resolves media files for them.
type Host interface {
	CreateContext(opts ContextOptions) (Context, error)
	// ResourceURI is the URI a context loads file from, under the media root.
	ResourceURI(file string) string
	// ResourceOrigin is the origin expression used in the content policy.
	ResourceOrigin() string
}

// ChannelHost is implemented by hosts whose contexts reach them over the network. The
// returned source is added to the content policy as connect-src.
type ChannelHost interface {
	ChannelSource() string
}

// Event is an ordered list of callbacks. A callback removed while the event fires is not
// called afterwards.
type Event[T any] struct {
	mu  sync.Mutex
	fns []*callback[T]
}

type callback[T any] struct {
	fn     func(T)
	active atomic.Bool
}

func (e *Event[T]) Add(fn func(T)) Disposable {
	cb := &callback[T]{fn: fn}
	cb.active.Store(true)
	e.mu.Lock()
	e.fns = append(e.fns, cb)
	e.mu.Unlock()

	var once sync.Once
	return DisposeFunc(func() {
		once.Do(func() {
			cb.active.Store(false)
			e.mu.Lock()
			e.fns = slices.DeleteFunc(e.fns, func(x *callback[T]) bool { return x == cb })
			e.mu.Unlock()
		})
	})
}

func (e *Event[T]) Fire(v T) {
	e.mu.Lock()
	fns := slices.Clone(e.fns)
	e.mu.Unlock()
	for _, cb := range fns {
		if cb.active.Load() {
			cb.fn(v)
		}
	}
}

func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fns)
}
