package surface

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Instance is one live surface.
type Instance struct {
	key   string
	kind  string
	def   Kind
	nonce string
	ctx   Context
	reg   *Registry

	mu          sync.Mutex
	disposables []Disposable
	disposed    atomic.Bool
}

func (i *Instance) Key() string      { return i.key }
func (i *Instance) KindName() string { return i.kind }
func (i *Instance) Kind() Kind       { return i.def }
func (i *Instance) Nonce() string    { return i.nonce }
func (i *Instance) Context() Context { return i.ctx }

func (i *Instance) Reveal(p Placement) {
	if i.disposed.Load() {
		return
	}
	i.ctx.Reveal(p)
}

// Track adds disposables released when the instance is disposed. Tracking on a disposed
// instance releases them immediately.
func (i *Instance) Track(ds ...Disposable) {
	i.mu.Lock()
	if !i.disposed.Load() {
		i.disposables = append(i.disposables, ds...)
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()
	for j := len(ds) - 1; j >= 0; j-- {
		if ds[j] != nil {
			ds[j].Dispose()
		}
	}
}

// Dispose unregisters the key, closes the context and releases tracked disposables in
// reverse order. Only the first call does anything, so it is safe from the context's own
// close callback.
func (i *Instance) Dispose() {
	if !i.disposed.CompareAndSwap(false, true) {
		return
	}
	if i.reg != nil {
		i.reg.remove(i.key, i)
	}
	i.ctx.Dispose()

	i.mu.Lock()
	ds := i.disposables
	i.disposables = nil
	i.mu.Unlock()
	for j := len(ds) - 1; j >= 0; j-- {
		if ds[j] != nil {
			ds[j].Dispose()
		}
	}
	if i.reg != nil {
		i.reg.log.Info("surface disposed", zap.String("key", i.key))
	}
}

func (i *Instance) Disposed() bool { return i.disposed.Load() }
