// Package surfacetest provides an in-memory surface host for tests.
package surfacetest

import (
	"slices"
	"sync"

	"prdraft/internal/surface"
)

type Host struct {
	mu       sync.Mutex
	contexts []*Context
	// Fail makes the next CreateContext return this error.
	Fail error
}

func (h *Host) CreateContext(opts surface.ContextOptions) (surface.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Fail != nil {
		err := h.Fail
		h.Fail = nil
		return nil, err
	}
	c := &Context{Opts: opts}
	h.contexts = append(h.contexts, c)
	return c, nil
}

func (h *Host) ResourceURI(file string) string { return "/media/" + file }

func (h *Host) ResourceOrigin() string { return "'self'" }

// Contexts returns every context created so far, disposed ones included.
func (h *Host) Contexts() []*Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.contexts)
}

// Context records what the host side sends and lets tests play the surface side.
type Context struct {
	Opts surface.ContextOptions

	mu       sync.Mutex
	doc      string
	sent     [][]byte
	reveals  []surface.Placement
	disposed bool

	messages surface.Event[[]byte]
	closes   surface.Event[struct{}]
}

func (c *Context) ID() string { return c.Opts.ID }

func (c *Context) SetDocument(html string) {
	c.mu.Lock()
	c.doc = html
	c.mu.Unlock()
}

func (c *Context) Document() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

func (c *Context) PostMessage(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.sent = append(c.sent, slices.Clone(payload))
	return true
}

// Sent returns the payloads delivered to the surface, oldest first.
func (c *Context) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sent)
}

func (c *Context) Last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func (c *Context) OnMessage(fn func([]byte)) surface.Disposable {
	return c.messages.Add(fn)
}

func (c *Context) OnClose(fn func()) surface.Disposable {
	return c.closes.Add(func(struct{}) { fn() })
}

// Emit plays a message sent by the surface script.
func (c *Context) Emit(payload []byte) {
	c.mu.Lock()
	gone := c.disposed
	c.mu.Unlock()
	if gone {
		return
	}
	c.messages.Fire(payload)
}

// Listeners reports how many inbound message handlers are registered.
func (c *Context) Listeners() int { return c.messages.Len() }

func (c *Context) Reveal(p surface.Placement) {
	c.mu.Lock()
	c.reveals = append(c.reveals, p)
	c.mu.Unlock()
}

func (c *Context) Reveals() []surface.Placement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.reveals)
}

// Close plays the user closing the surface.
func (c *Context) Close() { c.Dispose() }

func (c *Context) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()
	c.closes.Fire(struct{}{})
}

func (c *Context) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
