package web

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"prdraft/internal/surface"
)

const clientQueue = 64

// client is one connection to a channel. Its queue is drained by a single writer, so
// payloads reach the page in the order they were posted.
type client struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() { c.once.Do(func() { close(c.done) }) }

// channel is the web rendering context of one surface.
type channel struct {
	srv  *Server
	opts surface.ContextOptions

	mu        sync.Mutex
	doc       string
	last      []byte
	clients   map[*client]struct{}
	closed    bool
	grace     *time.Timer
	graceGen  uint64
	placement surface.Placement

	messages surface.Event[[]byte]
	closes   surface.Event[struct{}]
}

func newChannel(s *Server, opts surface.ContextOptions) *channel {
	return &channel{
		srv:       s,
		opts:      opts,
		clients:   map[*client]struct{}{},
		placement: opts.Placement,
	}
}

func (ch *channel) ID() string { return ch.opts.ID }

func (ch *channel) SetDocument(html string) {
	ch.mu.Lock()
	ch.doc = html
	ch.mu.Unlock()
}

func (ch *channel) document() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.doc
}

// PostMessage queues payload for every connected client and keeps it for clients that
// connect later. A client whose queue is full is disconnected; it gets the latest payload
// again when it reconnects.
func (ch *channel) PostMessage(payload []byte) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return false
	}
	ch.last = slices.Clone(payload)
	for c := range ch.clients {
		select {
		case c.send <- ch.last:
		default:
			ch.srv.log.Warn("client too slow, dropping", zap.String("surface", ch.opts.Key))
			delete(ch.clients, c)
			c.close()
		}
	}
	return true
}

func (ch *channel) OnMessage(fn func([]byte)) surface.Disposable {
	return ch.messages.Add(fn)
}

func (ch *channel) OnClose(fn func()) surface.Disposable {
	return ch.closes.Add(func(struct{}) { fn() })
}

func (ch *channel) Reveal(p surface.Placement) {
	ch.mu.Lock()
	ch.placement = p
	ch.mu.Unlock()
	ch.srv.log.Debug("reveal", zap.String("surface", ch.opts.Key), zap.String("placement", string(p)))
}

// Dispose closes the channel and every client. The close callbacks run once, on the
// calling goroutine.
func (ch *channel) Dispose() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	if ch.grace != nil {
		ch.grace.Stop()
		ch.grace = nil
	}
	for c := range ch.clients {
		c.close()
	}
	ch.clients = nil
	ch.mu.Unlock()

	ch.srv.forget(ch)
	ch.closes.Fire(struct{}{})
}

// deliver hands an inbound payload to the message listeners.
func (ch *channel) deliver(payload []byte) bool {
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed {
		return false
	}
	ch.messages.Fire(payload)
	return true
}

// attach registers a client and queues the latest payload for it.
func (ch *channel) attach() (*client, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return nil, false
	}
	c := &client{send: make(chan []byte, clientQueue), done: make(chan struct{})}
	if ch.last != nil {
		c.send <- ch.last
	}
	ch.clients[c] = struct{}{}
	if ch.grace != nil {
		ch.grace.Stop()
		ch.grace = nil
		ch.graceGen++
	}
	return c, true
}

func (ch *channel) detach(c *client) {
	c.close()
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	delete(ch.clients, c)
	if len(ch.clients) > 0 || ch.srv.cfg.CloseGrace <= 0 || ch.grace != nil {
		return
	}
	ch.graceGen++
	gen := ch.graceGen
	ch.grace = time.AfterFunc(ch.srv.cfg.CloseGrace, func() { ch.expire(gen) })
}

func (ch *channel) expire(gen uint64) {
	ch.mu.Lock()
	if gen != ch.graceGen {
		ch.mu.Unlock()
		return
	}
	idle := !ch.closed && len(ch.clients) == 0
	ch.grace = nil
	ch.mu.Unlock()
	if !idle {
		return
	}
	ch.srv.log.Info("last client gone, closing surface", zap.String("surface", ch.opts.Key))
	if err := ch.srv.closeChannel(context.Background(), ch); err != nil {
		ch.srv.log.Warn("close surface", zap.String("surface", ch.opts.Key), zap.Error(err))
	}
}

func (ch *channel) status() (clients int, placement string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.clients), string(ch.placement)
}
