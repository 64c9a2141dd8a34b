// Package bridge keeps a surface in sync with the store: state goes out on every change,
// actions come back in through the dispatch loop.
package bridge

import (
	"bytes"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"prdraft/internal/store"
	"prdraft/internal/surface"
)

type Config struct {
	Store *store.Store
	// Exec runs inbound dispatches. Nil dispatches inline.
	Exec   store.Executor
	Logger *zap.Logger
}

// Binder adapts Wire for surface.RegistryConfig.
func Binder(cfg Config) surface.Binder {
	return func(inst *surface.Instance) ([]surface.Disposable, error) {
		return Wire(cfg, inst), nil
	}
}

// Wire subscribes inst to the store and routes its messages to dispatch. The returned
// disposables undo both registrations; inbound messages still queued when they are
// disposed are dropped.
func Wire(cfg Config, inst *surface.Instance) []surface.Disposable {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("bridge").With(zap.String("key", inst.Key()))
	exec := cfg.Exec
	if exec == nil {
		exec = store.Immediate
	}
	ctx := inst.Context()
	project := inst.Kind().Project

	var closed atomic.Bool
	var last []byte

	sub := cfg.Store.OnState(func(s *store.State) {
		if closed.Load() {
			return
		}
		var v any = s
		if project != nil {
			p, err := project(s)
			if err != nil {
				log.Warn("projection failed", zap.Error(err))
				return
			}
			v = p
		}
		b, err := json.Marshal(v)
		if err != nil {
			log.Warn("encode state", zap.Error(err))
			return
		}
		if last != nil && bytes.Equal(b, last) {
			return
		}
		last = b
		if !ctx.PostMessage(b) {
			log.Debug("surface gone, state dropped")
		}
	})

	inbound := ctx.OnMessage(func(msg []byte) {
		a, err := store.DecodeAction(msg)
		if err != nil {
			log.Debug("dropping malformed message", zap.Error(err), zap.Int("bytes", len(msg)))
			return
		}
		ok := exec.Post(func() {
			if closed.Load() {
				return
			}
			if _, err := cfg.Store.Dispatch(a); err != nil {
				log.Warn("dispatch failed", zap.String("action", a.Type), zap.Error(err))
			}
		})
		if !ok {
			log.Debug("loop stopped, action dropped", zap.String("action", a.Type))
		}
	})

	return []surface.Disposable{
		sub,
		inbound,
		surface.DisposeFunc(func() { closed.Store(true) }),
	}
}
