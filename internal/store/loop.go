package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrLoopStopped = errors.New("store: loop stopped")
	ErrLoopRunning = errors.New("store: loop already running")
)

// Executor runs work on the host's single logical thread.
type Executor interface {
	// Post schedules fn. It reports false when fn will never run.
	Post(fn func()) bool
}

type immediate struct{}

func (immediate) Post(fn func()) bool {
	fn()
	return true
}

// Immediate runs posted work inline on the caller's goroutine.
var Immediate Executor = immediate{}

// Loop serializes posted work onto the goroutine that calls Run. Work is executed in
// posting order; nothing runs concurrently with anything else posted to the same Loop.
type Loop struct {
	queue    chan func()
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		queue: make(chan func(), buffer),
		stop:  make(chan struct{}),
	}
}

// Run executes posted work until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.stop:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn. It blocks while the queue is full and reports false once the loop
// has stopped; work still queued at stop time is dropped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stop:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.stop:
		return false
	}
}

// Call posts fn and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-l.stop:
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.stop
}
