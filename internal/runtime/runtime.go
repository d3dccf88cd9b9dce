package runtime

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Go when the group no longer accepts work.
var ErrStopped = errors.New("runtime stopped")

// Logger is a minimal logging interface used internally by the runtime.
// It mirrors the public logger in the root package to avoid an import cycle.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Group owns background goroutines: processing cycles and fire-and-forget writes.
// All goroutines share one context that Stop cancels.
type Group struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	log     Logger
}

// New creates a running group.
func New(log Logger) *Group {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = noopLogger{}
	}
	return &Group{ctx: ctx, cancel: cancel, log: log}
}

// Go runs fn on a new goroutine tracked by the group.
// A panic in fn is logged and does not take down the process.
func (g *Group) Go(name string, fn func(ctx context.Context)) error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return ErrStopped
	}
	g.wg.Add(1)
	g.mu.Unlock()
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Errorf("runtime: %s panicked: %v", name, r)
			}
		}()
		fn(g.ctx)
	}()
	return nil
}

// Wait blocks until every goroutine started so far has returned.
func (g *Group) Wait() { g.wg.Wait() }

// Stop cancels the group context and waits for all goroutines to exit.
// It is idempotent.
func (g *Group) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		g.log.Warnf("runtime already stopped; ignoring Stop()")
		return
	}
	g.stopped = true
	g.mu.Unlock()
	g.log.Infof("runtime stopping")
	g.cancel()
	g.wg.Wait()
}
