// Package groutine runs named, stoppable background goroutines. Names are
// attached as pprof labels so they show up in goroutine profiles.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Worker is a handle to a goroutine started with Go.
type Worker struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Go starts fn in a goroutine labelled with name. The context passed to fn
// is cancelled by Stop or when parentCtx is done.
// Example usage:
//
//	w := groutine.Go(ctx, "ble-advertise", func(ctx context.Context) {
//	    <-ctx.Done()
//	})
//	defer w.Stop()
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) *Worker {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	w := &Worker{name: name, cancel: cancel, done: make(chan struct{})}

	labels := pprof.Labels("goroutine_name", name)
	go pprof.Do(ctx, labels, func(ctx context.Context) {
		defer close(w.done)
		fn(context.WithValue(ctx, goroutineNameKey, name))
	})
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Done is closed once the goroutine has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stop cancels the worker context and waits for the goroutine to return.
// It is safe to call Stop more than once.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
