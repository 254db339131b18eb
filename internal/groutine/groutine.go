// Package groutine starts named goroutines that carry pprof labels.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn in a goroutine labelled with name and returns a channel
// that is closed once fn returns.
//
//	done := groutine.Go(ctx, "frame-pump", func(ctx context.Context) {
//	    // work
//	})
//	<-done
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer close(done)
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
	return done
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
