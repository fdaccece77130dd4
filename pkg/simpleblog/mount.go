package simpleblog

import (
	"context"
	"sync/atomic"
)

// Mount is the lifetime of a consumer of asynchronous loads, such as a
// screen or an HTTP response. Loads that finish after Unmount are dropped.
// It suppresses stale responses; it does not cancel the request itself.
type Mount struct {
	mounted atomic.Bool
}

// NewMount returns a mounted Mount.
func NewMount() *Mount {
	m := &Mount{}
	m.mounted.Store(true)
	return m
}

// MountContext returns a Mount that unmounts when ctx is done.
func MountContext(ctx context.Context) *Mount {
	m := NewMount()
	context.AfterFunc(ctx, m.Unmount)
	return m
}

// Unmount marks the consumer gone.
func (m *Mount) Unmount() {
	m.mounted.Store(false)
}

// Mounted reports whether results may still be applied.
func (m *Mount) Mounted() bool {
	return m.mounted.Load()
}

// Load runs fetch and hands its result to apply if m is still mounted once
// fetch returns. It reports whether apply ran.
func Load[T any](ctx context.Context, m *Mount, fetch func(context.Context) T, apply func(T)) bool {
	v := fetch(ctx)
	if !m.Mounted() {
		return false
	}
	apply(v)
	return true
}
