package names

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Source looks up one symbol's display name.
type Source interface {
	Lookup(ctx context.Context, symbol string) (string, error)
}

// ApplyFunc receives every name learned by one run, once.
type ApplyFunc func(batch map[string]string)

type request struct {
	ctx     context.Context
	symbols []string
	apply   ApplyFunc
}

// Resolver fills unresolved names one symbol at a time with a fixed pause
// between lookups. At most one run is active; the batch it learns is
// persisted and applied once, at the end.
type Resolver struct {
	source Source
	cache  *Cache
	clock  clockwork.Clock
	delay  time.Duration
	log    *slog.Logger

	mu        sync.Mutex
	running   bool
	cancelled bool
	cancelCh  chan struct{}
	queued    *request
	idle      chan struct{}
}

// NewResolver returns an idle Resolver.
func NewResolver(source Source, cache *Cache, clock clockwork.Clock, delay time.Duration, log *slog.Logger) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{source: source, cache: cache, clock: clock, delay: delay, log: log}
}

// Resolve starts a background run over symbols. While a run is active a new
// request is ignored, unless the active run was cancelled; then the request
// waits and starts as soon as the cancelled run has unwound. It reports
// whether the request was accepted.
func (r *Resolver) Resolve(ctx context.Context, symbols []string, apply ApplyFunc) bool {
	if len(symbols) == 0 {
		return false
	}
	req := &request{ctx: ctx, symbols: append([]string(nil), symbols...), apply: apply}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		if !r.cancelled {
			return false
		}
		r.queued = req
		return true
	}
	r.running = true
	r.cancelled = false
	r.cancelCh = make(chan struct{})
	r.idle = make(chan struct{})
	go r.loop(req, r.cancelCh)
	return true
}

// Cancel stops the active run at its next step. Nothing it learned is
// persisted or applied. If the run is already committing its batch, Cancel
// returns after the commit. Any queued request is dropped.
func (r *Resolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = nil
	if !r.running || r.cancelled {
		return
	}
	r.cancelled = true
	close(r.cancelCh)
}

// Running reports whether a run is active.
func (r *Resolver) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until no run is active.
func (r *Resolver) Wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	running := r.running
	r.mu.Unlock()
	if !running {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Resolver) loop(req *request, cancelCh chan struct{}) {
	for {
		r.process(req, cancelCh)

		r.mu.Lock()
		next := r.queued
		r.queued = nil
		if next == nil {
			r.running = false
			close(r.idle)
			r.mu.Unlock()
			return
		}
		r.cancelled = false
		r.cancelCh = make(chan struct{})
		cancelCh = r.cancelCh
		r.mu.Unlock()
		req = next
	}
}

func (r *Resolver) process(req *request, cancelCh chan struct{}) {
	batch := make(map[string]string)
	lookups := 0
	failed := 0

	for _, sym := range req.symbols {
		if _, ok := r.cache.Get(sym); ok {
			continue
		}
		if _, ok := batch[sym]; ok {
			continue
		}
		if lookups > 0 {
			select {
			case <-r.clock.After(r.delay):
			case <-cancelCh:
				return
			case <-req.ctx.Done():
				return
			}
		}
		if isClosed(cancelCh) {
			return
		}
		lookups++

		name, err := r.source.Lookup(req.ctx, sym)
		if err != nil {
			failed++
			r.log.Debug("name lookup failed", "symbol", sym, "error", err)
			continue
		}
		if UsableName(sym, name) {
			batch[sym] = name
		}
	}

	// Commit under mu so a Cancel either lands before the write and
	// discards the batch, or waits until the batch is fully applied.
	r.mu.Lock()
	defer r.mu.Unlock()
	if isClosed(cancelCh) {
		return
	}
	r.log.Info("name resolution finished", "lookups", lookups, "resolved", len(batch), "failed", failed)
	if len(batch) == 0 {
		return
	}
	if err := r.cache.Put(req.ctx, batch); err != nil {
		r.log.Warn("persisting resolved names", "error", err)
	}
	req.apply(batch)
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
