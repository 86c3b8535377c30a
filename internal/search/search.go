// Package search turns keystrokes into debounced symbol lookups. A lookup
// result is applied only while the query text it was issued for is still
// the current input.
package search

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"marketwatch/internal/debounce"
	"marketwatch/internal/domain"
)

// LookupFunc resolves a query into suggestions. It is responsible for
// reporting authorization failures to the session store.
type LookupFunc func(ctx context.Context, query string) ([]domain.Suggestion, error)

// State is the observable search panel.
type State struct {
	QueryText   string
	Suggestions []domain.Suggestion
	Visible     bool
	Pending     bool
}

// Options configures a Channel.
type Options struct {
	Name      string
	Delay     time.Duration
	MinLength int
	Clock     clockwork.Clock
	Log       *slog.Logger
}

// Channel is one debounced query channel.
type Channel struct {
	name   string
	minLen int
	lookup LookupFunc
	log    *slog.Logger
	deb    *debounce.Debouncer[string]

	mu       sync.Mutex
	state    State
	ctx      context.Context
	onChange func(State)
}

// New builds a Channel. ctx bounds every lookup it issues.
func New(ctx context.Context, lookup LookupFunc, opts Options) *Channel {
	if opts.MinLength < 1 {
		opts.MinLength = 2
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	c := &Channel{
		name:   opts.Name,
		minLen: opts.MinLength,
		lookup: lookup,
		log:    opts.Log.With("channel", opts.Name),
		ctx:    ctx,
	}
	c.deb = debounce.New(opts.Clock, opts.Delay, c.run)
	return c
}

// OnChange registers fn to receive every state change.
func (c *Channel) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnInput records new query text. Short input clears and hides the panel
// immediately and cancels any scheduled lookup; longer input schedules a
// lookup after the quiet period.
func (c *Channel) OnInput(text string) {
	c.mu.Lock()
	c.state.QueryText = text
	if utf8.RuneCountInString(text) < c.minLen {
		c.deb.Cancel()
		c.state.Suggestions = nil
		c.state.Visible = false
		c.state.Pending = false
	} else {
		c.state.Pending = true
		c.deb.Trigger(text)
	}
	st, notify := c.snapshotLocked()
	c.mu.Unlock()
	notify(st)
}

// Select adopts a suggestion's symbol as the query text and hides the panel.
func (c *Channel) Select(s domain.Suggestion) {
	c.mu.Lock()
	c.deb.Cancel()
	c.state.QueryText = s.Symbol
	c.state.Visible = false
	c.state.Pending = false
	st, notify := c.snapshotLocked()
	c.mu.Unlock()
	notify(st)
}

// Hide closes the panel without touching the query text.
func (c *Channel) Hide() {
	c.mu.Lock()
	c.state.Visible = false
	st, notify := c.snapshotLocked()
	c.mu.Unlock()
	notify(st)
}

// Reset cancels any scheduled lookup and clears all state.
func (c *Channel) Reset() {
	c.mu.Lock()
	c.deb.Cancel()
	c.state = State{}
	st, notify := c.snapshotLocked()
	c.mu.Unlock()
	notify(st)
}

// Flush runs a scheduled lookup now. It reports whether one was pending.
func (c *Channel) Flush() bool {
	return c.deb.Flush()
}

// State returns a copy of the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, _ := c.snapshotLocked()
	return st
}

// run performs one lookup for query and applies the result if query is
// still the current input.
func (c *Channel) run(query string) {
	results, err := c.lookup(c.ctx, query)

	c.mu.Lock()
	if c.state.QueryText != query {
		c.mu.Unlock()
		c.log.Debug("discarding stale search result", "query", query)
		return
	}
	c.state.Pending = false
	if err != nil {
		c.log.Debug("search failed", "query", query, "error", err)
	} else {
		c.state.Suggestions = results
		c.state.Visible = len(results) > 0
	}
	st, notify := c.snapshotLocked()
	c.mu.Unlock()
	notify(st)
}

func (c *Channel) snapshotLocked() (State, func(State)) {
	st := c.state
	st.Suggestions = append([]domain.Suggestion(nil), c.state.Suggestions...)
	fn := c.onChange
	if fn == nil {
		fn = func(State) {}
	}
	return st, fn
}
