// Package names keeps display names for portfolio symbols. Names come from
// a persisted cache first, then from the remote service when it sends a
// usable one, and finally from a throttled background resolver.
package names

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"marketwatch/internal/domain"
	"marketwatch/internal/store"
)

// placeholder is what the remote service sends when it has no name.
const placeholder = "N/A"

// UsableName reports whether name can be shown for symbol: non-empty, not
// the placeholder, and not just the symbol again.
func UsableName(symbol, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, placeholder) {
		return false
	}
	return !strings.EqualFold(name, strings.TrimSpace(symbol))
}

// PickCandidate returns the suggestion whose symbol matches symbol exactly
// (ignoring case), else the first suggestion.
func PickCandidate(symbol string, candidates []domain.Suggestion) (domain.Suggestion, bool) {
	if len(candidates) == 0 {
		return domain.Suggestion{}, false
	}
	for _, c := range candidates {
		if strings.EqualFold(c.Symbol, symbol) {
			return c, true
		}
	}
	return candidates[0], true
}

// Cache is the persisted symbol to name map. Entries are only added; the
// whole map is written on every change.
type Cache struct {
	kv  store.KV
	log *slog.Logger

	mu      sync.RWMutex
	entries map[string]string

	// serializes persisted writes
	writeMu sync.Mutex
}

// NewCache returns an empty Cache backed by kv.
func NewCache(kv store.KV, log *slog.Logger) *Cache {
	return &Cache{kv: kv, log: log, entries: make(map[string]string)}
}

// Load replaces the in-memory map with the persisted one, dropping entries
// that are not usable. A missing or corrupt value starts empty.
func (c *Cache) Load(ctx context.Context) error {
	raw, err := c.kv.Get(ctx, store.KeyNameCache)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded map[string]string
	if err := json.Unmarshal(raw, &loaded); err != nil {
		c.log.Warn("discarding unreadable name cache", "error", err)
		return nil
	}

	clean := make(map[string]string, len(loaded))
	for sym, name := range loaded {
		if UsableName(sym, name) {
			clean[sym] = name
		}
	}

	c.mu.Lock()
	c.entries = clean
	c.mu.Unlock()
	c.log.Info("loaded name cache", "entries", len(clean), "dropped", len(loaded)-len(clean))
	return nil
}

// Get returns the cached name for symbol.
func (c *Cache) Get(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.entries[symbol]
	return name, ok
}

// Len returns the number of cached names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of every entry.
func (c *Cache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Merge attaches names to fetched holdings. A cached name wins; otherwise a
// usable remote name is kept and added to the cache; otherwise the name is
// left empty and the symbol is returned in unresolved. Newly learned names
// are persisted in one write.
func (c *Cache) Merge(ctx context.Context, fetched []domain.Holding) ([]domain.Holding, []string) {
	merged := make([]domain.Holding, len(fetched))
	learned := make(map[string]string)
	var unresolved []string

	c.mu.RLock()
	for i, h := range fetched {
		switch cached, ok := c.entries[h.Symbol]; {
		case ok:
			h.Name = cached
		case UsableName(h.Symbol, h.Name):
			h.Name = strings.TrimSpace(h.Name)
			learned[h.Symbol] = h.Name
		default:
			h.Name = ""
			unresolved = append(unresolved, h.Symbol)
		}
		merged[i] = h
	}
	c.mu.RUnlock()

	if len(learned) > 0 {
		if err := c.Put(ctx, learned); err != nil {
			c.log.Warn("persisting promoted names", "error", err)
		}
	}
	return merged, unresolved
}

// Put adds every usable entry of batch and persists the map once.
func (c *Cache) Put(ctx context.Context, batch map[string]string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	added := 0
	for sym, name := range batch {
		if !UsableName(sym, name) {
			continue
		}
		if _, ok := c.entries[sym]; ok {
			continue
		}
		c.entries[sym] = strings.TrimSpace(name)
		added++
	}
	if added == 0 {
		c.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.kv.Put(ctx, store.KeyNameCache, data)
}

// Clear empties the cache in memory and in storage.
func (c *Cache) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()
	return c.kv.Delete(ctx, store.KeyNameCache)
}
