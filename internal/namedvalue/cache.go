// Package namedvalue caches the feed's named-value tables (match
// statuses, void reasons, bet stop reasons, ...). These are simple
// dictionaries: each reload replaces or adds whole entries keyed by
// integer id, there is no partial merge.
package namedvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"oddsfeed/internal/core"
)

// NamedValue is one (id, description) pair.
type NamedValue struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Fetcher loads a full named-value table. The endpoint discriminates
// the table; locale is empty for the non-localized tables.
type Fetcher interface {
	GetNamedValues(ctx context.Context, endpoint string, locale string) ([]core.NamedValueDTO, error)
}

// Config carries the tunables shared by both cache variants.
type Config struct {
	// Endpoint names the table this cache holds.
	Endpoint string

	// ReloadInterval drives the periodic full reload. Default: 24
	// hours.
	ReloadInterval time.Duration

	// Strategy selects what a lookup of an undefined id does: throw
	// returns a not-found error, catch returns a value with an empty
	// description.
	Strategy core.ExceptionStrategy
}

func (c *Config) applyDefaults() {
	if c.ReloadInterval <= 0 {
		c.ReloadInterval = 24 * time.Hour
	}
	if c.Strategy == "" {
		c.Strategy = core.ExceptionStrategyThrow
	}
}

// Cache is the non-localized variant: one description per id.
type Cache struct {
	cfg     Config
	fetcher Fetcher

	mu     sync.Mutex
	values map[int]string
	loaded bool

	closeOnce  sync.Once
	stopReload func()
}

// New creates a named-value cache for one endpoint. The first lookup
// blocks on the initial fetch; reloads after that are periodic.
func New(fetcher Fetcher, cfg Config) *Cache {
	cfg.applyDefaults()
	c := &Cache{
		cfg:     cfg,
		fetcher: fetcher,
		values:  make(map[int]string),
	}
	c.stopReload = c.startReload()
	return c
}

// Close stops the periodic reload loop.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.stopReload != nil {
			c.stopReload()
		}
	})
}

// ensureLoaded performs the synchronous first fetch. Held under the
// cache mutex so concurrent first lookups block on one fetch.
func (c *Cache) ensureLoadedLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	dtos, err := c.fetcher.GetNamedValues(ctx, c.cfg.Endpoint, "")
	if err != nil {
		return fmt.Errorf("loading %s values: %w", c.cfg.Endpoint, err)
	}
	for _, dto := range dtos {
		c.values[dto.ID] = dto.Description
	}
	c.loaded = true
	return nil
}

// IsValueDefined reports whether the id exists in the table, fetching
// the table first when empty.
func (c *Cache) IsValueDefined(ctx context.Context, id int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return false, err
	}
	_, ok := c.values[id]
	return ok, nil
}

// GetNamedValue returns the value for the id. An undefined id follows
// the configured strategy: an error, or a value with an empty
// description.
func (c *Cache) GetNamedValue(ctx context.Context, id int) (NamedValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return NamedValue{}, err
	}
	desc, ok := c.values[id]
	if !ok {
		if c.cfg.Strategy == core.ExceptionStrategyThrow {
			return NamedValue{}, core.NewNotFoundError(fmt.Sprintf("%s value %d not defined", c.cfg.Endpoint, id))
		}
		return NamedValue{ID: id}, nil
	}
	return NamedValue{ID: id, Description: desc}, nil
}

func (c *Cache) startReload() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.cfg.ReloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.reload(context.Background())
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// reload refreshes the table in place. A failed reload keeps the
// previous entries.
func (c *Cache) reload(ctx context.Context) {
	dtos, err := c.fetcher.GetNamedValues(ctx, c.cfg.Endpoint, "")
	if err != nil {
		slog.Warn("named value reload failed", "endpoint", c.cfg.Endpoint, "error", err)
		return
	}
	c.mu.Lock()
	for _, dto := range dtos {
		c.values[dto.ID] = dto.Description
	}
	c.loaded = true
	c.mu.Unlock()
}

// CacheStatus returns the table size for diagnostics.
func (c *Cache) CacheStatus() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{c.cfg.Endpoint: len(c.values)}
}

const exportVersion = 1

// Export implements core.Exporter.
func (c *Cache) Export(_ context.Context) ([]core.ExportEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int, 0, len(c.values))
	for id := range c.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]core.ExportEntry, 0, len(ids))
	for _, id := range ids {
		payload, err := json.Marshal(NamedValue{ID: id, Description: c.values[id]})
		if err != nil {
			return nil, fmt.Errorf("exporting %s value %d: %w", c.cfg.Endpoint, id, err)
		}
		entries = append(entries, core.ExportEntry{
			Kind:    c.cfg.Endpoint,
			Key:     fmt.Sprintf("%d", id),
			Version: exportVersion,
			Payload: payload,
		})
	}
	return entries, nil
}

// Import implements core.Exporter. An imported table counts as loaded:
// the first lookup after a warm restart does not block on a fetch.
func (c *Cache) Import(_ context.Context, entries []core.ExportEntry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	imported := 0
	for _, entry := range entries {
		var v NamedValue
		if err := json.Unmarshal(entry.Payload, &v); err != nil {
			slog.Warn("skipping unreadable named value record", "key", entry.Key, "error", err)
			continue
		}
		c.values[v.ID] = v.Description
		imported++
	}
	if imported > 0 {
		c.loaded = true
	}
	return imported, nil
}
