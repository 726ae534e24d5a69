package namedvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"oddsfeed/internal/core"
)

// LocalizedNamedValue is one id with its per-locale descriptions.
type LocalizedNamedValue struct {
	ID           int               `json:"id"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
}

// Description returns the description for the locale, empty when that
// locale has not been loaded.
func (v LocalizedNamedValue) Description(locale string) string {
	return v.Descriptions[locale]
}

// LocalizedCache is the localized variant: per-locale descriptions
// merged into a shared per-id dictionary, fetching only the locales a
// request needs.
type LocalizedCache struct {
	cfg     Config
	locales []string
	fetcher Fetcher

	mu            sync.Mutex
	values        map[int]map[string]string
	loadedLocales map[string]struct{}
}

// NewLocalized creates a localized named-value cache for one endpoint.
func NewLocalized(fetcher Fetcher, locales []string, cfg Config) *LocalizedCache {
	cfg.applyDefaults()
	if len(locales) == 0 {
		locales = []string{"en"}
	}
	return &LocalizedCache{
		cfg:           cfg,
		locales:       locales,
		fetcher:       fetcher,
		values:        make(map[int]map[string]string),
		loadedLocales: make(map[string]struct{}),
	}
}

func (c *LocalizedCache) ensureLocalesLocked(ctx context.Context, locales []string) error {
	for _, locale := range locales {
		if _, ok := c.loadedLocales[locale]; ok {
			continue
		}
		dtos, err := c.fetcher.GetNamedValues(ctx, c.cfg.Endpoint, locale)
		if err != nil {
			return fmt.Errorf("loading %s values (%s): %w", c.cfg.Endpoint, locale, err)
		}
		for _, dto := range dtos {
			m, ok := c.values[dto.ID]
			if !ok {
				m = make(map[string]string)
				c.values[dto.ID] = m
			}
			m[locale] = dto.Description
		}
		c.loadedLocales[locale] = struct{}{}
	}
	return nil
}

// Get returns the value for the id with at least the given locales
// loaded; nil locales means the full configured set. An id with no
// cached translations follows the configured strategy.
func (c *LocalizedCache) Get(ctx context.Context, id int, locales []string) (LocalizedNamedValue, error) {
	if len(locales) == 0 {
		locales = c.locales
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLocalesLocked(ctx, locales); err != nil {
		return LocalizedNamedValue{}, err
	}

	m, ok := c.values[id]
	if !ok || len(m) == 0 {
		if c.cfg.Strategy == core.ExceptionStrategyThrow {
			return LocalizedNamedValue{}, core.NewNotFoundError(fmt.Sprintf("%s value %d not defined", c.cfg.Endpoint, id))
		}
		return LocalizedNamedValue{ID: id}, nil
	}

	out := LocalizedNamedValue{ID: id, Descriptions: make(map[string]string, len(m))}
	for l, d := range m {
		out.Descriptions[l] = d
	}
	return out, nil
}

// IsValueDefined reports whether the id exists in the table for any
// loaded locale, fetching the configured locales first when nothing is
// loaded yet.
func (c *LocalizedCache) IsValueDefined(ctx context.Context, id int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.loadedLocales) == 0 {
		if err := c.ensureLocalesLocked(ctx, c.locales[:1]); err != nil {
			return false, err
		}
	}
	_, ok := c.values[id]
	return ok, nil
}

// CacheStatus returns the table size for diagnostics.
func (c *LocalizedCache) CacheStatus() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{c.cfg.Endpoint: len(c.values)}
}

// Export implements core.Exporter.
func (c *LocalizedCache) Export(_ context.Context) ([]core.ExportEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int, 0, len(c.values))
	for id := range c.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]core.ExportEntry, 0, len(ids))
	for _, id := range ids {
		payload, err := json.Marshal(LocalizedNamedValue{ID: id, Descriptions: c.values[id]})
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

// Import implements core.Exporter. Imported descriptions do not mark
// any locale as fully loaded: a later request for a locale still
// verifies it against the feed.
func (c *LocalizedCache) Import(_ context.Context, entries []core.ExportEntry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	imported := 0
	for _, entry := range entries {
		var v LocalizedNamedValue
		if err := json.Unmarshal(entry.Payload, &v); err != nil {
			slog.Warn("skipping unreadable named value record", "key", entry.Key, "error", err)
			continue
		}
		m, ok := c.values[v.ID]
		if !ok {
			m = make(map[string]string)
			c.values[v.ID] = m
		}
		for l, d := range v.Descriptions {
			m[l] = d
		}
		imported++
	}
	return imported, nil
}
