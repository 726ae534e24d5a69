package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"oddsfeed/internal/core"
)

// Manager is the fan-out hub between the data-fetch layer and the
// entity caches. Caches register themselves with the set of DTO types
// they accept; every saved DTO is broadcast concurrently to every
// cache that declared interest. Delivery is synchronous per call,
// at most once per registered cache, with no persistence or replay.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]core.RegisteredCache

	statsMu       sync.Mutex
	maxSaveTime   time.Duration
	totalSaveTime time.Duration
	saveCount     int64
}

// NewManager creates an empty cache manager.
func NewManager() *Manager {
	return &Manager{caches: make(map[string]core.RegisteredCache)}
}

// RegisterCache adds a cache under the given name. A cache declaring
// no DTO types is a construction error. Registering over an existing
// name replaces the previous cache with a warning.
func (m *Manager) RegisterCache(name string, c core.RegisteredCache) error {
	if name == "" || c == nil {
		return core.NewInvalidOperationError("cache registration requires a name and a cache", nil)
	}
	if len(c.RegisteredDtoTypes()) == 0 {
		return core.NewInvalidOperationError(
			fmt.Sprintf("cache %q declares no dto types", name), nil)
	}

	m.mu.Lock()
	_, replaced := m.caches[name]
	m.caches[name] = c
	m.mu.Unlock()

	if replaced {
		slog.Warn("cache already registered, replacing", "cache", name)
	} else {
		slog.Debug("cache registered", "cache", name, "dto_types", len(c.RegisteredDtoTypes()))
	}
	return nil
}

// SaveDTO is the blocking facade over SaveDTOAsync. Callers that need
// non-blocking behavior must use the async form.
func (m *Manager) SaveDTO(id core.URN, item any, locale string, dtoType core.DtoType, requester core.Requester) {
	if err := m.SaveDTOAsync(context.Background(), id, item, locale, dtoType, requester); err != nil {
		slog.Error("save dto failed", "id", id, "dto_type", dtoType, "error", err)
	}
}

// SaveDTOAsync broadcasts one DTO to every cache whose declared type
// set contains dtoType. Interested caches are invoked concurrently; a
// failure in one cache is logged and does not affect the others, and
// partial success is not reported to the caller. A DTO type no cache
// claims is dropped with a warning.
func (m *Manager) SaveDTOAsync(ctx context.Context, id core.URN, item any, locale string, dtoType core.DtoType, requester core.Requester) error {
	m.mu.RLock()
	interested := make([]core.RegisteredCache, 0, len(m.caches))
	names := make([]string, 0, len(m.caches))
	for name, c := range m.caches {
		if c.RegisteredDtoTypes().Contains(dtoType) {
			interested = append(interested, c)
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	if len(interested) == 0 {
		dispatchDroppedTotal.Inc()
		slog.Warn("no cache registered for dto type", "dto_type", dtoType, "id", id)
		return nil
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range interested {
		name := names[i]
		c := c
		g.Go(func() error {
			saved, err := c.CacheAddDTO(gctx, id, item, locale, dtoType, requester)
			switch {
			case err != nil:
				savesTotal.WithLabelValues(name, saveResultError).Inc()
				slog.Error("cache failed to save dto",
					"cache", name, "id", id, "dto_type", dtoType, "locale", locale, "error", err)
			case saved:
				savesTotal.WithLabelValues(name, saveResultSaved).Inc()
			default:
				savesTotal.WithLabelValues(name, saveResultSkipped).Inc()
			}
			// Fan-out is best effort: one failing cache must not stop
			// the others, so errors never propagate through the group.
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	saveDuration.Observe(elapsed.Seconds())
	m.statsMu.Lock()
	if elapsed > m.maxSaveTime {
		m.maxSaveTime = elapsed
	}
	m.totalSaveTime += elapsed
	m.saveCount++
	m.statsMu.Unlock()

	return nil
}

// RemoveCacheItem fans a delete out to every registered cache except
// the one named sender, so a cache never re-deletes the item it asked
// to have purged while every other cache still reacts.
func (m *Manager) RemoveCacheItem(id core.URN, itemType core.TypeGroup, sender string) {
	m.mu.RLock()
	targets := make([]core.RegisteredCache, 0, len(m.caches))
	for name, c := range m.caches {
		if name == sender {
			continue
		}
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	slog.Debug("removing cache item", "id", id, "item_type", itemType, "sender", sender)
	for _, c := range targets {
		c.CacheDeleteItem(id)
	}
}

// RegisteredCacheNames returns the names of all registered caches in
// sorted order.
func (m *Manager) RegisteredCacheNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cache returns the registered cache with the given name, or nil.
func (m *Manager) Cache(name string) core.RegisteredCache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caches[name]
}

// SaveStats returns the running fan-out timing instrumentation: the
// longest single fan-out, the summed wall-clock of all fan-outs, and
// the number of fan-outs performed.
func (m *Manager) SaveStats() (max, total time.Duration, count int64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.maxSaveTime, m.totalSaveTime, m.saveCount
}
