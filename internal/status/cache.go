package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"oddsfeed/internal/cache"
	"oddsfeed/internal/core"
)

// CacheName identifies this cache in the manager's registry.
const CacheName = "SportEventStatusCache"

// betPalProducerID is the upstream producer whose timeline-sourced
// statuses are known to be unreliable; only flags keyed by it arm the
// timeline-ignore window.
const betPalProducerID = 4

// Registry is the part of the cache manager caches register with.
type Registry interface {
	RegisterCache(name string, c core.RegisteredCache) error
}

// StatusFetcher triggers the REST status fetch for one event. The
// fetched status re-enters this cache through the manager fan-out
// before the call returns.
type StatusFetcher interface {
	GetSportEventStatus(ctx context.Context, id core.URN, locale string) error
}

// Config carries the tunables of the status cache.
type Config struct {
	// StatusTTL is the absolute per-item expiration. Default: 5
	// minutes.
	StatusTTL time.Duration

	// TimelineIgnoreTTL is the sliding window of a timeline-ignore
	// flag. Default: 20 seconds.
	TimelineIgnoreTTL time.Duration

	// FetchLocale is the locale used for REST status fetches; the
	// status payload itself is not localized.
	FetchLocale string
}

func (c *Config) applyDefaults() {
	if c.StatusTTL <= 0 {
		c.StatusTTL = 5 * time.Minute
	}
	if c.TimelineIgnoreTTL <= 0 {
		c.TimelineIgnoreTTL = 20 * time.Second
	}
	if c.FetchLocale == "" {
		c.FetchLocale = "en"
	}
}

// Cache holds per-event statuses under absolute TTL. One process-wide
// semaphore serializes lookups: correctness over per-key concurrency,
// since a status fetch is cheap and misses are rare.
type Cache struct {
	cfg     Config
	store   *cache.MemoryStore
	ignored *cache.MemoryStore
	fetcher StatusFetcher

	sem chan struct{}
}

// New creates the status cache and registers it with the cache
// manager; a registration failure is fatal.
func New(registry Registry, fetcher StatusFetcher, cfg Config) (*Cache, error) {
	cfg.applyDefaults()
	c := &Cache{
		cfg:     cfg,
		store:   cache.NewMemoryStore(),
		ignored: cache.NewMemoryStore(),
		fetcher: fetcher,
		sem:     make(chan struct{}, 1),
	}
	if err := registry.RegisterCache(CacheName, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CacheName implements core.RegisteredCache.
func (c *Cache) CacheName() string { return CacheName }

// RegisteredDtoTypes implements core.RegisteredCache.
func (c *Cache) RegisteredDtoTypes() core.DtoTypeSet {
	return core.NewDtoTypeSet(
		core.DtoTypeSportEventStatus,
		core.DtoTypeMatchTimeline,
	)
}

// GetSportEventStatus returns the cached status for the event,
// fetching through the event's REST endpoint on a miss. If the feed
// has not reported the event at all, the not-started sentinel is
// returned rather than an error.
func (c *Cache) GetSportEventStatus(ctx context.Context, id core.URN) (*SportEventStatus, error) {
	if s := c.peek(id); s != nil {
		return s, nil
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	// Another lookup may have populated the entry while this one
	// queued on the semaphore.
	if s := c.peek(id); s != nil {
		return s, nil
	}

	if err := c.fetcher.GetSportEventStatus(ctx, id, c.cfg.FetchLocale); err != nil {
		return nil, fmt.Errorf("fetching status for %s: %w", id, err)
	}

	if s := c.peek(id); s != nil {
		return s, nil
	}
	return NewNotStarted(id), nil
}

func (c *Cache) peek(id core.URN) *SportEventStatus {
	if v, ok := c.store.Get(id.String()); ok {
		return v.(*SportEventStatus)
	}
	return nil
}

// AddEventIdForTimelineIgnore flags an event so timeline-sourced
// statuses for it are dropped while the sliding window is active.
// msgType names the feed message that triggered the flag; it is kept
// for the log trail only. Only the known-bad producer arms the flag;
// flags from other producers are ignored.
func (c *Cache) AddEventIdForTimelineIgnore(id core.URN, producerID int, msgType string) {
	if producerID != betPalProducerID {
		return
	}
	slog.Debug("arming timeline ignore", "id", id, "producer", producerID, "message_type", msgType)
	c.ignored.SetWithTTL(id.String(), struct{}{}, c.cfg.TimelineIgnoreTTL, true)
}

func (c *Cache) timelineIgnored(id core.URN) bool {
	// Reading the flag refreshes its sliding window.
	_, ok := c.ignored.Get(id.String())
	return ok
}

// CacheAddDTO implements core.RegisteredCache. Updates from the live
// odds feed or a full summary, and any update for an uncached id,
// always overwrite; timeline-derived updates only fill an empty slot.
func (c *Cache) CacheAddDTO(_ context.Context, id core.URN, item any, _ string, dtoType core.DtoType, _ core.Requester) (bool, error) {
	var dto *core.SportEventStatusDTO
	switch dtoType {
	case core.DtoTypeSportEventStatus:
		d, ok := item.(*core.SportEventStatusDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		dto = d
	case core.DtoTypeMatchTimeline:
		d, ok := item.(*core.MatchTimelineDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		if d.Status == nil {
			return false, nil
		}
		// Default the source on a copy; the caller's DTO stays as
		// parsed.
		s := *d.Status
		if s.Source == "" {
			s.Source = core.StatusSourceTimeline
		}
		dto = &s
	default:
		return c.tagMismatch(id, item, dtoType)
	}

	if dto.Source == core.StatusSourceTimeline && c.timelineIgnored(id) {
		slog.Debug("dropping timeline status inside ignore window", "id", id)
		return false, nil
	}

	key := id.String()
	switch dto.Source {
	case core.StatusSourceOddsChange, core.StatusSourceSportEventSummary:
		c.store.SetWithTTL(key, fromDTO(dto), c.cfg.StatusTTL, false)
		return true, nil
	default:
		if _, cached := c.store.Get(key); cached {
			return false, nil
		}
		c.store.SetWithTTL(key, fromDTO(dto), c.cfg.StatusTTL, false)
		return true, nil
	}
}

func (c *Cache) tagMismatch(id core.URN, item any, dtoType core.DtoType) (bool, error) {
	slog.Warn("dto payload does not match its tag",
		"cache", CacheName, "id", id, "dto_type", dtoType, "payload", fmt.Sprintf("%T", item))
	return false, nil
}

// CacheDeleteItem implements core.RegisteredCache; the event cache's
// sweep fan-out lands here and drops the status with the event.
func (c *Cache) CacheDeleteItem(id core.URN) {
	c.store.Remove(id.String())
}

// CacheHasItem implements core.RegisteredCache.
func (c *Cache) CacheHasItem(id core.URN) bool {
	_, ok := c.store.Get(id.String())
	return ok
}

// CacheStatus implements core.RegisteredCache.
func (c *Cache) CacheStatus() map[string]int {
	return map[string]int{"sport_event_status": c.store.Len()}
}

const exportVersion = 1

// Export implements core.Exporter. Imported statuses restart their TTL
// from the import time; the absolute expiration instants are not
// carried across restarts.
func (c *Cache) Export(_ context.Context) ([]core.ExportEntry, error) {
	var entries []core.ExportEntry
	for _, key := range c.store.Keys() {
		v, ok := c.store.Get(key)
		if !ok {
			continue
		}
		payload, err := json.Marshal(v.(*SportEventStatus))
		if err != nil {
			return nil, fmt.Errorf("exporting status %s: %w", key, err)
		}
		entries = append(entries, core.ExportEntry{Kind: "sport_event_status", Key: key, Version: exportVersion, Payload: payload})
	}
	return entries, nil
}

// Import implements core.Exporter.
func (c *Cache) Import(_ context.Context, entries []core.ExportEntry) (int, error) {
	imported := 0
	for _, entry := range entries {
		var s SportEventStatus
		if err := json.Unmarshal(entry.Payload, &s); err != nil {
			slog.Warn("skipping unreadable status snapshot record", "key", entry.Key, "error", err)
			continue
		}
		c.store.SetWithTTL(entry.Key, &s, c.cfg.StatusTTL, false)
		imported++
	}
	return imported, nil
}
