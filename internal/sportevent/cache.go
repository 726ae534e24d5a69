package sportevent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"oddsfeed/internal/cache"
	"oddsfeed/internal/core"
)

// CacheName identifies this cache in the manager's registry and in the
// delete fan-out.
const CacheName = "SportEventCache"

// Registry is the part of the cache manager caches register with.
type Registry interface {
	RegisterCache(name string, c core.RegisteredCache) error
}

// ItemRemover fans a delete out to every other registered cache.
type ItemRemover interface {
	RemoveCacheItem(id core.URN, itemType core.TypeGroup, sender string)
}

// Config carries the tunables of the sport event cache.
type Config struct {
	// Locales are the configured feed locales.
	Locales []string

	// ScheduleRefreshInterval drives the periodic daily-schedule
	// prefetch. Default: 1 hour.
	ScheduleRefreshInterval time.Duration

	// SchedulePrefetchDays bounds the schedule look-ahead. Default: 3
	// (today, +1, +2).
	SchedulePrefetchDays int

	// ScheduleFetchThrottle skips a (date, locale) pair fetched more
	// recently than this. Default: 24 hours.
	ScheduleFetchThrottle time.Duration

	// FixtureForceWindow is how long a fixture-timestamp hint keeps
	// forcing fresh fixture fetches. Default: 2 minutes.
	FixtureForceWindow time.Duration

	// MaxLockHold bounds per-id lock holds before the stale-lock clean
	// pass force-releases them.
	MaxLockHold time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.Locales) == 0 {
		c.Locales = []string{"en"}
	}
	if c.ScheduleRefreshInterval <= 0 {
		c.ScheduleRefreshInterval = time.Hour
	}
	if c.SchedulePrefetchDays <= 0 {
		c.SchedulePrefetchDays = 3
	}
	if c.ScheduleFetchThrottle <= 0 {
		c.ScheduleFetchThrottle = 24 * time.Hour
	}
	if c.FixtureForceWindow <= 0 {
		c.FixtureForceWindow = 2 * time.Minute
	}
}

// Cache is the central per-event cache. Items are built by the factory
// on first request, merged in place by every DTO that arrives for
// them, and removed only by explicit delete; there is no TTL here.
type Cache struct {
	cfg        Config
	store      cache.Store
	locks      *cache.LockManager
	factory    *Factory
	dataRouter core.DataRouter
	remover    ItemRemover

	tournamentsMu      sync.Mutex
	directTournaments  map[string]struct{}
	specialTournaments map[string]struct{}

	watermarkMu     sync.Mutex
	scheduleFetched map[string]time.Time

	fixtureForce *cache.MemoryStore

	refreshing chan struct{}

	closeOnce   sync.Once
	stopRefresh func()
	stopClean   func()
}

// New creates the sport event cache and registers it with the cache
// manager; a registration failure is fatal.
func New(registry Registry, remover ItemRemover, dataRouter core.DataRouter, factory *Factory, cfg Config) (*Cache, error) {
	cfg.applyDefaults()

	locks := cache.NewLockManager(cfg.MaxLockHold)
	c := &Cache{
		cfg:                cfg,
		store:              cache.NewMemoryStore(),
		locks:              locks,
		factory:            factory,
		dataRouter:         dataRouter,
		remover:            remover,
		directTournaments:  make(map[string]struct{}),
		specialTournaments: make(map[string]struct{}),
		scheduleFetched:    make(map[string]time.Time),
		fixtureForce:       cache.NewMemoryStore(),
		refreshing:         make(chan struct{}, 1),
	}

	if err := registry.RegisterCache(CacheName, c); err != nil {
		return nil, err
	}

	c.stopClean = locks.StartCleanLoop(0)
	c.stopRefresh = c.startScheduleRefresh()
	return c, nil
}

// Close stops the background refresh and lock clean loops.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.stopRefresh != nil {
			c.stopRefresh()
		}
		if c.stopClean != nil {
			c.stopClean()
		}
	})
}

// CacheName implements core.RegisteredCache.
func (c *Cache) CacheName() string { return CacheName }

// RegisteredDtoTypes implements core.RegisteredCache.
func (c *Cache) RegisteredDtoTypes() core.DtoTypeSet {
	return core.NewDtoTypeSet(
		core.DtoTypeFixture,
		core.DtoTypeMatchSummary,
		core.DtoTypeMatchTimeline,
		core.DtoTypeTournamentInfo,
		core.DtoTypeDraw,
		core.DtoTypeLottery,
		core.DtoTypeBookingStatus,
	)
}

// peek returns the cached item without taking its lock.
func (c *Cache) peek(id core.URN) Item {
	if v, ok := c.store.Get(id.String()); ok {
		return v.(Item)
	}
	return nil
}

// GetEventCacheItem returns the cached item for the id, building and
// storing a bare shell when absent. It returns nil only on an internal
// error, which is logged and swallowed.
func (c *Cache) GetEventCacheItem(id core.URN) Item {
	key := id.String()
	c.locks.Wait(key)
	defer c.locks.Release(key)

	if item := c.peek(id); item != nil {
		return item
	}
	item, err := c.factory.Build(id)
	if err != nil {
		slog.Error("failed to build event cache item", "id", id, "error", err)
		return nil
	}
	c.store.Set(key, item)
	return item
}

// CacheAddDTO implements core.RegisteredCache: it dispatches on the
// DTO tag, builds or merges the addressed item, and inserts any
// embedded secondary entity under its own id.
func (c *Cache) CacheAddDTO(ctx context.Context, id core.URN, item any, locale string, dtoType core.DtoType, requester core.Requester) (bool, error) {
	switch dtoType {
	case core.DtoTypeFixture:
		dto, ok := item.(*core.FixtureDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		saved := c.addItem(id, dto, locale, requester)
		c.addEmbeddedTournament(&dto.SportEventSummaryDTO, id, locale)
		return saved, nil

	case core.DtoTypeMatchSummary:
		dto, ok := item.(*core.SportEventSummaryDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		saved := c.addItem(id, dto, locale, requester)
		c.addEmbeddedTournament(dto, id, locale)
		return saved, nil

	case core.DtoTypeMatchTimeline:
		dto, ok := item.(*core.MatchTimelineDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		return c.addItem(id, dto, locale, requester), nil

	case core.DtoTypeTournamentInfo:
		dto, ok := item.(*core.TournamentInfoDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		c.trackTournament(id, true)
		return c.addItem(id, dto, locale, requester), nil

	case core.DtoTypeDraw:
		dto, ok := item.(*core.DrawDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		return c.addItem(id, dto, locale, requester), nil

	case core.DtoTypeLottery:
		dto, ok := item.(*core.LotteryDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		return c.addItem(id, dto, locale, requester), nil

	case core.DtoTypeBookingStatus:
		dto, ok := item.(*core.BookingStatusDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		return c.addItem(id, dto, locale, requester), nil

	default:
		// Undeclared tags never reach us through the manager; a direct
		// call with one is a conflict, not an error.
		return c.tagMismatch(id, item, dtoType)
	}
}

func (c *Cache) tagMismatch(id core.URN, item any, dtoType core.DtoType) (bool, error) {
	slog.Warn("dto payload does not match its tag",
		"cache", CacheName, "id", id, "dto_type", dtoType, "payload", fmt.Sprintf("%T", item))
	return false, nil
}

// addItem merges one DTO into the item for id, creating the item when
// absent. When the call originated from an item's own fetch, that
// requester instance is merged first so it observes its update
// immediately, even before the generic cache entry does.
func (c *Cache) addItem(id core.URN, dto any, locale string, requester core.Requester) bool {
	saved := false

	if req, ok := requester.(Item); ok && req.RequesterID() == id {
		if cached := c.peek(id); cached == nil || cached != req {
			if ok, err := req.mergeDTO(dto, locale); err != nil {
				slog.Error("requester merge failed", "id", id, "error", err)
			} else if ok {
				saved = true
			}
		}
	}

	key := id.String()
	c.locks.Wait(key)
	item := c.peek(id)
	if item == nil {
		built, err := c.factory.Build(id)
		if err != nil {
			c.locks.Release(key)
			slog.Error("failed to build event cache item", "id", id, "error", err)
			return saved
		}
		item = built
		c.store.Set(key, item)
	}
	ok, err := item.mergeDTO(dto, locale)
	c.locks.Release(key)

	if err != nil {
		slog.Error("merge failed", "id", id, "locale", locale, "error", err)
		return saved
	}
	return saved || ok
}

// addEmbeddedTournament inserts the tournament a summary carries under
// its own id. The primary id's lock is released before the secondary
// id's lock is taken: locks are never nested, which keeps the ordering
// deadlock-free at the cost of a narrow window where a concurrent
// reader of the secondary id can observe a partially populated entry.
func (c *Cache) addEmbeddedTournament(dto *core.SportEventSummaryDTO, primary core.URN, locale string) {
	if dto.Tournament == nil || dto.Tournament.ID == primary {
		return
	}
	tid := dto.Tournament.ID

	// Discovered only through event payload, not through the periodic
	// all-tournaments fetch: whole-cache scans must still include it.
	c.trackTournament(tid, false)

	c.addItem(tid, dto.Tournament, locale, nil)
}

// trackTournament records a tournament as confirmed by a payload.
// direct marks the all-tournaments fetch as the source; an embedded
// discovery never demotes a direct one.
func (c *Cache) trackTournament(id core.URN, direct bool) {
	key := id.String()
	c.tournamentsMu.Lock()
	defer c.tournamentsMu.Unlock()
	if direct {
		c.directTournaments[key] = struct{}{}
		delete(c.specialTournaments, key)
		return
	}
	if _, known := c.directTournaments[key]; !known {
		c.specialTournaments[key] = struct{}{}
	}
}

func (c *Cache) untrackTournament(key string) {
	c.tournamentsMu.Lock()
	delete(c.directTournaments, key)
	delete(c.specialTournaments, key)
	c.tournamentsMu.Unlock()
}

// knownTournament reports whether any payload has confirmed the id as
// a tournament; bare shells built on request do not count.
func (c *Cache) knownTournament(key string) bool {
	c.tournamentsMu.Lock()
	defer c.tournamentsMu.Unlock()
	if _, ok := c.directTournaments[key]; ok {
		return true
	}
	_, ok := c.specialTournaments[key]
	return ok
}

// CacheDeleteItem implements core.RegisteredCache.
func (c *Cache) CacheDeleteItem(id core.URN) {
	key := id.String()
	c.locks.Wait(key)
	c.store.Remove(key)
	c.locks.Release(key)
	c.untrackTournament(key)
}

// CacheHasItem implements core.RegisteredCache.
func (c *Cache) CacheHasItem(id core.URN) bool {
	return c.peek(id) != nil
}

// DeleteSportEventsFromCache removes every item whose scheduled start
// or scheduled end is strictly before the given timestamp, under the
// global lock, and fans the deletes out to the other caches. Returns
// the number of items removed. This is the growth bound of a cache
// that has no TTL.
func (c *Cache) DeleteSportEventsFromCache(before time.Time) int {
	c.locks.WaitAll()

	var removed []Item
	for _, key := range c.store.Keys() {
		v, ok := c.store.Get(key)
		if !ok {
			continue
		}
		item := v.(Item)
		start, end := scheduledOf(item)
		if (start != nil && start.Before(before)) || (end != nil && end.Before(before)) {
			c.store.Remove(key)
			removed = append(removed, item)
		}
	}
	c.locks.ReleaseAll()

	for _, item := range removed {
		c.untrackTournament(item.ID().String())
		c.remover.RemoveCacheItem(item.ID(), item.TypeGroup(), CacheName)
	}
	if len(removed) > 0 {
		slog.Info("swept sport events from cache", "before", before, "removed", len(removed))
	}
	return len(removed)
}

func scheduledOf(item Item) (start, end *time.Time) {
	type scheduler interface {
		scheduledNow() (*time.Time, *time.Time)
	}
	if s, ok := item.(scheduler); ok {
		return s.scheduledNow()
	}
	return nil, nil
}

// AddFixtureTimestamp marks the id so its next fixture fetch bypasses
// the response-cached fixture endpoint. The hint expires on its own.
func (c *Cache) AddFixtureTimestamp(id core.URN) {
	c.fixtureForce.SetWithTTL(id.String(), struct{}{}, c.cfg.FixtureForceWindow, false)
}

// FetchFixture loads the fixture of one event, honoring a pending
// fixture-timestamp hint.
func (c *Cache) FetchFixture(ctx context.Context, id core.URN, locale string, requester core.Requester) error {
	_, force := c.fixtureForce.Get(id.String())
	return c.dataRouter.GetSportEventFixture(ctx, id, locale, !force, requester)
}

// GetEventIDsForDate returns the event ids scheduled on the given day,
// fetching the day's schedule first.
func (c *Cache) GetEventIDsForDate(ctx context.Context, date time.Time, locale string) ([]core.URN, error) {
	ids, err := c.dataRouter.GetSportEventsForDate(ctx, date, locale)
	if err != nil {
		return nil, fmt.Errorf("fetching schedule for %s: %w", date.Format("2006-01-02"), err)
	}
	return ids, nil
}

// GetEventIDsForTournament returns the event ids of one tournament,
// fetching its schedule first.
func (c *Cache) GetEventIDsForTournament(ctx context.Context, tournamentID core.URN, locale string) ([]core.URN, error) {
	ids, err := c.dataRouter.GetSportEventsForTournament(ctx, tournamentID, locale, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching schedule for %s: %w", tournamentID, err)
	}
	return ids, nil
}

// GetActiveTournaments returns every payload-confirmed tournament item
// translated for the locale: the ones from the all-tournaments fetch
// and the ones discovered only through event payloads. Bare shells
// built on request are not active.
func (c *Cache) GetActiveTournaments(ctx context.Context, locale string) ([]*TournamentItem, error) {
	var out []*TournamentItem
	for _, key := range c.store.Keys() {
		if !c.knownTournament(key) {
			continue
		}
		v, ok := c.store.Get(key)
		if !ok {
			continue
		}
		t, ok := v.(*TournamentItem)
		if !ok {
			continue
		}
		if !t.HasTranslationsFor([]string{locale}) {
			if err := t.FetchSummary(ctx, []string{locale}); err != nil {
				slog.Warn("failed to translate tournament", "id", t.ID(), "locale", locale, "error", err)
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// GetEventSportID returns the sport an event belongs to.
func (c *Cache) GetEventSportID(ctx context.Context, id core.URN) (*core.URN, error) {
	item := c.GetEventCacheItem(id)
	if item == nil {
		return nil, core.NewNotFoundError(fmt.Sprintf("no cache item for %s", id))
	}
	return item.SportID(ctx)
}

// startScheduleRefresh starts the daily-schedule prefetch loop.
// Returns a cancel function to stop it.
func (c *Cache) startScheduleRefresh() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.cfg.ScheduleRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.refreshSchedules(context.Background())
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// refreshSchedules prefetches the event schedule for today and the
// next days for every configured locale, skipping pairs fetched within
// the throttle window. The throttle is an optimization, not a
// correctness requirement: individual lookups still fall back to
// on-demand fetch. Every error is caught and logged; the loop is
// rearmed regardless.
func (c *Cache) refreshSchedules(ctx context.Context) {
	select {
	case c.refreshing <- struct{}{}:
	default:
		// The previous run is still going; timer callbacks must not
		// overlap themselves.
		return
	}
	defer func() { <-c.refreshing }()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("schedule refresh panicked", "panic", r)
		}
	}()

	now := time.Now()
	for day := 0; day < c.cfg.SchedulePrefetchDays; day++ {
		date := now.AddDate(0, 0, day)
		for _, locale := range c.cfg.Locales {
			key := date.Format("2006-01-02") + "|" + locale

			c.watermarkMu.Lock()
			last, ok := c.scheduleFetched[key]
			c.watermarkMu.Unlock()
			if ok && now.Sub(last) < c.cfg.ScheduleFetchThrottle {
				continue
			}

			if _, err := c.dataRouter.GetSportEventsForDate(ctx, date, locale); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				slog.Warn("schedule prefetch failed",
					"date", date.Format("2006-01-02"), "locale", locale, "error", err)
				continue
			}

			c.watermarkMu.Lock()
			c.scheduleFetched[key] = now
			c.watermarkMu.Unlock()
		}
	}
}

// CacheStatus implements core.RegisteredCache: item counts by kind.
func (c *Cache) CacheStatus() map[string]int {
	counts := make(map[string]int)
	for _, key := range c.store.Keys() {
		if v, ok := c.store.Get(key); ok {
			counts[v.(Item).TypeGroup().String()]++
		}
	}
	return counts
}

// Export implements core.Exporter: one record per cached item, taken
// under the global lock so no merge is in flight.
func (c *Cache) Export(ctx context.Context) ([]core.ExportEntry, error) {
	c.locks.WaitAll()
	defer c.locks.ReleaseAll()

	var entries []core.ExportEntry
	for _, key := range c.store.Keys() {
		v, ok := c.store.Get(key)
		if !ok {
			continue
		}
		exp := v.(Item).export()
		payload, err := marshalExport(exp)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", key, err)
		}
		entries = append(entries, core.ExportEntry{
			Kind:    exp.Kind,
			Key:     exp.ID,
			Version: exportVersion,
			Payload: payload,
		})
	}
	return entries, nil
}

// Import implements core.Exporter: items are rebuilt from snapshot
// records without going through the DTO merge path.
func (c *Cache) Import(ctx context.Context, entries []core.ExportEntry) (int, error) {
	imported := 0
	for _, entry := range entries {
		exp, err := unmarshalExport(entry.Payload)
		if err != nil {
			slog.Warn("skipping unreadable snapshot record", "key", entry.Key, "error", err)
			continue
		}
		item, err := c.factory.BuildFromSnapshot(exp)
		if err != nil {
			slog.Warn("skipping snapshot record", "key", entry.Key, "error", err)
			continue
		}
		key := item.ID().String()
		c.locks.Wait(key)
		c.store.Set(key, item)
		c.locks.Release(key)
		if item.TypeGroup() == core.TypeGroupTournament {
			c.trackTournament(item.ID(), true)
		}
		imported++
	}
	return imported, nil
}
