package sportdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"oddsfeed/internal/core"
)

// CacheName identifies this cache in the manager's registry.
const CacheName = "SportDataCache"

// Registry is the part of the cache manager caches register with.
type Registry interface {
	RegisterCache(name string, c core.RegisteredCache) error
}

// EventSweeper removes stale items from the sport event cache; the
// periodic refresh here drives it so the two caches' growth stays
// bounded together.
type EventSweeper interface {
	DeleteSportEventsFromCache(before time.Time) int
}

// Config carries the tunables of the sport data cache.
type Config struct {
	// Locales are the configured feed locales.
	Locales []string

	// RefreshInterval drives the periodic full re-fetch. Default: 24
	// hours.
	RefreshInterval time.Duration

	// EventSweepAge is how far back the refresh-driven event sweep
	// reaches. Default: 12 hours.
	EventSweepAge time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.Locales) == 0 {
		c.Locales = []string{"en"}
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 24 * time.Hour
	}
	if c.EventSweepAge <= 0 {
		c.EventSweepAge = 12 * time.Hour
	}
}

// Cache holds the sport and category hierarchy. One mutex guards both
// dictionaries: per-key locking buys nothing at these volumes.
type Cache struct {
	cfg        Config
	dataRouter core.DataRouter
	sweeper    EventSweeper

	mu            sync.Mutex
	sports        map[string]*SportCI
	categories    map[string]*CategoryCI
	loadedLocales map[string]struct{}
	activated     bool

	refreshing chan struct{}

	closeOnce   sync.Once
	stopRefresh func()
}

// New creates the sport data cache and registers it with the cache
// manager; a registration failure is fatal.
func New(registry Registry, sweeper EventSweeper, dataRouter core.DataRouter, cfg Config) (*Cache, error) {
	cfg.applyDefaults()
	c := &Cache{
		cfg:           cfg,
		dataRouter:    dataRouter,
		sweeper:       sweeper,
		sports:        make(map[string]*SportCI),
		categories:    make(map[string]*CategoryCI),
		loadedLocales: make(map[string]struct{}),
		refreshing:    make(chan struct{}, 1),
	}
	if err := registry.RegisterCache(CacheName, c); err != nil {
		return nil, err
	}
	c.stopRefresh = c.startRefresh()
	return c, nil
}

// Close stops the background refresh loop.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.stopRefresh != nil {
			c.stopRefresh()
		}
	})
}

// CacheName implements core.RegisteredCache.
func (c *Cache) CacheName() string { return CacheName }

// RegisteredDtoTypes implements core.RegisteredCache.
func (c *Cache) RegisteredDtoTypes() core.DtoTypeSet {
	return core.NewDtoTypeSet(
		core.DtoTypeSport,
		core.DtoTypeSportList,
		core.DtoTypeCategory,
		core.DtoTypeTournamentInfo,
		core.DtoTypeFixture,
	)
}

// CacheAddDTO implements core.RegisteredCache. All mutation happens
// under the single merge lock.
func (c *Cache) CacheAddDTO(_ context.Context, id core.URN, item any, locale string, dtoType core.DtoType, _ core.Requester) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch dtoType {
	case core.DtoTypeSport:
		dto, ok := item.(*core.SportDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		c.mergeSportLocked(dto, locale)
		return true, nil

	case core.DtoTypeSportList:
		dtos, ok := item.([]core.SportDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		for i := range dtos {
			c.mergeSportLocked(&dtos[i], locale)
		}
		return true, nil

	case core.DtoTypeCategory:
		dto, ok := item.(*core.CategoryDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		c.mergeCategoryLocked(dto, locale)
		return true, nil

	case core.DtoTypeTournamentInfo:
		dto, ok := item.(*core.TournamentInfoDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		c.mergeTournamentLocked(dto, locale)
		return true, nil

	case core.DtoTypeFixture:
		dto, ok := item.(*core.FixtureDTO)
		if !ok {
			return c.tagMismatch(id, item, dtoType)
		}
		if dto.Tournament != nil {
			c.mergeTournamentLocked(dto.Tournament, locale)
		}
		return true, nil

	default:
		return c.tagMismatch(id, item, dtoType)
	}
}

func (c *Cache) tagMismatch(id core.URN, item any, dtoType core.DtoType) (bool, error) {
	slog.Warn("dto payload does not match its tag",
		"cache", CacheName, "id", id, "dto_type", dtoType, "payload", fmt.Sprintf("%T", item))
	return false, nil
}

func (c *Cache) sportLocked(id core.URN) *SportCI {
	s, ok := c.sports[id.String()]
	if !ok {
		s = newSportCI(id)
		c.sports[id.String()] = s
	}
	return s
}

func (c *Cache) categoryLocked(id core.URN) *CategoryCI {
	cat, ok := c.categories[id.String()]
	if !ok {
		cat = newCategoryCI(id)
		c.categories[id.String()] = cat
	}
	return cat
}

func (c *Cache) mergeSportLocked(dto *core.SportDTO, locale string) {
	s := c.sportLocked(dto.ID)
	s.merge(dto, locale)
	for i := range dto.Categories {
		cat := &dto.Categories[i]
		s.addCategory(cat.ID)
		c.mergeCategoryLocked(cat, locale)
	}
}

func (c *Cache) mergeCategoryLocked(dto *core.CategoryDTO, locale string) {
	cat := c.categoryLocked(dto.ID)
	cat.merge(dto, locale)
	if !dto.SportID.IsZero() {
		c.sportLocked(dto.SportID).addCategory(dto.ID)
	}
}

// mergeTournamentLocked folds the sport/category detail a tournament
// payload carries into the hierarchy and links the tournament to its
// category.
func (c *Cache) mergeTournamentLocked(dto *core.TournamentInfoDTO, locale string) {
	if dto.Sport != nil {
		c.mergeSportLocked(dto.Sport, locale)
	}
	if dto.Category != nil {
		c.mergeCategoryLocked(dto.Category, locale)
	}

	categoryID := dto.CategoryID
	if categoryID == nil && dto.Category != nil {
		categoryID = &dto.Category.ID
	}
	if categoryID == nil {
		return
	}
	cat := c.categoryLocked(*categoryID)
	cat.addTournament(dto.ID)
	if dto.Sport != nil {
		cat.linkSport(dto.Sport.ID)
	}
}

// fetchLocales pulls the full sport data for the given locales. Fetched
// DTOs re-enter this cache through the manager fan-out before each
// router call returns.
func (c *Cache) fetchLocales(ctx context.Context, locales []string) error {
	for _, locale := range locales {
		if err := c.dataRouter.GetAllSports(ctx, locale); err != nil {
			return fmt.Errorf("fetching sports (%s): %w", locale, err)
		}
		if err := c.dataRouter.GetAllTournamentsForAllSports(ctx, locale); err != nil {
			return fmt.Errorf("fetching tournaments (%s): %w", locale, err)
		}
		if err := c.dataRouter.GetAllLotteries(ctx, locale); err != nil {
			return fmt.Errorf("fetching lotteries (%s): %w", locale, err)
		}
		c.mu.Lock()
		c.loadedLocales[locale] = struct{}{}
		c.mu.Unlock()
	}
	return nil
}

// ensureLocales fetches any configured locale not yet loaded. It is
// the lazy path behind every lookup.
func (c *Cache) ensureLocales(ctx context.Context, locales []string) error {
	var missing []string
	c.mu.Lock()
	for _, l := range locales {
		if _, ok := c.loadedLocales[l]; !ok {
			missing = append(missing, l)
		}
	}
	c.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}
	return c.fetchLocales(ctx, missing)
}

// GetSports returns every cached sport translated for the locale,
// fetching first when the locale has not been loaded.
func (c *Cache) GetSports(ctx context.Context, locale string) ([]*SportCI, error) {
	if err := c.ensureLocales(ctx, []string{locale}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*SportCI, 0, len(c.sports))
	for _, s := range c.sports {
		out = append(out, s)
	}
	return out, nil
}

// GetSport returns one sport, fetching the locale when its name is not
// yet translated.
func (c *Cache) GetSport(ctx context.Context, id core.URN, locale string) (*SportCI, error) {
	c.mu.Lock()
	s, ok := c.sports[id.String()]
	translated := ok && s.HasTranslationsFor([]string{locale})
	c.mu.Unlock()

	if !translated {
		if err := c.ensureLocales(ctx, []string{locale}); err != nil {
			return nil, err
		}
		c.mu.Lock()
		s, ok = c.sports[id.String()]
		c.mu.Unlock()
	}
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("sport %s not found", id))
	}
	return s, nil
}

// GetCategory returns one category, fetching the locale when its name
// is not yet translated.
func (c *Cache) GetCategory(ctx context.Context, id core.URN, locale string) (*CategoryCI, error) {
	c.mu.Lock()
	cat, ok := c.categories[id.String()]
	translated := ok && cat.HasTranslationsFor([]string{locale})
	c.mu.Unlock()

	if !translated {
		if err := c.ensureLocales(ctx, []string{locale}); err != nil {
			return nil, err
		}
		c.mu.Lock()
		cat, ok = c.categories[id.String()]
		c.mu.Unlock()
	}
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("category %s not found", id))
	}
	return cat, nil
}

// GetSportForTournament resolves the sport a tournament belongs to by
// walking the category dictionary.
func (c *Cache) GetSportForTournament(ctx context.Context, tournamentID core.URN, locale string) (*SportCI, error) {
	find := func() *CategoryCI {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, cat := range c.categories {
			if cat.HasTournament(tournamentID) {
				return cat
			}
		}
		return nil
	}

	cat := find()
	if cat == nil {
		if err := c.ensureLocales(ctx, []string{locale}); err != nil {
			return nil, err
		}
		if cat = find(); cat == nil {
			return nil, core.NewNotFoundError(fmt.Sprintf("no sport known for tournament %s", tournamentID))
		}
	}
	return c.GetSport(ctx, cat.SportID(), locale)
}

// CacheDeleteItem implements core.RegisteredCache.
func (c *Cache) CacheDeleteItem(id core.URN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sports, id.String())
	delete(c.categories, id.String())
}

// CacheHasItem implements core.RegisteredCache.
func (c *Cache) CacheHasItem(id core.URN) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sports[id.String()]; ok {
		return true
	}
	_, ok := c.categories[id.String()]
	return ok
}

// CacheStatus implements core.RegisteredCache.
func (c *Cache) CacheStatus() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{
		"sport":    len(c.sports),
		"category": len(c.categories),
	}
}

// startRefresh starts the periodic refresh loop. Returns a cancel
// function to stop it.
func (c *Cache) startRefresh() func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.refresh(context.Background())
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// refresh is the timer callback. The first activation fetches only the
// locales nothing has loaded yet; every later tick re-fetches the full
// configured locale set and sweeps aged events out of the event cache
// as a side effect. Errors are caught and logged; the timer is rearmed
// regardless.
func (c *Cache) refresh(ctx context.Context) {
	select {
	case c.refreshing <- struct{}{}:
	default:
		return
	}
	defer func() { <-c.refreshing }()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sport data refresh panicked", "panic", r)
		}
	}()

	c.mu.Lock()
	first := !c.activated
	c.activated = true
	if !first {
		// Full re-fetch: forget the watermarks so every locale is
		// pulled again.
		c.loadedLocales = make(map[string]struct{})
	}
	c.mu.Unlock()

	var err error
	if first {
		err = c.ensureLocales(ctx, c.cfg.Locales)
	} else {
		err = c.fetchLocales(ctx, c.cfg.Locales)
	}
	if err != nil {
		slog.Warn("sport data refresh failed", "error", err)
	}

	if c.sweeper != nil {
		removed := c.sweeper.DeleteSportEventsFromCache(time.Now().Add(-c.cfg.EventSweepAge))
		if removed > 0 {
			slog.Info("sport data refresh swept aged events", "removed", removed)
		}
	}
}

// exportedSport and exportedCategory are the snapshot records.
type exportedSport struct {
	ID          string            `json:"id"`
	Names       map[string]string `json:"names,omitempty"`
	CategoryIDs []string          `json:"category_ids,omitempty"`
}

type exportedCategory struct {
	ID            string            `json:"id"`
	SportID       string            `json:"sport_id,omitempty"`
	CountryCode   string            `json:"country_code,omitempty"`
	Names         map[string]string `json:"names,omitempty"`
	TournamentIDs []string          `json:"tournament_ids,omitempty"`
}

const exportVersion = 1

// Export implements core.Exporter.
func (c *Cache) Export(_ context.Context) ([]core.ExportEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []core.ExportEntry
	for key, s := range c.sports {
		cats := s.Categories()
		ids := make([]string, 0, len(cats))
		for _, cid := range cats {
			ids = append(ids, cid.String())
		}
		payload, err := json.Marshal(exportedSport{ID: key, Names: s.Names(), CategoryIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("exporting sport %s: %w", key, err)
		}
		entries = append(entries, core.ExportEntry{Kind: "sport", Key: key, Version: exportVersion, Payload: payload})
	}
	for key, cat := range c.categories {
		tours := cat.Tournaments()
		ids := make([]string, 0, len(tours))
		for _, tid := range tours {
			ids = append(ids, tid.String())
		}
		payload, err := json.Marshal(exportedCategory{
			ID:            key,
			SportID:       cat.SportID().String(),
			CountryCode:   cat.CountryCode(),
			Names:         cat.Names(),
			TournamentIDs: ids,
		})
		if err != nil {
			return nil, fmt.Errorf("exporting category %s: %w", key, err)
		}
		entries = append(entries, core.ExportEntry{Kind: "category", Key: key, Version: exportVersion, Payload: payload})
	}
	return entries, nil
}

// Import implements core.Exporter.
func (c *Cache) Import(_ context.Context, entries []core.ExportEntry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	imported := 0
	for _, entry := range entries {
		switch entry.Kind {
		case "sport":
			var exp exportedSport
			if err := json.Unmarshal(entry.Payload, &exp); err != nil {
				slog.Warn("skipping unreadable sport snapshot record", "key", entry.Key, "error", err)
				continue
			}
			id, err := core.ParseURN(exp.ID)
			if err != nil {
				slog.Warn("skipping sport snapshot record", "key", entry.Key, "error", err)
				continue
			}
			s := c.sportLocked(id)
			for l, n := range exp.Names {
				s.setName(l, n)
			}
			for _, raw := range exp.CategoryIDs {
				if cid, err := core.ParseURN(raw); err == nil {
					s.addCategory(cid)
				}
			}
			imported++

		case "category":
			var exp exportedCategory
			if err := json.Unmarshal(entry.Payload, &exp); err != nil {
				slog.Warn("skipping unreadable category snapshot record", "key", entry.Key, "error", err)
				continue
			}
			id, err := core.ParseURN(exp.ID)
			if err != nil {
				slog.Warn("skipping category snapshot record", "key", entry.Key, "error", err)
				continue
			}
			cat := c.categoryLocked(id)
			if sid, err := core.ParseURN(exp.SportID); err == nil {
				cat.setSportID(sid)
			}
			if exp.CountryCode != "" {
				cat.setCountryCode(exp.CountryCode)
			}
			for l, n := range exp.Names {
				cat.setName(l, n)
			}
			for _, raw := range exp.TournamentIDs {
				if tid, err := core.ParseURN(raw); err == nil {
					cat.addTournament(tid)
				}
			}
			imported++

		default:
			slog.Warn("skipping snapshot record of unknown kind", "kind", entry.Kind, "key", entry.Key)
		}
	}
	return imported, nil
}
