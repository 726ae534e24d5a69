package sportdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"oddsfeed/internal/core"
)

// stubRouter records sport-data fetches and feeds canned DTOs back
// into the cache, standing in for the manager fan-out.
type stubRouter struct {
	cache *Cache

	mu            sync.Mutex
	sportFetches  []string // locales
	sports        map[string][]core.SportDTO
	failAllSports error
}

func (s *stubRouter) GetAllSports(ctx context.Context, locale string) error {
	s.mu.Lock()
	s.sportFetches = append(s.sportFetches, locale)
	err := s.failAllSports
	dtos := s.sports[locale]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.cache != nil && len(dtos) > 0 {
		if _, err := s.cache.CacheAddDTO(ctx, core.URN{}, dtos, locale, core.DtoTypeSportList, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubRouter) GetAllTournamentsForAllSports(context.Context, string) error { return nil }
func (s *stubRouter) GetAllLotteries(context.Context, string) error               { return nil }

func (s *stubRouter) GetSportEventSummary(context.Context, core.URN, string, core.Requester) error {
	return nil
}
func (s *stubRouter) GetSportEventFixture(context.Context, core.URN, string, bool, core.Requester) error {
	return nil
}
func (s *stubRouter) GetSportEventsForDate(context.Context, time.Time, string) ([]core.URN, error) {
	return nil, nil
}
func (s *stubRouter) GetSportEventsForTournament(context.Context, core.URN, string, core.Requester) ([]core.URN, error) {
	return nil, nil
}
func (s *stubRouter) GetLotterySchedule(context.Context, core.URN, string, core.Requester) error {
	return nil
}
func (s *stubRouter) GetDrawSummary(context.Context, core.URN, string, core.Requester) error {
	return nil
}
func (s *stubRouter) GetSportEventStatus(context.Context, core.URN, string) error { return nil }
func (s *stubRouter) GetMatchTimeline(context.Context, core.URN, string, core.Requester) error {
	return nil
}
func (s *stubRouter) GetNamedValues(context.Context, string, string) ([]core.NamedValueDTO, error) {
	return nil, nil
}

type stubRegistry struct{}

func (stubRegistry) RegisterCache(string, core.RegisteredCache) error { return nil }

type stubSweeper struct {
	mu      sync.Mutex
	befores []time.Time
}

func (s *stubSweeper) DeleteSportEventsFromCache(before time.Time) int {
	s.mu.Lock()
	s.befores = append(s.befores, before)
	s.mu.Unlock()
	return 0
}

func soccer(name string) core.SportDTO {
	return core.SportDTO{
		ID:   core.MustParseURN("sr:sport:1"),
		Name: name,
		Categories: []core.CategoryDTO{{
			ID:            core.MustParseURN("sr:category:1"),
			Name:          "England",
			SportID:       core.MustParseURN("sr:sport:1"),
			CountryCode:   "ENG",
			TournamentIDs: []core.URN{core.MustParseURN("sr:tournament:17")},
		}},
	}
}

func newTestCache(t *testing.T, router *stubRouter, sweeper EventSweeper) *Cache {
	t.Helper()
	c, err := New(stubRegistry{}, sweeper, router, Config{Locales: []string{"en", "de"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	router.cache = c
	t.Cleanup(c.Close)
	return c
}

func TestCacheAddDTO_BuildsHierarchy(t *testing.T) {
	c := newTestCache(t, &stubRouter{}, nil)
	ctx := context.Background()

	dto := soccer("Soccer")
	if _, err := c.CacheAddDTO(ctx, dto.ID, &dto, "en", core.DtoTypeSport, nil); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	c.loadedLocales["en"] = struct{}{}
	c.mu.Unlock()

	sport, err := c.GetSport(ctx, dto.ID, "en")
	if err != nil {
		t.Fatalf("GetSport: %v", err)
	}
	if sport.Name("en") != "Soccer" {
		t.Errorf("sport name = %q", sport.Name("en"))
	}
	if len(sport.Categories()) != 1 {
		t.Fatalf("categories = %v", sport.Categories())
	}

	cat, err := c.GetCategory(ctx, core.MustParseURN("sr:category:1"), "en")
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if cat.CountryCode() != "ENG" || cat.SportID() != dto.ID {
		t.Errorf("category = %+v", cat)
	}
	if status := c.CacheStatus(); status["sport"] != 1 || status["category"] != 1 {
		t.Errorf("status = %v", status)
	}
}

func TestGetSport_FetchesMissingLocale(t *testing.T) {
	router := &stubRouter{sports: map[string][]core.SportDTO{
		"en": {soccer("Soccer")},
		"de": {soccer("Fussball")},
	}}
	c := newTestCache(t, router, nil)
	ctx := context.Background()
	id := core.MustParseURN("sr:sport:1")

	sport, err := c.GetSport(ctx, id, "en")
	if err != nil {
		t.Fatalf("GetSport en: %v", err)
	}
	if sport.Name("en") != "Soccer" {
		t.Errorf("en name = %q", sport.Name("en"))
	}

	// Second locale triggers exactly one more fetch; translations only
	// grow.
	if _, err := c.GetSport(ctx, id, "de"); err != nil {
		t.Fatalf("GetSport de: %v", err)
	}
	if !sport.HasTranslationsFor([]string{"en", "de"}) {
		t.Error("locale set did not grow")
	}

	router.mu.Lock()
	fetches := len(router.sportFetches)
	router.mu.Unlock()
	if fetches != 2 {
		t.Errorf("sport fetches = %d, want 2", fetches)
	}

	// Already translated: answered from cache, no further fetch.
	if _, err := c.GetSport(ctx, id, "en"); err != nil {
		t.Fatal(err)
	}
	router.mu.Lock()
	fetches = len(router.sportFetches)
	router.mu.Unlock()
	if fetches != 2 {
		t.Errorf("sport fetches after cached lookup = %d, want 2", fetches)
	}
}

func TestGetSport_FetchErrorPropagates(t *testing.T) {
	router := &stubRouter{failAllSports: core.NewCommunicationError("api down", nil)}
	c := newTestCache(t, router, nil)

	if _, err := c.GetSport(context.Background(), core.MustParseURN("sr:sport:1"), "en"); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestGetSportForTournament(t *testing.T) {
	router := &stubRouter{sports: map[string][]core.SportDTO{"en": {soccer("Soccer")}}}
	c := newTestCache(t, router, nil)

	sport, err := c.GetSportForTournament(context.Background(), core.MustParseURN("sr:tournament:17"), "en")
	if err != nil {
		t.Fatalf("GetSportForTournament: %v", err)
	}
	if sport.ID() != core.MustParseURN("sr:sport:1") {
		t.Errorf("sport = %s", sport.ID())
	}

	if _, err := c.GetSportForTournament(context.Background(), core.MustParseURN("sr:tournament:9999"), "en"); err == nil {
		t.Fatal("expected not-found for unknown tournament")
	}
}

func TestRefresh_FirstActivationThenFullRefetch(t *testing.T) {
	router := &stubRouter{sports: map[string][]core.SportDTO{"en": {soccer("Soccer")}}}
	sweeper := &stubSweeper{}
	c := newTestCache(t, router, sweeper)
	ctx := context.Background()

	// en already loaded lazily; first activation fetches only the
	// missing de.
	if _, err := c.GetSports(ctx, "en"); err != nil {
		t.Fatal(err)
	}
	c.refresh(ctx)

	router.mu.Lock()
	first := append([]string(nil), router.sportFetches...)
	router.mu.Unlock()
	if len(first) != 2 || first[0] != "en" || first[1] != "de" {
		t.Fatalf("fetches after first activation = %v, want [en de]", first)
	}

	// Every later tick re-fetches the full configured locale set.
	c.refresh(ctx)
	router.mu.Lock()
	total := len(router.sportFetches)
	router.mu.Unlock()
	if total != 4 {
		t.Errorf("fetches after second tick = %d, want 4", total)
	}

	sweeper.mu.Lock()
	sweeps := len(sweeper.befores)
	cutoff := sweeper.befores[0]
	sweeper.mu.Unlock()
	if sweeps != 2 {
		t.Fatalf("event sweeps = %d, want 2", sweeps)
	}
	if age := time.Since(cutoff); age < 11*time.Hour || age > 13*time.Hour {
		t.Errorf("sweep cutoff age = %v, want about 12h", age)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c := newTestCache(t, &stubRouter{}, nil)
	ctx := context.Background()

	dto := soccer("Soccer")
	if _, err := c.CacheAddDTO(ctx, dto.ID, &dto, "en", core.DtoTypeSport, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := c.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("exported %d entries, want sport + category", len(entries))
	}

	restored := newTestCache(t, &stubRouter{}, nil)
	n, err := restored.Import(ctx, entries)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}

	restored.mu.Lock()
	restored.loadedLocales["en"] = struct{}{}
	restored.mu.Unlock()

	sport, err := restored.GetSport(ctx, dto.ID, "en")
	if err != nil {
		t.Fatalf("GetSport after import: %v", err)
	}
	if sport.Name("en") != "Soccer" || len(sport.Categories()) != 1 {
		t.Errorf("restored sport = %+v", sport)
	}
	cat, err := restored.GetCategory(ctx, core.MustParseURN("sr:category:1"), "en")
	if err != nil {
		t.Fatalf("GetCategory after import: %v", err)
	}
	if len(cat.Tournaments()) != 1 {
		t.Errorf("restored category tournaments = %v", cat.Tournaments())
	}
}

func TestGetSport_LiveItemSafeUnderConcurrentMerge(t *testing.T) {
	c := newTestCache(t, &stubRouter{}, nil)
	ctx := context.Background()

	dto := soccer("Soccer")
	if _, err := c.CacheAddDTO(ctx, dto.ID, &dto, "en", core.DtoTypeSport, nil); err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	c.loadedLocales["en"] = struct{}{}
	c.loadedLocales["de"] = struct{}{}
	c.mu.Unlock()

	sport, err := c.GetSport(ctx, dto.ID, "en")
	if err != nil {
		t.Fatalf("GetSport: %v", err)
	}

	// Readers hold the live item while fan-out merges keep mutating
	// it. Name lookups and merges must not interleave on the raw maps.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		german := soccer("Fussball")
		for {
			select {
			case <-stop:
				return
			default:
				if _, err := c.CacheAddDTO(ctx, german.ID, &german, "de", core.DtoTypeSport, nil); err != nil {
					t.Error(err)
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sport.HasTranslationsFor([]string{"de"})
				sport.Name("de")
			}
		}
	}()
	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	if !sport.HasTranslationsFor([]string{"en", "de"}) {
		t.Error("translations missing after concurrent merges")
	}
}
