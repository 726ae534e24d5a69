package sportevent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"oddsfeed/internal/core"
)

// stubRouter is a DataRouter with overridable hooks; unset hooks are
// no-ops.
type stubRouter struct {
	mu       sync.Mutex
	fixtures []bool // useCachedProvider values seen

	summary func(ctx context.Context, id core.URN, locale string, requester core.Requester) error
	forDate func(ctx context.Context, date time.Time, locale string) ([]core.URN, error)
}

func (s *stubRouter) GetSportEventSummary(ctx context.Context, id core.URN, locale string, requester core.Requester) error {
	if s.summary != nil {
		return s.summary(ctx, id, locale, requester)
	}
	return nil
}

func (s *stubRouter) GetSportEventFixture(_ context.Context, _ core.URN, _ string, useCachedProvider bool, _ core.Requester) error {
	s.mu.Lock()
	s.fixtures = append(s.fixtures, useCachedProvider)
	s.mu.Unlock()
	return nil
}

func (s *stubRouter) GetSportEventsForDate(ctx context.Context, date time.Time, locale string) ([]core.URN, error) {
	if s.forDate != nil {
		return s.forDate(ctx, date, locale)
	}
	return nil, nil
}

func (s *stubRouter) GetSportEventsForTournament(context.Context, core.URN, string, core.Requester) ([]core.URN, error) {
	return nil, nil
}
func (s *stubRouter) GetAllSports(context.Context, string) error                  { return nil }
func (s *stubRouter) GetAllTournamentsForAllSports(context.Context, string) error { return nil }
func (s *stubRouter) GetAllLotteries(context.Context, string) error               { return nil }
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

type stubRegistry struct {
	registered map[string]core.RegisteredCache
	err        error
}

func (r *stubRegistry) RegisterCache(name string, c core.RegisteredCache) error {
	if r.err != nil {
		return r.err
	}
	if r.registered == nil {
		r.registered = make(map[string]core.RegisteredCache)
	}
	r.registered[name] = c
	return nil
}

type stubRemover struct {
	mu      sync.Mutex
	removed []core.URN
}

func (r *stubRemover) RemoveCacheItem(id core.URN, _ core.TypeGroup, _ string) {
	r.mu.Lock()
	r.removed = append(r.removed, id)
	r.mu.Unlock()
}

func newTestCache(t *testing.T, router core.DataRouter) (*Cache, *stubRemover) {
	t.Helper()
	remover := &stubRemover{}
	c, err := New(&stubRegistry{}, remover, router, NewFactory(router), Config{
		Locales:                 []string{"en", "de"},
		ScheduleRefreshInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, remover
}

func summaryDTO(name string, scheduled time.Time) *core.SportEventSummaryDTO {
	return &core.SportEventSummaryDTO{Name: name, Scheduled: &scheduled}
}

func TestCacheAddDTO_MergeIsIdempotent(t *testing.T) {
	c, _ := newTestCache(t, &stubRouter{})
	ctx := context.Background()
	id := core.MustParseURN("sr:match:100")
	scheduled := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		saved, err := c.CacheAddDTO(ctx, id, summaryDTO("Home vs Away", scheduled), "en", core.DtoTypeMatchSummary, nil)
		if err != nil {
			t.Fatalf("CacheAddDTO: %v", err)
		}
		if !saved {
			t.Fatalf("CacheAddDTO round %d: not saved", i)
		}
	}

	item := c.GetEventCacheItem(id)
	name, err := item.Name(ctx, "en")
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if name != "Home vs Away" {
		t.Errorf("name = %q", name)
	}
	got, err := item.Scheduled(ctx)
	if err != nil || got == nil || !got.Equal(scheduled) {
		t.Errorf("scheduled = %v, %v", got, err)
	}
	if counts := c.CacheStatus(); counts["match"] != 1 {
		t.Errorf("status = %v, want one match", counts)
	}
}

func TestCacheAddDTO_LocalesOnlyGrow(t *testing.T) {
	c, _ := newTestCache(t, &stubRouter{})
	ctx := context.Background()
	id := core.MustParseURN("sr:match:101")
	scheduled := time.Now().UTC()

	if _, err := c.CacheAddDTO(ctx, id, summaryDTO("Home vs Away", scheduled), "en", core.DtoTypeMatchSummary, nil); err != nil {
		t.Fatal(err)
	}
	item := c.GetEventCacheItem(id)
	if !item.HasTranslationsFor([]string{"en"}) {
		t.Fatal("en missing after en merge")
	}
	if item.HasTranslationsFor([]string{"en", "de"}) {
		t.Fatal("de reported before any de merge")
	}

	if _, err := c.CacheAddDTO(ctx, id, summaryDTO("Heim gegen Gast", scheduled), "de", core.DtoTypeMatchSummary, nil); err != nil {
		t.Fatal(err)
	}
	if !item.HasTranslationsFor([]string{"en", "de"}) {
		t.Fatal("locale set shrank or de merge lost")
	}
	name, err := item.Name(ctx, "en")
	if err != nil || name != "Home vs Away" {
		t.Errorf("en name after de merge = %q, %v", name, err)
	}
}

func TestCacheAddDTO_ConcurrentMergesSameID(t *testing.T) {
	c, _ := newTestCache(t, &stubRouter{})
	ctx := context.Background()
	id := core.MustParseURN("sr:match:102")
	scheduled := time.Now().UTC()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locale := fmt.Sprintf("l%d", i)
			if _, err := c.CacheAddDTO(ctx, id, summaryDTO("name "+locale, scheduled), locale, core.DtoTypeMatchSummary, nil); err != nil {
				t.Errorf("CacheAddDTO %s: %v", locale, err)
			}
		}(i)
	}
	wg.Wait()

	item := c.GetEventCacheItem(id)
	for i := 0; i < n; i++ {
		locale := fmt.Sprintf("l%d", i)
		if !item.HasTranslationsFor([]string{locale}) {
			t.Errorf("locale %s lost in concurrent merge", locale)
		}
	}
	if counts := c.CacheStatus(); counts["match"] != 1 {
		t.Errorf("status = %v, want exactly one match", counts)
	}
}

func TestCacheAddDTO_RequesterSeesMergeFirst(t *testing.T) {
	router := &stubRouter{}
	c, _ := newTestCache(t, router)
	ctx := context.Background()
	id := core.MustParseURN("sr:match:103")

	// The requester asked for its own summary: the data layer hands
	// the fetched DTO back with the requester attached.
	requester := newMatchItem(id, router)
	saved, err := c.CacheAddDTO(ctx, id, summaryDTO("Home vs Away", time.Now()), "en", core.DtoTypeMatchSummary, requester)
	if err != nil || !saved {
		t.Fatalf("CacheAddDTO = %v, %v", saved, err)
	}
	if !requester.HasTranslationsFor([]string{"en"}) {
		t.Error("requester instance did not receive the merge")
	}
	if !c.CacheHasItem(id) {
		t.Error("cache entry not created alongside requester merge")
	}
}

func TestCacheAddDTO_TagPayloadMismatch(t *testing.T) {
	c, _ := newTestCache(t, &stubRouter{})
	id := core.MustParseURN("sr:match:104")

	saved, err := c.CacheAddDTO(context.Background(), id, &core.DrawDTO{}, "en", core.DtoTypeMatchSummary, nil)
	if err != nil {
		t.Fatalf("mismatch must not error: %v", err)
	}
	if saved {
		t.Error("mismatched payload reported as saved")
	}
}

func TestEmbeddedTournamentInsertedUnderOwnID(t *testing.T) {
	c, _ := newTestCache(t, &stubRouter{})
	ctx := context.Background()
	matchID := core.MustParseURN("sr:match:105")
	tournamentID := core.MustParseURN("sr:tournament:7")

	dto := summaryDTO("Home vs Away", time.Now())
	dto.Tournament = &core.TournamentInfoDTO{ID: tournamentID, Name: "Premier League"}
	if _, err := c.CacheAddDTO(ctx, matchID, dto, "en", core.DtoTypeMatchSummary, nil); err != nil {
		t.Fatal(err)
	}

	if !c.CacheHasItem(tournamentID) {
		t.Fatal("embedded tournament not inserted")
	}
	tournaments, err := c.GetActiveTournaments(ctx, "en")
	if err != nil {
		t.Fatalf("GetActiveTournaments: %v", err)
	}
	found := false
	for _, tr := range tournaments {
		if tr.ID() == tournamentID {
			found = true
			name, err := tr.Name(ctx, "en")
			if err != nil || name != "Premier League" {
				t.Errorf("tournament name = %q, %v", name, err)
			}
		}
	}
	if !found {
		t.Error("payload-discovered tournament missing from active set")
	}
}

func TestDeleteSportEventsFromCache(t *testing.T) {
	c, remover := newTestCache(t, &stubRouter{})
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := core.MustParseURN("sr:match:200")
	atCutoff := core.MustParseURN("sr:match:201")
	future := core.MustParseURN("sr:match:202")
	unscheduled := core.MustParseURN("sr:match:203")

	mustAdd := func(id core.URN, dto *core.SportEventSummaryDTO) {
		t.Helper()
		if _, err := c.CacheAddDTO(ctx, id, dto, "en", core.DtoTypeMatchSummary, nil); err != nil {
			t.Fatal(err)
		}
	}
	mustAdd(old, summaryDTO("old", cutoff.Add(-time.Hour)))
	mustAdd(atCutoff, summaryDTO("boundary", cutoff))
	mustAdd(future, summaryDTO("future", cutoff.Add(time.Hour)))
	mustAdd(unscheduled, &core.SportEventSummaryDTO{Name: "unscheduled"})

	removed := c.DeleteSportEventsFromCache(cutoff)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if c.CacheHasItem(old) {
		t.Error("event before cutoff survived the sweep")
	}
	for _, id := range []core.URN{atCutoff, future, unscheduled} {
		if !c.CacheHasItem(id) {
			t.Errorf("%s removed by sweep", id)
		}
	}
	remover.mu.Lock()
	defer remover.mu.Unlock()
	if len(remover.removed) != 1 || remover.removed[0] != old {
		t.Errorf("fan-out deletes = %v", remover.removed)
	}
}

func TestFetchFixture_ForceWindow(t *testing.T) {
	router := &stubRouter{}
	c, _ := newTestCache(t, router)
	ctx := context.Background()
	id := core.MustParseURN("sr:match:300")

	if err := c.FetchFixture(ctx, id, "en", nil); err != nil {
		t.Fatal(err)
	}
	c.AddFixtureTimestamp(id)
	if err := c.FetchFixture(ctx, id, "en", nil); err != nil {
		t.Fatal(err)
	}

	router.mu.Lock()
	defer router.mu.Unlock()
	if len(router.fixtures) != 2 || !router.fixtures[0] || router.fixtures[1] {
		t.Errorf("useCachedProvider sequence = %v, want [true false]", router.fixtures)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	router := &stubRouter{}
	c, _ := newTestCache(t, router)
	ctx := context.Background()
	scheduled := time.Date(2026, 4, 5, 12, 0, 0, 0, time.UTC)

	matchID := core.MustParseURN("sr:match:400")
	dto := summaryDTO("Home vs Away", scheduled)
	dto.Tournament = &core.TournamentInfoDTO{ID: core.MustParseURN("sr:tournament:9"), Name: "Cup"}
	if _, err := c.CacheAddDTO(ctx, matchID, dto, "en", core.DtoTypeMatchSummary, nil); err != nil {
		t.Fatal(err)
	}
	drawID := core.MustParseURN("sr:draw:12")
	if _, err := c.CacheAddDTO(ctx, drawID, &core.DrawDTO{Status: "not_started"}, "en", core.DtoTypeDraw, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := c.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("exported %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.Version != exportVersion {
			t.Errorf("entry %s version = %d", e.Key, e.Version)
		}
	}

	restored, _ := newTestCache(t, router)
	n, err := restored.Import(ctx, entries)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 3 {
		t.Fatalf("imported %d, want 3", n)
	}

	item := restored.GetEventCacheItem(matchID)
	if !item.HasTranslationsFor([]string{"en"}) {
		t.Error("imported item lost its loaded locales")
	}
	name, err := item.Name(ctx, "en")
	if err != nil || name != "Home vs Away" {
		t.Errorf("imported name = %q, %v", name, err)
	}
	got, err := item.Scheduled(ctx)
	if err != nil || got == nil || !got.Equal(scheduled) {
		t.Errorf("imported scheduled = %v, %v", got, err)
	}
}

func TestNew_RegistrationFailure(t *testing.T) {
	router := &stubRouter{}
	reg := &stubRegistry{err: core.NewInvalidOperationError("duplicate cache", nil)}
	if _, err := New(reg, &stubRemover{}, router, NewFactory(router), Config{}); err == nil {
		t.Fatal("expected registration error")
	}
}

func TestRefreshSchedules_ThrottlesPerDateLocale(t *testing.T) {
	var mu sync.Mutex
	calls := make(map[string]int)
	router := &stubRouter{
		forDate: func(_ context.Context, date time.Time, locale string) ([]core.URN, error) {
			mu.Lock()
			calls[date.Format("2006-01-02")+"|"+locale]++
			mu.Unlock()
			return nil, nil
		},
	}
	c, _ := newTestCache(t, router)

	c.refreshSchedules(context.Background())
	c.refreshSchedules(context.Background()) // inside the throttle window

	mu.Lock()
	defer mu.Unlock()
	// 3 days x 2 locales, each fetched once despite two passes.
	if len(calls) != 6 {
		t.Fatalf("distinct (date, locale) fetches = %d, want 6", len(calls))
	}
	for key, n := range calls {
		if n != 1 {
			t.Errorf("%s fetched %d times, want 1", key, n)
		}
	}
}

func TestActiveTournamentsExcludeBareShells(t *testing.T) {
	c, _ := newTestCache(t, &stubRouter{})
	ctx := context.Background()
	shellID := core.MustParseURN("sr:tournament:40")
	directID := core.MustParseURN("sr:tournament:41")

	// A shell built on request has no payload behind it yet.
	if item := c.GetEventCacheItem(shellID); item == nil {
		t.Fatal("shell not built")
	}
	if _, err := c.CacheAddDTO(ctx, directID, &core.TournamentInfoDTO{ID: directID, Name: "Serie A"}, "en", core.DtoTypeTournamentInfo, nil); err != nil {
		t.Fatal(err)
	}

	tournaments, err := c.GetActiveTournaments(ctx, "en")
	if err != nil {
		t.Fatalf("GetActiveTournaments: %v", err)
	}
	for _, tr := range tournaments {
		if tr.ID() == shellID {
			t.Error("bare shell listed as active")
		}
	}
	if len(tournaments) != 1 || tournaments[0].ID() != directID {
		t.Fatalf("active tournaments = %v", tournaments)
	}

	// Deleting the tournament also forgets that it was confirmed.
	c.CacheDeleteItem(directID)
	tournaments, err = c.GetActiveTournaments(ctx, "en")
	if err != nil {
		t.Fatalf("GetActiveTournaments after delete: %v", err)
	}
	if len(tournaments) != 0 {
		t.Fatalf("active tournaments after delete = %v", tournaments)
	}
	if c.knownTournament(directID.String()) {
		t.Error("deleted tournament still tracked")
	}
}
