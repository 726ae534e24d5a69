package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"oddsfeed/internal/core"
)

// fakeCache is a minimal RegisteredCache for manager tests.
type fakeCache struct {
	name  string
	types core.DtoTypeSet

	mu      sync.Mutex
	items   map[string]any
	deletes []string
	failAdd bool
}

func newFakeCache(name string, types ...core.DtoType) *fakeCache {
	return &fakeCache{
		name:  name,
		types: core.NewDtoTypeSet(types...),
		items: make(map[string]any),
	}
}

func (f *fakeCache) CacheName() string                   { return f.name }
func (f *fakeCache) RegisteredDtoTypes() core.DtoTypeSet { return f.types }
func (f *fakeCache) CacheStatus() map[string]int         { return map[string]int{"item": len(f.items)} }

func (f *fakeCache) CacheAddDTO(_ context.Context, id core.URN, item any, _ string, _ core.DtoType, _ core.Requester) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return false, errors.New("boom")
	}
	f.items[id.String()] = item
	return true, nil
}

func (f *fakeCache) CacheDeleteItem(id core.URN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id.String())
	f.deletes = append(f.deletes, id.String())
}

func (f *fakeCache) CacheHasItem(id core.URN) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id.String()]
	return ok
}

func (f *fakeCache) Export(context.Context) ([]core.ExportEntry, error) { return nil, nil }
func (f *fakeCache) Import(context.Context, []core.ExportEntry) (int, error) {
	return 0, nil
}

func TestManager_RegisterCache(t *testing.T) {
	t.Run("RejectsEmptyDtoTypes", func(t *testing.T) {
		m := NewManager()
		err := m.RegisterCache("empty", newFakeCache("empty"))
		if err == nil {
			t.Fatal("expected registration error for cache with no dto types")
		}
		var fe *core.FeedError
		if !errors.As(err, &fe) || fe.Type != core.ErrorTypeInvalidOperation {
			t.Errorf("expected invalid operation error, got %v", err)
		}
	})

	t.Run("ReplacesSameName", func(t *testing.T) {
		m := NewManager()
		first := newFakeCache("c", core.DtoTypeSport)
		second := newFakeCache("c", core.DtoTypeCategory)
		if err := m.RegisterCache("c", first); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := m.RegisterCache("c", second); err != nil {
			t.Fatalf("replace must not fail: %v", err)
		}
		if m.Cache("c") != core.RegisteredCache(second) {
			t.Error("expected second cache to replace first")
		}
	})
}

func TestManager_SaveDTO_DispatchByType(t *testing.T) {
	// Scenario: c1 registered for MatchSummary only receives the item,
	// a cache registered for Category only stays untouched.
	m := NewManager()
	c1 := newFakeCache("c1", core.DtoTypeMatchSummary)
	c2 := newFakeCache("c2", core.DtoTypeCategory)
	if err := m.RegisterCache("c1", c1); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterCache("c2", c2); err != nil {
		t.Fatal(err)
	}

	id := core.MustParseURN("sr:match:1")
	m.SaveDTO(id, &core.SportEventSummaryDTO{ID: id}, "en", core.DtoTypeMatchSummary, nil)

	if !c1.CacheHasItem(id) {
		t.Error("c1 should hold the match summary")
	}
	if c2.CacheHasItem(id) {
		t.Error("c2 must stay untouched")
	}
}

func TestManager_SaveDTOAsync_NoInterestedCache(t *testing.T) {
	// An unclaimed DTO type completes without error and mutates nothing.
	m := NewManager()
	c1 := newFakeCache("c1", core.DtoTypeMatchSummary)
	if err := m.RegisterCache("c1", c1); err != nil {
		t.Fatal(err)
	}

	id := core.MustParseURN("sr:draw:9")
	if err := m.SaveDTOAsync(context.Background(), id, &core.DrawDTO{ID: id}, "en", core.DtoTypeDraw, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c1.items) != 0 {
		t.Error("no cache should have been mutated")
	}
}

func TestManager_SaveDTOAsync_FanOutIsolation(t *testing.T) {
	// A failing cache must not prevent the others from applying the DTO.
	m := NewManager()
	failing := newFakeCache("failing", core.DtoTypeFixture)
	failing.failAdd = true
	healthy := newFakeCache("healthy", core.DtoTypeFixture)
	if err := m.RegisterCache("failing", failing); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterCache("healthy", healthy); err != nil {
		t.Fatal(err)
	}

	id := core.MustParseURN("sr:match:42")
	if err := m.SaveDTOAsync(context.Background(), id, &core.FixtureDTO{}, "en", core.DtoTypeFixture, nil); err != nil {
		t.Fatalf("fan-out must not surface per-cache errors: %v", err)
	}
	if !healthy.CacheHasItem(id) {
		t.Error("healthy cache did not receive the DTO")
	}
}

func TestManager_RemoveCacheItem_ExcludesSender(t *testing.T) {
	m := NewManager()
	sender := newFakeCache("sender", core.DtoTypeMatchSummary)
	other := newFakeCache("other", core.DtoTypeSportEventStatus)
	if err := m.RegisterCache("sender", sender); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterCache("other", other); err != nil {
		t.Fatal(err)
	}

	id := core.MustParseURN("sr:match:7")
	m.RemoveCacheItem(id, core.TypeGroupMatch, "sender")

	if len(sender.deletes) != 0 {
		t.Error("sender must be excluded from the delete fan-out")
	}
	if len(other.deletes) != 1 || other.deletes[0] != id.String() {
		t.Errorf("other cache did not receive the delete: %v", other.deletes)
	}
}

func TestManager_SaveStats(t *testing.T) {
	m := NewManager()
	c := newFakeCache("c", core.DtoTypeSport)
	if err := m.RegisterCache("c", c); err != nil {
		t.Fatal(err)
	}

	id := core.MustParseURN("sr:sport:1")
	m.SaveDTO(id, &core.SportDTO{ID: id}, "en", core.DtoTypeSport, nil)
	m.SaveDTO(id, &core.SportDTO{ID: id}, "de", core.DtoTypeSport, nil)

	max, total, count := m.SaveStats()
	if count != 2 {
		t.Errorf("save count = %d, want 2", count)
	}
	if max <= 0 || total < max {
		t.Errorf("implausible stats: max=%v total=%v", max, total)
	}
}
