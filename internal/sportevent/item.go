// Package sportevent provides the central per-event cache: long-lived
// cache items built by a factory on first request, merged in place from
// every DTO that arrives for them, and serialized by a per-id lock.
package sportevent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oddsfeed/internal/core"
)

// Item is one cached sport event. Implementations are mutable and
// long-lived: merges only add or overwrite per-locale fields, the
// identity never changes after creation.
type Item interface {
	core.Requester

	// ID returns the event identity.
	ID() core.URN

	// TypeGroup returns the concrete event kind.
	TypeGroup() core.TypeGroup

	// Name returns the event name for the locale, fetching the summary
	// first when that locale has not been loaded yet.
	Name(ctx context.Context, locale string) (string, error)

	// Scheduled returns the scheduled start, fetching the summary for
	// the default locale when nothing has been loaded yet.
	Scheduled(ctx context.Context) (*time.Time, error)

	// ScheduledEnd returns the scheduled end, with the same fetch
	// behavior as Scheduled.
	ScheduledEnd(ctx context.Context) (*time.Time, error)

	// SportID returns the sport the event belongs to, fetching the
	// summary when unknown.
	SportID(ctx context.Context) (*core.URN, error)

	// HasTranslationsFor reports whether a summary has been loaded for
	// every given locale. It is the canonical "is a fetch needed" test.
	HasTranslationsFor(locales []string) bool

	// FetchSummary loads the summary for the given locales through the
	// data router; fetched data re-enters this item via the cache
	// manager fan-out before the call returns.
	FetchSummary(ctx context.Context, locales []string) error

	mergeDTO(item any, locale string) (bool, error)
	export() *exportedEvent
}

// baseItem carries the state shared by every event kind.
type baseItem struct {
	id         core.URN
	dataRouter core.DataRouter

	mu              sync.RWMutex
	names           map[string]string
	scheduled       *time.Time
	scheduledEnd    *time.Time
	sportID         *core.URN
	loadedSummaries map[string]struct{}
	loadedFixtures  map[string]struct{}
}

func newBaseItem(id core.URN, dataRouter core.DataRouter) baseItem {
	return baseItem{
		id:              id,
		dataRouter:      dataRouter,
		names:           make(map[string]string),
		loadedSummaries: make(map[string]struct{}),
		loadedFixtures:  make(map[string]struct{}),
	}
}

func (b *baseItem) ID() core.URN          { return b.id }
func (b *baseItem) RequesterID() core.URN { return b.id }

func (b *baseItem) Name(ctx context.Context, locale string) (string, error) {
	if !b.HasTranslationsFor([]string{locale}) {
		if err := b.FetchSummary(ctx, []string{locale}); err != nil {
			return "", err
		}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.names[locale], nil
}

func (b *baseItem) Scheduled(ctx context.Context) (*time.Time, error) {
	if err := b.ensureAnySummary(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scheduled, nil
}

func (b *baseItem) ScheduledEnd(ctx context.Context) (*time.Time, error) {
	if err := b.ensureAnySummary(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scheduledEnd, nil
}

func (b *baseItem) SportID(ctx context.Context) (*core.URN, error) {
	if err := b.ensureAnySummary(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sportID, nil
}

// scheduledNow returns the schedule fields without triggering a fetch.
func (b *baseItem) scheduledNow() (start, end *time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scheduled, b.scheduledEnd
}

func (b *baseItem) HasTranslationsFor(locales []string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range locales {
		if _, ok := b.loadedSummaries[l]; !ok {
			return false
		}
	}
	return true
}

func (b *baseItem) hasFixtureFor(locale string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.loadedFixtures[locale]
	return ok
}

func (b *baseItem) FetchSummary(ctx context.Context, locales []string) error {
	for _, locale := range locales {
		if b.HasTranslationsFor([]string{locale}) {
			continue
		}
		if err := b.dataRouter.GetSportEventSummary(ctx, b.id, locale, b); err != nil {
			return fmt.Errorf("fetching summary for %s (%s): %w", b.id, locale, err)
		}
	}
	return nil
}

func (b *baseItem) ensureAnySummary(ctx context.Context) error {
	b.mu.RLock()
	loaded := len(b.loadedSummaries) > 0
	b.mu.RUnlock()
	if loaded {
		return nil
	}
	// No locale loaded yet; any one will do for untranslated fields.
	return b.dataRouter.GetSportEventSummary(ctx, b.id, defaultFetchLocale, b)
}

// defaultFetchLocale is used for fetches that only need untranslated
// fields (schedules, links).
const defaultFetchLocale = "en"

// mergeSummary folds one summary snapshot into the item. Only non-nil
// DTO fields overwrite; per-locale fields are added for the DTO's
// locale.
func (b *baseItem) mergeSummary(dto *core.SportEventSummaryDTO, locale string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dto.Name != "" {
		b.names[locale] = dto.Name
	}
	if dto.Scheduled != nil {
		b.scheduled = dto.Scheduled
	}
	if dto.ScheduledEnd != nil {
		b.scheduledEnd = dto.ScheduledEnd
	}
	if dto.SportID != nil {
		b.sportID = dto.SportID
	}
	b.loadedSummaries[locale] = struct{}{}
}

func (b *baseItem) markFixtureLoaded(locale string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadedFixtures[locale] = struct{}{}
}

// exportBase fills the shared snapshot fields.
func (b *baseItem) exportBase(kind string) *exportedEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make(map[string]string, len(b.names))
	for k, v := range b.names {
		names[k] = v
	}
	summaries := make([]string, 0, len(b.loadedSummaries))
	for l := range b.loadedSummaries {
		summaries = append(summaries, l)
	}
	fixtures := make([]string, 0, len(b.loadedFixtures))
	for l := range b.loadedFixtures {
		fixtures = append(fixtures, l)
	}

	return &exportedEvent{
		ID:              b.id.String(),
		Kind:            kind,
		Names:           names,
		Scheduled:       b.scheduled,
		ScheduledEnd:    b.scheduledEnd,
		SportID:         urnString(b.sportID),
		LoadedSummaries: summaries,
		LoadedFixtures:  fixtures,
	}
}

// importBase restores the shared snapshot fields.
func (b *baseItem) importBase(exp *exportedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range exp.Names {
		b.names[k] = v
	}
	b.scheduled = exp.Scheduled
	b.scheduledEnd = exp.ScheduledEnd
	b.sportID = urnFromString(exp.SportID)
	for _, l := range exp.LoadedSummaries {
		b.loadedSummaries[l] = struct{}{}
	}
	for _, l := range exp.LoadedFixtures {
		b.loadedFixtures[l] = struct{}{}
	}
}

func urnString(u *core.URN) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func urnFromString(s string) *core.URN {
	if s == "" {
		return nil
	}
	u, err := core.ParseURN(s)
	if err != nil {
		return nil
	}
	return &u
}
