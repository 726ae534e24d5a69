package sportevent

import (
	"context"
	"log/slog"

	"oddsfeed/internal/core"
)

// conflict logs a DTO/item type mismatch. The item is treated as not
// saved; the fan-out to other caches is unaffected.
func conflict(item Item, dto any) (bool, error) {
	slog.Warn("dto does not match cache item type",
		"id", item.ID(), "item_kind", item.TypeGroup().String(), "dto", typeName(dto))
	return false, nil
}

func typeName(v any) string {
	switch v.(type) {
	case *core.SportEventSummaryDTO:
		return "sport_event_summary"
	case *core.FixtureDTO:
		return "fixture"
	case *core.TournamentInfoDTO:
		return "tournament_info"
	case *core.MatchTimelineDTO:
		return "match_timeline"
	case *core.BookingStatusDTO:
		return "booking_status"
	case *core.DrawDTO:
		return "draw"
	case *core.LotteryDTO:
		return "lottery"
	default:
		return "unknown"
	}
}

// MatchItem is the cache item for one match.
type MatchItem struct {
	baseItem

	competitors  []core.CompetitorDTO
	tournamentID *core.URN
	booked       *bool
}

func newMatchItem(id core.URN, dataRouter core.DataRouter) *MatchItem {
	return &MatchItem{baseItem: newBaseItem(id, dataRouter)}
}

func (m *MatchItem) TypeGroup() core.TypeGroup { return core.TypeGroupMatch }

// Competitors returns the competitors, fetching the summary when none
// are loaded yet.
func (m *MatchItem) Competitors(ctx context.Context) ([]core.CompetitorDTO, error) {
	m.mu.RLock()
	loaded := len(m.competitors) > 0
	m.mu.RUnlock()
	if !loaded {
		if err := m.ensureAnySummary(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.CompetitorDTO, len(m.competitors))
	copy(out, m.competitors)
	return out, nil
}

// TournamentID returns the owning tournament, fetching when unknown.
func (m *MatchItem) TournamentID(ctx context.Context) (*core.URN, error) {
	m.mu.RLock()
	t := m.tournamentID
	m.mu.RUnlock()
	if t != nil {
		return t, nil
	}
	if err := m.ensureAnySummary(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tournamentID, nil
}

func (m *MatchItem) mergeSummaryLike(dto *core.SportEventSummaryDTO, locale string) {
	m.mergeSummary(dto, locale)
	m.mu.Lock()
	if len(dto.Competitors) > 0 {
		m.competitors = append([]core.CompetitorDTO(nil), dto.Competitors...)
	}
	if dto.Tournament != nil {
		id := dto.Tournament.ID
		m.tournamentID = &id
	}
	m.mu.Unlock()
}

func (m *MatchItem) mergeDTO(item any, locale string) (bool, error) {
	switch dto := item.(type) {
	case *core.SportEventSummaryDTO:
		m.mergeSummaryLike(dto, locale)
	case *core.FixtureDTO:
		m.mergeSummaryLike(&dto.SportEventSummaryDTO, locale)
		m.markFixtureLoaded(locale)
	case *core.MatchTimelineDTO:
		// The timeline carries no event detail for this cache; it only
		// guarantees the item exists. Its status snapshot is consumed
		// by the status cache.
	case *core.BookingStatusDTO:
		m.mu.Lock()
		booked := dto.Booked
		m.booked = &booked
		m.mu.Unlock()
	default:
		return conflict(m, item)
	}
	return true, nil
}

func (m *MatchItem) export() *exportedEvent {
	exp := m.exportBase("match")
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp.Competitors = append([]core.CompetitorDTO(nil), m.competitors...)
	exp.TournamentID = urnString(m.tournamentID)
	exp.Booked = m.booked
	return exp
}

func (m *MatchItem) importFrom(exp *exportedEvent) {
	m.importBase(exp)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.competitors = append([]core.CompetitorDTO(nil), exp.Competitors...)
	m.tournamentID = urnFromString(exp.TournamentID)
	m.booked = exp.Booked
}

// StageItem is the cache item for one stage (race event, race stage).
type StageItem struct {
	baseItem

	competitors   []core.CompetitorDTO
	parentStageID *core.URN
}

func newStageItem(id core.URN, dataRouter core.DataRouter) *StageItem {
	return &StageItem{baseItem: newBaseItem(id, dataRouter)}
}

func (s *StageItem) TypeGroup() core.TypeGroup { return core.TypeGroupStage }

// ParentStageID returns the parent stage link, when one is known.
func (s *StageItem) ParentStageID() *core.URN {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parentStageID
}

func (s *StageItem) mergeSummaryLike(dto *core.SportEventSummaryDTO, locale string) {
	s.mergeSummary(dto, locale)
	s.mu.Lock()
	if len(dto.Competitors) > 0 {
		s.competitors = append([]core.CompetitorDTO(nil), dto.Competitors...)
	}
	if dto.ParentStageID != nil {
		s.parentStageID = dto.ParentStageID
	}
	s.mu.Unlock()
}

func (s *StageItem) mergeDTO(item any, locale string) (bool, error) {
	switch dto := item.(type) {
	case *core.SportEventSummaryDTO:
		s.mergeSummaryLike(dto, locale)
	case *core.FixtureDTO:
		s.mergeSummaryLike(&dto.SportEventSummaryDTO, locale)
		s.markFixtureLoaded(locale)
	default:
		return conflict(s, item)
	}
	return true, nil
}

func (s *StageItem) export() *exportedEvent {
	exp := s.exportBase("stage")
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp.Competitors = append([]core.CompetitorDTO(nil), s.competitors...)
	exp.ParentStageID = urnString(s.parentStageID)
	return exp
}

func (s *StageItem) importFrom(exp *exportedEvent) {
	s.importBase(exp)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitors = append([]core.CompetitorDTO(nil), exp.Competitors...)
	s.parentStageID = urnFromString(exp.ParentStageID)
}

// TournamentItem is the cache item for tournaments, basic tournaments
// and seasons.
type TournamentItem struct {
	baseItem

	categoryID      *core.URN
	currentSeasonID *core.URN
}

func newTournamentItem(id core.URN, dataRouter core.DataRouter) *TournamentItem {
	return &TournamentItem{baseItem: newBaseItem(id, dataRouter)}
}

func (t *TournamentItem) TypeGroup() core.TypeGroup { return t.id.TypeGroup() }

// CategoryID returns the owning category, fetching when unknown.
func (t *TournamentItem) CategoryID(ctx context.Context) (*core.URN, error) {
	t.mu.RLock()
	c := t.categoryID
	t.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	if err := t.ensureAnySummary(ctx); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.categoryID, nil
}

func (t *TournamentItem) mergeTournamentInfo(dto *core.TournamentInfoDTO, locale string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dto.Name != "" {
		t.names[locale] = dto.Name
	}
	if dto.CategoryID != nil {
		t.categoryID = dto.CategoryID
	} else if dto.Category != nil {
		id := dto.Category.ID
		t.categoryID = &id
	}
	if dto.CurrentSeasonID != nil {
		t.currentSeasonID = dto.CurrentSeasonID
	}
	if dto.ScheduledStart != nil {
		t.scheduled = dto.ScheduledStart
	}
	if dto.ScheduledEnd != nil {
		t.scheduledEnd = dto.ScheduledEnd
	}
	t.loadedSummaries[locale] = struct{}{}
}

func (t *TournamentItem) mergeDTO(item any, locale string) (bool, error) {
	switch dto := item.(type) {
	case *core.TournamentInfoDTO:
		t.mergeTournamentInfo(dto, locale)
	case *core.SportEventSummaryDTO:
		t.mergeSummary(dto, locale)
	case *core.FixtureDTO:
		t.mergeSummary(&dto.SportEventSummaryDTO, locale)
		t.markFixtureLoaded(locale)
	default:
		return conflict(t, item)
	}
	return true, nil
}

func (t *TournamentItem) export() *exportedEvent {
	exp := t.exportBase("tournament")
	t.mu.RLock()
	defer t.mu.RUnlock()
	exp.CategoryID = urnString(t.categoryID)
	exp.CurrentSeasonID = urnString(t.currentSeasonID)
	return exp
}

func (t *TournamentItem) importFrom(exp *exportedEvent) {
	t.importBase(exp)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.categoryID = urnFromString(exp.CategoryID)
	t.currentSeasonID = urnFromString(exp.CurrentSeasonID)
}

// DrawItem is the cache item for one lottery draw.
type DrawItem struct {
	baseItem

	lotteryID  *core.URN
	drawStatus string
}

func newDrawItem(id core.URN, dataRouter core.DataRouter) *DrawItem {
	return &DrawItem{baseItem: newBaseItem(id, dataRouter)}
}

func (d *DrawItem) TypeGroup() core.TypeGroup { return core.TypeGroupDraw }

// LotteryID returns the owning lottery, when known.
func (d *DrawItem) LotteryID() *core.URN {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lotteryID
}

// DrawStatus returns the last merged draw status.
func (d *DrawItem) DrawStatus() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.drawStatus
}

func (d *DrawItem) mergeDTO(item any, locale string) (bool, error) {
	switch dto := item.(type) {
	case *core.DrawDTO:
		d.mu.Lock()
		if dto.LotteryID != nil {
			d.lotteryID = dto.LotteryID
		}
		if dto.Status != "" {
			d.drawStatus = dto.Status
		}
		if dto.ScheduledDraw != nil {
			d.scheduled = dto.ScheduledDraw
		}
		d.loadedSummaries[locale] = struct{}{}
		d.mu.Unlock()
	case *core.SportEventSummaryDTO:
		d.mergeSummary(dto, locale)
	default:
		return conflict(d, item)
	}
	return true, nil
}

func (d *DrawItem) export() *exportedEvent {
	exp := d.exportBase("draw")
	d.mu.RLock()
	defer d.mu.RUnlock()
	exp.LotteryID = urnString(d.lotteryID)
	exp.DrawStatus = d.drawStatus
	return exp
}

func (d *DrawItem) importFrom(exp *exportedEvent) {
	d.importBase(exp)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lotteryID = urnFromString(exp.LotteryID)
	d.drawStatus = exp.DrawStatus
}

// LotteryItem is the cache item for one lottery.
type LotteryItem struct {
	baseItem

	categoryID *core.URN
	drawIDs    []core.URN
}

func newLotteryItem(id core.URN, dataRouter core.DataRouter) *LotteryItem {
	return &LotteryItem{baseItem: newBaseItem(id, dataRouter)}
}

func (l *LotteryItem) TypeGroup() core.TypeGroup { return core.TypeGroupLottery }

// ScheduledDrawIDs returns the known draw ids, fetching the lottery
// schedule when none are loaded yet.
func (l *LotteryItem) ScheduledDrawIDs(ctx context.Context) ([]core.URN, error) {
	l.mu.RLock()
	loaded := len(l.drawIDs) > 0
	l.mu.RUnlock()
	if !loaded {
		if err := l.dataRouter.GetLotterySchedule(ctx, l.id, defaultFetchLocale, l); err != nil {
			return nil, err
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.URN, len(l.drawIDs))
	copy(out, l.drawIDs)
	return out, nil
}

func (l *LotteryItem) mergeDTO(item any, locale string) (bool, error) {
	switch dto := item.(type) {
	case *core.LotteryDTO:
		l.mu.Lock()
		if dto.Name != "" {
			l.names[locale] = dto.Name
		}
		if dto.CategoryID != nil {
			l.categoryID = dto.CategoryID
		}
		if len(dto.DrawIDs) > 0 {
			l.drawIDs = append([]core.URN(nil), dto.DrawIDs...)
		}
		l.loadedSummaries[locale] = struct{}{}
		l.mu.Unlock()
	case *core.SportEventSummaryDTO:
		l.mergeSummary(dto, locale)
	default:
		return conflict(l, item)
	}
	return true, nil
}

func (l *LotteryItem) export() *exportedEvent {
	exp := l.exportBase("lottery")
	l.mu.RLock()
	defer l.mu.RUnlock()
	exp.CategoryID = urnString(l.categoryID)
	draws := make([]string, 0, len(l.drawIDs))
	for _, d := range l.drawIDs {
		draws = append(draws, d.String())
	}
	exp.DrawIDs = draws
	return exp
}

func (l *LotteryItem) importFrom(exp *exportedEvent) {
	l.importBase(exp)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.categoryID = urnFromString(exp.CategoryID)
	for _, s := range exp.DrawIDs {
		if u := urnFromString(s); u != nil {
			l.drawIDs = append(l.drawIDs, *u)
		}
	}
}
