// Package sportdata caches the sport and category hierarchy. Volumes
// are small relative to events, so one coarse lock guards the
// dictionaries instead of per-key locks; the items themselves carry
// their own lock because they are handed out live and merged into for
// the life of the process.
package sportdata

import (
	"sort"
	"sync"

	"oddsfeed/internal/core"
)

// SportCI is one cached sport with its per-locale names and the
// categories discovered under it. Items are handed out live and keep
// being merged into, so every field is guarded by the item's own lock.
type SportCI struct {
	id core.URN

	mu          sync.RWMutex
	names       map[string]string
	categoryIDs map[string]core.URN
}

func newSportCI(id core.URN) *SportCI {
	return &SportCI{
		id:          id,
		names:       make(map[string]string),
		categoryIDs: make(map[string]core.URN),
	}
}

// ID returns the sport identity.
func (s *SportCI) ID() core.URN { return s.id }

// Name returns the sport name for the locale, or "" when not loaded.
func (s *SportCI) Name(locale string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[locale]
}

// Names returns a copy of the per-locale name map.
func (s *SportCI) Names() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.names))
	for l, n := range s.names {
		out[l] = n
	}
	return out
}

// HasTranslationsFor reports whether a name is cached for every given
// locale. It is the canonical "is a fetch needed" test.
func (s *SportCI) HasTranslationsFor(locales []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range locales {
		if _, ok := s.names[l]; !ok {
			return false
		}
	}
	return true
}

// Categories returns the category ids sorted by their string form.
func (s *SportCI) Categories() []core.URN {
	s.mu.RLock()
	out := make([]core.URN, 0, len(s.categoryIDs))
	for _, id := range s.categoryIDs {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *SportCI) merge(dto *core.SportDTO, locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dto.Name != "" {
		s.names[locale] = dto.Name
	}
}

func (s *SportCI) setName(locale, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[locale] = name
}

func (s *SportCI) addCategory(id core.URN) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categoryIDs[id.String()] = id
}

// CategoryCI is one cached category with its owning sport and the
// tournaments discovered under it.
type CategoryCI struct {
	id core.URN

	mu            sync.RWMutex
	sportID       core.URN
	countryCode   string
	names         map[string]string
	tournamentIDs map[string]core.URN
}

func newCategoryCI(id core.URN) *CategoryCI {
	return &CategoryCI{
		id:            id,
		names:         make(map[string]string),
		tournamentIDs: make(map[string]core.URN),
	}
}

// ID returns the category identity.
func (c *CategoryCI) ID() core.URN { return c.id }

// SportID returns the owning sport id, zero when not yet linked.
func (c *CategoryCI) SportID() core.URN {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sportID
}

// CountryCode returns the category's country code, or "".
func (c *CategoryCI) CountryCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.countryCode
}

// Name returns the category name for the locale, or "" when not
// loaded.
func (c *CategoryCI) Name(locale string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[locale]
}

// Names returns a copy of the per-locale name map.
func (c *CategoryCI) Names() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.names))
	for l, n := range c.names {
		out[l] = n
	}
	return out
}

// HasTranslationsFor reports whether a name is cached for every given
// locale.
func (c *CategoryCI) HasTranslationsFor(locales []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range locales {
		if _, ok := c.names[l]; !ok {
			return false
		}
	}
	return true
}

// Tournaments returns the tournament ids sorted by their string form.
func (c *CategoryCI) Tournaments() []core.URN {
	c.mu.RLock()
	out := make([]core.URN, 0, len(c.tournamentIDs))
	for _, id := range c.tournamentIDs {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// HasTournament reports whether the tournament is linked to this
// category.
func (c *CategoryCI) HasTournament(id core.URN) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tournamentIDs[id.String()]
	return ok
}

func (c *CategoryCI) merge(dto *core.CategoryDTO, locale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dto.Name != "" {
		c.names[locale] = dto.Name
	}
	if !dto.SportID.IsZero() {
		c.sportID = dto.SportID
	}
	if dto.CountryCode != "" {
		c.countryCode = dto.CountryCode
	}
	for _, tid := range dto.TournamentIDs {
		c.tournamentIDs[tid.String()] = tid
	}
}

func (c *CategoryCI) setName(locale, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[locale] = name
}

func (c *CategoryCI) setCountryCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countryCode = code
}

func (c *CategoryCI) setSportID(id core.URN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sportID = id
}

// linkSport sets the owning sport only when none is known yet.
func (c *CategoryCI) linkSport(id core.URN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sportID.IsZero() {
		c.sportID = id
	}
}

func (c *CategoryCI) addTournament(id core.URN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tournamentIDs[id.String()] = id
}
