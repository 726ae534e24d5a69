package core

import (
	"context"
	"encoding/json"
	"time"
)

// Requester identifies the cache item on whose behalf a fetch was made.
// A nil requester means the DTO was externally discovered (periodic
// refresh, bus message); a non-nil requester means the item asked for
// its own detail and must see the merged result immediately, even
// before the generic cache entry is updated.
type Requester interface {
	RequesterID() URN
}

// ExportEntry is one tagged, versioned snapshot record of a cached
// entity, sufficient to reconstruct the cache item without re-fetching.
type ExportEntry struct {
	Kind    string          `json:"kind"`
	Key     string          `json:"key"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// Exporter is a cache able to round-trip a serializable snapshot of
// every item it holds, used for warm restarts.
type Exporter interface {
	// Export produces a snapshot of every cached item.
	Export(ctx context.Context) ([]ExportEntry, error)

	// Import rebuilds cache items from snapshot records without going
	// through the DTO merge path. Returns the number of items imported.
	Import(ctx context.Context, entries []ExportEntry) (int, error)
}

// RegisteredCache is any cache stored under the cache manager.
// Implementations register themselves with the manager at construction;
// declaring no DTO types is a fatal construction error.
type RegisteredCache interface {
	Exporter

	// CacheName names the cache for logging and for excluding the
	// sender of a delete fan-out.
	CacheName() string

	// RegisteredDtoTypes declares the DTO tags this cache merges.
	RegisteredDtoTypes() DtoTypeSet

	// CacheAddDTO merges one DTO into the cache. The boolean reports
	// whether the item was saved; a tag/payload mismatch is a logged
	// conflict, not an error.
	CacheAddDTO(ctx context.Context, id URN, item any, locale string, dtoType DtoType, requester Requester) (bool, error)

	// CacheDeleteItem removes the item with the given id, if cached.
	CacheDeleteItem(id URN)

	// CacheHasItem reports whether the item with the given id is cached.
	CacheHasItem(id URN) bool

	// CacheStatus returns per-type item counts for diagnostics.
	CacheStatus() map[string]int
}

// DTOReceiver is the part of the cache manager the data-fetch layer
// depends on: fetched DTOs are pushed through it before a fetch call
// returns.
type DTOReceiver interface {
	SaveDTO(id URN, item any, locale string, dtoType DtoType, requester Requester)
	SaveDTOAsync(ctx context.Context, id URN, item any, locale string, dtoType DtoType, requester Requester) error
}

// DataRouter is the external data-fetch collaborator. Every call
// fetches for a single locale and, on completion, has already pushed
// the fetched DTO(s) into the cache manager; the returned values are
// ids or DTOs for the caller's convenience.
type DataRouter interface {
	// GetSportEventSummary fetches the summary of one event.
	GetSportEventSummary(ctx context.Context, id URN, locale string, requester Requester) error

	// GetSportEventFixture fetches the fixture of one event. useCachedProvider
	// selects the response-cached fixture endpoint; a false value forces a
	// fresh fetch.
	GetSportEventFixture(ctx context.Context, id URN, locale string, useCachedProvider bool, requester Requester) error

	// GetSportEventsForDate fetches the schedule for one day and returns
	// the event ids it contained.
	GetSportEventsForDate(ctx context.Context, date time.Time, locale string) ([]URN, error)

	// GetSportEventsForTournament fetches the schedule of one tournament
	// and returns the event ids it contained.
	GetSportEventsForTournament(ctx context.Context, tournamentID URN, locale string, requester Requester) ([]URN, error)

	// GetAllSports fetches the full sport list.
	GetAllSports(ctx context.Context, locale string) error

	// GetAllTournamentsForAllSports fetches the full tournament list.
	GetAllTournamentsForAllSports(ctx context.Context, locale string) error

	// GetAllLotteries fetches the full lottery list.
	GetAllLotteries(ctx context.Context, locale string) error

	// GetLotterySchedule fetches one lottery with its scheduled draws.
	GetLotterySchedule(ctx context.Context, lotteryID URN, locale string, requester Requester) error

	// GetDrawSummary fetches one draw.
	GetDrawSummary(ctx context.Context, drawID URN, locale string, requester Requester) error

	// GetSportEventStatus fetches the REST-sourced status of one event.
	GetSportEventStatus(ctx context.Context, id URN, locale string) error

	// GetMatchTimeline fetches the timeline of one match.
	GetMatchTimeline(ctx context.Context, id URN, locale string, requester Requester) error

	// GetNamedValues fetches a full named-value table. The endpoint
	// discriminates the table (match status, void reason, ...); locale
	// is empty for the non-localized tables.
	GetNamedValues(ctx context.Context, endpoint string, locale string) ([]NamedValueDTO, error)
}
