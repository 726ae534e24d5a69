package core

import "time"

// DTOs are immutable per-fetch snapshots parsed from one REST response.
// Every DTO is tagged with the single locale it was fetched for; the
// caches merge them into long-lived, multi-locale cache items.

// CompetitorDTO describes one competitor of a match or stage.
type CompetitorDTO struct {
	ID           URN
	Name         string
	Abbreviation string
	CountryCode  string
	Qualifier    string
}

// SportEventSummaryDTO is the common summary payload shared by all
// sport event kinds.
type SportEventSummaryDTO struct {
	ID           URN
	Name         string
	Scheduled    *time.Time
	ScheduledEnd *time.Time
	SportID      *URN
	Competitors  []CompetitorDTO

	// Tournament is set when the summary embeds its tournament; the
	// embedded entity carries its own id and is cached separately.
	Tournament *TournamentInfoDTO

	// ParentStageID links a stage to its parent stage, when present.
	ParentStageID *URN

	// Status carries the REST-sourced event status, when present.
	Status *SportEventStatusDTO
}

// FixtureDTO extends the summary with fixture-only fields.
type FixtureDTO struct {
	SportEventSummaryDTO
	StartTimeConfirmed bool
	ReplacedBy         *URN
	ExtraInfo          map[string]string
}

// TournamentInfoDTO describes one tournament, season or basic tournament.
type TournamentInfoDTO struct {
	ID              URN
	Name            string
	CategoryID      *URN
	Category        *CategoryDTO
	Sport           *SportDTO
	ScheduledStart  *time.Time
	ScheduledEnd    *time.Time
	CurrentSeasonID *URN
}

// SportDTO describes one sport node, optionally with its categories.
type SportDTO struct {
	ID         URN
	Name       string
	Categories []CategoryDTO
}

// CategoryDTO describes one category node. Every category belongs to
// exactly one sport.
type CategoryDTO struct {
	ID            URN
	Name          string
	SportID       URN
	CountryCode   string
	TournamentIDs []URN
}

// Known status update sources, used by the status cache priority rule.
const (
	StatusSourceOddsChange        = "OddsChange"
	StatusSourceSportEventSummary = "SportEventSummary"
	StatusSourceTimeline          = "Timeline"
)

// SportEventStatusDTO is one status snapshot for an event. Source names
// where the snapshot was produced (see the StatusSource constants);
// the status cache applies a source priority rule when merging.
type SportEventStatusDTO struct {
	EventID         URN
	Source          string
	Status          string
	IsReported      bool
	MatchStatusCode int
	HomeScore       *float64
	AwayScore       *float64
	Properties      map[string]any
}

// TimelineEventDTO is one entry of a match timeline.
type TimelineEventDTO struct {
	ID   int64
	Type string
	Time time.Time
}

// MatchTimelineDTO is the timeline payload of a match; its embedded
// status snapshot is Timeline-sourced.
type MatchTimelineDTO struct {
	EventID URN
	Status  *SportEventStatusDTO
	Events  []TimelineEventDTO
}

// DrawDTO describes one lottery draw.
type DrawDTO struct {
	ID                   URN
	LotteryID            *URN
	Status               string
	ScheduledDraw        *time.Time
	ResultsChronological bool
}

// LotteryDTO describes one lottery and its scheduled draws.
type LotteryDTO struct {
	ID         URN
	Name       string
	CategoryID *URN
	DrawIDs    []URN
}

// BookingStatusDTO marks an event as booked for liveodds coverage.
type BookingStatusDTO struct {
	EventID URN
	Booked  bool
}

// NamedValueDTO is one (id, description) pair of a named-value table.
type NamedValueDTO struct {
	ID          int
	Description string
}
