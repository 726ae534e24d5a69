package sportevent

import (
	"encoding/json"
	"time"

	"oddsfeed/internal/core"
)

// exportedEvent is the lossless snapshot record of one event item. A
// single record type covers every event kind; kind-specific fields stay
// empty for the kinds that do not use them.
type exportedEvent struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`

	Names           map[string]string `json:"names,omitempty"`
	Scheduled       *time.Time        `json:"scheduled,omitempty"`
	ScheduledEnd    *time.Time        `json:"scheduled_end,omitempty"`
	SportID         string            `json:"sport_id,omitempty"`
	LoadedSummaries []string          `json:"loaded_summaries,omitempty"`
	LoadedFixtures  []string          `json:"loaded_fixtures,omitempty"`

	// match
	Competitors  []core.CompetitorDTO `json:"competitors,omitempty"`
	TournamentID string               `json:"tournament_id,omitempty"`
	Booked       *bool                `json:"booked,omitempty"`

	// stage
	ParentStageID string `json:"parent_stage_id,omitempty"`

	// tournament / lottery
	CategoryID      string `json:"category_id,omitempty"`
	CurrentSeasonID string `json:"current_season_id,omitempty"`

	// draw / lottery
	LotteryID  string   `json:"lottery_id,omitempty"`
	DrawStatus string   `json:"draw_status,omitempty"`
	DrawIDs    []string `json:"draw_ids,omitempty"`
}

// exportVersion is the per-record snapshot version for event items.
const exportVersion = 1

func marshalExport(exp *exportedEvent) (json.RawMessage, error) {
	return json.Marshal(exp)
}

func unmarshalExport(payload json.RawMessage) (*exportedEvent, error) {
	var exp exportedEvent
	if err := json.Unmarshal(payload, &exp); err != nil {
		return nil, core.NewDeserializationError("decoding event snapshot record", err)
	}
	return &exp, nil
}
