// Package status caches sport event statuses. Unlike the event cache,
// entries here carry an absolute TTL: a status is presumed stale after
// the configured window and refetched even though the owning event
// item never expires.
package status

import (
	"oddsfeed/internal/core"
)

// SportEventStatus is one cached status value. Values are immutable
// once built; an update replaces the whole entry.
type SportEventStatus struct {
	EventID         core.URN
	Source          string
	Status          string
	IsReported      bool
	MatchStatusCode int
	HomeScore       *float64
	AwayScore       *float64
	Properties      map[string]any
}

// statusNotStarted is the sentinel returned when no status is known;
// lookups never fail just because the feed has not reported yet.
const statusNotStarted = "not_started"

// NewNotStarted returns the sentinel status for an event the feed has
// not reported on yet.
func NewNotStarted(eventID core.URN) *SportEventStatus {
	return &SportEventStatus{EventID: eventID, Status: statusNotStarted}
}

// IsNotStarted reports whether the status is the unreported sentinel.
func (s *SportEventStatus) IsNotStarted() bool {
	return !s.IsReported && s.Status == statusNotStarted
}

func fromDTO(dto *core.SportEventStatusDTO) *SportEventStatus {
	s := &SportEventStatus{
		EventID:         dto.EventID,
		Source:          dto.Source,
		Status:          dto.Status,
		IsReported:      dto.IsReported,
		MatchStatusCode: dto.MatchStatusCode,
		HomeScore:       dto.HomeScore,
		AwayScore:       dto.AwayScore,
	}
	if len(dto.Properties) > 0 {
		s.Properties = make(map[string]any, len(dto.Properties))
		for k, v := range dto.Properties {
			s.Properties[k] = v
		}
	}
	return s
}
