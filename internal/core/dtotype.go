package core

// DtoType identifies the shape of a data transfer object coming out of
// the REST layer. It is the dispatch key for the cache manager fan-out:
// every cache declares, at construction, the subset of tags it is
// willing to merge.
type DtoType string

const (
	DtoTypeFixture               DtoType = "fixture"
	DtoTypeMatchSummary          DtoType = "match_summary"
	DtoTypeMatchTimeline         DtoType = "match_timeline"
	DtoTypeTournamentInfo        DtoType = "tournament_info"
	DtoTypeSport                 DtoType = "sport"
	DtoTypeSportList             DtoType = "sport_list"
	DtoTypeCategory              DtoType = "category"
	DtoTypeSportEventStatus      DtoType = "sport_event_status"
	DtoTypeSportEventSummaryList DtoType = "sport_event_summary_list"
	DtoTypeDraw                  DtoType = "draw"
	DtoTypeLottery               DtoType = "lottery"
	DtoTypeLotteryList           DtoType = "lottery_list"
	DtoTypeBookingStatus         DtoType = "booking_status"
	DtoTypeNamedValueList        DtoType = "named_value_list"
)

// DtoTypeSet is a declared set of DTO tags. The zero value is an empty
// set; registering a cache with an empty set is a construction error.
type DtoTypeSet map[DtoType]struct{}

// NewDtoTypeSet builds a set from the given tags.
func NewDtoTypeSet(types ...DtoType) DtoTypeSet {
	s := make(DtoTypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether the set declares the given tag.
func (s DtoTypeSet) Contains(t DtoType) bool {
	_, ok := s[t]
	return ok
}
