package api

import (
	"time"

	"github.com/tidwall/gjson"

	"oddsfeed/internal/core"
)

// Response parsing. Payloads are read with gjson path lookups instead
// of full struct unmarshaling; the feed's responses carry far more
// fields than the DTOs keep.

func parseTime(r gjson.Result) *time.Time {
	if !r.Exists() {
		return nil
	}
	t, err := time.Parse(time.RFC3339, r.String())
	if err != nil {
		return nil
	}
	return &t
}

func parseURN(r gjson.Result) *core.URN {
	if !r.Exists() {
		return nil
	}
	id, err := core.ParseURN(r.String())
	if err != nil {
		return nil
	}
	return &id
}

func parseCompetitors(r gjson.Result) []core.CompetitorDTO {
	var out []core.CompetitorDTO
	for _, cr := range r.Array() {
		id := parseURN(cr.Get("id"))
		if id == nil {
			continue
		}
		out = append(out, core.CompetitorDTO{
			ID:           *id,
			Name:         cr.Get("name").String(),
			Abbreviation: cr.Get("abbreviation").String(),
			CountryCode:  cr.Get("country_code").String(),
			Qualifier:    cr.Get("qualifier").String(),
		})
	}
	return out
}

func parseSport(r gjson.Result) *core.SportDTO {
	id := parseURN(r.Get("id"))
	if id == nil {
		return nil
	}
	dto := &core.SportDTO{ID: *id, Name: r.Get("name").String()}
	for _, cr := range r.Get("categories").Array() {
		if cat := parseCategory(cr, *id); cat != nil {
			dto.Categories = append(dto.Categories, *cat)
		}
	}
	return dto
}

func parseCategory(r gjson.Result, sportID core.URN) *core.CategoryDTO {
	id := parseURN(r.Get("id"))
	if id == nil {
		return nil
	}
	return &core.CategoryDTO{
		ID:          *id,
		Name:        r.Get("name").String(),
		SportID:     sportID,
		CountryCode: r.Get("country_code").String(),
	}
}

func parseTournament(r gjson.Result) *core.TournamentInfoDTO {
	id := parseURN(r.Get("id"))
	if id == nil {
		return nil
	}
	dto := &core.TournamentInfoDTO{
		ID:              *id,
		Name:            r.Get("name").String(),
		ScheduledStart:  parseTime(r.Get("scheduled")),
		ScheduledEnd:    parseTime(r.Get("scheduled_end")),
		CurrentSeasonID: parseURN(r.Get("current_season.id")),
	}
	dto.Sport = parseSport(r.Get("sport"))
	var sportID core.URN
	if dto.Sport != nil {
		sportID = dto.Sport.ID
	}
	if cat := parseCategory(r.Get("category"), sportID); cat != nil {
		dto.Category = cat
		dto.CategoryID = &cat.ID
	}
	return dto
}

// parseEventSummary reads the sport_event node of a summary or
// schedule response.
func parseEventSummary(r gjson.Result) *core.SportEventSummaryDTO {
	id := parseURN(r.Get("id"))
	if id == nil {
		return nil
	}
	dto := &core.SportEventSummaryDTO{
		ID:            *id,
		Name:          r.Get("name").String(),
		Scheduled:     parseTime(r.Get("scheduled")),
		ScheduledEnd:  parseTime(r.Get("scheduled_end")),
		Competitors:   parseCompetitors(r.Get("competitors")),
		ParentStageID: parseURN(r.Get("parent.id")),
	}
	if t := parseTournament(r.Get("tournament")); t != nil {
		dto.Tournament = t
		if t.Sport != nil {
			dto.SportID = &t.Sport.ID
		}
	}
	if dto.Name == "" && len(dto.Competitors) == 2 {
		dto.Name = dto.Competitors[0].Name + " vs. " + dto.Competitors[1].Name
	}
	return dto
}

// parseEventStatus reads a sport_event_status node. Source is filled
// by the caller; the payload does not carry it.
func parseEventStatus(r gjson.Result, eventID core.URN, source string) *core.SportEventStatusDTO {
	if !r.Exists() {
		return nil
	}
	dto := &core.SportEventStatusDTO{
		EventID:         eventID,
		Source:          source,
		Status:          r.Get("status").String(),
		IsReported:      true,
		MatchStatusCode: int(r.Get("match_status_code").Int()),
	}
	if hs := r.Get("home_score"); hs.Exists() {
		v := hs.Float()
		dto.HomeScore = &v
	}
	if as := r.Get("away_score"); as.Exists() {
		v := as.Float()
		dto.AwayScore = &v
	}
	if ps := r.Get("period_scores"); ps.Exists() {
		dto.Properties = map[string]any{"period_scores": ps.Value()}
	}
	return dto
}

func parseFixture(r gjson.Result) *core.FixtureDTO {
	summary := parseEventSummary(r)
	if summary == nil {
		return nil
	}
	dto := &core.FixtureDTO{
		SportEventSummaryDTO: *summary,
		StartTimeConfirmed:   r.Get("start_time_confirmed").Bool(),
		ReplacedBy:           parseURN(r.Get("replaced_by")),
	}
	if extra := r.Get("extra_info"); extra.Exists() {
		dto.ExtraInfo = make(map[string]string)
		for _, e := range extra.Array() {
			dto.ExtraInfo[e.Get("key").String()] = e.Get("value").String()
		}
	}
	return dto
}

func parseDraw(r gjson.Result) *core.DrawDTO {
	id := parseURN(r.Get("id"))
	if id == nil {
		return nil
	}
	return &core.DrawDTO{
		ID:                   *id,
		LotteryID:            parseURN(r.Get("lottery.id")),
		Status:               r.Get("status").String(),
		ScheduledDraw:        parseTime(r.Get("draw_date")),
		ResultsChronological: r.Get("results_chronological").Bool(),
	}
}

func parseLottery(r gjson.Result) *core.LotteryDTO {
	id := parseURN(r.Get("id"))
	if id == nil {
		return nil
	}
	dto := &core.LotteryDTO{
		ID:   *id,
		Name: r.Get("name").String(),
	}
	if cat := parseURN(r.Get("category.id")); cat != nil {
		dto.CategoryID = cat
	}
	return dto
}

func parseTimeline(r gjson.Result, eventID core.URN) *core.MatchTimelineDTO {
	dto := &core.MatchTimelineDTO{
		EventID: eventID,
		Status:  parseEventStatus(r.Get("sport_event_status"), eventID, core.StatusSourceTimeline),
	}
	for _, er := range r.Get("timeline").Array() {
		ev := core.TimelineEventDTO{
			ID:   er.Get("id").Int(),
			Type: er.Get("type").String(),
		}
		if t := parseTime(er.Get("time")); t != nil {
			ev.Time = *t
		}
		dto.Events = append(dto.Events, ev)
	}
	return dto
}
