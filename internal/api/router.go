package api

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"oddsfeed/internal/core"
)

// GetSportEventSummary implements core.DataRouter.
func (c *Client) GetSportEventSummary(ctx context.Context, id core.URN, locale string, requester core.Requester) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/sport_events/%s/summary.json", locale, id))
	if err != nil {
		return err
	}
	root := gjson.ParseBytes(body)
	dto := parseEventSummary(root.Get("sport_event"))
	if dto == nil {
		return core.NewDeserializationError(fmt.Sprintf("summary for %s has no sport_event", id), nil)
	}
	dto.Status = parseEventStatus(root.Get("sport_event_status"), dto.ID, core.StatusSourceSportEventSummary)

	c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeMatchSummary, requester)
	if dto.Status != nil {
		c.receiver.SaveDTO(dto.ID, dto.Status, locale, core.DtoTypeSportEventStatus, nil)
	}
	return nil
}

// GetSportEventFixture implements core.DataRouter.
func (c *Client) GetSportEventFixture(ctx context.Context, id core.URN, locale string, useCachedProvider bool, requester core.Requester) error {
	endpoint := "fixture.json"
	if !useCachedProvider {
		// The uncached variant bypasses the response cache in front of
		// the fixture endpoint.
		endpoint = "fixture_change_fixture.json"
	}
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/sport_events/%s/%s", locale, id, endpoint))
	if err != nil {
		return err
	}
	dto := parseFixture(gjson.ParseBytes(body).Get("fixture"))
	if dto == nil {
		return core.NewDeserializationError(fmt.Sprintf("fixture for %s has no fixture node", id), nil)
	}
	c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeFixture, requester)
	return nil
}

// GetSportEventsForDate implements core.DataRouter.
func (c *Client) GetSportEventsForDate(ctx context.Context, date time.Time, locale string) ([]core.URN, error) {
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/schedules/%s/schedule.json", locale, date.Format("2006-01-02")))
	if err != nil {
		return nil, err
	}
	return c.saveSchedule(gjson.ParseBytes(body).Get("sport_events"), locale), nil
}

// GetSportEventsForTournament implements core.DataRouter.
func (c *Client) GetSportEventsForTournament(ctx context.Context, tournamentID core.URN, locale string, requester core.Requester) ([]core.URN, error) {
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/tournaments/%s/schedule.json", locale, tournamentID))
	if err != nil {
		return nil, err
	}
	return c.saveSchedule(gjson.ParseBytes(body).Get("sport_events"), locale), nil
}

// saveSchedule pushes every event of a schedule response into the
// manager and returns the ids.
func (c *Client) saveSchedule(events gjson.Result, locale string) []core.URN {
	var ids []core.URN
	for _, er := range events.Array() {
		dto := parseEventSummary(er)
		if dto == nil {
			continue
		}
		ids = append(ids, dto.ID)
		c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeMatchSummary, nil)
	}
	return ids
}

// GetAllSports implements core.DataRouter.
func (c *Client) GetAllSports(ctx context.Context, locale string) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/sports.json", locale))
	if err != nil {
		return err
	}
	var dtos []core.SportDTO
	for _, sr := range gjson.ParseBytes(body).Get("sports").Array() {
		if dto := parseSport(sr); dto != nil {
			dtos = append(dtos, *dto)
		}
	}
	c.receiver.SaveDTO(core.URN{}, dtos, locale, core.DtoTypeSportList, nil)
	return nil
}

// GetAllTournamentsForAllSports implements core.DataRouter.
func (c *Client) GetAllTournamentsForAllSports(ctx context.Context, locale string) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/tournaments.json", locale))
	if err != nil {
		return err
	}
	for _, tr := range gjson.ParseBytes(body).Get("tournaments").Array() {
		if dto := parseTournament(tr); dto != nil {
			c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeTournamentInfo, nil)
		}
	}
	return nil
}

// GetAllLotteries implements core.DataRouter.
func (c *Client) GetAllLotteries(ctx context.Context, locale string) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/wns/sports/%s/lotteries.json", locale))
	if err != nil {
		return err
	}
	for _, lr := range gjson.ParseBytes(body).Get("lotteries").Array() {
		if dto := parseLottery(lr); dto != nil {
			c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeLottery, nil)
		}
	}
	return nil
}

// GetLotterySchedule implements core.DataRouter.
func (c *Client) GetLotterySchedule(ctx context.Context, lotteryID core.URN, locale string, requester core.Requester) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/wns/sports/%s/lotteries/%s/schedule.json", locale, lotteryID))
	if err != nil {
		return err
	}
	root := gjson.ParseBytes(body)
	dto := parseLottery(root.Get("lottery"))
	if dto == nil {
		return core.NewDeserializationError(fmt.Sprintf("schedule for %s has no lottery node", lotteryID), nil)
	}
	for _, dr := range root.Get("draws").Array() {
		draw := parseDraw(dr)
		if draw == nil {
			continue
		}
		dto.DrawIDs = append(dto.DrawIDs, draw.ID)
		c.receiver.SaveDTO(draw.ID, draw, locale, core.DtoTypeDraw, nil)
	}
	c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeLottery, requester)
	return nil
}

// GetDrawSummary implements core.DataRouter.
func (c *Client) GetDrawSummary(ctx context.Context, drawID core.URN, locale string, requester core.Requester) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/wns/sports/%s/sport_events/%s/summary.json", locale, drawID))
	if err != nil {
		return err
	}
	dto := parseDraw(gjson.ParseBytes(body).Get("draw_fixture"))
	if dto == nil {
		return core.NewDeserializationError(fmt.Sprintf("summary for %s has no draw_fixture node", drawID), nil)
	}
	c.receiver.SaveDTO(dto.ID, dto, locale, core.DtoTypeDraw, requester)
	return nil
}

// GetSportEventStatus implements core.DataRouter. The feed has no
// status-only endpoint; the summary carries the status node.
func (c *Client) GetSportEventStatus(ctx context.Context, id core.URN, locale string) error {
	return c.GetSportEventSummary(ctx, id, locale, nil)
}

// GetMatchTimeline implements core.DataRouter.
func (c *Client) GetMatchTimeline(ctx context.Context, id core.URN, locale string, requester core.Requester) error {
	body, err := c.fetch(ctx, fmt.Sprintf("/sports/%s/sport_events/%s/timeline.json", locale, id))
	if err != nil {
		return err
	}
	dto := parseTimeline(gjson.ParseBytes(body), id)
	c.receiver.SaveDTO(id, dto, locale, core.DtoTypeMatchTimeline, requester)
	return nil
}

// GetNamedValues implements core.DataRouter.
func (c *Client) GetNamedValues(ctx context.Context, endpoint string, locale string) ([]core.NamedValueDTO, error) {
	path := fmt.Sprintf("/descriptions/%s.json", endpoint)
	if locale != "" {
		path = fmt.Sprintf("/descriptions/%s/%s.json", locale, endpoint)
	}
	body, err := c.fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []core.NamedValueDTO
	for _, vr := range gjson.ParseBytes(body).Get("values").Array() {
		out = append(out, core.NamedValueDTO{
			ID:          int(vr.Get("id").Int()),
			Description: vr.Get("description").String(),
		})
	}
	return out, nil
}
