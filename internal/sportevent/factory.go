package sportevent

import (
	"fmt"

	"oddsfeed/internal/core"
)

// Factory builds event cache items. A freshly built item is a bare
// shell: it knows its identity and can lazily fetch its own detail
// through the data router on demand.
type Factory struct {
	dataRouter core.DataRouter
}

// NewFactory creates an item factory backed by the given data router.
func NewFactory(dataRouter core.DataRouter) *Factory {
	return &Factory{dataRouter: dataRouter}
}

// Build creates a bare item for the id. The concrete type follows the
// id's type group; ids outside the known event kinds are an error.
func (f *Factory) Build(id core.URN) (Item, error) {
	switch id.TypeGroup() {
	case core.TypeGroupMatch:
		return newMatchItem(id, f.dataRouter), nil
	case core.TypeGroupStage:
		return newStageItem(id, f.dataRouter), nil
	case core.TypeGroupTournament, core.TypeGroupBasicTournament, core.TypeGroupSeason:
		return newTournamentItem(id, f.dataRouter), nil
	case core.TypeGroupDraw:
		return newDrawItem(id, f.dataRouter), nil
	case core.TypeGroupLottery:
		return newLotteryItem(id, f.dataRouter), nil
	default:
		return nil, core.NewInvalidOperationError(
			fmt.Sprintf("cannot build cache item for %s: unknown event kind", id), nil)
	}
}

// BuildFromSnapshot restores an item from one export record.
func (f *Factory) BuildFromSnapshot(exp *exportedEvent) (Item, error) {
	id, err := core.ParseURN(exp.ID)
	if err != nil {
		return nil, err
	}

	switch exp.Kind {
	case "match":
		it := newMatchItem(id, f.dataRouter)
		it.importFrom(exp)
		return it, nil
	case "stage":
		it := newStageItem(id, f.dataRouter)
		it.importFrom(exp)
		return it, nil
	case "tournament":
		it := newTournamentItem(id, f.dataRouter)
		it.importFrom(exp)
		return it, nil
	case "draw":
		it := newDrawItem(id, f.dataRouter)
		it.importFrom(exp)
		return it, nil
	case "lottery":
		it := newLotteryItem(id, f.dataRouter)
		it.importFrom(exp)
		return it, nil
	default:
		return nil, core.NewDeserializationError(
			fmt.Sprintf("unknown snapshot kind %q for %s", exp.Kind, exp.ID), nil)
	}
}
