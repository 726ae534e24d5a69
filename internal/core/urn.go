// Package core provides the shared types of the odds-feed SDK: entity
// identifiers, DTO tags, the data transfer objects produced by the REST
// layer, the error taxonomy and the interfaces the caches implement.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeGroup classifies a URN into the closed set of sport event kinds
// the caches know how to build items for.
type TypeGroup int

const (
	TypeGroupOther TypeGroup = iota
	TypeGroupMatch
	TypeGroupStage
	TypeGroupTournament
	TypeGroupBasicTournament
	TypeGroupSeason
	TypeGroupDraw
	TypeGroupLottery
)

func (g TypeGroup) String() string {
	switch g {
	case TypeGroupMatch:
		return "match"
	case TypeGroupStage:
		return "stage"
	case TypeGroupTournament:
		return "tournament"
	case TypeGroupBasicTournament:
		return "basic_tournament"
	case TypeGroupSeason:
		return "season"
	case TypeGroupDraw:
		return "draw"
	case TypeGroupLottery:
		return "lottery"
	default:
		return "other"
	}
}

// URN is a composite entity identifier in the form "prefix:type:id",
// e.g. "sr:match:1234". The identity of a cache item never changes
// after creation, so URN values are treated as immutable.
type URN struct {
	Prefix string
	Type   string
	ID     int64
}

// ParseURN parses a composite identifier. It returns an invalid-operation
// error when the string does not have exactly three non-empty segments
// or the numeric part does not parse.
func ParseURN(s string) (URN, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return URN{}, NewInvalidOperationError(fmt.Sprintf("malformed urn %q", s), nil)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return URN{}, NewInvalidOperationError(fmt.Sprintf("malformed urn id %q", s), err)
	}
	return URN{Prefix: parts[0], Type: parts[1], ID: id}, nil
}

// MustParseURN parses a composite identifier and panics on failure.
// Intended for tests and compile-time-known constants.
func MustParseURN(s string) URN {
	u, err := ParseURN(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (u URN) String() string {
	return u.Prefix + ":" + u.Type + ":" + strconv.FormatInt(u.ID, 10)
}

// IsZero reports whether the URN is the zero value.
func (u URN) IsZero() bool {
	return u.Prefix == "" && u.Type == "" && u.ID == 0
}

// TypeGroup maps the URN type token to its event kind. Stage-like and
// tournament-like type tokens are folded into their groups the same way
// the feed uses them.
func (u URN) TypeGroup() TypeGroup {
	switch u.Type {
	case "match":
		return TypeGroupMatch
	case "stage", "race_event", "race_stage":
		return TypeGroupStage
	case "tournament", "race_tournament":
		return TypeGroupTournament
	case "simple_tournament", "basic_tournament":
		return TypeGroupBasicTournament
	case "season":
		return TypeGroupSeason
	case "draw":
		return TypeGroupDraw
	case "lottery":
		return TypeGroupLottery
	default:
		return TypeGroupOther
	}
}
