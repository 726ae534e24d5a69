package core

import "testing"

func TestParseURN(t *testing.T) {
	u, err := ParseURN("sr:match:1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Prefix != "sr" || u.Type != "match" || u.ID != 1234 {
		t.Errorf("parsed = %+v, want sr:match:1234", u)
	}
	if u.String() != "sr:match:1234" {
		t.Errorf("String() = %s, want sr:match:1234", u.String())
	}
}

func TestParseURN_Malformed(t *testing.T) {
	for _, s := range []string{"", "sr:match", "sr:match:abc", "sr::1", ":match:1", "sr:match:1:extra"} {
		if _, err := ParseURN(s); err == nil {
			t.Errorf("ParseURN(%q) expected error", s)
		}
	}
}

func TestURNTypeGroup(t *testing.T) {
	cases := map[string]TypeGroup{
		"sr:match:1":             TypeGroupMatch,
		"sr:stage:2":             TypeGroupStage,
		"sr:race_stage:3":        TypeGroupStage,
		"sr:tournament:4":        TypeGroupTournament,
		"sr:simple_tournament:5": TypeGroupBasicTournament,
		"sr:season:6":            TypeGroupSeason,
		"wns:draw:7":             TypeGroupDraw,
		"wns:lottery:8":          TypeGroupLottery,
		"sr:player:9":            TypeGroupOther,
	}
	for s, want := range cases {
		if got := MustParseURN(s).TypeGroup(); got != want {
			t.Errorf("TypeGroup(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestDtoTypeSet(t *testing.T) {
	s := NewDtoTypeSet(DtoTypeFixture, DtoTypeMatchSummary)
	if !s.Contains(DtoTypeFixture) {
		t.Error("expected fixture to be declared")
	}
	if s.Contains(DtoTypeCategory) {
		t.Error("category should not be declared")
	}
	if len(NewDtoTypeSet()) != 0 {
		t.Error("empty set expected")
	}
}
