package models

import "testing"

func validPlay(idx int) Play {
	return Play{
		Index:     idx,
		EventType: EventTypePlayByPlay,
		Period:    1,
		GameClock: "10:00",
		HomeScore: 0,
		AwayScore: 0,
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		clock string
		secs  int
		ok    bool
	}{
		{"11:24", 684, true},
		{"00:00", 0, true},
		{"0:05", 5, true},
		{"12:00", 720, true},
		{"", 0, false},
		{"12", 0, false},
		{"ab:cd", 0, false},
		{"10:75", 0, false},
		{"-1:30", 0, false},
	}
	for _, tt := range tests {
		secs, ok := ParseClock(tt.clock)
		if secs != tt.secs || ok != tt.ok {
			t.Errorf("ParseClock(%q) = (%d, %v), want (%d, %v)", tt.clock, secs, ok, tt.secs, tt.ok)
		}
	}
}

func TestScoreLeaderAndMargin(t *testing.T) {
	tests := []struct {
		score  Score
		leader string
		margin int
	}{
		{Score{Home: 10, Away: 8}, "home", 2},
		{Score{Home: 3, Away: 9}, "away", -6},
		{Score{Home: 7, Away: 7}, "", 0},
	}
	for _, tt := range tests {
		if got := tt.score.Leader(); got != tt.leader {
			t.Errorf("Score%v.Leader() = %q, want %q", tt.score, got, tt.leader)
		}
		if got := tt.score.Margin(); got != tt.margin {
			t.Errorf("Score%v.Margin() = %d, want %d", tt.score, got, tt.margin)
		}
	}
}

func TestValidatePlays(t *testing.T) {
	t.Run("empty timeline is rejected", func(t *testing.T) {
		if err := ValidatePlays(nil); err == nil {
			t.Fatal("ValidatePlays(nil) = nil, want structural error")
		}
	})

	t.Run("valid consecutive plays", func(t *testing.T) {
		plays := []Play{validPlay(5), validPlay(6), validPlay(7)}
		if err := ValidatePlays(plays); err != nil {
			t.Fatalf("ValidatePlays() = %v, want nil", err)
		}
	})

	t.Run("non-consecutive index is rejected", func(t *testing.T) {
		plays := []Play{validPlay(1), validPlay(3)}
		if err := ValidatePlays(plays); err == nil {
			t.Fatal("ValidatePlays() = nil, want error for index gap")
		}
	})

	t.Run("score regression is rejected", func(t *testing.T) {
		a := validPlay(1)
		a.HomeScore = 10
		b := validPlay(2)
		b.HomeScore = 8
		if err := ValidatePlays([]Play{a, b}); err == nil {
			t.Fatal("ValidatePlays() = nil, want error for score regression")
		}
	})

	t.Run("unsupported event type is rejected", func(t *testing.T) {
		p := validPlay(1)
		p.EventType = "substitution"
		if err := ValidatePlays([]Play{p}); err == nil {
			t.Fatal("ValidatePlays() = nil, want error for event type")
		}
	})

	t.Run("bad clock is rejected", func(t *testing.T) {
		p := validPlay(1)
		p.GameClock = "99:99"
		if err := ValidatePlays([]Play{p}); err == nil {
			t.Fatal("ValidatePlays() = nil, want error for clock format")
		}
	})
}

func TestValidateGameMeta(t *testing.T) {
	meta := GameMeta{GameID: 1, Sport: "basketball", HomeTeamName: "A", AwayTeamName: "B"}
	if err := ValidateGameMeta(meta); err != nil {
		t.Fatalf("ValidateGameMeta() = %v, want nil", err)
	}

	bad := meta
	bad.GameID = 0
	if err := ValidateGameMeta(bad); err == nil {
		t.Error("ValidateGameMeta() with game_id=0 = nil, want error")
	}

	bad = meta
	bad.HomeTeamName = ""
	if err := ValidateGameMeta(bad); err == nil {
		t.Error("ValidateGameMeta() with empty team name = nil, want error")
	}
}

func TestNormalizePlayerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LeBron James", "lebron james"},
		{"  Stephen Curry ", "stephen curry"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePlayerName(tt.in); got != tt.want {
			t.Errorf("NormalizePlayerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSortReasonCodes(t *testing.T) {
	in := []BoundaryReason{ReasonTimeout, ReasonPeriodStart, ReasonTimeout, ReasonGameEnd}
	got := SortReasonCodes(in)
	want := []BoundaryReason{ReasonGameEnd, ReasonPeriodStart, ReasonTimeout}
	if len(got) != len(want) {
		t.Fatalf("SortReasonCodes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortReasonCodes() = %v, want %v", got, want)
		}
	}
}

func TestLengthTargetFor(t *testing.T) {
	tests := []struct {
		tier   QualityTier
		target int
		min    int
		max    int
	}{
		{QualityLow, 450, 400, 500},
		{QualityMedium, 550, 500, 620},
		{QualityHigh, 700, 620, 800},
		{"bogus", 550, 500, 620}, // 未知档位回落到 MEDIUM
	}
	for _, tt := range tests {
		got := LengthTargetFor(tt.tier)
		if got.TargetWords != tt.target || got.MinWords != tt.min || got.MaxWords != tt.max {
			t.Errorf("LengthTargetFor(%s) = %+v, want {%d %d %d}",
				tt.tier, got, tt.target, tt.min, tt.max)
		}
	}
}

func TestReadingTimeMinutes(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{200, 1},
		{201, 2},
		{550, 3},
		{700, 4},
	}
	for _, tt := range tests {
		if got := ReadingTimeMinutes(tt.words); got != tt.want {
			t.Errorf("ReadingTimeMinutes(%d) = %d, want %d", tt.words, got, tt.want)
		}
	}
}

func TestBeatTypeCrunchTier(t *testing.T) {
	crunch := []BeatType{BeatCrunchSetup, BeatClosingSequence, BeatOvertime}
	for _, b := range crunch {
		if !b.IsCrunchTier() {
			t.Errorf("%s.IsCrunchTier() = false, want true", b)
		}
	}
	for _, b := range []BeatType{BeatFastStart, BeatRun, BeatBackAndForth, BeatStall} {
		if b.IsCrunchTier() {
			t.Errorf("%s.IsCrunchTier() = true, want false", b)
		}
	}
}

func TestIsValidBeatType(t *testing.T) {
	for _, b := range AllBeatTypes() {
		if !IsValidBeatType(b) {
			t.Errorf("IsValidBeatType(%s) = false, want true", b)
		}
	}
	if IsValidBeatType("RUN_AND_RESPONSE") {
		t.Error("IsValidBeatType accepted a composite beat")
	}
}
