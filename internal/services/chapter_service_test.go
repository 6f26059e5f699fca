package services

import (
	"testing"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

func TestBuildChapters_EmptyTimeline(t *testing.T) {
	svc := NewChapterService(DefaultChapterConfig())
	if _, err := svc.BuildChapters(nil); !apperrors.IsStructural(err) {
		t.Fatalf("BuildChapters(nil) = %v, want structural error", err)
	}
}

func TestBuildChapters_FullCoverage(t *testing.T) {
	svc := NewChapterService(DefaultChapterConfig())
	plays := fixturePlays()

	chapters, err := svc.BuildChapters(plays)
	if err != nil {
		t.Fatalf("BuildChapters() = %v, want nil", err)
	}
	if len(chapters) == 0 {
		t.Fatal("BuildChapters() returned no chapters")
	}

	// 首章从首个回合开始，相邻章节无缝衔接，末章收在最后一个回合
	if chapters[0].PlayStartIdx != plays[0].Index {
		t.Errorf("first chapter starts at %d, want %d", chapters[0].PlayStartIdx, plays[0].Index)
	}
	for i := 1; i < len(chapters); i++ {
		if chapters[i].PlayStartIdx != chapters[i-1].PlayEndIdx+1 {
			t.Errorf("gap between chapter %d and %d: %d != %d+1",
				i-1, i, chapters[i].PlayStartIdx, chapters[i-1].PlayEndIdx)
		}
	}
	last := chapters[len(chapters)-1]
	if last.PlayEndIdx != plays[len(plays)-1].Index {
		t.Errorf("last chapter ends at %d, want %d", last.PlayEndIdx, plays[len(plays)-1].Index)
	}

	covered := 0
	for _, c := range chapters {
		covered += c.PlayCount()
	}
	if covered != len(plays) {
		t.Errorf("chapters cover %d plays, want %d", covered, len(plays))
	}
}

func TestBuildChapters_BoundaryReasons(t *testing.T) {
	svc := NewChapterService(DefaultChapterConfig())
	chapters, err := svc.BuildChapters(fixturePlays())
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}

	hasReason := func(r models.BoundaryReason) bool {
		for _, c := range chapters {
			if c.HasReason(r) {
				return true
			}
		}
		return false
	}

	if !chapters[0].HasReason(models.ReasonPeriodStart) {
		t.Errorf("first chapter reasons = %v, want PERIOD_START", chapters[0].ReasonCodes)
	}
	if !chapters[len(chapters)-1].HasReason(models.ReasonGameEnd) {
		t.Errorf("last chapter reasons = %v, want GAME_END",
			chapters[len(chapters)-1].ReasonCodes)
	}
	for _, r := range []models.BoundaryReason{
		models.ReasonTimeout,
		models.ReasonPeriodEnd,
		models.ReasonCrunchTimeEntered,
	} {
		if !hasReason(r) {
			t.Errorf("no chapter carries %s", r)
		}
	}

	// 关键时刻入口只触发一次
	crunch := 0
	for _, c := range chapters {
		if c.HasReason(models.ReasonCrunchTimeEntered) {
			crunch++
		}
	}
	if crunch != 1 {
		t.Errorf("CRUNCH_TIME_ENTERED fired %d times, want 1", crunch)
	}
}

func TestBuildChapters_OvertimeBoundary(t *testing.T) {
	meta := fixtureMeta()
	script := []scriptedPlay{
		{4, "01:00", "home", 2, "A One", "jumper"},
		{4, "00:10", "away", 2, "B Two", "layup"},
		{5, "04:50", "home", 3, "A One", "three"},
		{5, "00:20", "home", 2, "A One", "drive"},
	}
	svc := NewChapterService(DefaultChapterConfig())
	chapters, err := svc.BuildChapters(playsFromScript(meta, script))
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}
	found := false
	for _, c := range chapters {
		if c.HasReason(models.ReasonOvertimeStart) {
			found = true
			if c.Period != 5 {
				t.Errorf("overtime chapter period = %d, want 5", c.Period)
			}
		}
	}
	if !found {
		t.Fatal("no chapter carries OVERTIME_START")
	}
}

func TestBuildChapters_ResetClusterCollapses(t *testing.T) {
	meta := fixtureMeta()
	script := []scriptedPlay{
		{1, "11:00", "home", 2, "A One", "jumper"},
		{1, "10:30", "away", 2, "B Two", "layup"},
		{1, "10:00", "", 0, "", "Hawks full timeout"},
		{1, "10:00", "", 0, "", "officials review the call"},
		{1, "09:40", "home", 3, "A One", "three"},
		{1, "08:50", "away", 2, "B Two", "dunk"},
	}
	svc := NewChapterService(DefaultChapterConfig())
	chapters, err := svc.BuildChapters(playsFromScript(meta, script))
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}

	// 折叠窗口内的连续重置只发出一个边界
	resets := 0
	for _, c := range chapters {
		if c.HasReason(models.ReasonTimeout) || c.HasReason(models.ReasonOfficialReview) {
			resets++
		}
	}
	if resets != 1 {
		t.Errorf("reset boundaries = %d, want 1 (cluster collapsed)", resets)
	}
}

func TestBuildChapters_Deterministic(t *testing.T) {
	svc := NewChapterService(DefaultChapterConfig())
	plays := fixturePlays()

	first, err := svc.BuildChapters(plays)
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}
	second, err := svc.BuildChapters(plays)
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}
	if Fingerprint(first) != Fingerprint(second) {
		t.Error("same timeline produced different chapter fingerprints")
	}
}
