package services

import (
	"testing"

	"github.com/Corphon/GameStoryMCP/internal/models"
)

func fixtureSnapshots(t *testing.T) ([]models.Chapter, []StatSnapshot) {
	t.Helper()
	chapters, err := NewChapterService(DefaultChapterConfig()).BuildChapters(fixturePlays())
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}
	return chapters, NewStatsService().BuildSnapshots(chapters)
}

func TestBuildSnapshots_OnePerChapter(t *testing.T) {
	chapters, snapshots := fixtureSnapshots(t)
	if len(snapshots) != len(chapters) {
		t.Fatalf("BuildSnapshots() = %d snapshots, want %d", len(snapshots), len(chapters))
	}
	for i, snap := range snapshots {
		if snap.ThroughChapterIndex != i {
			t.Errorf("snapshot %d through = %d, want %d", i, snap.ThroughChapterIndex, i)
		}
		if snap.Score != chapters[i].EndScore() {
			t.Errorf("snapshot %d score = %+v, want %+v", i, snap.Score, chapters[i].EndScore())
		}
	}
}

func TestBuildSnapshots_CumulativeAndMonotonic(t *testing.T) {
	_, snapshots := fixtureSnapshots(t)
	for i := 1; i < len(snapshots); i++ {
		prev, cur := snapshots[i-1], snapshots[i]
		if cur.Score.Home < prev.Score.Home || cur.Score.Away < prev.Score.Away {
			t.Errorf("snapshot %d score regressed: %+v -> %+v", i, prev.Score, cur.Score)
		}
		if cur.ScoringPlays < prev.ScoringPlays {
			t.Errorf("snapshot %d scoring plays regressed", i)
		}
		for key, pts := range prev.PlayerPoints {
			if cur.PlayerPoints[key] < pts {
				t.Errorf("snapshot %d player %s points regressed: %d -> %d",
					i, key, pts, cur.PlayerPoints[key])
			}
		}
	}
}

func TestBuildSnapshots_SnapshotsAreIsolated(t *testing.T) {
	_, snapshots := fixtureSnapshots(t)
	if len(snapshots) < 2 {
		t.Skip("fixture produced too few chapters")
	}
	// 早期快照不随后续章节的累计而变化：球员得分合计等于该时刻的比分合计
	first := snapshots[0]
	firstTotal := 0
	for _, pts := range first.PlayerPoints {
		firstTotal += pts
	}
	if firstTotal != first.Score.Home+first.Score.Away {
		t.Errorf("first snapshot player points total %d != score total %d",
			firstTotal, first.Score.Home+first.Score.Away)
	}
}

func TestTopScorers_OrderAndTieBreak(t *testing.T) {
	svc := NewStatsService()
	snap := emptySnapshot(0)
	snap.PlayerPoints = map[string]int{
		"c. zeta": 10, "a. alpha": 10, "b. beta": 21, "d. delta": 4,
	}
	snap.PlayerNames = map[string]string{
		"c. zeta": "C. Zeta", "a. alpha": "A. Alpha", "b. beta": "B. Beta", "d. delta": "D. Delta",
	}

	got := svc.TopScorers(snap, 3)
	if len(got) != 3 {
		t.Fatalf("TopScorers() = %d entries, want 3", len(got))
	}
	if got[0].Name != "B. Beta" || got[0].Points != 21 {
		t.Errorf("top scorer = %+v, want B. Beta 21", got[0])
	}
	// 同分按规范化键升序，保证确定性
	if got[1].Name != "A. Alpha" || got[2].Name != "C. Zeta" {
		t.Errorf("tie break order = %s, %s, want A. Alpha then C. Zeta", got[1].Name, got[2].Name)
	}
}

func TestSectionDelta(t *testing.T) {
	_, snapshots := fixtureSnapshots(t)
	if len(snapshots) < 3 {
		t.Skip("fixture produced too few chapters")
	}
	svc := NewStatsService()

	delta := svc.SectionDelta(snapshots, 1, 2)
	wantHome := snapshots[2].Score.Home - snapshots[0].Score.Home
	wantAway := snapshots[2].Score.Away - snapshots[0].Score.Away
	if delta.Points.Home != wantHome || delta.Points.Away != wantAway {
		t.Errorf("SectionDelta points = %+v, want %d-%d", delta.Points, wantHome, wantAway)
	}
	if delta.ScoringPlays != snapshots[2].ScoringPlays-snapshots[0].ScoringPlays {
		t.Errorf("SectionDelta scoring plays = %d", delta.ScoringPlays)
	}

	// 从首章开始的区间以空基线计算
	full := svc.SectionDelta(snapshots, 0, len(snapshots)-1)
	last := snapshots[len(snapshots)-1]
	if full.Points != last.Score {
		t.Errorf("full-range delta = %+v, want %+v", full.Points, last.Score)
	}
}
