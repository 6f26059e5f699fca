package services

import (
	"strings"
	"testing"

	"github.com/Corphon/GameStoryMCP/internal/models"
)

// 测试夹具：一场脚本化的完整比赛，四节 + 关键时刻收尾
// 所有脚本条目按点分值折算成累计比分，保证时间线单调合法

type scriptedPlay struct {
	period int
	clock  string
	team   string // "home" / "away" / ""
	points int
	player string
	desc   string
}

func fixtureMeta() models.GameMeta {
	return models.GameMeta{
		GameID:       42,
		Sport:        "basketball",
		HomeTeamName: "Riverton Hawks",
		AwayTeamName: "Bayview Comets",
	}
}

func playsFromScript(meta models.GameMeta, script []scriptedPlay) []models.Play {
	plays := make([]models.Play, 0, len(script))
	home, away := 0, 0
	for i, sp := range script {
		switch sp.team {
		case "home":
			home += sp.points
		case "away":
			away += sp.points
		}
		teamName := ""
		switch sp.team {
		case "home":
			teamName = meta.HomeTeamName
		case "away":
			teamName = meta.AwayTeamName
		}
		plays = append(plays, models.Play{
			Index:       i + 1,
			EventType:   models.EventTypePlayByPlay,
			Period:      sp.period,
			GameClock:   sp.clock,
			Description: sp.desc,
			Team:        teamName,
			HomeScore:   home,
			AwayScore:   away,
			PlayerName:  sp.player,
		})
	}
	return plays
}

func fixturePlays() []models.Play {
	script := []scriptedPlay{
		{1, "11:20", "home", 2, "D. Whitfield", "layup"},
		{1, "10:40", "away", 3, "M. Okafor", "three pointer"},
		{1, "09:55", "home", 2, "T. Barrera", "jumper"},
		{1, "09:10", "away", 2, "J. Lindqvist", "dunk"},
		{1, "08:20", "home", 3, "D. Whitfield", "pull-up three"},
		{1, "07:35", "", 0, "", "Comets full timeout"},
		{1, "06:50", "away", 2, "M. Okafor", "floater"},
		{1, "05:10", "home", 2, "R. Castellanos", "putback"},
		{1, "03:30", "away", 3, "K. Draper", "corner three"},
		{1, "01:15", "home", 2, "T. Barrera", "drive"},

		{2, "11:00", "home", 3, "D. Whitfield", "catch-and-shoot three"},
		{2, "10:10", "home", 2, "R. Castellanos", "alley-oop"},
		{2, "09:20", "home", 3, "T. Barrera", "step-back three"},
		{2, "08:40", "", 0, "", "Comets full timeout"},
		{2, "07:50", "away", 2, "K. Draper", "jumper"},
		{2, "06:10", "home", 2, "T. Barrera", "floater"},
		{2, "04:30", "away", 3, "M. Okafor", "deep three"},
		{2, "02:40", "home", 2, "R. Castellanos", "post move"},
		{2, "00:35", "away", 2, "J. Lindqvist", "layup"},

		{3, "10:50", "away", 3, "M. Okafor", "wing three"},
		{3, "09:40", "away", 2, "K. Draper", "steal and score"},
		{3, "08:55", "away", 3, "J. Lindqvist", "three"},
		{3, "07:30", "home", 2, "T. Barrera", "fadeaway"},
		{3, "05:40", "away", 2, "M. Okafor", "and-one layup"},
		{3, "03:20", "home", 3, "D. Whitfield", "contested three"},
		{3, "01:05", "away", 2, "J. Lindqvist", "jumper"},

		{4, "10:30", "away", 3, "M. Okafor", "three"},
		{4, "08:45", "home", 2, "T. Barrera", "drive"},
		{4, "06:50", "away", 2, "K. Draper", "pull-up"},
		{4, "04:40", "home", 2, "D. Whitfield", "spin layup"},
		{4, "03:10", "away", 3, "J. Lindqvist", "go-ahead three"},
		{4, "02:25", "home", 2, "R. Castellanos", "tip-in"},
		{4, "01:30", "home", 3, "D. Whitfield", "clutch three"},
		{4, "00:40", "away", 2, "K. Draper", "floater"},
		{4, "00:03", "home", 3, "D. Whitfield", "game-winning three"},
	}
	return playsFromScript(fixtureMeta(), script)
}

func newTestPipeline(renderer Renderer) *StoryService {
	detectorCfg := DefaultDetectorConfig()
	windows := NewWindowService(detectorCfg)
	stats := NewStatsService()

	return NewStoryService(
		NewChapterService(DefaultChapterConfig()),
		windows,
		stats,
		NewBeatService(detectorCfg),
		NewSectionService(windows),
		NewCoverageService(),
		NewQualityService(),
		NewContextService(stats),
		NewQAService(DefaultQAConfig()),
		renderer,
		NewProgressService(),
		nil,
	)
}

func fixtureBuild(t *testing.T) *BuildResult {
	t.Helper()
	svc := newTestPipeline(nil)
	result, err := svc.BuildGameStory(fixtureMeta(), fixturePlays())
	if err != nil {
		t.Fatalf("BuildGameStory() = %v, want nil", err)
	}
	return result
}

// neutralNarrative 生成指定词数、不含大写实体与数字的渲染产物
// 用于在不触发实体/数字/比分质检的情况下测试生成流程
func neutralNarrative(words int) string {
	return strings.TrimSpace(strings.Repeat("the ball kept moving ", (words+3)/4))
}
