// cmd/demo/main.go
package main

import (
	"fmt"
	"log"

	"github.com/Corphon/GameStoryMCP/internal/models"
	"github.com/Corphon/GameStoryMCP/internal/services"
)

// scriptedPlay 演示用的脚本化回合：点分值自动折算成累计比分
type scriptedPlay struct {
	period int
	clock  string
	team   string // "home" / "away" / ""（中性事件）
	points int
	player string
	desc   string
}

func main() {
	fmt.Println("🚀 GameStoryMCP 管线演示")
	fmt.Println("================================")

	meta := models.GameMeta{
		GameID:       900001,
		Sport:        "basketball",
		HomeTeamName: "Riverton Hawks",
		AwayTeamName: "Bayview Comets",
	}
	plays := buildDemoPlays(meta)
	fmt.Printf("合成比赛: %s vs %s, %d 条回合事件\n\n",
		meta.HomeTeamName, meta.AwayTeamName, len(plays))

	story := newDemoPipeline()

	result, err := story.BuildGameStory(meta, plays)
	if err != nil {
		log.Fatalf("❌ 管线构建失败: %v", err)
	}

	printOutline(result)
}

// newDemoPipeline 手工组装确定性管线（不走 DI 容器，不触达渲染器与归档）
func newDemoPipeline() *services.StoryService {
	detectorCfg := services.DefaultDetectorConfig()
	windows := services.NewWindowService(detectorCfg)
	stats := services.NewStatsService()

	return services.NewStoryService(
		services.NewChapterService(services.DefaultChapterConfig()),
		windows,
		stats,
		services.NewBeatService(detectorCfg),
		services.NewSectionService(windows),
		services.NewCoverageService(),
		services.NewQualityService(),
		services.NewContextService(stats),
		services.NewQAService(services.DefaultQAConfig()),
		services.NewEmptyLLMService(),
		services.NewProgressService(),
		nil,
	)
}

func printOutline(result *services.BuildResult) {
	story := result.Story

	fmt.Printf("章节数: %d  段落数: %d  质量档位: %s  目标字数: %d (%d-%d)\n",
		story.ChapterCount, len(result.Sections),
		result.Quality, result.Length.TargetWords, result.Length.MinWords, result.Length.MaxWords)
	fmt.Printf("信号: 得分事件=%d 领先易主=%d 最大分差=%d 加时=%v\n",
		result.Signals.ScoringEvents, result.Signals.LeadChanges,
		result.Signals.MaxMargin, result.Signals.Overtime)
	fmt.Printf("阅读时长估算: %d 分钟\n", story.ReadingTimeEstimateMinutes)
	fmt.Printf("指纹: %s\n\n", result.Fingerprint)

	fmt.Println("--- 章节 ---")
	for i, cc := range result.Chapters {
		ch := cc.Chapter
		end := ch.EndScore()
		fmt.Printf("%2d. %-14s Q%d  回合 %d-%d  比分 %d-%d  原因 %v\n",
			i+1, cc.Beat, ch.Period, ch.PlayStartIdx, ch.PlayEndIdx,
			end.Home, end.Away, ch.ReasonCodes)
	}

	fmt.Println("\n--- 段落 ---")
	for _, sec := range result.Sections {
		fmt.Printf("%2d. %-22s %-14s 章节x%d  %d-%d → %d-%d",
			sec.SectionIndex+1, sec.Header, sec.BeatType, sec.ChapterCount(),
			sec.StartScore.Home, sec.StartScore.Away,
			sec.EndScore.Home, sec.EndScore.Away)
		if len(sec.Notes) > 0 {
			fmt.Printf("  notes=%v", sec.Notes)
		}
		fmt.Println()
	}

	final := story.FinalScore()
	fmt.Printf("\n终场: %d-%d", final.Home, final.Away)
	if story.HadOvertime() {
		fmt.Print(" (加时)")
	}
	fmt.Println()
	fmt.Printf("\n%s\n", story.CompactStory)
	fmt.Println("✅ 演示完成")
}

// buildDemoPlays 生成一场脚本化比赛：开局拉锯、次节主队打出一波流、
// 末节分差收窄进入关键时刻，最后两分钟完成绝杀
func buildDemoPlays(meta models.GameMeta) []models.Play {
	script := []scriptedPlay{
		// 第一节：互有攻守的开局
		{1, "11:24", "home", 2, "D. Whitfield", "layup in the paint"},
		{1, "10:51", "away", 3, "M. Okafor", "three pointer from the wing"},
		{1, "10:02", "home", 2, "T. Barrera", "mid-range jumper"},
		{1, "09:15", "away", 2, "J. Lindqvist", "fast break dunk"},
		{1, "08:30", "home", 3, "D. Whitfield", "pull-up three"},
		{1, "07:44", "away", 2, "M. Okafor", "turnaround jumper"},
		{1, "06:58", "", 0, "", "Comets full timeout"},
		{1, "06:20", "home", 2, "R. Castellanos", "putback off the offensive rebound"},
		{1, "05:31", "away", 3, "K. Draper", "corner three"},
		{1, "04:12", "home", 2, "T. Barrera", "driving layup"},
		{1, "03:05", "away", 2, "J. Lindqvist", "hook shot"},
		{1, "01:48", "home", 1, "D. Whitfield", "free throw"},
		{1, "00:40", "away", 2, "M. Okafor", "baseline floater"},

		// 第二节：主队的一波 10-0
		{2, "11:10", "home", 3, "D. Whitfield", "catch-and-shoot three"},
		{2, "10:22", "home", 2, "R. Castellanos", "alley-oop finish"},
		{2, "09:37", "home", 3, "T. Barrera", "step-back three"},
		{2, "08:50", "home", 2, "D. Whitfield", "transition layup"},
		{2, "08:12", "", 0, "", "Comets full timeout to stop the run"},
		{2, "07:25", "away", 2, "K. Draper", "jumper off the screen"},
		{2, "06:02", "home", 2, "T. Barrera", "floater in the lane"},
		{2, "04:48", "away", 3, "M. Okafor", "deep three"},
		{2, "03:16", "home", 2, "R. Castellanos", "post move"},
		{2, "01:52", "away", 2, "J. Lindqvist", "cutting layup"},
		{2, "00:29", "home", 2, "D. Whitfield", "buzzer-beating drive"},

		// 第三节：客队回敬一波追分
		{3, "11:02", "away", 3, "M. Okafor", "wing three"},
		{3, "10:15", "away", 2, "K. Draper", "steal and score"},
		{3, "09:28", "away", 3, "J. Lindqvist", "top of the key three"},
		{3, "08:44", "", 0, "", "Hawks full timeout"},
		{3, "07:50", "home", 2, "T. Barrera", "post fadeaway"},
		{3, "06:33", "away", 2, "M. Okafor", "and-one layup"},
		{3, "05:10", "home", 3, "D. Whitfield", "contested three"},
		{3, "03:42", "away", 2, "K. Draper", "pick-and-roll finish"},
		{3, "02:18", "home", 2, "R. Castellanos", "dunk in traffic"},
		{3, "00:55", "away", 2, "J. Lindqvist", "elbow jumper"},

		// 第四节：分差收窄，进入关键时刻
		{4, "10:40", "away", 3, "M. Okafor", "heat-check three"},
		{4, "09:20", "home", 2, "T. Barrera", "baseline drive"},
		{4, "07:55", "away", 2, "K. Draper", "mid-range pull-up"},
		{4, "06:30", "home", 2, "D. Whitfield", "spin move layup"},
		{4, "05:12", "away", 3, "J. Lindqvist", "go-ahead three"},
		{4, "04:30", "", 0, "", "officials review the shot clock violation"},
		{4, "03:58", "home", 2, "R. Castellanos", "tip-in"},
		{4, "03:01", "away", 2, "M. Okafor", "isolation jumper"},
		{4, "02:20", "home", 3, "D. Whitfield", "clutch three to tie"},
		{4, "01:33", "away", 2, "K. Draper", "floater over the double team"},
		{4, "00:48", "home", 2, "T. Barrera", "strong drive to tie it again"},
		{4, "00:04", "home", 2, "D. Whitfield", "game-winning fadeaway at the buzzer"},
	}

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
