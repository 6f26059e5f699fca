// internal/services/context_service.go
package services

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// PriorSummaryWindow 逐章输入中历史摘要的尾部窗口大小
// 载荷 = 首章摘要 + 最近 K 章摘要
const PriorSummaryWindow = 3

// ContextService 因果上下文构建器
// 为逐章生成准备严格无未来知识的状态与载荷；
// 任何把未来信息塞进状态/载荷的尝试都按策略违规报错
type ContextService struct {
	stats *StatsService
}

// NewContextService 创建上下文构建服务
func NewContextService(stats *StatsService) *ContextService {
	return &ContextService{stats: stats}
}

// BuildStoryState 从已处理的前 processed 章整体重建故事状态
// processed=0 表示比赛尚未开始叙述，所有派生字段为空
func (s *ContextService) BuildStoryState(chapters []ClassifiedChapter, snapshots []StatSnapshot, processed int) (models.StoryState, error) {
	if processed < 0 || processed > len(chapters) || processed > len(snapshots) {
		return models.StoryState{}, apperrors.NewPolicyViolationError(
			fmt.Sprintf("已处理章节数 %d 超出合法范围 [0,%d]", processed, len(chapters)), nil)
	}

	state := models.StoryState{
		ChapterIndexLastProcessed: processed - 1,
		Players:                   []models.PlayerStanding{},
		Teams:                     []string{},
		MomentumHint:              models.MomentumUnknown,
		ThemeTags:                 []string{},
		Constraints: models.StateConstraints{
			NoFutureKnowledge: true,
			Source:            models.StateSourcePriorChaptersOnly,
		},
	}
	if processed == 0 {
		return state, nil
	}

	snap := snapshots[processed-1]
	state.Players = s.stats.TopScorers(snap, models.MaxStatePlayers)
	state.Teams = teamsFromSnapshot(snap)
	state.MomentumHint = s.momentumHint(chapters[:processed], snapshots[:processed])
	state.ThemeTags = themeTags(chapters[:processed])
	return state, nil
}

// momentumHint 势头提示（只看已处理章节）
// 规则按优先级：末章领先易主≥2 → VOLATILE；末章净胜分摆动≥6 → SURGING；
// 当前领先方在末章被净赢≥4 → SLIPPING；其余 → STEADY
func (s *ContextService) momentumHint(chapters []ClassifiedChapter, snapshots []StatSnapshot) models.MomentumHint {
	last := len(chapters) - 1
	lastSnap := snapshots[last]

	prevSnap := emptySnapshot(-1)
	if last > 0 {
		prevSnap = snapshots[last-1]
	}

	if lastSnap.LeadChanges-prevSnap.LeadChanges >= 2 {
		return models.MomentumVolatile
	}

	homeDelta := lastSnap.Score.Home - prevSnap.Score.Home
	awayDelta := lastSnap.Score.Away - prevSnap.Score.Away
	swing := homeDelta - awayDelta
	if swing < 0 {
		swing = -swing
	}
	if swing >= 6 {
		return models.MomentumSurging
	}

	leader := lastSnap.Score.Leader()
	if leader == "home" && awayDelta-homeDelta >= 4 {
		return models.MomentumSlipping
	}
	if leader == "away" && homeDelta-awayDelta >= 4 {
		return models.MomentumSlipping
	}

	return models.MomentumSteady
}

// themeTags 从已处理章节的节拍派生主题标签，去重且保持首次出现顺序
func themeTags(chapters []ClassifiedChapter) []string {
	tags := make([]string, 0, models.MaxThemeTags)
	seen := make(map[string]bool)
	add := func(tag string) {
		if tag == "" || seen[tag] || len(tags) >= models.MaxThemeTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	for _, cc := range chapters {
		switch cc.Beat {
		case models.BeatFastStart, models.BeatEarlyControl:
			add("hot-start")
		case models.BeatRun:
			add("momentum-swings")
		case models.BeatResponse:
			add("answered-runs")
		case models.BeatBackAndForth:
			add("trading-blows")
		case models.BeatMissedShotFest:
			add("defensive-struggle")
		case models.BeatStall:
			add("cold-stretches")
		case models.BeatCrunchSetup, models.BeatClosingSequence:
			add("clutch-time")
		case models.BeatOvertime:
			add("overtime-drama")
		}
	}
	return tags
}

// teamsFromSnapshot 快照中出现过的队名，排序保证确定性
func teamsFromSnapshot(snap StatSnapshot) []string {
	seen := make(map[string]bool)
	for _, team := range snap.PlayerTeams {
		if team != "" {
			seen[team] = true
		}
	}
	for team := range snap.TeamFouls {
		seen[team] = true
	}
	for team := range snap.Timeouts {
		seen[team] = true
	}
	teams := make([]string, 0, len(seen))
	for team := range seen {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

// BuildChapterInput 组装第 chapterIdx 章的渲染载荷
// 历史摘要窗口 = 首章 + 最近 PriorSummaryWindow 章；
// 任何对第 chapterIdx 章或之后的引用都是策略违规
func (s *ContextService) BuildChapterInput(
	meta models.GameMeta,
	chapters []ClassifiedChapter,
	sections []models.StorySection,
	state models.StoryState,
	summaries []models.ChapterSummary,
	target models.LengthTarget,
	chapterIdx int,
) (models.ChapterAIInput, error) {
	if chapterIdx < 0 || chapterIdx >= len(chapters) {
		return models.ChapterAIInput{}, apperrors.NewPolicyViolationError(
			fmt.Sprintf("章节索引 %d 越界 [0,%d)", chapterIdx, len(chapters)), nil)
	}
	if state.ChapterIndexLastProcessed >= chapterIdx {
		return models.ChapterAIInput{}, apperrors.NewPolicyViolationError(
			fmt.Sprintf("状态已包含第 %d 章之后的信息 (last_processed=%d)",
				chapterIdx, state.ChapterIndexLastProcessed), nil)
	}
	for _, sum := range summaries {
		if sum.ChapterIndex >= chapterIdx {
			return models.ChapterAIInput{}, apperrors.NewPolicyViolationError(
				fmt.Sprintf("摘要 %s (index=%d) 泄露了第 %d 章的未来信息",
					sum.ChapterID, sum.ChapterIndex, chapterIdx), nil)
		}
	}

	cc := chapters[chapterIdx]
	return models.ChapterAIInput{
		Meta:           meta,
		ChapterIndex:   chapterIdx,
		Chapter:        cc.Chapter,
		Beat:           cc.Beat,
		SectionHeader:  sectionHeaderFor(sections, cc.Chapter.ChapterID),
		State:          state,
		PriorSummaries: summaryWindow(summaries),
		TargetWords:    target.TargetWords,
	}, nil
}

// BuildBookInput 组装全书渲染载荷：要求每一章都已有摘要
func (s *ContextService) BuildBookInput(
	meta models.GameMeta,
	story models.GameStory,
	sections []models.StorySection,
	summaries []models.ChapterSummary,
	tier models.QualityTier,
	target models.LengthTarget,
) (models.BookAIInput, error) {
	if len(summaries) != len(story.Chapters) {
		return models.BookAIInput{}, apperrors.NewPolicyViolationError(
			fmt.Sprintf("全书模式要求全部 %d 章均有摘要，实际 %d",
				len(story.Chapters), len(summaries)), nil)
	}
	return models.BookAIInput{
		Meta:         meta,
		Summaries:    summaries,
		Sections:     sections,
		CompactStory: story.CompactStory,
		Quality:      tier,
		TargetWords:  target.TargetWords,
		FinalScore:   story.FinalScore(),
		Overtime:     story.HadOvertime(),
	}, nil
}

// SummarizeChapter 完全由结构化数据派生的单章摘要，不依赖渲染产物
func (s *ContextService) SummarizeChapter(cc ClassifiedChapter, chapterIdx int) models.ChapterSummary {
	end := cc.Chapter.EndScore()
	pts := (end.Home - cc.EnteringScore.Home) + (end.Away - cc.EnteringScore.Away)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d plays, %d points",
		beatPhrase(cc.Beat), cc.Chapter.PlayCount(), pts)

	events := ScoringEvents(cc.Chapter.Plays, cc.EnteringScore)
	if top := topChapterScorer(events); top != "" {
		fmt.Fprintf(&b, ", led by %s", top)
	}
	fmt.Fprintf(&b, "; score %d-%d", end.Home, end.Away)

	return models.ChapterSummary{
		ChapterIndex: chapterIdx,
		ChapterID:    cc.Chapter.ChapterID,
		Beat:         cc.Beat,
		Summary:      b.String(),
		EndScore:     end,
	}
}

// summaryWindow 首章摘要 + 最近 PriorSummaryWindow 章摘要
func summaryWindow(summaries []models.ChapterSummary) []models.ChapterSummary {
	if len(summaries) <= PriorSummaryWindow+1 {
		return append([]models.ChapterSummary{}, summaries...)
	}
	window := make([]models.ChapterSummary, 0, PriorSummaryWindow+1)
	window = append(window, summaries[0])
	window = append(window, summaries[len(summaries)-PriorSummaryWindow:]...)
	return window
}

// sectionHeaderFor 找到包含指定章节的段落标题，找不到时留空
func sectionHeaderFor(sections []models.StorySection, chapterID string) string {
	for _, sec := range sections {
		for _, id := range sec.ChaptersIncluded {
			if id == chapterID {
				return sec.Header
			}
		}
	}
	return ""
}

// topChapterScorer 本章得分最多的球员显示名，并列取键序最小
func topChapterScorer(events []ScoringEvent) string {
	points := make(map[string]int)
	names := make(map[string]string)
	for _, ev := range events {
		if ev.Player == "" {
			continue
		}
		points[ev.Player] += ev.Points
		names[ev.Player] = ev.PlayerRaw
	}
	best, bestKey := 0, ""
	for key, pts := range points {
		if pts > best || (pts == best && (bestKey == "" || key < bestKey)) {
			best, bestKey = pts, key
		}
	}
	return names[bestKey]
}
