// internal/services/story_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Corphon/GameStoryMCP/internal/archive"
	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
	"github.com/Corphon/GameStoryMCP/internal/utils"
)

// Renderer 外部叙事渲染器
// 管线把它当作不透明函数：结构化载荷进、自然语言文本出，
// 产物必须通过渲染后质检才会被接受
type Renderer interface {
	RenderChapter(ctx context.Context, input models.ChapterAIInput) (string, error)
	RenderBook(ctx context.Context, input models.BookAIInput) (string, error)
}

// BuildResult 一次确定性管线运行的全部产物
// 同一回合序列重复构建得到完全相同的结果（指纹可证）
type BuildResult struct {
	Story       models.GameStory      `json:"story"`
	Sections    []models.StorySection `json:"sections"`
	Chapters    []ClassifiedChapter   `json:"-"`
	Snapshots   []StatSnapshot        `json:"-"`
	Signals     QualitySignals        `json:"signals"`
	Quality     models.QualityTier    `json:"quality"`
	Length      models.LengthTarget   `json:"length"`
	Fingerprint string                `json:"fingerprint"`
}

// ChapterNarrative 逐章生成的单章产物
type ChapterNarrative struct {
	ChapterIndex int    `json:"chapter_index"`
	ChapterID    string `json:"chapter_id"`
	Narrative    string `json:"narrative"`
	Summary      string `json:"summary"`
}

// StoryService 管线编排器
// 确定性阶段（切章→校验→统计→节拍→段落→质量）与
// 非确定性阶段（渲染+质检）严格分离
type StoryService struct {
	chapters *ChapterService
	windows  *WindowService
	stats    *StatsService
	beats    *BeatService
	sections *SectionService
	coverage *CoverageService
	quality  *QualityService
	contexts *ContextService
	qa       *QAService

	renderer Renderer
	progress *ProgressService
	store    *archive.Archive // 可为nil，此时跳过归档
}

// NewStoryService 组装完整管线
func NewStoryService(
	chapters *ChapterService,
	windows *WindowService,
	stats *StatsService,
	beats *BeatService,
	sections *SectionService,
	coverage *CoverageService,
	quality *QualityService,
	contexts *ContextService,
	qa *QAService,
	renderer Renderer,
	progress *ProgressService,
	store *archive.Archive,
) *StoryService {
	return &StoryService{
		chapters: chapters,
		windows:  windows,
		stats:    stats,
		beats:    beats,
		sections: sections,
		coverage: coverage,
		quality:  quality,
		contexts: contexts,
		qa:       qa,
		renderer: renderer,
		progress: progress,
		store:    store,
	}
}

// BuildGameStory 执行确定性管线，不触达渲染器
func (s *StoryService) BuildGameStory(meta models.GameMeta, plays []models.Play) (*BuildResult, error) {
	if err := models.ValidateGameMeta(meta); err != nil {
		return nil, err
	}

	chapters, err := s.chapters.BuildChapters(plays)
	if err != nil {
		return nil, err
	}

	baseIndex := plays[0].Index
	fingerprint, err := s.coverage.ValidateChapters(chapters, baseIndex)
	if err != nil {
		return nil, err
	}

	snapshots := s.stats.BuildSnapshots(chapters)

	classified := s.classify(chapters)

	early := s.windows.AnalyzeEarlyWindow(plays)

	sections, err := s.sections.BuildSections(classified, early)
	if err != nil {
		return nil, err
	}
	if err := s.coverage.ValidateSectionCoverage(sections, chapters); err != nil {
		return nil, err
	}

	signals, tier, target := s.quality.Evaluate(classified)

	story := models.GameStory{
		GameID:       meta.GameID,
		Sport:        meta.Sport,
		ChapterCount: len(chapters),
		TotalPlays:   len(plays),
		Chapters:     chapters,
		Metadata:     meta,
	}
	story.CompactStory = s.compactStory(meta, story, sections)
	story.ReadingTimeEstimateMinutes = models.ReadingTimeMinutes(target.TargetWords)

	if err := models.ValidateGameStory(story); err != nil {
		return nil, err
	}

	result := &BuildResult{
		Story:       story,
		Sections:    sections,
		Chapters:    classified,
		Snapshots:   snapshots,
		Signals:     signals,
		Quality:     tier,
		Length:      target,
		Fingerprint: fingerprint,
	}

	if s.store != nil {
		if err := s.store.SaveStory(story, sections, fingerprint); err != nil {
			utils.GetLogger().Warnf("故事归档失败 game_id=%d: %v", meta.GameID, err)
		}
	}

	return result, nil
}

// classify 逐章计算窗口信号并指定节拍
func (s *StoryService) classify(chapters []models.Chapter) []ClassifiedChapter {
	classified := make([]ClassifiedChapter, 0, len(chapters))
	entering := models.Score{}

	for _, ch := range chapters {
		runs := s.windows.DetectRunWindows(ch.Plays, entering)
		responses := s.windows.DetectResponseWindows(ch.Plays, entering, runs)
		baf := s.windows.AnalyzeBackAndForth(ch.Plays, entering)

		beat := s.beats.ClassifyChapter(ChapterSignals{
			Chapter:       ch,
			EnteringScore: entering,
			Runs:          runs,
			Responses:     responses,
			BackAndForth:  baf,
		})

		classified = append(classified, ClassifiedChapter{
			Chapter:       ch,
			Beat:          beat,
			EnteringScore: entering,
		})
		entering = ch.EndScore()
	}
	return classified
}

// compactStory 段落大纲的确定性一段式概括
func (s *StoryService) compactStory(meta models.GameMeta, story models.GameStory, sections []models.StorySection) string {
	final := story.FinalScore()

	var b strings.Builder
	fmt.Fprintf(&b, "%s vs %s", meta.HomeTeamName, meta.AwayTeamName)
	if story.HadOvertime() {
		b.WriteString(" (OT)")
	}
	fmt.Fprintf(&b, ", final %d-%d.", final.Home, final.Away)

	for _, sec := range sections {
		fmt.Fprintf(&b, " %s (%d-%d).", sec.Header, sec.EndScore.Home, sec.EndScore.Away)
	}
	return b.String()
}

// GenerateSequential 逐章生成：严格按章节顺序左折叠
// 每章的输入只包含在它之前的派生信息，失败立即终止
func (s *StoryService) GenerateSequential(ctx context.Context, build *BuildResult, taskID string) ([]ChapterNarrative, error) {
	if s.renderer == nil {
		return nil, apperrors.NewProcessingError("渲染器未配置", nil)
	}

	var tracker *ProgressTracker
	if s.progress != nil && taskID != "" {
		tracker = s.progress.CreateTracker(taskID, build.Story.GameID, len(build.Chapters))
	}

	qaBase := s.qa.BuildCheckInput(build.Story.Metadata, build.Story, build.Snapshots, build.Length)

	narratives := make([]ChapterNarrative, 0, len(build.Chapters))
	summaries := make([]models.ChapterSummary, 0, len(build.Chapters))

	for i, cc := range build.Chapters {
		if tracker != nil {
			tracker.UpdateChapter(i, fmt.Sprintf("正在渲染章节 %s", cc.Chapter.ChapterID))
		}

		state, err := s.contexts.BuildStoryState(build.Chapters, build.Snapshots, i)
		if err != nil {
			return s.failSequential(tracker, err)
		}

		input, err := s.contexts.BuildChapterInput(
			build.Story.Metadata, build.Chapters, build.Sections,
			state, summaries, build.Length, i)
		if err != nil {
			return s.failSequential(tracker, err)
		}

		narrative, err := s.renderer.RenderChapter(ctx, input)
		if err != nil {
			return s.failSequential(tracker,
				apperrors.NewProcessingError(fmt.Sprintf("章节 %s 渲染失败", cc.Chapter.ChapterID), err))
		}

		if err := s.qa.CheckChapterRender(narrative, qaBase, i, cc.Chapter.EndScore(), build.Length.TargetWords); err != nil {
			return s.failSequential(tracker, err)
		}

		// 摘要来自结构化数据而非渲染产物，保持确定性
		summary := s.contexts.SummarizeChapter(cc, i)
		summaries = append(summaries, summary)

		narratives = append(narratives, ChapterNarrative{
			ChapterIndex: i,
			ChapterID:    cc.Chapter.ChapterID,
			Narrative:    narrative,
			Summary:      summary.Summary,
		})
	}

	if tracker != nil {
		tracker.Complete(fmt.Sprintf("共生成 %d 章", len(narratives)))
	}

	if s.store != nil {
		total := 0
		var joined strings.Builder
		for _, n := range narratives {
			total += len(strings.Fields(n.Narrative))
			joined.WriteString(n.Narrative)
			joined.WriteString("\n\n")
		}
		if err := s.store.SaveRender(build.Story.GameID, "sequential", joined.String(), total); err != nil {
			utils.GetLogger().Warnf("渲染归档失败 game_id=%d: %v", build.Story.GameID, err)
		}
	}

	return narratives, nil
}

func (s *StoryService) failSequential(tracker *ProgressTracker, err error) ([]ChapterNarrative, error) {
	if tracker != nil {
		tracker.Fail(err.Error())
	}
	return nil, err
}

// GenerateFullBook 全书生成：对渲染器恰好一次调用
func (s *StoryService) GenerateFullBook(ctx context.Context, build *BuildResult) (string, error) {
	if s.renderer == nil {
		return "", apperrors.NewProcessingError("渲染器未配置", nil)
	}

	summaries := make([]models.ChapterSummary, 0, len(build.Chapters))
	for i, cc := range build.Chapters {
		summaries = append(summaries, s.contexts.SummarizeChapter(cc, i))
	}

	input, err := s.contexts.BuildBookInput(
		build.Story.Metadata, build.Story, build.Sections,
		summaries, build.Quality, build.Length)
	if err != nil {
		return "", err
	}

	narrative, err := s.renderer.RenderBook(ctx, input)
	if err != nil {
		return "", apperrors.NewProcessingError("全书渲染失败", err)
	}

	qaBase := s.qa.BuildCheckInput(build.Story.Metadata, build.Story, build.Snapshots, build.Length)
	if err := s.qa.CheckBookRender(narrative, qaBase); err != nil {
		return "", err
	}

	if s.store != nil {
		if err := s.store.SaveRender(build.Story.GameID, "book", narrative, len(strings.Fields(narrative))); err != nil {
			utils.GetLogger().Warnf("渲染归档失败 game_id=%d: %v", build.Story.GameID, err)
		}
	}

	return narrative, nil
}
