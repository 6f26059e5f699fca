// internal/models/story.go
package models

import (
	"fmt"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
)

// GameStory 顶层产物：覆盖校验与切章都成功之后一次性构建
type GameStory struct {
	GameID       int64     `json:"game_id"`
	Sport        string    `json:"sport"`
	ChapterCount int       `json:"chapter_count"`
	TotalPlays   int       `json:"total_plays"`
	Chapters     []Chapter `json:"chapters"`
	CompactStory string    `json:"compact_story,omitempty"`

	// 阅读时长估算（分钟），仅供下游展示
	ReadingTimeEstimateMinutes int `json:"reading_time_estimate_minutes,omitempty"`

	Metadata GameMeta `json:"metadata"`
}

// FinalScore 返回终场比分
func (g GameStory) FinalScore() Score {
	if len(g.Chapters) == 0 {
		return Score{}
	}
	return g.Chapters[len(g.Chapters)-1].EndScore()
}

// HadOvertime 比赛是否进入加时
func (g GameStory) HadOvertime() bool {
	for _, c := range g.Chapters {
		if c.Period >= 5 {
			return true
		}
	}
	return false
}

// ValidateGameStory 校验顶层产物的结构不变量
// 章节连续性的完整证明由覆盖校验器负责，这里只做构造层检查
func ValidateGameStory(g GameStory) error {
	if g.GameID <= 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("game_id 必须为正数: %d", g.GameID), nil)
	}
	if len(g.Chapters) == 0 {
		return apperrors.NewStructuralError("GameStory 不能没有章节", nil)
	}
	if g.ChapterCount != len(g.Chapters) {
		return apperrors.NewStructuralError(
			fmt.Sprintf("chapter_count 与章节数不一致: %d != %d", g.ChapterCount, len(g.Chapters)), nil)
	}
	seen := make(map[string]bool, len(g.Chapters))
	for _, c := range g.Chapters {
		if err := ValidateChapter(c); err != nil {
			return err
		}
		if seen[c.ChapterID] {
			return apperrors.NewStructuralError(
				fmt.Sprintf("章节ID重复: %s", c.ChapterID), nil)
		}
		seen[c.ChapterID] = true
	}
	return nil
}

// ChapterSummary 单章的确定性摘要（由结构化数据派生，不依赖渲染结果）
type ChapterSummary struct {
	ChapterIndex int      `json:"chapter_index"`
	ChapterID    string   `json:"chapter_id"`
	Beat         BeatType `json:"beat"`
	Summary      string   `json:"summary"`
	EndScore     Score    `json:"end_score"`
}

// ChapterAIInput 逐章生成模式下交给外部渲染器的载荷
// 只允许包含第N章自身与 0..N-1 章派生的信息
type ChapterAIInput struct {
	Meta           GameMeta         `json:"meta"`
	ChapterIndex   int              `json:"chapter_index"`
	Chapter        Chapter          `json:"chapter"`
	Beat           BeatType         `json:"beat"`
	SectionHeader  string           `json:"section_header,omitempty"`
	State          StoryState       `json:"state"`
	PriorSummaries []ChapterSummary `json:"prior_summaries"`
	TargetWords    int              `json:"target_words"`
}

// BookAIInput 全书生成模式下交给外部渲染器的载荷
// 唯一允许使用"后见之明"语言的模式
type BookAIInput struct {
	Meta         GameMeta         `json:"meta"`
	Summaries    []ChapterSummary `json:"summaries"`
	Sections     []StorySection   `json:"sections"`
	CompactStory string           `json:"compact_story"`
	Quality      QualityTier      `json:"quality"`
	TargetWords  int              `json:"target_words"`
	FinalScore   Score            `json:"final_score"`
	Overtime     bool             `json:"overtime"`
}
