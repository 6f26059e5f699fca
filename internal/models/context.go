// internal/models/context.go
package models

// MomentumHint 比赛势头提示（封闭集合）
type MomentumHint string

const (
	MomentumSurging  MomentumHint = "SURGING"
	MomentumSteady   MomentumHint = "STEADY"
	MomentumSlipping MomentumHint = "SLIPPING"
	MomentumVolatile MomentumHint = "VOLATILE"
	MomentumUnknown  MomentumHint = "UNKNOWN"
)

// PlayerStanding 截至某章节为止的球员得分排名条目
type PlayerStanding struct {
	Name   string `json:"name"`   // 显示名
	Key    string `json:"key"`    // 规范化连接键（小写去空白）
	Points int    `json:"points"` // 截至当前已处理章节的累计得分
	Team   string `json:"team,omitempty"`
}

// StateConstraints 因果约束声明，随状态一起传给渲染器
type StateConstraints struct {
	NoFutureKnowledge bool   `json:"no_future_knowledge"`
	Source            string `json:"source"`
}

// StateSourcePriorChaptersOnly StoryState 的唯一合法来源声明
const StateSourcePriorChaptersOnly = "derived_from_prior_chapters_only"

// StoryState 因果受限的故事状态
// 每处理完一章后整体重新计算（而非增量修改），永远只反映 0..N-1 章
type StoryState struct {
	ChapterIndexLastProcessed int              `json:"chapter_index_last_processed"` // -1 表示尚未处理任何章节
	Players                   []PlayerStanding `json:"players"`                      // ≤6，按得分降序
	Teams                     []string         `json:"teams"`
	MomentumHint              MomentumHint     `json:"momentum_hint"`
	ThemeTags                 []string         `json:"theme_tags"` // ≤8
	Constraints               StateConstraints `json:"constraints"`
}

// MaxStatePlayers StoryState 中球员条目上限
const MaxStatePlayers = 6

// MaxThemeTags 主题标签上限
const MaxThemeTags = 8
