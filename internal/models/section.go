// internal/models/section.go
package models

import (
	"fmt"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
)

// StorySection 叙事段落：一个或多个相邻章节按节拍兼容性合并而成
// 合并时整体销毁重建，从不局部修改
type StorySection struct {
	SectionIndex     int      `json:"section_index"`
	BeatType         BeatType `json:"beat_type"`
	Header           string   `json:"header"`
	ChaptersIncluded []string `json:"chapters_included"` // 章节ID列表，保持章节顺序
	StartScore       Score    `json:"start_score"`
	EndScore         Score    `json:"end_score"`
	Notes            []string `json:"notes,omitempty"`
}

// ChapterCount 返回段落包含的章节数
func (s StorySection) ChapterCount() int {
	return len(s.ChaptersIncluded)
}

// MaxSectionCount 段落数量上限
const MaxSectionCount = 10

// ValidateSection 校验单个段落的结构不变量
func ValidateSection(s StorySection) error {
	if !IsValidBeatType(s.BeatType) {
		return apperrors.NewStructuralError(
			fmt.Sprintf("段落 %d 携带非法节拍: %q", s.SectionIndex, s.BeatType), nil)
	}
	if len(s.ChaptersIncluded) == 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("段落 %d 不包含任何章节", s.SectionIndex), nil)
	}
	return nil
}
