// internal/models/chapter.go
package models

import (
	"fmt"
	"sort"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
)

// BoundaryReason 章节边界原因代码（封闭集合，诊断标签而非叙事内容）
type BoundaryReason string

const (
	ReasonPeriodStart       BoundaryReason = "PERIOD_START"
	ReasonPeriodEnd         BoundaryReason = "PERIOD_END"
	ReasonOvertimeStart     BoundaryReason = "OVERTIME_START"
	ReasonGameEnd           BoundaryReason = "GAME_END"
	ReasonTimeout           BoundaryReason = "TIMEOUT"
	ReasonOfficialReview    BoundaryReason = "OFFICIAL_REVIEW"
	ReasonCrunchTimeEntered BoundaryReason = "CRUNCH_TIME_ENTERED"
)

// IsValidBoundaryReason 检查原因代码是否属于封闭集合
func IsValidBoundaryReason(r BoundaryReason) bool {
	switch r {
	case ReasonPeriodStart, ReasonPeriodEnd, ReasonOvertimeStart,
		ReasonGameEnd, ReasonTimeout, ReasonOfficialReview, ReasonCrunchTimeEntered:
		return true
	}
	return false
}

// TimeRange 章节首尾的比赛时钟
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Chapter 表示一段连续、不重叠的事件区间（一个结构化场景）
// 由 Chapterizer 一次性创建，之后不再修改；下游派生事实挂在旁边而非写回
type Chapter struct {
	ChapterID    string           `json:"chapter_id"`
	PlayStartIdx int              `json:"play_start_idx"`
	PlayEndIdx   int              `json:"play_end_idx"` // 闭区间
	Plays        []Play           `json:"plays"`
	ReasonCodes  []BoundaryReason `json:"reason_codes"` // 非空，排序去重
	Period       int              `json:"period,omitempty"`
	TimeRange    *TimeRange       `json:"time_range,omitempty"`
}

// PlayCount 返回章节包含的事件数
func (c Chapter) PlayCount() int {
	return c.PlayEndIdx - c.PlayStartIdx + 1
}

// HasReason 检查章节是否携带指定原因代码
func (c Chapter) HasReason(r BoundaryReason) bool {
	for _, rc := range c.ReasonCodes {
		if rc == r {
			return true
		}
	}
	return false
}

// EndScore 返回章节末的累计比分（最后一个事件之后的比分）
func (c Chapter) EndScore() Score {
	if len(c.Plays) == 0 {
		return Score{}
	}
	return c.Plays[len(c.Plays)-1].Score()
}

// SortReasonCodes 对原因代码做排序去重（保证序列化与指纹稳定）
func SortReasonCodes(codes []BoundaryReason) []BoundaryReason {
	seen := make(map[BoundaryReason]bool, len(codes))
	out := make([]BoundaryReason, 0, len(codes))
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateChapter 校验单个章节的结构不变量
func ValidateChapter(c Chapter) error {
	if c.ChapterID == "" {
		return apperrors.NewStructuralError("chapter_id 不能为空", nil)
	}
	if len(c.ReasonCodes) == 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("章节 %s 的 reason_codes 为空", c.ChapterID), nil)
	}
	for _, r := range c.ReasonCodes {
		if !IsValidBoundaryReason(r) {
			return apperrors.NewStructuralError(
				fmt.Sprintf("章节 %s 携带非法原因代码: %q", c.ChapterID, r), nil)
		}
	}
	if len(c.Plays) != c.PlayCount() {
		return apperrors.NewStructuralError(
			fmt.Sprintf("章节 %s 事件数与区间不一致: len=%d 区间=%d..%d",
				c.ChapterID, len(c.Plays), c.PlayStartIdx, c.PlayEndIdx), nil)
	}
	for i, p := range c.Plays {
		if p.Index != c.PlayStartIdx+i {
			return apperrors.NewStructuralError(
				fmt.Sprintf("章节 %s 内事件索引错位: 位置 %d 期望 %d 实际 %d",
					c.ChapterID, i, c.PlayStartIdx+i, p.Index), nil)
		}
	}
	return nil
}
