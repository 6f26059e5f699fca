// internal/services/coverage_service.go
package services

import (
	"crypto/sha256"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// CoverageService 覆盖校验器
// 只校验、只报告，从不修复：任何缺口都是上游切分器的 bug
type CoverageService struct{}

// NewCoverageService 创建覆盖校验服务
func NewCoverageService() *CoverageService {
	return &CoverageService{}
}

// ValidateChapters 校验章节序列对回合时间线的完整覆盖
// 规则：首章从 baseIndex 开始、相邻章节无缝衔接、索引严格递增、
// 计数与实际回合数一致。通过后返回结构指纹
func (s *CoverageService) ValidateChapters(chapters []models.Chapter, baseIndex int) (string, error) {
	if len(chapters) == 0 {
		return "", apperrors.NewCoverageError("章节序列为空，时间线未被覆盖", nil)
	}

	for i, ch := range chapters {
		if err := models.ValidateChapter(ch); err != nil {
			return "", apperrors.NewCoverageError(
				fmt.Sprintf("章节 %s 结构非法", ch.ChapterID), err)
		}
		if i == 0 {
			if ch.PlayStartIdx != baseIndex {
				return "", apperrors.NewCoverageError(
					fmt.Sprintf("首章 %s 起始索引 %d != 基准 %d",
						ch.ChapterID, ch.PlayStartIdx, baseIndex), nil)
			}
			continue
		}
		prev := chapters[i-1]
		if ch.PlayStartIdx != prev.PlayEndIdx+1 {
			return "", apperrors.NewCoverageError(
				fmt.Sprintf("章节 %s 与 %s 之间存在缺口或重叠: %d != %d+1",
					prev.ChapterID, ch.ChapterID, ch.PlayStartIdx, prev.PlayEndIdx), nil)
		}
		if ch.PlayStartIdx <= prev.PlayStartIdx {
			return "", apperrors.NewCoverageError(
				fmt.Sprintf("章节 %s 起始索引未严格递增", ch.ChapterID), nil)
		}
	}

	return Fingerprint(chapters), nil
}

// ValidateSectionCoverage 校验段落对章节全集的恰好一次覆盖
func (s *CoverageService) ValidateSectionCoverage(sections []models.StorySection, chapters []models.Chapter) error {
	seen := make(map[string]string, len(chapters))
	for _, sec := range sections {
		for _, id := range sec.ChaptersIncluded {
			if owner, dup := seen[id]; dup {
				return apperrors.NewCoverageError(
					fmt.Sprintf("章节 %s 同时出现在段落 %s 与段落 %d",
						id, owner, sec.SectionIndex), nil)
			}
			seen[id] = fmt.Sprintf("%d", sec.SectionIndex)
		}
	}
	for _, ch := range chapters {
		if _, ok := seen[ch.ChapterID]; !ok {
			return apperrors.NewCoverageError(
				fmt.Sprintf("章节 %s 未被任何段落引用", ch.ChapterID), nil)
		}
	}
	if len(seen) != len(chapters) {
		return apperrors.NewCoverageError(
			fmt.Sprintf("段落引用了 %d 个章节，实际存在 %d 个", len(seen), len(chapters)), nil)
	}
	return nil
}

// Fingerprint 章节结构的确定性指纹
// 输入：章节数 + 每章的 (起始索引, 结束索引, 排序后的边界原因)
// 相同切分结果永远得到相同指纹，可跨进程比对
func Fingerprint(chapters []models.Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|", len(chapters))
	for _, ch := range chapters {
		reasons := models.SortReasonCodes(ch.ReasonCodes)
		codes := make([]string, 0, len(reasons))
		for _, r := range reasons {
			codes = append(codes, string(r))
		}
		fmt.Fprintf(&b, "%d:%d:[%s];", ch.PlayStartIdx, ch.PlayEndIdx, strings.Join(codes, ","))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum)
}
