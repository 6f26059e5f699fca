// internal/services/chapter_service.go
package services

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
	"github.com/Corphon/GameStoryMCP/internal/utils"
)

// ChapterConfig 切章规则配置
type ChapterConfig struct {
	ResetClusterWindow int // 连续场景重置边界的折叠窗口（按事件数）
	CrunchClockSeconds int // 进入关键时刻的时钟阈值（秒）
	CrunchMaxMargin    int // 进入关键时刻允许的最大分差
	SoftChapterCap     int // 章节数软上限，超过仅产生过度切分告警
}

// DefaultChapterConfig 返回默认切章配置
func DefaultChapterConfig() ChapterConfig {
	return ChapterConfig{
		ResetClusterWindow: 3,
		CrunchClockSeconds: 300,
		CrunchMaxMargin:    10,
		SoftChapterCap:     40,
	}
}

// ChapterService 把有序事件流切分为连续章节
// 边界规则按严格优先级求值：硬边界 > 场景重置 > 势头边界
type ChapterService struct {
	cfg ChapterConfig
}

// NewChapterService 创建切章服务
func NewChapterService(cfg ChapterConfig) *ChapterService {
	return &ChapterService{cfg: cfg}
}

// boundary 记录某一位置上聚合的边界原因
// 同一位置可以同时由多条规则触发（位置一致、原因不同）
type boundary struct {
	pos     int // 相对切片的起始位置
	reasons []models.BoundaryReason
}

// BuildChapters 对单场比赛的有序事件做切章
// 相同输入必然产出相同的章节集合、原因代码与章节ID
func (s *ChapterService) BuildChapters(plays []models.Play) ([]models.Chapter, error) {
	if err := models.ValidatePlays(plays); err != nil {
		return nil, err
	}

	bounds := s.detectBoundaries(plays)
	chapters := s.assemble(plays, bounds)

	// 切章永远不允许遗漏末尾事件
	covered := 0
	for _, c := range chapters {
		covered += c.PlayCount()
	}
	if covered != len(plays) {
		return nil, apperrors.NewStructuralError(
			fmt.Sprintf("切章遗漏事件: 覆盖 %d / %d", covered, len(plays)), nil)
	}

	if s.cfg.SoftChapterCap > 0 && len(chapters) > s.cfg.SoftChapterCap {
		// 软诊断，永不致命
		utils.GetLogger().Warnf("章节数 %d 超过软上限 %d，可能存在过度切分",
			len(chapters), s.cfg.SoftChapterCap)
	}

	return chapters, nil
}

// detectBoundaries 逐事件求值边界规则
func (s *ChapterService) detectBoundaries(plays []models.Play) []boundary {
	byPos := make(map[int][]models.BoundaryReason)
	add := func(pos int, r models.BoundaryReason) {
		byPos[pos] = append(byPos[pos], r)
	}

	// 首章若无其它规则触发，默认为 PERIOD_START
	add(0, models.ReasonPeriodStart)

	lastResetBoundary := -1 - s.cfg.ResetClusterWindow
	crunchFired := false

	for i := 1; i < len(plays); i++ {
		p := plays[i]
		prev := plays[i-1]
		hardFired := false

		// 硬边界：节次变化（常规节或加时）
		if p.Period > 0 && prev.Period > 0 && p.Period != prev.Period {
			if p.Period >= 5 {
				add(i, models.ReasonOvertimeStart)
			} else {
				add(i, models.ReasonPeriodStart)
			}
			// 该边界同时意味着上一节在此结束
			add(i, models.ReasonPeriodEnd)
			hardFired = true
		}

		// 场景重置边界：上一事件是暂停或回看，新场景从本事件开始
		// 折叠窗口内的连续重置收敛为一个边界
		if reason, ok := resetReason(prev); ok {
			if i-lastResetBoundary > s.cfg.ResetClusterWindow {
				add(i, reason)
				lastResetBoundary = i
			}
			// 窗口内的后续重置折叠进已发出的边界
		}

		// 势头边界：进入关键时刻，仅在没有更高优先级规则触发时生效
		if !hardFired && !crunchFired && s.isCrunchEntry(p, prev) {
			if _, exists := byPos[i]; !exists {
				add(i, models.ReasonCrunchTimeEntered)
			}
			crunchFired = true
		}
	}

	positions := make([]int, 0, len(byPos))
	for pos := range byPos {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	bounds := make([]boundary, 0, len(positions))
	for _, pos := range positions {
		bounds = append(bounds, boundary{pos: pos, reasons: byPos[pos]})
	}
	return bounds
}

// resetReason 判断事件是否为场景重置点
func resetReason(p models.Play) (models.BoundaryReason, bool) {
	desc := strings.ToLower(p.Description)
	if strings.Contains(desc, "timeout") {
		return models.ReasonTimeout, true
	}
	if strings.Contains(desc, "review") || strings.Contains(desc, "challenge") {
		return models.ReasonOfficialReview, true
	}
	return "", false
}

// isCrunchEntry 进入关键时刻：第四节、时钟进入阈值、分差够小
func (s *ChapterService) isCrunchEntry(p, prev models.Play) bool {
	if p.Period != 4 {
		return false
	}
	secs, ok := p.ClockSeconds()
	if !ok || secs > s.cfg.CrunchClockSeconds {
		return false
	}
	margin := prev.HomeScore - prev.AwayScore
	if margin < 0 {
		margin = -margin
	}
	return margin <= s.cfg.CrunchMaxMargin
}

// assemble 在相邻边界之间构建章节
func (s *ChapterService) assemble(plays []models.Play, bounds []boundary) []models.Chapter {
	base := plays[0].Index
	chapters := make([]models.Chapter, 0, len(bounds))

	for bi, b := range bounds {
		end := len(plays)
		if bi+1 < len(bounds) {
			end = bounds[bi+1].pos
		}
		segment := plays[b.pos:end]

		reasons := b.reasons
		if bi == len(bounds)-1 {
			// 最后一章由比赛结束收尾
			reasons = append(append([]models.BoundaryReason{}, reasons...), models.ReasonGameEnd)
		}

		chapter := models.Chapter{
			ChapterID:    fmt.Sprintf("ch_%03d", bi+1),
			PlayStartIdx: base + b.pos,
			PlayEndIdx:   base + end - 1,
			Plays:        append([]models.Play{}, segment...),
			ReasonCodes:  models.SortReasonCodes(reasons),
			Period:       segment[0].Period,
			TimeRange:    timeRangeOf(segment),
		}
		chapters = append(chapters, chapter)
	}
	return chapters
}

// timeRangeOf 取段内首尾可解析的比赛时钟
func timeRangeOf(plays []models.Play) *models.TimeRange {
	var start, end string
	for _, p := range plays {
		if p.GameClock == "" {
			continue
		}
		if start == "" {
			start = p.GameClock
		}
		end = p.GameClock
	}
	if start == "" {
		return nil
	}
	return &models.TimeRange{Start: start, End: end}
}
