// internal/services/section_service.go
package services

import (
	"fmt"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// ClassifiedChapter 带节拍与进入比分的章节（派生事实挂在章节旁，不写回章节）
type ClassifiedChapter struct {
	Chapter       models.Chapter
	Beat          models.BeatType
	EnteringScore models.Score
}

// SectionService 段落构建器
// 把已分类章节折叠为 0–10 个叙事段落：按节拍兼容性合并、
// 强制断开、瘦段落/失衡段落/低强度段落处理、数量收敛
type SectionService struct {
	windows *WindowService
}

// NewSectionService 创建段落构建服务
func NewSectionService(windows *WindowService) *SectionService {
	return &SectionService{windows: windows}
}

// 段落处理阈值
const (
	thinSectionMaxPoints      = 4
	thinSectionMaxScoring     = 2
	underpoweredMaxPoints     = 8 // 严格小于
	underpoweredMinMeaningful = 3 // 严格小于
	dominanceCapShare         = 0.65
)

// protoSection 构建期的段落工作结构，最终一次性转成 StorySection
type protoSection struct {
	beat     models.BeatType
	chapters []ClassifiedChapter
	notes    []string
}

func (p *protoSection) entering() models.Score {
	return p.chapters[0].EnteringScore
}

func (p *protoSection) end() models.Score {
	return p.chapters[len(p.chapters)-1].Chapter.EndScore()
}

func (p *protoSection) plays() []models.Play {
	all := make([]models.Play, 0)
	for _, cc := range p.chapters {
		all = append(all, cc.Chapter.Plays...)
	}
	return all
}

func (p *protoSection) playCount() int {
	n := 0
	for _, cc := range p.chapters {
		n += cc.Chapter.PlayCount()
	}
	return n
}

func (p *protoSection) points() int {
	end, start := p.end(), p.entering()
	return (end.Home - start.Home) + (end.Away - start.Away)
}

// beatsCompatible 节拍合并兼容性矩阵
// 关键时刻层级与非关键层级互斥，跨层合并一律拒绝
func beatsCompatible(a, b models.BeatType) bool {
	return a.IsCrunchTier() == b.IsCrunchTier()
}

// BuildSections 把章节序列折叠为叙事段落
// 输出保证：所有章节恰好出现一次，顺序保持，段落数在 [0,10] 内
func (s *SectionService) BuildSections(chapters []ClassifiedChapter, early EarlyWindowResult) ([]models.StorySection, error) {
	if len(chapters) == 0 {
		return []models.StorySection{}, nil
	}

	sections := s.groupChapters(chapters)
	sections = s.mergePass(sections, s.isThin, "merged_thin_section")
	sections = s.mergePass(sections, s.isUnderpowered, "merged_underpowered_section")
	s.applyDominanceNotes(sections)

	var err error
	sections, err = s.enforceCount(sections)
	if err != nil {
		return nil, err
	}

	s.applyEarlyOverride(sections, early)

	result := s.finalize(sections)
	if err := s.selfCheck(result, chapters); err != nil {
		return nil, err
	}
	return result, nil
}

// groupChapters 按默认合并规则与强制断开分组
// 强制断开：加时开始、节次边界、任何节拍变化（节拍变化同时覆盖
// CLOSING_SEQUENCE 入口与首个 CRUNCH_SETUP 章节的断开要求）
func (s *SectionService) groupChapters(chapters []ClassifiedChapter) []*protoSection {
	sections := make([]*protoSection, 0)
	var cur *protoSection

	for i, cc := range chapters {
		forced := i == 0
		if !forced {
			prev := chapters[i-1]
			switch {
			case cc.Beat != prev.Beat:
				forced = true
			case cc.Chapter.Period != prev.Chapter.Period:
				forced = true
			case cc.Chapter.Period >= 5 && prev.Chapter.Period < 5:
				forced = true
			case !beatsCompatible(cc.Beat, prev.Beat):
				forced = true
			}
		}

		if forced {
			cur = &protoSection{beat: cc.Beat}
			sections = append(sections, cur)
		}
		cur.chapters = append(cur.chapters, cc)
	}
	return sections
}

// isThin 瘦段落：得分 ≤4 且得分回合 ≤2
func (s *SectionService) isThin(p *protoSection) bool {
	scoring := len(ScoringEvents(p.plays(), p.entering()))
	return p.points() <= thinSectionMaxPoints && scoring <= thinSectionMaxScoring
}

// isUnderpowered 低强度段落：得分 <8 且有意义事件 <3
// 有意义事件 = 得分回合 + 领先易主 + Run 窗口 + 战平
func (s *SectionService) isUnderpowered(p *protoSection) bool {
	if p.points() >= underpoweredMaxPoints {
		return false
	}
	plays := p.plays()
	entering := p.entering()
	baf := s.windows.AnalyzeBackAndForth(plays, entering)
	runs := len(s.windows.DetectRunWindows(plays, entering))
	meaningful := len(ScoringEvents(plays, entering)) + baf.LeadChanges + runs + baf.Ties
	return meaningful < underpoweredMinMeaningful
}

// mergePass 反复把命中谓词的段落并入相邻段落，直到不再变化
// 段落从不被丢弃：找不到兼容邻居时保留原地并做标注
func (s *SectionService) mergePass(sections []*protoSection, hit func(*protoSection) bool, note string) []*protoSection {
	kept := make(map[*protoSection]bool)
	for {
		if len(sections) <= 1 {
			return sections
		}
		merged := false
		for i, sec := range sections {
			if kept[sec] || !hit(sec) {
				continue
			}
			target := -1
			if i > 0 && beatsCompatible(sections[i-1].beat, sec.beat) {
				target = i - 1
			} else if i+1 < len(sections) && beatsCompatible(sections[i+1].beat, sec.beat) {
				target = i + 1
			}
			if target < 0 {
				// 内容仍然保留，只是无法合并
				kept[sec] = true
				sec.notes = append(sec.notes, note+"_kept")
				continue
			}

			dst := sections[target]
			if target < i {
				dst.chapters = append(dst.chapters, sec.chapters...)
			} else {
				dst.chapters = append(append([]ClassifiedChapter{}, sec.chapters...), dst.chapters...)
			}
			dst.notes = append(dst.notes, note)
			sections = append(sections[:i], sections[i+1:]...)
			merged = true
			break
		}
		if !merged {
			return sections
		}
	}
}

// applyDominanceNotes 失衡段落的展示层封顶
// 只做标注，底层统计永不修改
func (s *SectionService) applyDominanceNotes(sections []*protoSection) {
	for _, sec := range sections {
		total := sec.points()
		if total <= 0 {
			continue
		}
		best, bestName := 0, ""
		byPlayer := make(map[string]int)
		for _, ev := range ScoringEvents(sec.plays(), sec.entering()) {
			if ev.Player == "" || ev.Team == "" {
				continue
			}
			byPlayer[ev.Player] += ev.Points
			if byPlayer[ev.Player] > best || (byPlayer[ev.Player] == best && ev.Player < models.NormalizePlayerName(bestName)) {
				best = byPlayer[ev.Player]
				bestName = ev.PlayerRaw
			}
		}
		if bestName != "" && float64(best)/float64(total) >= dominanceCapShare {
			sec.notes = append(sec.notes,
				fmt.Sprintf("dominance_capped:%s:%d%%", bestName, int(dominanceCapShare*100)))
		}
	}
}

// isProtectedSection 结构上必须保留的段落：收尾段落与关键时刻层级段落
func (s *SectionService) isProtectedSection(sections []*protoSection, i int) bool {
	if i == len(sections)-1 {
		return true
	}
	return sections[i].beat.IsCrunchTier()
}

// enforceCount 数量收敛：只合并、永不删除
// 优先合并同节拍的相邻对，其次是兼容的相邻对，始终跳过受保护段落
func (s *SectionService) enforceCount(sections []*protoSection) ([]*protoSection, error) {
	for len(sections) > models.MaxSectionCount {
		best := -1
		bestSameBeat := false
		bestSize := 0
		for i := 0; i+1 < len(sections); i++ {
			if s.isProtectedSection(sections, i) || s.isProtectedSection(sections, i+1) {
				continue
			}
			if !beatsCompatible(sections[i].beat, sections[i+1].beat) {
				continue
			}
			sameBeat := sections[i].beat == sections[i+1].beat
			size := sections[i].playCount() + sections[i+1].playCount()
			better := false
			switch {
			case best < 0:
				better = true
			case sameBeat && !bestSameBeat:
				better = true
			case sameBeat == bestSameBeat && size < bestSize:
				better = true
			}
			if better {
				best, bestSameBeat, bestSize = i, sameBeat, size
			}
		}
		if best < 0 {
			return nil, apperrors.NewSectionConstraintError(
				fmt.Sprintf("段落数 %d 超出上限 %d 且不存在合法的进一步合并",
					len(sections), models.MaxSectionCount), nil)
		}
		dst, src := sections[best], sections[best+1]
		dst.chapters = append(dst.chapters, src.chapters...)
		dst.notes = append(append(dst.notes, src.notes...), "merged_for_count")
		sections = append(sections[:best+1], sections[best+2:]...)
	}
	return sections, nil
}

// applyEarlyOverride 把开局窗口的覆盖应用到开局段落
// EARLY_CONTROL 优先于 FAST_START，仅开局段落生效
func (s *SectionService) applyEarlyOverride(sections []*protoSection, early EarlyWindowResult) {
	if early.Override == "" || len(sections) == 0 {
		return
	}
	opening := sections[0]
	if opening.beat.IsCrunchTier() {
		return
	}
	opening.beat = early.Override
	opening.notes = append(opening.notes,
		fmt.Sprintf("early_window_override:%s", early.Override))
}

// finalize 把工作结构一次性转成不可再局部修改的 StorySection
func (s *SectionService) finalize(sections []*protoSection) []models.StorySection {
	result := make([]models.StorySection, 0, len(sections))
	for i, sec := range sections {
		ids := make([]string, 0, len(sec.chapters))
		for _, cc := range sec.chapters {
			ids = append(ids, cc.Chapter.ChapterID)
		}
		result = append(result, models.StorySection{
			SectionIndex:     i,
			BeatType:         sec.beat,
			Header:           sectionHeader(sec),
			ChaptersIncluded: ids,
			StartScore:       sec.entering(),
			EndScore:         sec.end(),
			Notes:            sec.notes,
		})
	}
	return result
}

// selfCheck 输出保证：章节全集恰好覆盖一次且保持顺序
func (s *SectionService) selfCheck(sections []models.StorySection, chapters []ClassifiedChapter) error {
	if len(sections) > models.MaxSectionCount {
		return apperrors.NewSectionConstraintError(
			fmt.Sprintf("段落数 %d 超出 [0,%d]", len(sections), models.MaxSectionCount), nil)
	}
	got := make([]string, 0, len(chapters))
	for _, sec := range sections {
		got = append(got, sec.ChaptersIncluded...)
	}
	if len(got) != len(chapters) {
		return apperrors.NewSectionConstraintError(
			fmt.Sprintf("段落章节覆盖不完整: %d != %d", len(got), len(chapters)), nil)
	}
	for i, cc := range chapters {
		if got[i] != cc.Chapter.ChapterID {
			return apperrors.NewSectionConstraintError(
				fmt.Sprintf("段落章节顺序错位: 位置 %d 期望 %s 实际 %s",
					i, cc.Chapter.ChapterID, got[i]), nil)
		}
	}
	return nil
}

// sectionHeader 确定性的段落标题
func sectionHeader(sec *protoSection) string {
	return fmt.Sprintf("%s · %s", periodLabel(sec.chapters[0].Chapter.Period), beatPhrase(sec.beat))
}

// periodLabel 节次展示标签
func periodLabel(period int) string {
	switch {
	case period >= 6:
		return fmt.Sprintf("%dOT", period-4)
	case period == 5:
		return "OT"
	case period >= 1:
		return fmt.Sprintf("Q%d", period)
	default:
		return "Q1"
	}
}

// beatPhrase 节拍到标题短语的固定映射
func beatPhrase(beat models.BeatType) string {
	switch beat {
	case models.BeatFastStart:
		return "Fast start"
	case models.BeatMissedShotFest:
		return "Cold stretch"
	case models.BeatBackAndForth:
		return "Trading blows"
	case models.BeatEarlyControl:
		return "Early control"
	case models.BeatRun:
		return "The run"
	case models.BeatResponse:
		return "Answering back"
	case models.BeatStall:
		return "The lull"
	case models.BeatCrunchSetup:
		return "Setting up the finish"
	case models.BeatClosingSequence:
		return "The closing sequence"
	case models.BeatOvertime:
		return "Overtime"
	default:
		return string(beat)
	}
}
