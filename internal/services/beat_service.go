// internal/services/beat_service.go
package services

import (
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// ChapterSignals 节拍分类所需的全部信号
// 除紧邻上一章的汇总信号（进入比分）外不携带任何历史
type ChapterSignals struct {
	Chapter       models.Chapter
	EnteringScore models.Score // 进入本章前的累计比分
	Runs          []RunWindow
	Responses     []ResponseWindow
	BackAndForth  BackAndForthResult
}

// BeatService 节拍分类器
// 无跨章节持久状态的状态机：固定决策顺序，每章恰好一个节拍，重放幂等
type BeatService struct {
	cfg DetectorConfig
}

// NewBeatService 创建节拍分类服务
func NewBeatService(cfg DetectorConfig) *BeatService {
	return &BeatService{cfg: cfg}
}

// 分类器内部阈值
const (
	closingClockSeconds = 120 // 常规时间最后两分钟
	crunchClockSeconds  = 300
	crunchMaxMargin     = 10
	shotFestMaxPoints   = 6 // 章节双方合计得分不超过该值
	shotFestMinPlays    = 10
)

// ClassifyChapter 按固定顺序求值阈值规则，给章节指定恰好一个节拍
// 没有规则明确命中时保守回落到 BACK_AND_FORTH
func (s *BeatService) ClassifyChapter(sig ChapterSignals) models.BeatType {
	c := sig.Chapter

	// 加时永远优先
	if c.Period >= 5 {
		return models.BeatOvertime
	}

	startClock, hasClock := chapterStartClock(c)
	margin := sig.EnteringScore.Margin()
	if margin < 0 {
		margin = -margin
	}

	if c.Period == 4 && hasClock {
		if startClock <= closingClockSeconds {
			return models.BeatClosingSequence
		}
		if startClock <= crunchClockSeconds && margin <= crunchMaxMargin {
			return models.BeatCrunchSetup
		}
	}

	// 被回应的 Run 由回应定性；无人回应的 Run 才由 Run 定性
	for _, resp := range sig.Responses {
		if resp.IsQualifying() {
			return models.BeatResponse
		}
	}
	for _, run := range sig.Runs {
		if run.IsQualifying(s.cfg) {
			return models.BeatRun
		}
	}

	if sig.BackAndForth.IsQualifying() {
		return models.BeatBackAndForth
	}

	end := c.EndScore()
	chapterPoints := (end.Home - sig.EnteringScore.Home) + (end.Away - sig.EnteringScore.Away)
	scoring := len(ScoringEvents(c.Plays, sig.EnteringScore))

	if chapterPoints <= shotFestMaxPoints && c.PlayCount() >= shotFestMinPlays {
		return models.BeatMissedShotFest
	}
	if scoring <= 1 && sig.BackAndForth.LeadChanges == 0 {
		return models.BeatStall
	}

	// 显式的保守偏置
	return models.BeatBackAndForth
}

// chapterStartClock 返回章节第一个可解析时钟的秒数
func chapterStartClock(c models.Chapter) (int, bool) {
	for _, p := range c.Plays {
		if secs, ok := p.ClockSeconds(); ok {
			return secs, true
		}
	}
	return 0, false
}
