// internal/services/quality_service.go
package services

import (
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// QualitySignals 整场比赛的质量信号
// 全部来自派生统计，无任何主观输入
type QualitySignals struct {
	ScoringEvents int  `json:"scoring_events"`
	LeadChanges   int  `json:"lead_changes"`
	MaxMargin     int  `json:"max_margin"`
	Overtime      bool `json:"overtime"`
}

// QualityService 质量分层与篇幅选择器
// 信号打分 → 三档质量 → 确定性篇幅目标，偏置向 MEDIUM 收敛
type QualityService struct{}

// NewQualityService 创建质量评估服务
func NewQualityService() *QualityService {
	return &QualityService{}
}

// 信号评分阈值
const (
	scoringHighThreshold  = 40
	scoringBasicThreshold = 25
	leadChangeHigh        = 8
	leadChangeBasic       = 4
)

// SignalsFromChapters 从章节序列提取质量信号
func (s *QualityService) SignalsFromChapters(chapters []ClassifiedChapter) QualitySignals {
	sig := QualitySignals{}
	var prevLeader string

	for _, cc := range chapters {
		if cc.Chapter.Period >= 5 {
			sig.Overtime = true
		}
		events := ScoringEvents(cc.Chapter.Plays, cc.EnteringScore)
		sig.ScoringEvents += len(events)
		for _, ev := range events {
			margin := ev.Score.Margin()
			if margin < 0 {
				margin = -margin
			}
			if margin > sig.MaxMargin {
				sig.MaxMargin = margin
			}
			leader := ev.Score.Leader()
			if leader != "" && prevLeader != "" && leader != prevLeader {
				sig.LeadChanges++
			}
			if leader != "" {
				prevLeader = leader
			}
		}
	}
	return sig
}

// Score 信号累计打分
// 得分回合 ≥40 记 2 分、≥25 记 1 分；领先易主 ≥8 记 2 分、≥4 记 1 分；加时记 2 分
func (s *QualityService) Score(sig QualitySignals) int {
	pts := 0
	switch {
	case sig.ScoringEvents >= scoringHighThreshold:
		pts += 2
	case sig.ScoringEvents >= scoringBasicThreshold:
		pts++
	}
	switch {
	case sig.LeadChanges >= leadChangeHigh:
		pts += 2
	case sig.LeadChanges >= leadChangeBasic:
		pts++
	}
	if sig.Overtime {
		pts += 2
	}
	return pts
}

// SelectTier 分数到质量档位
// ≥4 为 HIGH，0 为 LOW，其余一律 MEDIUM
func (s *QualityService) SelectTier(sig QualitySignals) models.QualityTier {
	pts := s.Score(sig)
	switch {
	case pts >= 4:
		return models.QualityHigh
	case pts == 0:
		return models.QualityLow
	default:
		return models.QualityMedium
	}
}

// Evaluate 一步到位：信号 → 档位 → 篇幅目标
func (s *QualityService) Evaluate(chapters []ClassifiedChapter) (QualitySignals, models.QualityTier, models.LengthTarget) {
	sig := s.SignalsFromChapters(chapters)
	tier := s.SelectTier(sig)
	return sig, tier, models.LengthTargetFor(tier)
}
