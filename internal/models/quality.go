// internal/models/quality.go
package models

// QualityTier 故事质量档位（确定性评分，仅用于长度指导）
type QualityTier string

const (
	QualityLow    QualityTier = "LOW"
	QualityMedium QualityTier = "MEDIUM"
	QualityHigh   QualityTier = "HIGH"
)

// LengthTarget 某一档位对应的目标字数区间
type LengthTarget struct {
	Tier        QualityTier `json:"tier"`
	TargetWords int         `json:"target_words"`
	MinWords    int         `json:"min_words"`
	MaxWords    int         `json:"max_words"`
}

// LengthTargetFor 档位到目标字数的固定映射
func LengthTargetFor(tier QualityTier) LengthTarget {
	switch tier {
	case QualityLow:
		return LengthTarget{Tier: QualityLow, TargetWords: 450, MinWords: 400, MaxWords: 500}
	case QualityHigh:
		return LengthTarget{Tier: QualityHigh, TargetWords: 700, MinWords: 620, MaxWords: 800}
	default:
		// 不确定时偏向 MEDIUM
		return LengthTarget{Tier: QualityMedium, TargetWords: 550, MinWords: 500, MaxWords: 620}
	}
}

// ReadingTimeMinutes 按每分钟200词估算阅读时长，向上取整
func ReadingTimeMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + 199) / 200
}
