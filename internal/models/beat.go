// internal/models/beat.go
package models

// BeatType 叙事节拍类型（封闭集合：不新增、不同义、不复合）
type BeatType string

const (
	BeatFastStart       BeatType = "FAST_START"
	BeatMissedShotFest  BeatType = "MISSED_SHOT_FEST"
	BeatBackAndForth    BeatType = "BACK_AND_FORTH"
	BeatEarlyControl    BeatType = "EARLY_CONTROL"
	BeatRun             BeatType = "RUN"
	BeatResponse        BeatType = "RESPONSE"
	BeatStall           BeatType = "STALL"
	BeatCrunchSetup     BeatType = "CRUNCH_SETUP"
	BeatClosingSequence BeatType = "CLOSING_SEQUENCE"
	BeatOvertime        BeatType = "OVERTIME"
)

// AllBeatTypes 返回全部节拍类型（固定顺序）
func AllBeatTypes() []BeatType {
	return []BeatType{
		BeatFastStart, BeatMissedShotFest, BeatBackAndForth, BeatEarlyControl,
		BeatRun, BeatResponse, BeatStall, BeatCrunchSetup,
		BeatClosingSequence, BeatOvertime,
	}
}

// IsValidBeatType 检查节拍是否属于封闭集合
func IsValidBeatType(b BeatType) bool {
	switch b {
	case BeatFastStart, BeatMissedShotFest, BeatBackAndForth, BeatEarlyControl,
		BeatRun, BeatResponse, BeatStall, BeatCrunchSetup,
		BeatClosingSequence, BeatOvertime:
		return true
	}
	return false
}

// IsCrunchTier 关键时刻层级的节拍
// 与非关键节拍在段落合并时互斥
func (b BeatType) IsCrunchTier() bool {
	switch b {
	case BeatCrunchSetup, BeatClosingSequence, BeatOvertime:
		return true
	}
	return false
}
