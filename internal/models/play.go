// internal/models/play.go
package models

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
)

// EventTypePlayByPlay 目前唯一支持的事件类型
const EventTypePlayByPlay = "pbp"

// Play 表示一条逐回合事件记录
// 摄入边界上完成校验，进入流水线后不可变、不可汇总
type Play struct {
	Index       int    `json:"index"`
	EventType   string `json:"event_type"`
	Period      int    `json:"period,omitempty"`
	GameClock   string `json:"game_clock,omitempty"` // "MM:SS"，可为空
	Description string `json:"description"`
	Team        string `json:"team,omitempty"`
	HomeScore   int    `json:"home_score"`
	AwayScore   int    `json:"away_score"`
	PlayerName  string `json:"player_name,omitempty"`
	PlayerID    string `json:"player_id,omitempty"` // 外部数字ID，仅透传，永不作为连接键
}

// GameMeta 上游提供的比赛元数据
type GameMeta struct {
	GameID       int64  `json:"game_id"`
	Sport        string `json:"sport"`
	HomeTeamName string `json:"home_team_name"`
	AwayTeamName string `json:"away_team_name"`
}

// Score 某一时刻的比分快照
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Margin 返回主队视角的分差
func (s Score) Margin() int { return s.Home - s.Away }

// Leader 返回领先方："home"、"away" 或平局时的空串
func (s Score) Leader() string {
	switch {
	case s.Home > s.Away:
		return "home"
	case s.Away > s.Home:
		return "away"
	default:
		return ""
	}
}

// ClockSeconds 解析 "MM:SS" 格式的比赛时钟，返回剩余秒数
func (p Play) ClockSeconds() (int, bool) {
	return ParseClock(p.GameClock)
}

// Score 返回该回合之后的累计比分
func (p Play) Score() Score {
	return Score{Home: p.HomeScore, Away: p.AwayScore}
}

// ParseClock 解析 "MM:SS" 时钟字符串
func ParseClock(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	m, err1 := strconv.Atoi(parts[0])
	s, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || m < 0 || s < 0 || s > 59 {
		return 0, false
	}
	return m*60 + s, true
}

// ValidatePlay 校验单条事件记录
// 构建与校验分离：Play 本身只是数据，所有拒绝逻辑集中在这里
func ValidatePlay(p Play) error {
	if p.Index < 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("play index 不能为负数: %d", p.Index), nil)
	}
	if p.EventType != EventTypePlayByPlay {
		return apperrors.NewStructuralError(
			fmt.Sprintf("play %d 的事件类型不受支持: %q", p.Index, p.EventType), nil)
	}
	if p.Period < 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("play %d 的节次非法: %d", p.Index, p.Period), nil)
	}
	if p.GameClock != "" {
		if _, ok := ParseClock(p.GameClock); !ok {
			return apperrors.NewStructuralError(
				fmt.Sprintf("play %d 的时钟格式非法: %q", p.Index, p.GameClock), nil)
		}
	}
	if p.HomeScore < 0 || p.AwayScore < 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("play %d 的比分不能为负数: %d-%d", p.Index, p.HomeScore, p.AwayScore), nil)
	}
	return nil
}

// ValidatePlays 校验整个事件序列：非空、索引连续、比分单调不减
func ValidatePlays(plays []Play) error {
	if len(plays) == 0 {
		return apperrors.NewStructuralError("事件序列为空", nil)
	}

	base := plays[0].Index
	prev := Score{}
	for i, p := range plays {
		if err := ValidatePlay(p); err != nil {
			return err
		}
		if p.Index != base+i {
			return apperrors.NewStructuralError(
				fmt.Sprintf("play 索引不连续: 位置 %d 期望 %d 实际 %d", i, base+i, p.Index), nil)
		}
		if p.HomeScore < prev.Home || p.AwayScore < prev.Away {
			return apperrors.NewStructuralError(
				fmt.Sprintf("play %d 的累计比分出现回退: %d-%d -> %d-%d",
					p.Index, prev.Home, prev.Away, p.HomeScore, p.AwayScore), nil)
		}
		prev = p.Score()
	}
	return nil
}

// ValidateGameMeta 校验比赛元数据
func ValidateGameMeta(meta GameMeta) error {
	if meta.GameID <= 0 {
		return apperrors.NewStructuralError(
			fmt.Sprintf("game_id 必须为正数: %d", meta.GameID), nil)
	}
	if meta.HomeTeamName == "" || meta.AwayTeamName == "" {
		return apperrors.NewStructuralError("主客队名称不能为空", nil)
	}
	return nil
}

// NormalizePlayerName 球员身份键：小写并去除首尾空白的显示名
// 外部数字ID可能缺失或不稳定，永远不用它做连接
func NormalizePlayerName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
