// internal/services/window_service.go
package services

import (
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// DetectorConfig 模式探测器阈值配置
type DetectorConfig struct {
	RunRegisterPoints  int     // 连续得分达到该值才记录为 Run 窗口
	RunMarginTrigger   int     // 分差扩大达到该值即判定合格
	EarlyClockSeconds  int     // 开局窗口：第一节剩余时间大于该值
	EarlyControlMargin int     // EARLY_CONTROL 分差阈值
	EarlyControlShare  float64 // EARLY_CONTROL 领先方得分占比阈值
	FastStartCombined  int     // FAST_START 双方合计得分阈值
	FastStartMaxMargin int     // FAST_START 允许的最大分差
}

// DefaultDetectorConfig 返回默认探测器配置
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		RunRegisterPoints:  6,
		RunMarginTrigger:   8,
		EarlyClockSeconds:  360,
		EarlyControlMargin: 8,
		EarlyControlShare:  0.65,
		FastStartCombined:  30,
		FastStartMaxMargin: 6,
	}
}

// WindowService 无状态的模式探测器集合
// 每个探测器都是对给定事件切片的纯函数，章节之间不保留任何状态
type WindowService struct {
	cfg DetectorConfig
}

// NewWindowService 创建窗口探测服务
func NewWindowService(cfg DetectorConfig) *WindowService {
	return &WindowService{cfg: cfg}
}

// Config 返回探测器配置
func (s *WindowService) Config() DetectorConfig { return s.cfg }

// ScoringEvent 从累计比分差分出的单次得分事件
type ScoringEvent struct {
	PlayIdx   int    // 事件在整场比赛中的索引
	Team      string // "home" / "away"，双方同时变动的异常记录为 ""
	Points    int
	Score     models.Score // 事件之后的累计比分
	Player    string       // 规范化球员键
	PlayerRaw string       // 显示名
}

// ScoringEvents 差分事件切片得到得分事件序列
// entering 是进入该切片前的累计比分基线
func ScoringEvents(plays []models.Play, entering models.Score) []ScoringEvent {
	events := make([]ScoringEvent, 0)
	prev := entering
	for _, p := range plays {
		cur := p.Score()
		dh := cur.Home - prev.Home
		da := cur.Away - prev.Away
		if dh == 0 && da == 0 {
			continue
		}
		ev := ScoringEvent{
			PlayIdx:   p.Index,
			Score:     cur,
			Player:    models.NormalizePlayerName(p.PlayerName),
			PlayerRaw: p.PlayerName,
		}
		switch {
		case dh > 0 && da > 0:
			// 同一事件双方比分同时变动：异常，关闭当前窗口用
			ev.Team = ""
			ev.Points = dh + da
		case dh > 0:
			ev.Team = "home"
			ev.Points = dh
		default:
			ev.Team = "away"
			ev.Points = da
		}
		events = append(events, ev)
		prev = cur
	}
	return events
}

// RunWindow 单方连续得分窗口
type RunWindow struct {
	Team             string       `json:"team"` // "home" / "away"
	StartPlayIdx     int          `json:"start_play_idx"`
	EndPlayIdx       int          `json:"end_play_idx"`
	PointsScored     int          `json:"points_scored"`
	StartScore       models.Score `json:"start_score"` // 窗口开始前的比分
	EndScore         models.Score `json:"end_score"`
	CausedLeadChange bool         `json:"caused_lead_change"`
	MarginExpansion  int          `json:"margin_expansion"` // 以连续得分方视角的分差扩大量
}

// IsQualifying 窗口是否合格：造成领先易主，或分差扩大达到阈值
func (w RunWindow) IsQualifying(cfg DetectorConfig) bool {
	return w.CausedLeadChange || w.MarginExpansion >= cfg.RunMarginTrigger
}

// DetectRunWindows 探测章节内的连续得分窗口
// 平局、双方同记分异常、对方得分都会关闭当前窗口
func (s *WindowService) DetectRunWindows(plays []models.Play, entering models.Score) []RunWindow {
	events := ScoringEvents(plays, entering)
	windows := make([]RunWindow, 0)

	var cur *RunWindow
	prevScore := entering

	closeCurrent := func() {
		if cur == nil {
			return
		}
		if cur.PointsScored >= s.cfg.RunRegisterPoints {
			cur.CausedLeadChange = cur.StartScore.Leader() != cur.Team &&
				cur.EndScore.Leader() == cur.Team
			cur.MarginExpansion = marginFor(cur.Team, cur.EndScore) - marginFor(cur.Team, cur.StartScore)
			windows = append(windows, *cur)
		}
		cur = nil
	}

	for _, ev := range events {
		if ev.Team == "" {
			// 同时记分异常
			closeCurrent()
			prevScore = ev.Score
			continue
		}
		if cur != nil && cur.Team != ev.Team {
			closeCurrent()
		}
		if cur == nil {
			cur = &RunWindow{
				Team:         ev.Team,
				StartPlayIdx: ev.PlayIdx,
				StartScore:   prevScore,
			}
		}
		cur.EndPlayIdx = ev.PlayIdx
		cur.PointsScored += ev.Points
		cur.EndScore = ev.Score
		if ev.Score.Leader() == "" {
			// 得分后战平，窗口在此收口
			closeCurrent()
		}
		prevScore = ev.Score
	}
	closeCurrent()

	return windows
}

// marginFor 返回指定队伍视角的分差
func marginFor(team string, s models.Score) int {
	if team == "away" {
		return s.Away - s.Home
	}
	return s.Home - s.Away
}

// ResponseWindow 对合格 Run 的回应窗口
type ResponseWindow struct {
	RespondingTeam string `json:"responding_team"`
	RunTeam        string `json:"run_team"`
	StartPlayIdx   int    `json:"start_play_idx"` // 紧随 Run 窗口结束的下一事件
	EndPlayIdx     int    `json:"end_play_idx"`   // 章节末尾
	ResponsePoints int    `json:"response_points"`
	RunTeamPoints  int    `json:"run_team_points"` // Run 方在回应区间内的得分
}

// IsQualifying 回应是否合格：回应方得分多于原 Run 方（无需领先易主）
func (w ResponseWindow) IsQualifying() bool {
	return w.ResponsePoints > w.RunTeamPoints
}

// DetectResponseWindows 对每个合格 Run 窗口探测其后的回应窗口
func (s *WindowService) DetectResponseWindows(plays []models.Play, entering models.Score, runs []RunWindow) []ResponseWindow {
	if len(plays) == 0 {
		return nil
	}
	lastIdx := plays[len(plays)-1].Index
	events := ScoringEvents(plays, entering)

	windows := make([]ResponseWindow, 0)
	for _, run := range runs {
		if !run.IsQualifying(s.cfg) {
			continue
		}
		if run.EndPlayIdx >= lastIdx {
			continue
		}
		resp := ResponseWindow{
			RespondingTeam: otherTeam(run.Team),
			RunTeam:        run.Team,
			StartPlayIdx:   run.EndPlayIdx + 1,
			EndPlayIdx:     lastIdx,
		}
		for _, ev := range events {
			if ev.PlayIdx <= run.EndPlayIdx {
				continue
			}
			switch ev.Team {
			case resp.RespondingTeam:
				resp.ResponsePoints += ev.Points
			case run.Team:
				resp.RunTeamPoints += ev.Points
			}
		}
		windows = append(windows, resp)
	}
	return windows
}

func otherTeam(team string) string {
	if team == "home" {
		return "away"
	}
	return "home"
}

// BackAndForthResult 拉锯扫描结果
type BackAndForthResult struct {
	LeadChanges int `json:"lead_changes"`
	Ties        int `json:"ties"`
}

// IsQualifying 拉锯是否成立
func (r BackAndForthResult) IsQualifying() bool {
	return r.LeadChanges >= 2 || r.Ties >= 3
}

// AnalyzeBackAndForth 统计章节内的领先易主与战平次数
func (s *WindowService) AnalyzeBackAndForth(plays []models.Play, entering models.Score) BackAndForthResult {
	var result BackAndForthResult
	prevLeader := entering.Leader()
	for _, ev := range ScoringEvents(plays, entering) {
		leader := ev.Score.Leader()
		if leader == "" {
			result.Ties++
			continue
		}
		if prevLeader != "" && leader != prevLeader {
			result.LeadChanges++
		}
		prevLeader = leader
	}
	return result
}

// EarlyWindowResult 开局窗口分析结果（仅作用于开局段落）
type EarlyWindowResult struct {
	Applies        bool            `json:"applies"`
	Override       models.BeatType `json:"override,omitempty"` // EARLY_CONTROL / FAST_START，空表示不覆盖
	CombinedPoints int             `json:"combined_points"`
	Margin         int             `json:"margin"`
	Leader         string          `json:"leader,omitempty"`
	LeaderShare    float64         `json:"leader_share"`
}

// AnalyzeEarlyWindow 聚合第一节剩余时间大于阈值的得分
// EARLY_CONTROL 优先于 FAST_START，最多只有一个覆盖生效
func (s *WindowService) AnalyzeEarlyWindow(plays []models.Play) EarlyWindowResult {
	var result EarlyWindowResult
	var last models.Score
	found := false
	for _, p := range plays {
		if p.Period != 1 {
			continue
		}
		secs, ok := p.ClockSeconds()
		if !ok || secs <= s.cfg.EarlyClockSeconds {
			continue
		}
		last = p.Score()
		found = true
	}
	if !found {
		return result
	}

	result.Applies = true
	result.CombinedPoints = last.Home + last.Away
	result.Margin = last.Margin()
	if result.Margin < 0 {
		result.Margin = -result.Margin
	}
	result.Leader = last.Leader()
	if result.CombinedPoints > 0 {
		leaderPts := last.Home
		if result.Leader == "away" {
			leaderPts = last.Away
		}
		result.LeaderShare = float64(leaderPts) / float64(result.CombinedPoints)
	}

	switch {
	case result.Leader != "" &&
		result.Margin >= s.cfg.EarlyControlMargin &&
		result.LeaderShare >= s.cfg.EarlyControlShare:
		result.Override = models.BeatEarlyControl
	case result.CombinedPoints >= s.cfg.FastStartCombined &&
		result.Margin <= s.cfg.FastStartMaxMargin:
		result.Override = models.BeatFastStart
	}
	return result
}
