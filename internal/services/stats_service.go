// internal/services/stats_service.go
package services

import (
	"sort"
	"strings"

	"github.com/Corphon/GameStoryMCP/internal/models"
)

// StatSnapshot 某个章节边界处的累计统计（从比赛开始到该章节结束）
type StatSnapshot struct {
	ThroughChapterIndex int          `json:"through_chapter_index"` // -1 表示比赛开始前
	Score               models.Score `json:"score"`

	PlayerPoints map[string]int    `json:"player_points"` // 规范化球员键 -> 累计得分
	PlayerNames  map[string]string `json:"player_names"`  // 规范化键 -> 显示名
	PlayerTeams  map[string]string `json:"player_teams"`  // 规范化键 -> 队名

	TeamFouls map[string]int `json:"team_fouls"` // 队名 -> 犯规数
	Timeouts  map[string]int `json:"timeouts"`   // 队名 -> 暂停数

	ScoringPlays int `json:"scoring_plays"`
	LeadChanges  int `json:"lead_changes"`
	Ties         int `json:"ties"`
}

// SectionDelta 段落区间统计：段末快照减去段首快照
type SectionDelta struct {
	Points       models.Score      `json:"points"` // 区间内双方净得分
	PlayerPoints map[string]int    `json:"player_points"`
	PlayerNames  map[string]string `json:"player_names"`
	ScoringPlays int               `json:"scoring_plays"`
	LeadChanges  int               `json:"lead_changes"`
	Ties         int               `json:"ties"`
	TeamFouls    map[string]int    `json:"team_fouls"`
	Timeouts     map[string]int    `json:"timeouts"`
}

// StatsService 运行统计构建器
// 确定性、无副作用，从不触发生成渲染
type StatsService struct{}

// NewStatsService 创建统计服务
func NewStatsService() *StatsService {
	return &StatsService{}
}

// BuildSnapshots 在每个章节边界生成累计快照
// 返回切片长度等于章节数，snapshots[i] 覆盖 0..i 章
func (s *StatsService) BuildSnapshots(chapters []models.Chapter) []StatSnapshot {
	snapshots := make([]StatSnapshot, 0, len(chapters))

	acc := emptySnapshot(-1)
	prevScore := models.Score{}
	prevLeader := ""

	for ci, chapter := range chapters {
		for _, p := range chapter.Plays {
			cur := p.Score()
			dh := cur.Home - prevScore.Home
			da := cur.Away - prevScore.Away

			if dh > 0 || da > 0 {
				acc.ScoringPlays++
				key := models.NormalizePlayerName(p.PlayerName)
				if key != "" {
					acc.PlayerPoints[key] += dh + da
					acc.PlayerNames[key] = strings.TrimSpace(p.PlayerName)
					if p.Team != "" {
						acc.PlayerTeams[key] = p.Team
					}
				}
				leader := cur.Leader()
				if leader == "" {
					acc.Ties++
				} else if prevLeader != "" && leader != prevLeader {
					acc.LeadChanges++
				}
				if leader != "" {
					prevLeader = leader
				}
			}

			desc := strings.ToLower(p.Description)
			if strings.Contains(desc, "timeout") && p.Team != "" {
				acc.Timeouts[p.Team]++
			}
			if strings.Contains(desc, "foul") && p.Team != "" {
				acc.TeamFouls[p.Team]++
			}

			prevScore = cur
		}

		acc.ThroughChapterIndex = ci
		acc.Score = prevScore
		snapshots = append(snapshots, cloneSnapshot(acc))
	}

	return snapshots
}

// SectionDelta 计算指定章节区间（闭区间）的统计增量
// startChapterIdx 之前的快照作为基线；startChapterIdx==0 时基线为空
func (s *StatsService) SectionDelta(snapshots []StatSnapshot, startChapterIdx, endChapterIdx int) SectionDelta {
	end := snapshots[endChapterIdx]
	start := emptySnapshot(-1)
	if startChapterIdx > 0 {
		start = snapshots[startChapterIdx-1]
	}

	delta := SectionDelta{
		Points: models.Score{
			Home: end.Score.Home - start.Score.Home,
			Away: end.Score.Away - start.Score.Away,
		},
		PlayerPoints: make(map[string]int),
		PlayerNames:  make(map[string]string),
		ScoringPlays: end.ScoringPlays - start.ScoringPlays,
		LeadChanges:  end.LeadChanges - start.LeadChanges,
		Ties:         end.Ties - start.Ties,
		TeamFouls:    make(map[string]int),
		Timeouts:     make(map[string]int),
	}

	for key, pts := range end.PlayerPoints {
		if d := pts - start.PlayerPoints[key]; d > 0 {
			delta.PlayerPoints[key] = d
			delta.PlayerNames[key] = end.PlayerNames[key]
		}
	}
	for team, n := range end.TeamFouls {
		if d := n - start.TeamFouls[team]; d > 0 {
			delta.TeamFouls[team] = d
		}
	}
	for team, n := range end.Timeouts {
		if d := n - start.Timeouts[team]; d > 0 {
			delta.Timeouts[team] = d
		}
	}
	return delta
}

// TopScorers 按得分降序返回前 n 名球员，同分按规范化键排序保证确定性
func (s *StatsService) TopScorers(snapshot StatSnapshot, n int) []models.PlayerStanding {
	keys := make([]string, 0, len(snapshot.PlayerPoints))
	for key := range snapshot.PlayerPoints {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := snapshot.PlayerPoints[keys[i]], snapshot.PlayerPoints[keys[j]]
		if pi != pj {
			return pi > pj
		}
		return keys[i] < keys[j]
	})

	if len(keys) > n {
		keys = keys[:n]
	}
	standings := make([]models.PlayerStanding, 0, len(keys))
	for _, key := range keys {
		standings = append(standings, models.PlayerStanding{
			Name:   snapshot.PlayerNames[key],
			Key:    key,
			Points: snapshot.PlayerPoints[key],
			Team:   snapshot.PlayerTeams[key],
		})
	}
	return standings
}

func emptySnapshot(through int) StatSnapshot {
	return StatSnapshot{
		ThroughChapterIndex: through,
		Score:               models.Score{},
		PlayerPoints:        make(map[string]int),
		PlayerNames:         make(map[string]string),
		PlayerTeams:         make(map[string]string),
		TeamFouls:           make(map[string]int),
		Timeouts:            make(map[string]int),
	}
}

func cloneSnapshot(src StatSnapshot) StatSnapshot {
	dst := src
	dst.PlayerPoints = make(map[string]int, len(src.PlayerPoints))
	for k, v := range src.PlayerPoints {
		dst.PlayerPoints[k] = v
	}
	dst.PlayerNames = make(map[string]string, len(src.PlayerNames))
	for k, v := range src.PlayerNames {
		dst.PlayerNames[k] = v
	}
	dst.PlayerTeams = make(map[string]string, len(src.PlayerTeams))
	for k, v := range src.PlayerTeams {
		dst.PlayerTeams[k] = v
	}
	dst.TeamFouls = make(map[string]int, len(src.TeamFouls))
	for k, v := range src.TeamFouls {
		dst.TeamFouls[k] = v
	}
	dst.Timeouts = make(map[string]int, len(src.Timeouts))
	for k, v := range src.Timeouts {
		dst.Timeouts[k] = v
	}
	return dst
}
