// internal/archive/archive.go
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Corphon/GameStoryMCP/internal/models"
)

// SchemaSQL 故事归档库结构
// 大纲按JSON整体归档，渲染产物按 (game_id, mode) 追加
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS game_stories (
    game_id INTEGER PRIMARY KEY,
    sport TEXT,
    chapter_count INTEGER,
    total_plays INTEGER,
    fingerprint TEXT,
    story_json TEXT,
    sections_json TEXT,
    created_at TEXT
);

CREATE TABLE IF NOT EXISTS renders (
    id INTEGER PRIMARY KEY,
    game_id INTEGER,
    mode TEXT,
    narrative TEXT,
    word_count INTEGER,
    created_at TEXT
);
`

// Archive 基于sqlite的故事归档
type Archive struct {
	conn *sql.DB
}

// Open 打开（必要时创建）归档库
func Open(path string) (*Archive, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := conn.Exec(SchemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Archive{conn: conn}, nil
}

// Close 关闭归档库
func (a *Archive) Close() error {
	return a.conn.Close()
}

// StoredStory 归档中的一条故事记录
type StoredStory struct {
	Story       models.GameStory      `json:"story"`
	Sections    []models.StorySection `json:"sections"`
	Fingerprint string                `json:"fingerprint"`
	CreatedAt   string                `json:"created_at"`
}

// SaveStory 归档一份大纲，重复归档同一场比赛时整体覆盖
func (a *Archive) SaveStory(story models.GameStory, sections []models.StorySection, fingerprint string) error {
	storyJSON, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("marshal story: %w", err)
	}
	sectionsJSON, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}

	_, err = a.conn.Exec(
		`INSERT INTO game_stories(game_id, sport, chapter_count, total_plays, fingerprint, story_json, sections_json, created_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(game_id) DO UPDATE SET
		   sport=excluded.sport,
		   chapter_count=excluded.chapter_count,
		   total_plays=excluded.total_plays,
		   fingerprint=excluded.fingerprint,
		   story_json=excluded.story_json,
		   sections_json=excluded.sections_json,
		   created_at=excluded.created_at`,
		story.GameID,
		story.Sport,
		story.ChapterCount,
		story.TotalPlays,
		fingerprint,
		string(storyJSON),
		string(sectionsJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

// SaveRender 归档一次渲染产物，mode 为 "book" 或 "sequential"
func (a *Archive) SaveRender(gameID int64, mode, narrative string, wordCount int) error {
	_, err := a.conn.Exec(
		`INSERT INTO renders(game_id, mode, narrative, word_count, created_at) VALUES(?,?,?,?,?)`,
		gameID,
		mode,
		narrative,
		wordCount,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert render: %w", err)
	}
	return nil
}

// GetStory 读取归档的大纲，未找到时返回 sql.ErrNoRows
func (a *Archive) GetStory(gameID int64) (*StoredStory, error) {
	row := a.conn.QueryRow(
		`SELECT fingerprint, story_json, sections_json, created_at FROM game_stories WHERE game_id = ?`,
		gameID,
	)

	var stored StoredStory
	var storyJSON, sectionsJSON string
	if err := row.Scan(&stored.Fingerprint, &storyJSON, &sectionsJSON, &stored.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(storyJSON), &stored.Story); err != nil {
		return nil, fmt.Errorf("unmarshal story: %w", err)
	}
	if err := json.Unmarshal([]byte(sectionsJSON), &stored.Sections); err != nil {
		return nil, fmt.Errorf("unmarshal sections: %w", err)
	}
	return &stored, nil
}

// GameListing 归档比赛的概览条目
type GameListing struct {
	GameID       int64  `json:"game_id"`
	Sport        string `json:"sport"`
	ChapterCount int    `json:"chapter_count"`
	TotalPlays   int    `json:"total_plays"`
	Fingerprint  string `json:"fingerprint"`
	CreatedAt    string `json:"created_at"`
}

// ListGames 按归档时间倒序列出所有比赛
func (a *Archive) ListGames() ([]GameListing, error) {
	rows, err := a.conn.Query(
		`SELECT game_id, sport, chapter_count, total_plays, fingerprint, created_at
		 FROM game_stories ORDER BY created_at DESC, game_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var listings []GameListing
	for rows.Next() {
		var g GameListing
		if err := rows.Scan(&g.GameID, &g.Sport, &g.ChapterCount, &g.TotalPlays, &g.Fingerprint, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		listings = append(listings, g)
	}
	return listings, rows.Err()
}

// CountRenders 某场比赛的渲染次数
func (a *Archive) CountRenders(gameID int64) (int, error) {
	row := a.conn.QueryRow(`SELECT COUNT(*) FROM renders WHERE game_id = ?`, gameID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return count, nil
}
