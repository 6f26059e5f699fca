// internal/services/qa_service.go
package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// QAConfig 渲染质检配置
type QAConfig struct {
	LengthTolerance float64 // 篇幅目标的相对容差
}

// DefaultQAConfig 默认质检配置
func DefaultQAConfig() QAConfig {
	return QAConfig{LengthTolerance: 0.15}
}

// RenderCheckInput 单次渲染产物的质检载荷
// 全部派生自结构化数据，质检本身不回看原始回合文本
type RenderCheckInput struct {
	Narrative      string
	TargetWords    int
	KnownEntities  map[string]bool // 规范化后的球员/球队实体全集
	AllowedNumbers map[int]bool    // 超过小数字阈值后必须命中的数字集合
	ScorePairs     map[string]bool // 观测到的累计比分对 "a-b"（两个方向都登记）
	FinalScore     models.Score
	WinnerName     string
	LoserName      string
	Overtime       bool
	Sequential     bool         // 逐章模式：禁止剧透
	MaxScore       models.Score // 逐章模式下当前章节末的比分上限

	// 逐章模式下按章节前缀限定的数字白名单
	// 第i个集合只包含章节0..i可派生的数字，防止提前泄露终局数字
	NumbersThroughChapter []map[int]bool
}

// QAService 渲染后验证器
// 只判定、不修复：任何一项不通过都整体拒绝这次渲染
type QAService struct {
	cfg QAConfig
}

// NewQAService 创建质检服务
func NewQAService(cfg QAConfig) *QAService {
	if cfg.LengthTolerance <= 0 {
		cfg = DefaultQAConfig()
	}
	return &QAService{cfg: cfg}
}

// 小于等于该值的数字视为叙事常用数字，不做白名单约束
const smallNumberCeiling = 12

var (
	entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	numberPattern = regexp.MustCompile(`\d+`)
	scorePattern  = regexp.MustCompile(`(\d+)\s*[-–]\s*(\d+)`)
	winWords      = []string{"win", "won", "wins", "victory", "clinched", "prevailed"}
)

// Check 对一次渲染产物执行全部质检项
func (s *QAService) Check(input RenderCheckInput) error {
	if err := s.checkLength(input); err != nil {
		return err
	}
	if err := s.checkEntities(input); err != nil {
		return err
	}
	if err := s.checkScores(input); err != nil {
		return err
	}
	if err := s.checkNumbers(input); err != nil {
		return err
	}
	if err := s.checkContradictions(input); err != nil {
		return err
	}
	return nil
}

// checkLength 词数必须落在目标 ± 容差内
func (s *QAService) checkLength(input RenderCheckInput) error {
	words := len(strings.Fields(input.Narrative))
	min := int(float64(input.TargetWords) * (1 - s.cfg.LengthTolerance))
	max := int(float64(input.TargetWords) * (1 + s.cfg.LengthTolerance))
	if words < min || words > max {
		return apperrors.NewQAValidationError(
			fmt.Sprintf("渲染篇幅 %d 词超出 [%d,%d] (目标 %d ± %.0f%%)",
				words, min, max, input.TargetWords, s.cfg.LengthTolerance*100), nil)
	}
	return nil
}

// checkEntities 多词大写实体必须来自已知球员/球队集合
// 防止渲染器虚构球员名
func (s *QAService) checkEntities(input RenderCheckInput) error {
	for _, candidate := range entityPattern.FindAllString(input.Narrative, -1) {
		if entityKnown(candidate, input.KnownEntities) {
			continue
		}
		return apperrors.NewQAValidationError(
			fmt.Sprintf("渲染结果包含未知实体 %q", candidate), nil)
	}
	return nil
}

// entityKnown 实体整体或其每个词都能在已知集合中找到即视为合法
func entityKnown(candidate string, known map[string]bool) bool {
	if known[models.NormalizePlayerName(candidate)] {
		return true
	}
	for _, part := range strings.Fields(candidate) {
		if !known[models.NormalizePlayerName(part)] {
			return false
		}
	}
	return true
}

// checkScores 比分写法必须对应观测到过的累计比分
// 逐章模式下额外禁止出现超过当前章节末比分的数字（剧透）
func (s *QAService) checkScores(input RenderCheckInput) error {
	for _, m := range scorePattern.FindAllStringSubmatch(input.Narrative, -1) {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		key := fmt.Sprintf("%d-%d", a, b)
		if !input.ScorePairs[key] {
			return apperrors.NewQAValidationError(
				fmt.Sprintf("比分 %s 从未在时间线中出现", key), nil)
		}
		if input.Sequential {
			ceiling := input.MaxScore.Home
			if input.MaxScore.Away > ceiling {
				ceiling = input.MaxScore.Away
			}
			if a > ceiling || b > ceiling {
				return apperrors.NewQAValidationError(
					fmt.Sprintf("比分 %s 泄露了本章之后的进展 (当前上限 %d)", key, ceiling), nil)
			}
		}
	}
	return nil
}

// checkNumbers 大数字必须命中派生数据白名单
func (s *QAService) checkNumbers(input RenderCheckInput) error {
	for _, raw := range numberPattern.FindAllString(input.Narrative, -1) {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= smallNumberCeiling {
			continue
		}
		if !input.AllowedNumbers[n] {
			return apperrors.NewQAValidationError(
				fmt.Sprintf("数字 %d 无法从结构化数据中派生", n), nil)
		}
	}
	return nil
}

// checkContradictions 叙事不得与终局事实矛盾
// 两类：把胜利描述安在输球一方、无加时比赛却提到加时
func (s *QAService) checkContradictions(input RenderCheckInput) error {
	lower := strings.ToLower(input.Narrative)

	if !input.Overtime && strings.Contains(lower, "overtime") {
		return apperrors.NewQAValidationError("比赛没有加时，渲染结果却提到了加时", nil)
	}

	if input.Sequential || input.WinnerName == "" || input.LoserName == "" {
		return nil
	}
	loser := strings.ToLower(input.LoserName)
	winner := strings.ToLower(input.WinnerName)
	for _, sentence := range splitSentences(lower) {
		if !strings.Contains(sentence, loser) || strings.Contains(sentence, winner) {
			continue
		}
		for _, w := range winWords {
			if containsWord(sentence, w) {
				return apperrors.NewQAValidationError(
					fmt.Sprintf("渲染结果把胜利描述安在了 %s 身上", input.LoserName), nil)
			}
		}
	}
	return nil
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

func containsWord(sentence, word string) bool {
	for _, f := range strings.Fields(sentence) {
		if strings.Trim(f, ",;:\"'()") == word {
			return true
		}
	}
	return false
}

// BuildCheckInput 从全场数据派生质检载荷的公共部分
// 实体白名单覆盖回合数据中出现过的每一个球员与球队，包括从未得分的球员；
// 数字白名单：所有累计比分分量、净胜分、总分、球员累计得分、节次与篇幅数字
func (s *QAService) BuildCheckInput(meta models.GameMeta, story models.GameStory, snapshots []StatSnapshot, target models.LengthTarget) RenderCheckInput {
	entities := make(map[string]bool)
	registerEntity(entities, meta.HomeTeamName)
	registerEntity(entities, meta.AwayTeamName)

	numbers := map[int]bool{
		target.TargetWords: true,
		target.MinWords:    true,
		target.MaxWords:    true,
	}
	pairs := make(map[string]bool)
	perChapter := make([]map[int]bool, len(story.Chapters))

	entering := models.Score{}
	for i, ch := range story.Chapters {
		numbers[ch.Period] = true
		for _, p := range ch.Plays {
			registerEntity(entities, p.PlayerName)
			registerEntity(entities, p.Team)
		}
		for _, ev := range ScoringEvents(ch.Plays, entering) {
			registerScore(numbers, pairs, ev.Score)
		}
		if i < len(snapshots) {
			for _, pts := range snapshots[i].PlayerPoints {
				numbers[pts] = true
			}
		}
		perChapter[i] = copyNumberSet(numbers)
		entering = ch.EndScore()
	}

	winner, loser := "", ""
	switch story.FinalScore().Leader() {
	case "home":
		winner, loser = meta.HomeTeamName, meta.AwayTeamName
	case "away":
		winner, loser = meta.AwayTeamName, meta.HomeTeamName
	}

	return RenderCheckInput{
		TargetWords:           target.TargetWords,
		KnownEntities:         entities,
		AllowedNumbers:        numbers,
		ScorePairs:            pairs,
		FinalScore:            story.FinalScore(),
		WinnerName:            winner,
		LoserName:             loser,
		Overtime:              story.HadOvertime(),
		NumbersThroughChapter: perChapter,
	}
}

// registerEntity 把名字整体与其每个词都登记进实体白名单
func registerEntity(entities map[string]bool, name string) {
	if name == "" {
		return
	}
	entities[models.NormalizePlayerName(name)] = true
	for _, part := range strings.Fields(name) {
		entities[models.NormalizePlayerName(part)] = true
	}
}

func copyNumberSet(src map[int]bool) map[int]bool {
	dst := make(map[int]bool, len(src))
	for n := range src {
		dst[n] = true
	}
	return dst
}

// CheckBookRender 全书模式质检
func (s *QAService) CheckBookRender(narrative string, base RenderCheckInput) error {
	base.Narrative = narrative
	base.Sequential = false
	return s.Check(base)
}

// CheckChapterRender 逐章模式质检：上限比分为当前章节末比分，
// 数字白名单收窄为章节前缀可派生的集合
func (s *QAService) CheckChapterRender(narrative string, base RenderCheckInput, chapterIdx int, chapterEnd models.Score, targetWords int) error {
	base.Narrative = narrative
	base.Sequential = true
	base.MaxScore = chapterEnd
	base.TargetWords = targetWords
	if chapterIdx >= 0 && chapterIdx < len(base.NumbersThroughChapter) {
		base.AllowedNumbers = base.NumbersThroughChapter[chapterIdx]
	}
	return s.Check(base)
}

func registerScore(numbers map[int]bool, pairs map[string]bool, sc models.Score) {
	numbers[sc.Home] = true
	numbers[sc.Away] = true
	numbers[sc.Home+sc.Away] = true
	margin := sc.Margin()
	if margin < 0 {
		margin = -margin
	}
	numbers[margin] = true
	pairs[fmt.Sprintf("%d-%d", sc.Home, sc.Away)] = true
	pairs[fmt.Sprintf("%d-%d", sc.Away, sc.Home)] = true
}
