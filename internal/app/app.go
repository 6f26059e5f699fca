// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/GameStoryMCP/internal/archive"
	"github.com/Corphon/GameStoryMCP/internal/config"
	"github.com/Corphon/GameStoryMCP/internal/di"
	"github.com/Corphon/GameStoryMCP/internal/services"
	"github.com/Corphon/GameStoryMCP/internal/storage"
	"github.com/Corphon/GameStoryMCP/internal/utils"

	// 注册渲染提供商
	_ "github.com/Corphon/GameStoryMCP/internal/llm/providers/openai"
	_ "github.com/Corphon/GameStoryMCP/internal/llm/providers/openrouter"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 顺序：基础设施（存储/归档/进度）→ 确定性管线服务 → 渲染服务 → 编排器
func InitServices() error {
	container := di.GetContainer()
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置未初始化")
	}

	// 基础设施层
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	var store *archive.Archive
	if cfg.ArchivePath != "" {
		store, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			// 归档是可选能力，失败时降级运行
			utils.GetLogger().Warnf("打开故事归档失败，归档功能不可用: %v", err)
		} else {
			container.Register("archive", store)
		}
	}

	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	// 确定性管线服务
	chapterService := services.NewChapterService(services.DefaultChapterConfig())
	container.Register("chapter", chapterService)

	windowService := services.NewWindowService(services.DefaultDetectorConfig())
	container.Register("window", windowService)

	statsService := services.NewStatsService()
	container.Register("stats", statsService)

	beatService := services.NewBeatService(windowService.Config())
	container.Register("beat", beatService)

	sectionService := services.NewSectionService(windowService)
	container.Register("section", sectionService)

	coverageService := services.NewCoverageService()
	container.Register("coverage", coverageService)

	qualityService := services.NewQualityService()
	container.Register("quality", qualityService)

	contextService := services.NewContextService(statsService)
	container.Register("context", contextService)

	qaService := services.NewQAService(services.DefaultQAConfig())
	container.Register("qa", qaService)

	// 渲染服务
	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("初始化LLM服务失败: %w", err)
	}
	container.Register("llm", llmService)

	// 编排器
	storyService := services.NewStoryService(
		chapterService,
		windowService,
		statsService,
		beatService,
		sectionService,
		coverageService,
		qualityService,
		contextService,
		qaService,
		llmService,
		progressService,
		store,
	)
	container.Register("story", storyService)

	return nil
}

// Cleanup 释放需要显式关闭的资源
func Cleanup() {
	container := di.GetContainer()
	if store, ok := container.Get("archive").(*archive.Archive); ok && store != nil {
		if err := store.Close(); err != nil {
			utils.GetLogger().Warnf("关闭故事归档失败: %v", err)
		}
	}
	container.Clear()
}
