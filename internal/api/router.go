// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/GameStoryMCP/internal/archive"
	"github.com/Corphon/GameStoryMCP/internal/config"
	"github.com/Corphon/GameStoryMCP/internal/di"
	"github.com/Corphon/GameStoryMCP/internal/services"
	"github.com/Corphon/GameStoryMCP/internal/storage"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 只从容器获取服务，不再创建新实例
	container := di.GetContainer()

	storyService, ok := container.Get("story").(*services.StoryService)
	if !ok {
		return nil, fmt.Errorf("故事服务未正确初始化")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	// 归档与回合落盘是可选依赖
	store, _ := container.Get("archive").(*archive.Archive)
	files, _ := container.Get("storage").(*storage.FileStorage)

	handler := NewHandler(storyService, llmService, progressService, store, files)

	r := gin.Default()

	// 启用CORS与请求追踪
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// WebSocket 进度推送
	r.GET("/ws/progress/:taskID", handler.SubscribeProgress)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		api.GET("/health", handler.Health)

		// ===============================
		// 比赛与大纲相关路由
		// ===============================
		gamesGroup := api.Group("/games")
		{
			gamesGroup.GET("", handler.ListGames)
			gamesGroup.POST("", handler.CreateGameStory)
			gamesGroup.GET("/:game_id", handler.GetGameStory)
			gamesGroup.GET("/:game_id/sections", handler.GetSections)
			gamesGroup.GET("/:game_id/quality", handler.GetQuality)
			gamesGroup.GET("/:game_id/plays", handler.GetRawPlays)

			// 渲染路由单独限流
			renderGroup := gamesGroup.Group("/:game_id/render")
			renderGroup.Use(RenderRateLimit())
			{
				renderGroup.POST("/book", handler.RenderBook)
				renderGroup.POST("/sequential", handler.RenderSequential)
			}
		}

		// ===============================
		// 任务进度查询
		// ===============================
		api.GET("/tasks/:taskID", handler.GetTaskStatus)

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.POST("/test-connection", handler.TestConnection)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
