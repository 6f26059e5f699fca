// internal/api/handlers.go
package api

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/GameStoryMCP/internal/archive"
	"github.com/Corphon/GameStoryMCP/internal/config"
	"github.com/Corphon/GameStoryMCP/internal/llm"
	"github.com/Corphon/GameStoryMCP/internal/models"
	"github.com/Corphon/GameStoryMCP/internal/services"
	"github.com/Corphon/GameStoryMCP/internal/storage"
	"github.com/Corphon/GameStoryMCP/internal/utils"
)

// Handler 处理API请求
type Handler struct {
	StoryService    *services.StoryService    // 管线编排服务
	LLMService      *services.LLMService      // 渲染器服务
	ProgressService *services.ProgressService // 进度跟踪服务
	Archive         *archive.Archive          // 故事归档，可为nil
	Files           *storage.FileStorage      // 原始回合数据落盘，可为nil
	Responses       *ResponseHelper           // 响应助手

	// 已构建大纲的内存缓存，按 game_id 索引
	builds      map[int64]*services.BuildResult
	buildsMutex sync.RWMutex
}

// NewHandler 创建API处理器
func NewHandler(
	story *services.StoryService,
	llmSvc *services.LLMService,
	progress *services.ProgressService,
	store *archive.Archive,
	files *storage.FileStorage,
) *Handler {
	return &Handler{
		StoryService:    story,
		LLMService:      llmSvc,
		ProgressService: progress,
		Archive:         store,
		Files:           files,
		Responses:       NewResponseHelper(),
		builds:          make(map[int64]*services.BuildResult),
	}
}

// rawPlaysFile 每场比赛的原始请求载荷文件名
const rawPlaysFile = "plays.json"

// CreateGameStoryRequest 创建比赛大纲的请求结构
type CreateGameStoryRequest struct {
	Meta  models.GameMeta `json:"meta"`
	Plays []models.Play   `json:"plays"`
}

// CreateGameStory 跑确定性管线并缓存结果
// POST /api/games
func (h *Handler) CreateGameStory(c *gin.Context) {
	var req CreateGameStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Responses.BadRequest(c, "请求格式错误", err.Error())
		return
	}

	build, err := h.StoryService.BuildGameStory(req.Meta, req.Plays)
	if err != nil {
		h.Responses.PipelineError(c, err)
		return
	}

	h.buildsMutex.Lock()
	h.builds[req.Meta.GameID] = build
	h.buildsMutex.Unlock()

	// 原始回合数据落盘，供事后审计与重放
	if h.Files != nil {
		if err := h.Files.SaveJSONFile(storage.GameDir(req.Meta.GameID), rawPlaysFile, req); err != nil {
			utils.GetLogger().Warnf("回合数据落盘失败 game_id=%d: %v", req.Meta.GameID, err)
		}
	}

	utils.GetLogger().Infof("大纲构建完成 game_id=%d chapters=%d sections=%d fingerprint=%s",
		req.Meta.GameID, build.Story.ChapterCount, len(build.Sections), build.Fingerprint)

	h.Responses.Created(c, gin.H{
		"story":       build.Story,
		"sections":    build.Sections,
		"quality":     build.Quality,
		"length":      build.Length,
		"signals":     build.Signals,
		"fingerprint": build.Fingerprint,
	}, "比赛大纲构建成功")
}

// getBuild 取内存缓存的大纲
func (h *Handler) getBuild(c *gin.Context) (*services.BuildResult, bool) {
	gameID, err := strconv.ParseInt(c.Param("game_id"), 10, 64)
	if err != nil {
		h.Responses.BadRequest(c, "game_id 必须为整数")
		return nil, false
	}

	h.buildsMutex.RLock()
	build, exists := h.builds[gameID]
	h.buildsMutex.RUnlock()

	if !exists {
		h.Responses.NotFound(c, "比赛")
		return nil, false
	}
	return build, true
}

// GetGameStory 返回缓存的大纲
// GET /api/games/:game_id
func (h *Handler) GetGameStory(c *gin.Context) {
	build, ok := h.getBuild(c)
	if !ok {
		return
	}
	h.Responses.Success(c, gin.H{
		"story":       build.Story,
		"fingerprint": build.Fingerprint,
	})
}

// GetSections 返回段落大纲
// GET /api/games/:game_id/sections
func (h *Handler) GetSections(c *gin.Context) {
	build, ok := h.getBuild(c)
	if !ok {
		return
	}
	h.Responses.Success(c, build.Sections)
}

// GetQuality 返回质量信号与篇幅目标
// GET /api/games/:game_id/quality
func (h *Handler) GetQuality(c *gin.Context) {
	build, ok := h.getBuild(c)
	if !ok {
		return
	}
	h.Responses.Success(c, gin.H{
		"signals": build.Signals,
		"quality": build.Quality,
		"length":  build.Length,
	})
}

// GetRawPlays 返回落盘的原始回合数据
// GET /api/games/:game_id/plays
func (h *Handler) GetRawPlays(c *gin.Context) {
	gameID, err := strconv.ParseInt(c.Param("game_id"), 10, 64)
	if err != nil {
		h.Responses.BadRequest(c, "game_id 必须为整数")
		return
	}
	if h.Files == nil || !h.Files.FileExists(storage.GameDir(gameID), rawPlaysFile) {
		h.Responses.NotFound(c, "比赛")
		return
	}

	var req CreateGameStoryRequest
	if err := h.Files.LoadJSONFile(storage.GameDir(gameID), rawPlaysFile, &req); err != nil {
		h.Responses.InternalError(c, "读取回合数据失败", err.Error())
		return
	}
	h.Responses.Success(c, req)
}

// ListGames 列出归档中的所有比赛
// GET /api/games
func (h *Handler) ListGames(c *gin.Context) {
	if h.Archive == nil {
		h.Responses.Success(c, []archive.GameListing{})
		return
	}
	listings, err := h.Archive.ListGames()
	if err != nil {
		h.Responses.InternalError(c, "读取归档失败", err.Error())
		return
	}
	h.Responses.Success(c, listings)
}

// RenderBook 全书模式渲染：同步，一次外部调用
// POST /api/games/:game_id/render/book
func (h *Handler) RenderBook(c *gin.Context) {
	build, ok := h.getBuild(c)
	if !ok {
		return
	}
	if !h.LLMService.IsReady() {
		h.Responses.Error(c, 503, ErrorLLMServiceUnavailable, "渲染器未就绪，请先配置API密钥")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	narrative, err := h.StoryService.GenerateFullBook(ctx, build)
	if err != nil {
		h.Responses.PipelineError(c, err)
		return
	}

	h.Responses.Success(c, gin.H{
		"game_id":   build.Story.GameID,
		"mode":      "book",
		"narrative": narrative,
	}, "全书渲染完成")
}

// RenderSequential 逐章模式渲染：异步任务，进度走WebSocket
// POST /api/games/:game_id/render/sequential
func (h *Handler) RenderSequential(c *gin.Context) {
	build, ok := h.getBuild(c)
	if !ok {
		return
	}
	if !h.LLMService.IsReady() {
		h.Responses.Error(c, 503, ErrorLLMServiceUnavailable, "渲染器未就绪，请先配置API密钥")
		return
	}

	taskID := uuid.NewString()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := h.StoryService.GenerateSequential(ctx, build, taskID); err != nil {
			utils.GetLogger().Errorf("逐章生成失败 game_id=%d task=%s: %v",
				build.Story.GameID, taskID, err)
		}
	}()

	h.Responses.Success(c, gin.H{
		"task_id":  taskID,
		"game_id":  build.Story.GameID,
		"chapters": build.Story.ChapterCount,
	}, "逐章生成任务已启动")
}

// GetTaskStatus 轮询方式查询任务状态
// GET /api/tasks/:taskID
func (h *Handler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskID")
	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		h.Responses.NotFound(c, "任务")
		return
	}
	h.Responses.Success(c, tracker.Snapshot())
}

// GetLLMStatus 返回渲染器状态
// GET /api/llm/status
func (h *Handler) GetLLMStatus(c *gin.Context) {
	providerName, state, ready := h.LLMService.GetStatus()
	h.Responses.Success(c, gin.H{
		"provider": providerName,
		"state":    state,
		"ready":    ready,
	})
}

// GetLLMModels 返回当前提供商支持的模型
// GET /api/llm/models
func (h *Handler) GetLLMModels(c *gin.Context) {
	h.Responses.Success(c, gin.H{
		"providers": llm.ListProviders(),
		"models":    h.LLMService.ListModels(),
	})
}

// UpdateLLMConfigRequest LLM配置更新请求
type UpdateLLMConfigRequest struct {
	Provider string            `json:"provider"`
	Config   map[string]string `json:"config"`
}

// UpdateLLMConfig 切换渲染提供商
// PUT /api/llm/config
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Responses.BadRequest(c, "请求格式错误", err.Error())
		return
	}
	if req.Provider == "" {
		h.Responses.Error(c, 400, ErrorLLMProviderMissing, "未指定提供商")
		return
	}
	if req.Config == nil || req.Config["api_key"] == "" {
		h.Responses.Error(c, 400, ErrorAPIKeyMissing, "未提供API密钥")
		return
	}

	if err := h.LLMService.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Responses.Error(c, 400, ErrorLLMConfigInvalid, err.Error())
		return
	}
	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.Responses.InternalError(c, "保存配置失败", err.Error())
		return
	}

	h.Responses.Success(c, nil, "LLM配置已更新")
}

// TestConnection 验证当前渲染提供商可用
// POST /api/settings/test-connection
func (h *Handler) TestConnection(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.LLMService.TestConnection(ctx); err != nil {
		h.Responses.Error(c, 502, ErrorConnectionFailed, "连接测试失败", err.Error())
		return
	}
	h.Responses.Success(c, nil, "连接测试成功")
}

// GetSettings 返回当前配置（隐藏密钥）
// GET /api/settings
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		h.Responses.Error(c, 500, ErrorConfigNotLoaded, "配置未加载")
		return
	}

	masked := "未配置"
	if cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] != "" {
		masked = "已配置"
	}

	h.Responses.Success(c, gin.H{
		"port":          cfg.Port,
		"debug_mode":    cfg.DebugMode,
		"llm_provider":  cfg.LLMProvider,
		"api_key":       masked,
		"default_model": cfg.LLMConfig["default_model"],
	})
}

// Health 健康检查
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	_, _, llmReady := h.LLMService.GetStatus()
	h.Responses.Success(c, gin.H{
		"status":    "ok",
		"llm_ready": llmReady,
		"archived":  h.Archive != nil,
	})
}
