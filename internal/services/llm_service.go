// internal/services/llm_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Corphon/GameStoryMCP/internal/config"
	"github.com/Corphon/GameStoryMCP/internal/llm"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"openrouter": "google/gemma-3-27b-it:free",
}

// PromptTemplates 渲染提示词模板
// 进程启动时构建一次，之后只读；模板变化意味着输出分布变化，
// 所以不提供运行期修改入口
type PromptTemplates struct {
	ChapterSystem string
	ChapterUser   string
	BookSystem    string
	BookUser      string
}

// DefaultPromptTemplates 默认提示词
// 逐章模板显式声明因果约束，全书模板显式允许后见之明
func DefaultPromptTemplates() PromptTemplates {
	return PromptTemplates{
		ChapterSystem: "You are a sports narrator writing one chapter of a game story. " +
			"Use ONLY the structured facts in the payload. You do not know anything " +
			"that happens after this chapter: never foreshadow, never mention the final " +
			"score, never use hindsight language. Do not invent players or statistics. " +
			"Write roughly the requested number of words.",
		ChapterUser: "Write the narrative for this chapter based on the following structured payload:\n%s",
		BookSystem: "You are a sports narrator writing a complete game story in one pass. " +
			"The whole game is known to you, so hindsight framing is allowed. Use ONLY " +
			"the structured facts in the payload: never invent players or statistics. " +
			"Follow the section outline and write roughly the requested number of words.",
		BookUser: "Write the full game narrative based on the following structured payload:\n%s",
	}
}

// LLMService 统一的外部渲染器调用入口
// 管线把渲染器当作不透明函数：载荷进、文本出，校验在外层做
type LLMService struct {
	providerMutex sync.RWMutex
	provider      llm.Provider
	providerName  string
	templates     PromptTemplates
	isReady       bool
	readyState    string
	defaultModel  string
}

// NewLLMService 从当前配置创建LLM服务
// 配置缺失时返回未就绪服务而不是错误，HTTP层据此降级
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.defaultModel = extractDefaultModel(cfg.LLMProvider, cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewEmptyLLMService 创建一个空的LLM服务实例作为后备方案
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby Service Mode – Please configure the API key in settings"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		templates:  DefaultPromptTemplates(),
		readyState: "Uninitialized",
	}
}

func extractDefaultModel(providerName string, llmConfig map[string]string) string {
	if llmConfig != nil && llmConfig["default_model"] != "" {
		return llmConfig["default_model"]
	}
	return providerDefaultModels[providerName]
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetStatus 返回当前提供商与就绪状态
func (s *LLMService) GetStatus() (providerName, state string, ready bool) {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName, s.readyState, s.provider != nil && s.isReady
}

// UpdateProvider 运行期切换提供商
func (s *LLMService) UpdateProvider(providerName string, llmConfig map[string]string) error {
	provider, err := llm.GetProvider(providerName, llmConfig)
	if err != nil {
		return fmt.Errorf("切换提供商失败: %w", err)
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.defaultModel = extractDefaultModel(providerName, llmConfig)
	s.isReady = true
	s.readyState = "Ready"
	return nil
}

// TestConnection 发送一个极小请求验证提供商可用
func (s *LLMService) TestConnection(ctx context.Context) error {
	s.providerMutex.RLock()
	provider := s.provider
	model := s.defaultModel
	s.providerMutex.RUnlock()

	if provider == nil {
		return ErrLLMNotReady
	}

	_, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:    "ping",
		Model:     model,
		MaxTokens: 8,
	})
	return err
}

// ListModels 返回当前提供商支持的模型列表
func (s *LLMService) ListModels() []string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider == nil {
		return []string{}
	}
	return s.provider.GetSupportedModels()
}

// RenderChapter 渲染单章叙事
// 载荷整体序列化进提示词，渲染器看不到载荷之外的任何比赛信息
func (s *LLMService) RenderChapter(ctx context.Context, input models.ChapterAIInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("序列化章节载荷失败: %w", err)
	}
	return s.complete(ctx, s.templates.ChapterSystem,
		fmt.Sprintf(s.templates.ChapterUser, string(payload)), input.TargetWords)
}

// RenderBook 渲染全书叙事，一次调用
func (s *LLMService) RenderBook(ctx context.Context, input models.BookAIInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("序列化全书载荷失败: %w", err)
	}
	return s.complete(ctx, s.templates.BookSystem,
		fmt.Sprintf(s.templates.BookUser, string(payload)), input.TargetWords)
}

func (s *LLMService) complete(ctx context.Context, systemPrompt, prompt string, targetWords int) (string, error) {
	s.providerMutex.RLock()
	provider := s.provider
	model := s.defaultModel
	ready := s.isReady
	s.providerMutex.RUnlock()

	if provider == nil || !ready {
		return "", ErrLLMNotReady
	}

	// 词数到token的粗略换算，留足余量
	maxTokens := targetWords * 3
	if maxTokens < 512 {
		maxTokens = 512
	}

	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Model:        model,
		MaxTokens:    maxTokens,
		Temperature:  0.7,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
