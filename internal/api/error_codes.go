// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"

	// 比赛与大纲相关错误
	ErrorGameNotFound     = "GAME_NOT_FOUND"
	ErrorGameInvalid      = "GAME_INVALID"
	ErrorStoryBuildFailed = "STORY_BUILD_FAILED"

	// 管线校验相关错误
	ErrorStructural        = "STRUCTURAL_ERROR"
	ErrorCoverage          = "COVERAGE_ERROR"
	ErrorPolicyViolation   = "POLICY_VIOLATION"
	ErrorSectionConstraint = "SECTION_CONSTRAINT"
	ErrorQAValidation      = "QA_VALIDATION"

	// 渲染相关错误
	ErrorRenderFailed = "RENDER_FAILED"
	ErrorTaskNotFound = "TASK_NOT_FOUND"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// 配置健康相关
	ErrorConfigUnhealthy    = "CONFIG_UNHEALTHY"
	ErrorConfigNotLoaded    = "CONFIG_NOT_LOADED"
	ErrorLLMProviderMissing = "LLM_PROVIDER_MISSING"
	ErrorAPIKeyMissing      = "API_KEY_MISSING"
)
