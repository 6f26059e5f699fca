// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 流水线错误类型
	ErrorTypeStructural        ErrorType = "structural_error"   // 输入为空或结构不变量被破坏
	ErrorTypeCoverage          ErrorType = "coverage_error"     // 覆盖缺口、重叠、指纹不一致
	ErrorTypePolicyViolation   ErrorType = "policy_violation"   // 因果上下文越界（未来章节泄漏）
	ErrorTypeSectionConstraint ErrorType = "section_constraint" // 段落数量或合并约束无法满足
	ErrorTypeQAValidation      ErrorType = "qa_validation"      // 渲染后校验失败

	// 通用错误类型（API层使用）
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeProcessing ErrorType = "processing_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewStructuralError 创建结构性错误（空输入、非法的 Chapter/GameStory 不变量）
func NewStructuralError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeStructural, message, originalError)
}

// NewCoverageError 创建覆盖性错误（缺口、重叠、指纹不一致、顺序违规）
func NewCoverageError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeCoverage, message, originalError)
}

// NewPolicyViolationError 创建因果策略错误（生成上下文引用了未来章节）
func NewPolicyViolationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePolicyViolation, message, originalError)
}

// NewSectionConstraintError 创建段落约束错误
func NewSectionConstraintError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeSectionConstraint, message, originalError)
}

// NewQAValidationError 创建渲染后校验错误
func NewQAValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeQAValidation, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProcessing, message, originalError)
}

// IsType 检查错误链中是否存在指定类型的 AppError
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsStructural 检查是否为结构性错误
func IsStructural(err error) bool { return IsType(err, ErrorTypeStructural) }

// IsCoverage 检查是否为覆盖性错误
func IsCoverage(err error) bool { return IsType(err, ErrorTypeCoverage) }

// IsPolicyViolation 检查是否为因果策略错误
func IsPolicyViolation(err error) bool { return IsType(err, ErrorTypePolicyViolation) }

// IsSectionConstraint 检查是否为段落约束错误
func IsSectionConstraint(err error) bool { return IsType(err, ErrorTypeSectionConstraint) }

// IsQAValidation 检查是否为渲染后校验错误
func IsQAValidation(err error) bool { return IsType(err, ErrorTypeQAValidation) }

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeStructural:
		return "E_STRUCTURAL"
	case ErrorTypeCoverage:
		return "E_COVERAGE"
	case ErrorTypePolicyViolation:
		return "E_POLICY"
	case ErrorTypeSectionConstraint:
		return "E_SECTION"
	case ErrorTypeQAValidation:
		return "E_QA"
	case ErrorTypeValidation:
		return "E_VALIDATION"
	case ErrorTypeNotFound:
		return "E_NOT_FOUND"
	default:
		return "E_PROCESSING"
	}
}
