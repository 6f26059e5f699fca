package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_MessageAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewProcessingError("归档失败", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not find the wrapped cause")
	}
	if err.Error() != "归档失败: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}

	bare := NewValidationError("缺少字段", nil)
	if bare.Error() != "缺少字段" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
		want bool
	}{
		{NewStructuralError("x", nil), IsStructural, true},
		{NewCoverageError("x", nil), IsCoverage, true},
		{NewPolicyViolationError("x", nil), IsPolicyViolation, true},
		{NewSectionConstraintError("x", nil), IsSectionConstraint, true},
		{NewQAValidationError("x", nil), IsQAValidation, true},
		{NewStructuralError("x", nil), IsCoverage, false},
		{stderrors.New("plain"), IsStructural, false},
		{nil, IsStructural, false},
	}
	for i, tt := range tests {
		if got := tt.pred(tt.err); got != tt.want {
			t.Errorf("case %d: predicate = %v, want %v (err=%v)", i, got, tt.want, tt.err)
		}
	}
}

func TestIsType_ThroughWrapping(t *testing.T) {
	inner := NewCoverageError("章节缺口", nil)
	wrapped := fmt.Errorf("构建失败: %w", inner)

	if !IsCoverage(wrapped) {
		t.Error("IsCoverage() did not see through fmt.Errorf wrapping")
	}
	if IsStructural(wrapped) {
		t.Error("IsStructural() matched a coverage error")
	}
}
