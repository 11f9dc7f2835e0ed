package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestBlogError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeMissingFields, "missing event")
	expected := "[VALIDATION:MISSING_FIELDS] missing event"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBlogError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := Wrap(ErrCategoryStorage, CodeInsertFailed, "insert failed", cause)
	expected := "[STORAGE:INSERT_FAILED] insert failed: database is locked"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBlogError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryTransport, CodeSendFailed, "post failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestBlogError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeInsertFailed, "first")
	err2 := New(ErrCategoryStorage, CodeInsertFailed, "second")
	err3 := New(ErrCategoryStorage, CodeOpenFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable_NothingRetries(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		code     string
	}{
		{ErrCategoryStorage, CodeInsertFailed},
		{ErrCategoryStorage, CodeOpenFailed},
		{ErrCategoryTransport, CodeSendFailed},
		{ErrCategoryTransport, CodeRejected},
		{ErrCategoryValidation, CodeMissingFields},
		{ErrCategoryContent, CodeNotFound},
		{ErrCategoryInternal, CodeUnexpected},
	}

	for _, tt := range tests {
		if IsRetryable(New(tt.category, tt.code, "test")) {
			t.Errorf("%s:%s should not be retryable", tt.category, tt.code)
		}
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain error should not be retryable")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewValidationError(CodeMalformedBody, "bad json"))
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCode(err) != CodeMalformedBody {
		t.Errorf("got %q, want %q", GetCode(err), CodeMalformedBody)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-BlogError should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewValidationError(CodeMissingFields, "missing")
	detailed := err.WithDetails(map[string]interface{}{"fields": []string{"event"}})

	if detailed.Details["fields"] == nil {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	if s := NewStorageError(CodeInsertFailed, "insert", cause); s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}
	if tr := NewTransportError(CodeSendFailed, "send", cause); tr.Category != ErrCategoryTransport {
		t.Error("NewTransportError mismatch")
	}
	if c := NewConfigError("bad addr"); c.Category != ErrCategoryConfig || c.Code != CodeInvalidConfig {
		t.Error("NewConfigError mismatch")
	}
	if c := NewContentError(CodeNotFound, "missing post", cause); c.Category != ErrCategoryContent {
		t.Error("NewContentError mismatch")
	}
	if i := NewInternalError("boom", cause); i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
