package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatFacts,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatFacts, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
	if got := err.Error(); got != "[facts] CODE: message (root)" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Category: ErrCatProbe, Code: "X", Message: "msg"}
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrorFactoriesCategories(t *testing.T) {
	tests := []struct {
		err  *DomainError
		want ErrorCategory
	}{
		{ErrValidation("C", "m"), ErrCatValidation},
		{ErrConfig("C", "m"), ErrCatConfig},
		{ErrFacts("C", "m"), ErrCatFacts},
		{ErrState("C", "m"), ErrCatState},
		{ErrProbe("C", "m"), ErrCatProbe},
		{ErrOutput("m"), ErrCatOutput},
		{ErrUnknownTest("postgres", "nope"), ErrCatValidation},
	}
	for _, tt := range tests {
		if tt.err.Category != tt.want {
			t.Errorf("%s: got category %s, want %s", tt.err.Code, tt.err.Category, tt.want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	if IsFatal(nil) {
		t.Fatal("nil error must not be fatal")
	}
	if IsFatal(ErrState(CodeStateWrite, "disk full")) {
		t.Fatal("state errors are absorbed")
	}
	if !IsFatal(ErrFacts(CodeMissingField, "MemTotal")) {
		t.Fatal("missing facts must be fatal")
	}
	if !IsFatal(errors.New("plain")) {
		t.Fatal("uncategorised errors are fatal")
	}
	wrapped := fmt.Errorf("running poll: %w", ErrConfig(CodeInvalidConfig, "bad"))
	if GetCategory(wrapped) != ErrCatConfig || !IsCategory(wrapped, ErrCatConfig) {
		t.Fatalf("expected wrapped category to be config, got %s", GetCategory(wrapped))
	}
}
