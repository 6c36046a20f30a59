package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrDocumentUnreadable", ErrDocumentUnreadable, "document unreadable"},
		{"ErrDuplicateOffset", ErrDuplicateOffset, "bookmark already exists at offset"},
		{"ErrSeekUnsupported", ErrSeekUnsupported, "seek unsupported"},
		{"ErrNoOpenBook", ErrNoOpenBook, "no open book"},
		{"ErrSessionClosed", ErrSessionClosed, "session closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrDocumentUnreadable,
		ErrDuplicateOffset,
		ErrSeekUnsupported,
		ErrNoOpenBook,
		ErrSessionClosed,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorsIs_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("read chunk at byte 4096: %w", ErrDocumentUnreadable)
	if !errors.Is(wrapped, ErrDocumentUnreadable) {
		t.Error("wrapped error should match ErrDocumentUnreadable")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped error should not match ErrNotFound")
	}
}
