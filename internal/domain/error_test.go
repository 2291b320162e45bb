package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      &Error{Code: EINVALID, Message: "invalid event"},
			expected: "invalid event",
		},
		{
			name:     "with operation",
			err:      &Error{Code: EINVALID, Op: "webhook.reconcile", Message: "invalid event"},
			expected: "webhook.reconcile: invalid event",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "webhook.reconcile",
				Message: "Invoice not found.",
				Err:     errors.New("expected 1 record, found 0"),
			},
			expected: "webhook.reconcile: Invoice not found.: expected 1 record, found 0",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError(cause, EINTERNAL, "op", "wrapped")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if WrapError(nil, EINTERNAL, "op", "wrapped") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"domain error", Unauthorized("op", "bad signature"), EUNAUTHORIZED},
		{"wrapped domain error", fmt.Errorf("outer: %w", Invalid("op", "bad")), EINVALID},
		{"validation error", NewValidationError("op", "email", "required"), EINVALID},
		{"plain error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"domain error", Invalid("op", "Webhook Error: bad event"), "Webhook Error: bad event"},
		{"internal error keeps its message", Internal(errors.New("secret detail"), "op", "Invoice not found."), "Invoice not found."},
		{"internal error without message", &Error{Code: EINTERNAL, Err: errors.New("secret detail")}, "An internal error occurred."},
		{"plain error", errors.New("secret detail"), "An internal error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	if got := ErrorOp(Errorf(ENOTFOUND, "record.get", "record %s not found", "r1")); got != "record.get" {
		t.Errorf("ErrorOp() = %q, want %q", got, "record.get")
	}
	if got := ErrorOp(errors.New("plain")); got != "" {
		t.Errorf("ErrorOp() = %q, want empty", got)
	}
}

func TestIsCode(t *testing.T) {
	err := NotFound("record.get", "record", "r1")
	if !IsCode(err, ENOTFOUND) {
		t.Error("IsCode should match ENOTFOUND")
	}
	if IsCode(err, EINVALID) {
		t.Error("IsCode should not match EINVALID")
	}
	if got := ErrorMessage(err); got != "record not found: r1" {
		t.Errorf("NotFound message = %q", got)
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single field error", func(t *testing.T) {
		err := NewValidationError("order.validate", "items", "missing at least one line item in items[]")

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatal("NewValidationError should return *ValidationError")
		}

		expected := "order.validate: items: missing at least one line item in items[]"
		if ve.Error() != expected {
			t.Errorf("Error() = %q, want %q", ve.Error(), expected)
		}
	})

	t.Run("multiple field errors list sorted names", func(t *testing.T) {
		err := NewValidationError("order.validate", "items", "required")
		err = AddFieldError(err, "email", "required")

		expected := "order.validate: validation failed for 2 fields (email, items)"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
		if len(GetValidationFields(err)) != 2 {
			t.Errorf("GetValidationFields() len = %d, want 2", len(GetValidationFields(err)))
		}
	})

	t.Run("add field to nil error", func(t *testing.T) {
		err := AddFieldError(nil, "email", "required")
		if !IsValidationError(err) {
			t.Fatal("AddFieldError(nil) should return *ValidationError")
		}
	})

	t.Run("non-validation error has no fields", func(t *testing.T) {
		if GetValidationFields(errors.New("plain")) != nil {
			t.Error("expected nil fields")
		}
	})
}
