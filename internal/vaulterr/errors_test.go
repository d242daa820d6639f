package vaulterr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		validation   bool
		notFound     bool
		gateway      bool
		inconsistent bool
	}{
		{"validation", Validation("amount must be positive"), true, false, false, false},
		{"invalid amount", InvalidAmount("split already paid"), true, false, false, false},
		{"not found", NotFound("split", "abc"), false, true, false, false},
		{"gateway", Gateway("create payment intent", errors.New("boom")), false, false, true, false},
		{"inconsistent", Inconsistent("confirm", "split missing", nil), false, false, false, true},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("entry", "x")), false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation = %v, want %v", got, tt.validation)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsGateway(tt.err); got != tt.gateway {
				t.Errorf("IsGateway = %v, want %v", got, tt.gateway)
			}
			if got := IsInconsistent(tt.err); got != tt.inconsistent {
				t.Errorf("IsInconsistent = %v, want %v", got, tt.inconsistent)
			}
		})
	}
}

func TestInvalidAmountWrapsSentinel(t *testing.T) {
	err := InvalidAmount("split %s already paid", "s1")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected errors.Is(err, ErrInvalidAmount), got %v", err)
	}
	if err.Error() != "invalid amount: split s1 already paid" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestGatewayTimeout(t *testing.T) {
	err := Gateway("retrieve payment intent", fmt.Errorf("request: %w", context.DeadlineExceeded))
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatal("expected GatewayError")
	}
	if !gwErr.Timeout() {
		t.Error("expected Timeout() to be true")
	}
}
