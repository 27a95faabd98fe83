package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorAction
	}{
		{&StatusError{Code: 500}, ActionRetry},
		{&StatusError{Code: 429}, ActionThrottled},
		{&StatusError{Code: 403}, ActionThrottled},
		{&StatusError{Code: 404}, ActionFatal},
		{fmt.Errorf("wrapped: %w", &StatusError{Code: 400}), ActionFatal},
		{errors.New("decode response: unexpected EOF"), ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{context.Canceled, ActionFatal},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffMultiple: 2}
	if d := calculateBackoff(0, cfg); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", d)
	}
	if d := calculateBackoff(1, cfg); d != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", d)
	}
	if d := calculateBackoff(5, cfg); d != 300*time.Millisecond {
		t.Errorf("expected cap at 300ms, got %v", d)
	}
}
