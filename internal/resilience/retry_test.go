package resilience

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

func fastRetryConfig(maxRetries int, retryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.01,
		IsRetryable:  retryable,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3, IsRetryableNet), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3, func(error) bool { return true }), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryGivesUpOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := apperrors.New(apperrors.CodeFontLoad, "bad ttf")
	err := Retry(context.Background(), fastRetryConfig(3, IsRetryableNet), func() error {
		calls++
		return fatal
	})
	if !apperrors.IsCode(err, apperrors.CodeFontLoad) {
		t.Fatalf("Retry = %v, want the fatal error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for configuration errors)", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := apperrors.New(apperrors.CodeTimeout, "read timed out")
	err := Retry(context.Background(), fastRetryConfig(2, IsRetryableNet), func() error {
		calls++
		return transient
	})
	if !apperrors.IsCode(err, apperrors.CodeTimeout) {
		t.Fatalf("Retry = %v, want last error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(3, IsRetryableNet), func() error {
		t.Fatal("fn should not run with cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry = %v, want context.Canceled", err)
	}
}

func TestIsRetryableNet(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", apperrors.New(apperrors.CodeUnavailable, "down"), true},
		{"timeout code", apperrors.New(apperrors.CodeTimeout, "slow"), true},
		{"config error", apperrors.New(apperrors.CodeConfigInvalid, "bad"), false},
		{"input mismatch", apperrors.New(apperrors.CodeInputMismatch, "wrong size"), false},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"plain error", errors.New("whatever"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableNet(tt.err); got != tt.want {
				t.Errorf("IsRetryableNet(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:    time.Second,
		MaxDelay:     2 * time.Second,
		JitterFactor: 0.0001,
		MaxRetries:   10,
		IsRetryable:  IsRetryableNet,
	}
	d := backoffDelay(cfg, 9)
	if d > 3*time.Second {
		t.Errorf("backoffDelay = %v, want capped near MaxDelay", d)
	}
}
