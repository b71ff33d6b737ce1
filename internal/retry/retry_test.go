package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeSleep records requested delays without actually sleeping.
func fakeSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func Test_Do_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := Policy{sleep: fakeSleep(&delays)}

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("want %q, got %q", "ok", got)
	}
	if calls != 1 {
		t.Errorf("want 1 call, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("want no backoff delays, got %v", delays)
	}
}

func Test_Do_RetriesRateLimitThenSucceeds(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := Policy{sleep: fakeSleep(&delays)}

	calls := 0
	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("upstream: %w", ErrRateLimited)
		}
		return "third time lucky", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "third time lucky" {
		t.Errorf("unexpected result %q", got)
	}
	if calls != 3 {
		t.Errorf("want 3 calls, got %d", calls)
	}

	// Two failed attempts produce exactly two backoff delays: 2s then 4s.
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("want %d delays, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d]: want %v, got %v", i, want[i], delays[i])
		}
	}
}

func Test_Do_ExhaustsAttemptsOnPersistentRateLimit(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := Policy{MaxAttempts: 3, sleep: fakeSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("HTTP 429 too many requests: %w", ErrRateLimited)
	})
	if calls != 3 {
		t.Errorf("want exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("want ErrExhausted, got %v", err)
	}
	// The last upstream error must remain inspectable.
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("want wrapped upstream error, got %v", err)
	}
	// Only the inter-attempt gaps are slept: attempts-1 delays.
	if len(delays) != 2 {
		t.Errorf("want 2 delays, got %v", delays)
	}
}

func Test_Do_NonRateLimitFailsImmediately(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := Policy{sleep: fakeSleep(&delays)}

	boom := errors.New("schema validation failed")
	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if calls != 1 {
		t.Errorf("want 1 attempt for non-rate-limit error, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("want original error, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Errorf("non-rate-limit failure must not be reported as exhaustion")
	}
	if len(delays) != 0 {
		t.Errorf("want no delays, got %v", delays)
	}
}

func Test_Do_AuthErrorNotRetried(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := Policy{sleep: fakeSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("provider: %w", ErrUnauthorized)
	})
	if calls != 1 {
		t.Errorf("want 1 attempt for auth error, got %d", calls)
	}
	if Classify(err) != KindAuth {
		t.Errorf("want auth classification preserved, got %v", Classify(err))
	}
}

func Test_Do_DelayCappedAtCeiling(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := Policy{MaxAttempts: 8, sleep: fakeSleep(&delays)}

	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, ErrRateLimited
	})

	if len(delays) != 7 {
		t.Fatalf("want 7 delays, got %d", len(delays))
	}
	for i, d := range delays {
		if d > 30*time.Second {
			t.Errorf("delay[%d] = %v exceeds 30s cap", i, d)
		}
	}
	// 1s << 5 = 32s would exceed the cap; the fifth and later delays clamp.
	if delays[4] != 30*time.Second {
		t.Errorf("delay[4]: want 30s cap, got %v", delays[4])
	}
}

func Test_Do_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	_, err := Do(ctx, p, func(context.Context) (int, error) {
		return 0, ErrRateLimited
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
