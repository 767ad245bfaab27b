package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_TryConsume(t *testing.T) {
	r := NewRateLimiter(60)

	// Full bucket at start
	for i := 0; i < 60; i++ {
		if !r.TryConsume() {
			t.Fatalf("TryConsume failed at token %d", i)
		}
	}
	if r.TryConsume() {
		t.Error("TryConsume succeeded on empty bucket")
	}
}

func TestRateLimiter_WaitBlocksWhenEmpty(t *testing.T) {
	r := NewRateLimiter(60) // 1 token/sec refill
	for r.TryConsume() {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := r.Wait(ctx); err == nil {
		t.Error("Wait should have hit the context deadline")
	}
}

func TestRateLimiter_Record429DrainsTokens(t *testing.T) {
	r := NewRateLimiter(60)
	r.Record429(time.Second)

	st := r.Status()
	if st.TokensAvailable != 0 {
		t.Errorf("tokens after 429 = %d, want 0", st.TokensAvailable)
	}
	if st.Last429Time.IsZero() {
		t.Error("last 429 time not recorded")
	}
}

func TestRateLimiter_DefaultsOnInvalidInput(t *testing.T) {
	r := NewRateLimiter(0)
	if r.Status().TokensLimit != 60 {
		t.Errorf("limit = %d, want default 60", r.Status().TokensLimit)
	}
}
