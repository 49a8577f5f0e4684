package csrf

import (
	"context"
	"sync"
	"testing"
	"time"
)

// newTestStore returns a MemoryStore with a controllable clock.
func newTestStore(ttl time.Duration) (*MemoryStore, *time.Time) {
	s := NewMemoryStore(ttl)
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestIssue_TokenShape(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)

	token, err := s.Issue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 32 random bytes hex-encoded.
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}

	other, err := s.Issue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == other {
		t.Error("expected distinct tokens from consecutive issues")
	}
}

func TestValidate_OneTimeUse(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)
	ctx := context.Background()

	token, err := s.Issue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.Validate(ctx, token) {
		t.Fatal("expected first validation to succeed")
	}
	if s.Validate(ctx, token) {
		t.Error("expected second validation of the same token to fail")
	}
}

func TestValidate_UnknownAndEmpty(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)
	ctx := context.Background()

	if s.Validate(ctx, "deadbeef") {
		t.Error("expected unknown token to be invalid")
	}
	if s.Validate(ctx, "") {
		t.Error("expected empty token to be invalid")
	}
}

func TestValidate_Expiry(t *testing.T) {
	s, now := newTestStore(15 * time.Minute)
	ctx := context.Background()

	token, err := s.Issue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	*now = now.Add(15*time.Minute + time.Second)

	if s.Validate(ctx, token) {
		t.Error("expected expired token to be invalid even on first use")
	}
}

func TestIssue_PurgesExpiredTokens(t *testing.T) {
	s, now := newTestStore(15 * time.Minute)
	ctx := context.Background()

	if _, err := s.Issue(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Issue(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	*now = now.Add(16 * time.Minute)

	fresh, err := s.Issue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.mu.Lock()
	size := len(s.tokens)
	s.mu.Unlock()
	if size != 1 {
		t.Errorf("expected sweep to leave only the fresh token, got %d entries", size)
	}
	if !s.Validate(ctx, fresh) {
		t.Error("expected fresh token to validate")
	}
}

func TestValidate_ConcurrentSameToken(t *testing.T) {
	s, _ := newTestStore(15 * time.Minute)
	ctx := context.Background()

	token, err := s.Issue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Validate(ctx, token)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful validation, got %d", wins)
	}
}
