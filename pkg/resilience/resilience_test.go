package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func succeeding(context.Context) error { return nil }

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("breaker should be open, is %s", b.State())
	}
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker must reject calls, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	b.Call(ctx, failing)
	b.Call(ctx, failing)
	b.Call(ctx, succeeding)
	b.Call(ctx, failing)
	b.Call(ctx, failing)

	if b.State() != StateClosed {
		t.Errorf("non-consecutive failures must not trip, state %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Second, HalfOpenMax: 1})
	base := time.Now()
	b.now = func() time.Time { return base }
	ctx := context.Background()

	b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	base = base.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatal("breaker should allow a probe after the timeout")
	}
	if err := b.Call(ctx, succeeding); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("successful probe should close the breaker, state %s", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Second})
	base := time.Now()
	b.now = func() time.Time { return base }
	ctx := context.Background()

	b.Call(ctx, failing)
	base = base.Add(11 * time.Second)
	if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe should run, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("failed probe should reopen, state %s", b.State())
	}
}

func TestLimiter_AllowRespectsBurst(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	base := time.Now()
	l.now = func() time.Time { return base }

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	base = base.Add(time.Second)
	if !l.Allow() {
		t.Error("token should refill after a second")
	}
}

func TestLimiter_WaitHonorsCancellation(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	} {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q", st, st.String())
		}
	}
}
