package queue

import (
	"testing"
	"time"
)

var noJitter = func(n int64) int64 { return 0 }

func TestPolicy_Monotonic(t *testing.T) {
	p := DefaultPolicy()
	now := time.Unix(1_700_000_000, 0)

	prev := time.Duration(0)
	for attempts := 0; attempts < 12; attempts++ {
		d := p.NextAttempt(now, attempts, noJitter).Sub(now)
		if d < prev {
			t.Fatalf("delay decreased at attempts=%d: %v < %v", attempts, d, prev)
		}
		prev = d
	}
}

func TestPolicy_Cap(t *testing.T) {
	p := DefaultPolicy()
	now := time.Unix(1_700_000_000, 0)

	// 2000ms * 2^5 = 64000ms exceeds the 60s ceiling.
	for attempts := 5; attempts < 64; attempts++ {
		d := p.NextAttempt(now, attempts, noJitter).Sub(now)
		if d != p.MaxDelay {
			t.Fatalf("attempts=%d: expected capped delay %v, got %v", attempts, p.MaxDelay, d)
		}
	}
}

func TestPolicy_ExponentialGrowth(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, JitterMax: time.Second}
	now := time.Unix(1_700_000_000, 0)

	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second,
	}
	for attempts, w := range want {
		d := p.NextAttempt(now, attempts, noJitter).Sub(now)
		if d != w {
			t.Fatalf("attempts=%d: expected %v, got %v", attempts, w, d)
		}
	}
}

func TestPolicy_JitterBounds(t *testing.T) {
	p := DefaultPolicy()
	now := time.Unix(1_700_000_000, 0)

	// Maximum jitter draw: the scheduled time must stay below
	// delay + JitterMax.
	maxDraw := func(n int64) int64 { return n - 1 }
	d := p.NextAttempt(now, 0, maxDraw).Sub(now)
	if d < p.BaseDelay || d >= p.BaseDelay+p.JitterMax {
		t.Fatalf("jittered delay %v outside [%v, %v)", d, p.BaseDelay, p.BaseDelay+p.JitterMax)
	}
}

func TestPolicy_NilRand(t *testing.T) {
	p := DefaultPolicy()
	now := time.Unix(1_700_000_000, 0)
	if d := p.NextAttempt(now, 1, nil).Sub(now); d != 4*time.Second {
		t.Fatalf("expected 4s with nil rand, got %v", d)
	}
}
