package ratelimit

import (
	"strconv"
	"testing"
	"time"
)

func TestLimiter_BurstThenThrottle(t *testing.T) {
	l := New(10, 2, time.Minute)
	now := time.Unix(1000, 0)

	if !l.Allow("w1", now) || !l.Allow("w1", now) {
		t.Fatalf("expected burst of 2 to pass")
	}
	if l.Allow("w1", now) {
		t.Fatalf("expected third event at the same instant to be throttled")
	}
	if !l.Allow("w2", now) {
		t.Fatalf("expected independent bucket per key")
	}
	if !l.Allow("w1", now.Add(100*time.Millisecond)) {
		t.Fatalf("expected token to refill after 100ms at 10/s")
	}
}

func TestLimiter_NilAllowsEverything(t *testing.T) {
	l := New(0, 5, 0)
	if l != nil {
		t.Fatalf("expected nil limiter for non-positive rate")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("w", time.Now()) {
			t.Fatalf("expected nil limiter to allow")
		}
	}
	l.Forget("w")
	if l.Len() != 0 {
		t.Fatalf("expected nil limiter to track nothing")
	}
}

func TestLimiter_EvictsIdleKeys(t *testing.T) {
	l := New(100, 1, time.Second)
	start := time.Unix(0, 0)
	l.Allow("stale", start)

	later := start.Add(time.Minute)
	for i := 0; i < sweepEvery; i++ {
		l.Allow("k"+strconv.Itoa(i%4), later)
	}
	if l.Len() != 4 {
		t.Fatalf("expected stale key evicted, have %d keys", l.Len())
	}

	l.Forget("k0")
	if l.Len() != 3 {
		t.Fatalf("expected Forget to drop key, have %d", l.Len())
	}
}
