package sched

import (
	"context"
	"testing"
	"time"
)

type countingExpirer struct {
	calls int
	last  time.Time
}

func (c *countingExpirer) ExpireStale(now time.Time) int {
	c.calls++
	c.last = now
	return 1
}

func TestSweepRunsEveryExpirer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(nil)
	s.SetNowFunc(func() time.Time { return now })

	first := &countingExpirer{}
	second := &countingExpirer{}
	s.AddExpirer("first", first)
	s.AddExpirer("second", second)

	s.Sweep()
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
	if !first.last.Equal(now) {
		t.Fatalf("sweep time = %s, want %s", first.last, now)
	}
}

func TestMaintainRunsDailyJobs(t *testing.T) {
	s := New(nil)
	ran := make([]string, 0, 2)
	s.AddDailyJob("reputation", func(time.Time) { ran = append(ran, "reputation") })
	s.AddDailyJob("resources", func(time.Time) { ran = append(ran, "resources") })

	s.Maintain()
	if len(ran) != 2 || ran[0] != "reputation" || ran[1] != "resources" {
		t.Fatalf("ran = %v", ran)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(nil)
	s.SetIntervals(time.Millisecond, time.Millisecond)
	expirer := &countingExpirer{}
	s.AddExpirer("only", expirer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if expirer.calls == 0 {
		t.Fatalf("sweep never ran")
	}
}
