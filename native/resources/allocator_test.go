package resources

import (
	"errors"
	"sync"
	"testing"

	"subnetgov/native/common"
)

func newAllocator(t *testing.T) *Allocator {
	t.Helper()
	a := NewAllocator(nil)
	err := a.SetLimits("subnet-1", Limits{
		MaxConcurrentExecutions: 4,
		MaxCPUMillis:            1000,
		MaxMemoryMB:             512,
		MaxStorageMB:            100,
		MaxBandwidthMbps:        50,
		DailyExecutionLimit:     10,
	})
	if err != nil {
		t.Fatalf("set limits: %v", err)
	}
	return a
}

func TestAllocateAllOrNothing(t *testing.T) {
	a := newAllocator(t)

	granted, reason, err := a.Allocate("subnet-1", Request{CPUMillis: 500, MemoryMB: 256, StorageMB: 10, BandwidthMbps: 5})
	if err != nil || !granted {
		t.Fatalf("allocate: granted=%v reason=%q err=%v", granted, reason, err)
	}

	// One oversized dimension denies the whole request and mutates nothing.
	before, _ := a.Usage("subnet-1")
	granted, reason, err = a.Allocate("subnet-1", Request{CPUMillis: 100, MemoryMB: 9000})
	if err != nil || granted {
		t.Fatalf("oversized allocate: granted=%v err=%v", granted, err)
	}
	if reason == "" {
		t.Fatalf("denial must carry a reason")
	}
	after, _ := a.Usage("subnet-1")
	if before != after {
		t.Fatalf("denied allocation mutated usage: %+v -> %+v", before, after)
	}
}

func TestAllocateDeniesOnConcurrencyAndDailyLimits(t *testing.T) {
	a := NewAllocator(nil)
	if err := a.SetLimits("subnet-1", Limits{MaxConcurrentExecutions: 2, DailyExecutionLimit: 3}); err != nil {
		t.Fatalf("set limits: %v", err)
	}

	for i := 0; i < 2; i++ {
		if granted, _, err := a.Allocate("subnet-1", Request{}); err != nil || !granted {
			t.Fatalf("allocate %d: granted=%v err=%v", i, granted, err)
		}
	}
	granted, reason, err := a.Allocate("subnet-1", Request{})
	if err != nil || granted || reason != "concurrent execution limit reached" {
		t.Fatalf("concurrency denial: granted=%v reason=%q err=%v", granted, reason, err)
	}

	if err := a.Release("subnet-1", Request{}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if granted, _, err := a.Allocate("subnet-1", Request{}); err != nil || !granted {
		t.Fatalf("allocate after release: granted=%v err=%v", granted, err)
	}

	// Three executions consumed the daily budget; releases do not refund it.
	if err := a.Release("subnet-1", Request{}); err != nil {
		t.Fatalf("release: %v", err)
	}
	granted, reason, err = a.Allocate("subnet-1", Request{})
	if err != nil || granted || reason != "daily execution limit reached" {
		t.Fatalf("daily denial: granted=%v reason=%q err=%v", granted, reason, err)
	}

	a.ResetDailyCounters()
	if granted, _, err := a.Allocate("subnet-1", Request{}); err != nil || !granted {
		t.Fatalf("allocate after reset: granted=%v err=%v", granted, err)
	}
}

func TestReleaseClampsAtZero(t *testing.T) {
	a := newAllocator(t)
	if granted, _, err := a.Allocate("subnet-1", Request{CPUMillis: 100, MemoryMB: 100}); err != nil || !granted {
		t.Fatalf("allocate: granted=%v err=%v", granted, err)
	}
	if err := a.Release("subnet-1", Request{CPUMillis: 500, MemoryMB: 500, StorageMB: 500}); err != nil {
		t.Fatalf("release: %v", err)
	}
	usage, _ := a.Usage("subnet-1")
	if usage.CPUMillis != 0 || usage.MemoryMB != 0 || usage.StorageMB != 0 || usage.ActiveExecutions != 0 {
		t.Fatalf("usage not clamped: %+v", usage)
	}
	if err := a.Release("subnet-1", Request{}); err != nil {
		t.Fatalf("release on empty usage: %v", err)
	}
	usage, _ = a.Usage("subnet-1")
	if usage.ActiveExecutions != 0 {
		t.Fatalf("active executions went negative: %+v", usage)
	}
}

func TestAllocateUnknownSubnet(t *testing.T) {
	a := NewAllocator(nil)
	if _, _, err := a.Allocate("ghost", Request{}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown subnet: err = %v", err)
	}
	if err := a.Release("ghost", Request{}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown subnet release: err = %v", err)
	}
	if err := a.SetLimits("ghost", Limits{}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("zero concurrency: err = %v", err)
	}
}

func TestConcurrentAllocateReleaseNeverGoesNegative(t *testing.T) {
	a := NewAllocator(nil)
	if err := a.SetLimits("subnet-1", Limits{
		MaxConcurrentExecutions: 8,
		MaxCPUMillis:            100,
		DailyExecutionLimit:     0,
	}); err != nil {
		t.Fatalf("set limits: %v", err)
	}

	var wg sync.WaitGroup
	req := Request{CPUMillis: 60}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				granted, _, err := a.Allocate("subnet-1", req)
				if err != nil {
					t.Errorf("allocate: %v", err)
					return
				}
				if granted {
					if err := a.Release("subnet-1", req); err != nil {
						t.Errorf("release: %v", err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	usage, _ := a.Usage("subnet-1")
	if usage.CPUMillis != 0 || usage.ActiveExecutions != 0 {
		t.Fatalf("usage drifted: %+v", usage)
	}
}
